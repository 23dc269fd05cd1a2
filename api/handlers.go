/*
handlers.go - HTTP API handlers for the circulation engine

PURPOSE:
  Exposes the loan and fines policy engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Members:
    GET    /api/members                 List all members
    POST   /api/members                 Create member
    GET    /api/members/{id}            Get member details
    GET    /api/members/{id}/dues       Dues summary (accrues on read)
    GET    /api/members/{id}/loans      Loan history
    POST   /api/members/{id}/payments   Record fine payment

  Loans:
    POST   /api/loans                   Check out an item
    GET    /api/loans/{id}              Get loan details
    POST   /api/loans/{id}/renew        Attempt renewal
    POST   /api/loans/{id}/return       Return an item

  Rules:
    GET    /api/rules                   List loan rules
    POST   /api/rules                   Create/update rule from JSON
    GET    /api/rules/{id}              Get rule
    DELETE /api/rules/{id}              Delete rule

  Admin:
    POST   /api/admin/sweep             Accrue fines for all overdue loans

  Scenarios:
    GET    /api/scenarios               List demo scenarios
    POST   /api/scenarios/load          Load a demo scenario

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (engine, resolver, ledger)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Member/loan/rule not found
  - 409: Conflict (already returned, ambiguous rules)
  - 422: Rule table incomplete (no applicable rule)
  - 500: Internal errors

  A DENIED renewal or checkout is NOT an error: it comes back 200 with
  the denial reason in the body, ready for display.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/circulation-engine/circulation"
	"github.com/warp/circulation-engine/factory"
	"github.com/warp/circulation-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	Engine      *circulation.Engine
	RuleFactory *factory.RuleFactory

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:       store,
		Engine:      circulation.NewEngine(store),
		RuleFactory: factory.NewRuleFactory(),
	}
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// ListMembers returns all members.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.ListMembers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}

	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = toMemberDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMember returns a single member.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	id := circulation.MemberID(chi.URLParam(r, "id"))

	member, err := h.Store.GetMember(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get member", err)
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "Member not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(*member))
}

// CreateMember creates a new member.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.MemberTypeID == "" {
		writeError(w, http.StatusBadRequest, "id and member_type_id are required", nil)
		return
	}

	member := circulation.Member{
		ID:           circulation.MemberID(req.ID),
		Name:         req.Name,
		MemberTypeID: req.MemberTypeID,
	}
	if err := h.Store.SaveMember(r.Context(), member); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create member", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberDTO(member))
}

// GetDues returns the member's dues summary, accruing any outstanding
// fines first so the totals are current as of the request.
func (h *Handler) GetDues(w http.ResponseWriter, r *http.Request) {
	memberID := circulation.MemberID(chi.URLParam(r, "id"))

	asOf, err := parseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}

	summary, err := h.Engine.GetDuesSummary(r.Context(), memberID, asOf)
	if err != nil {
		writeDomainError(w, "Failed to get dues summary", err)
		return
	}

	dto := DuesSummaryDTO{
		MemberID:         string(summary.MemberID),
		AsOf:             summary.AsOf.String(),
		Fines:            make([]FineEntryDTO, len(summary.Fines)),
		TotalOutstanding: summary.TotalOutstanding.String(),
	}
	for i, e := range summary.Fines {
		dto.Fines[i] = toFineEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dto)
}

// ListMemberLoans returns the member's loan history, newest first.
func (h *Handler) ListMemberLoans(w http.ResponseWriter, r *http.Request) {
	memberID := circulation.MemberID(chi.URLParam(r, "id"))

	loans, err := h.Store.LoansByMember(r.Context(), memberID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list loans", err)
		return
	}

	asOf := circulation.Today()
	dtos := make([]LoanDTO, len(loans))
	for i, loan := range loans {
		dtos[i] = toLoanDTO(loan, asOf)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecordPayment records a fine payment against the member's ledger.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	memberID := circulation.MemberID(chi.URLParam(r, "id"))

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := circulation.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	if !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "Amount must be positive", nil)
		return
	}

	asOf, err := parseAsOf(req.AsOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}

	entry, err := h.Engine.RecordPayment(r.Context(), memberID, amount, asOf, req.Note)
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toFineEntryDTO(entry))
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// Checkout creates a loan if the governing rule allows it.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.MemberID == "" || req.ItemCode == "" {
		writeError(w, http.StatusBadRequest, "member_id and item_code are required", nil)
		return
	}

	asOf, err := parseAsOf(req.AsOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}

	item := circulation.ItemRef{
		ItemCode:         req.ItemCode,
		CollectionTypeID: req.CollectionTypeID,
		MaterialTypeID:   req.MaterialTypeID,
	}

	result, err := h.Engine.Checkout(r.Context(), circulation.MemberID(req.MemberID), item, asOf)
	if err != nil {
		writeDomainError(w, "Failed to check out item", err)
		return
	}

	dto := CheckoutResultDTO{
		Created: result.Created,
		Reason:  string(result.Reason),
	}
	status := http.StatusOK
	if result.Created {
		loanDTO := toLoanDTO(*result.Loan, asOf)
		dto.Loan = &loanDTO
		status = http.StatusCreated
	}
	writeJSON(w, status, dto)
}

// GetLoan returns a single loan.
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id := circulation.LoanID(chi.URLParam(r, "id"))

	loan, err := h.Store.GetLoan(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get loan", err)
		return
	}
	if loan == nil {
		writeError(w, http.StatusNotFound, "Loan not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(*loan, circulation.Today()))
}

// RenewLoan attempts to renew a loan. A denial is a 200 with the reason;
// only faults (missing loan, broken rule table) are error statuses.
func (h *Handler) RenewLoan(w http.ResponseWriter, r *http.Request) {
	loanID := circulation.LoanID(chi.URLParam(r, "id"))

	var req RenewRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	asOf, err := parseAsOf(req.AsOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}

	result, err := h.Engine.AttemptRenewal(r.Context(), loanID, asOf)
	if err != nil {
		writeDomainError(w, "Failed to renew loan", err)
		return
	}

	writeJSON(w, http.StatusOK, RenewalResultDTO{
		LoanID:       string(result.LoanID),
		Renewed:      result.Renewed,
		Reason:       string(result.Reason),
		DueDate:      result.DueDate.String(),
		RenewalCount: result.RenewalCount,
	})
}

// ReturnLoan returns an item, settling any outstanding fine accrual first.
func (h *Handler) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	loanID := circulation.LoanID(chi.URLParam(r, "id"))

	var req ReturnRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	asOf, err := parseAsOf(req.AsOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}

	result, err := h.Engine.ReturnItem(r.Context(), loanID, asOf)
	if err != nil {
		writeDomainError(w, "Failed to return item", err)
		return
	}

	writeJSON(w, http.StatusOK, ReturnResultDTO{
		LoanID:     string(result.LoanID),
		ReturnDate: result.ReturnDate.String(),
		FineAmount: result.FineAmount.String(),
	})
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

// ListRules returns all loan rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}

	dtos := make([]RuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = RuleDTO{RuleJSON: h.RuleFactory.ToJSON(rule), Specificity: rule.Specificity()}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRule returns a single rule.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id := circulation.RuleID(chi.URLParam(r, "id"))

	rule, err := h.Store.GetRule(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get rule", err)
		return
	}
	if rule == nil {
		writeError(w, http.StatusNotFound, "Rule not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, RuleDTO{RuleJSON: h.RuleFactory.ToJSON(*rule), Specificity: rule.Specificity()})
}

// CreateRule creates or updates a rule from JSON.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rj factory.RuleJSON
	if err := json.NewDecoder(r.Body).Decode(&rj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule, err := h.RuleFactory.FromJSON(rj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule", err)
		return
	}

	if err := h.Store.SaveRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, RuleDTO{RuleJSON: h.RuleFactory.ToJSON(rule), Specificity: rule.Specificity()})
}

// DeleteRule removes a rule.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := circulation.RuleID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteRule(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete rule", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// SweepOverdue accrues fines for every outstanding overdue loan.
// Idempotent per loan/day; safe to call repeatedly.
func (h *Handler) SweepOverdue(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	asOf, err := parseAsOf(req.AsOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}

	charged, err := h.Engine.SweepOverdueLoans(r.Context(), asOf)
	if err != nil {
		writeDomainError(w, "Failed to sweep overdue loans", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"as_of":       asOf.String(),
		"new_entries": charged,
	})
}

// Health is the liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func toMemberDTO(m circulation.Member) MemberDTO {
	return MemberDTO{
		ID:           string(m.ID),
		Name:         m.Name,
		MemberTypeID: m.MemberTypeID,
	}
}

func toLoanDTO(loan circulation.Loan, asOf circulation.Date) LoanDTO {
	dto := LoanDTO{
		ID:               string(loan.ID),
		MemberID:         string(loan.MemberID),
		ItemCode:         loan.ItemCode,
		CollectionTypeID: loan.CollectionTypeID,
		MaterialTypeID:   loan.MaterialTypeID,
		LoanDate:         loan.LoanDate.String(),
		DueDate:          loan.DueDate.String(),
		RenewalCount:     loan.RenewalCount,
		OverdueDays:      loan.OverdueDays(asOf),
	}
	if loan.ReturnDate != nil {
		d := loan.ReturnDate.String()
		dto.ReturnDate = &d
	}
	return dto
}

func toFineEntryDTO(e circulation.FineEntry) FineEntryDTO {
	return FineEntryDTO{
		ID:          string(e.ID),
		LoanID:      string(e.LoanID),
		Date:        e.Date.String(),
		Debit:       e.Debit.String(),
		Credit:      e.Credit.String(),
		Description: e.Description,
	}
}

// parseAsOf parses an optional YYYY-MM-DD value, defaulting to today.
func parseAsOf(s string) (circulation.Date, error) {
	if s == "" {
		return circulation.Today(), nil
	}
	return circulation.ParseDate(s)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps circulation errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case circulation.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, circulation.ErrAlreadyReturned),
		errors.Is(err, circulation.ErrAmbiguousRule):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, circulation.ErrNoApplicableRule):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case circulation.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
