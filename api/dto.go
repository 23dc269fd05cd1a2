/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Member:
    MemberDTO, CreateMemberRequest

  Loan:
    LoanDTO, CheckoutRequest, RenewRequest, ReturnRequest

  Fines:
    FineEntryDTO, DuesSummaryDTO, PaymentRequest

  Rule:
    RuleDTO (wraps factory.RuleJSON)

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rules.go: RuleJSON type
*/
package api

import (
	"github.com/warp/circulation-engine/factory"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// MemberDTO represents a member in API responses.
type MemberDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MemberTypeID string `json:"member_type_id"`
}

// CreateMemberRequest is the request to create a member.
type CreateMemberRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MemberTypeID string `json:"member_type_id"`
}

// RuleDTO represents a loan rule in API responses.
type RuleDTO struct {
	factory.RuleJSON
	Specificity int `json:"specificity"`
}

// LoanDTO represents a loan in API responses.
type LoanDTO struct {
	ID               string  `json:"id"`
	MemberID         string  `json:"member_id"`
	ItemCode         string  `json:"item_code"`
	CollectionTypeID string  `json:"collection_type_id"`
	MaterialTypeID   string  `json:"material_type_id"`
	LoanDate         string  `json:"loan_date"`
	DueDate          string  `json:"due_date"`
	RenewalCount     int     `json:"renewal_count"`
	ReturnDate       *string `json:"return_date,omitempty"`
	OverdueDays      int     `json:"overdue_days"`
}

// CheckoutRequest is the request to check out an item.
type CheckoutRequest struct {
	MemberID         string `json:"member_id"`
	ItemCode         string `json:"item_code"`
	CollectionTypeID string `json:"collection_type_id"`
	MaterialTypeID   string `json:"material_type_id"`
	AsOf             string `json:"as_of,omitempty"` // YYYY-MM-DD, default today
}

// CheckoutResultDTO reports the outcome of a checkout attempt.
type CheckoutResultDTO struct {
	Created bool     `json:"created"`
	Reason  string   `json:"reason,omitempty"`
	Loan    *LoanDTO `json:"loan,omitempty"`
}

// RenewRequest is the request to renew a loan.
type RenewRequest struct {
	AsOf string `json:"as_of,omitempty"` // YYYY-MM-DD, default today
}

// RenewalResultDTO reports the outcome of a renewal attempt.
type RenewalResultDTO struct {
	LoanID       string `json:"loan_id"`
	Renewed      bool   `json:"renewed"`
	Reason       string `json:"reason,omitempty"`
	DueDate      string `json:"due_date"`
	RenewalCount int    `json:"renewal_count"`
}

// ReturnRequest is the request to return an item.
type ReturnRequest struct {
	AsOf string `json:"as_of,omitempty"` // YYYY-MM-DD, default today
}

// ReturnResultDTO reports the outcome of returning an item.
type ReturnResultDTO struct {
	LoanID     string `json:"loan_id"`
	ReturnDate string `json:"return_date"`
	FineAmount string `json:"fine_amount"`
}

// FineEntryDTO represents a fines-ledger entry.
type FineEntryDTO struct {
	ID          string `json:"id"`
	LoanID      string `json:"loan_id,omitempty"`
	Date        string `json:"date"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Description string `json:"description"`
}

// DuesSummaryDTO reports a member's fines and outstanding balance.
type DuesSummaryDTO struct {
	MemberID         string         `json:"member_id"`
	AsOf             string         `json:"as_of"`
	Fines            []FineEntryDTO `json:"fines"`
	TotalOutstanding string         `json:"total_outstanding"`
}

// PaymentRequest is the request to record a fine payment.
type PaymentRequest struct {
	Amount string `json:"amount"`
	Note   string `json:"note,omitempty"`
	AsOf   string `json:"as_of,omitempty"` // YYYY-MM-DD, default today
}

// SweepRequest is the request to run an accrual sweep.
type SweepRequest struct {
	AsOf string `json:"as_of,omitempty"` // YYYY-MM-DD, default today
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
