/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates rules, members, and
	loans that demonstrate specific engine behaviors.

AVAILABLE SCENARIOS:

	new-member:      Fresh member, nothing due
	overdue-fines:   Member with overdue loans accruing daily fines
	renewal-limits:  Loans at and near the renewal limit
	mixed-rules:     Specificity resolution across member/material types

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Seed rules via factory presets
 3. Create members
 4. Create loans, backdated so overdue behavior shows immediately

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "overdue-fines"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - factory/rules.go: Rule JSON presets
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/warp/circulation-engine/circulation"
	"github.com/warp/circulation-engine/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "new-member",
		Name:        "New Member",
		Description: "Fresh member with current loans and an empty fines ledger",
	},
	{
		ID:          "overdue-fines",
		Name:        "Overdue Fines",
		Description: "Backdated loans past due - dues summary accrues daily fines",
	},
	{
		ID:          "renewal-limits",
		Name:        "Renewal Limits",
		Description: "Loans at and near the renewal limit, plus an unpaid fine blocking renewal",
	},
	{
		ID:          "mixed-rules",
		Name:        "Mixed Rules",
		Description: "Specific rules beating wildcards: DVDs, course reserves, faculty",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "new-member":
		err = loadNewMemberScenario(ctx, h)
	case "overdue-fines":
		err = loadOverdueFinesScenario(ctx, h)
	case "renewal-limits":
		err = loadRenewalLimitsScenario(ctx, h)
	case "mixed-rules":
		err = loadMixedRulesScenario(ctx, h)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func seedStandardRules(ctx context.Context, h *Handler) error {
	rules, err := h.RuleFactory.ParseRuleSet(factory.StandardLibraryRulesJSON())
	if err != nil {
		return err
	}
	for _, rule := range rules {
		if err := h.Store.SaveRule(ctx, rule); err != nil {
			return err
		}
	}
	return nil
}

func seedMember(ctx context.Context, h *Handler, id, name, memberType string) error {
	return h.Store.SaveMember(ctx, circulation.Member{
		ID:           circulation.MemberID(id),
		Name:         name,
		MemberTypeID: memberType,
	})
}

// seedLoan creates a loan directly, backdated by daysAgo, due dueInDays
// relative to today (negative means already overdue).
func seedLoan(ctx context.Context, h *Handler, memberID, itemCode, collection, material string, daysAgo, dueInDays, renewals int) (circulation.Loan, error) {
	today := circulation.Today()
	loan := circulation.Loan{
		ID:               circulation.LoanID(uuid.NewString()),
		MemberID:         circulation.MemberID(memberID),
		ItemCode:         itemCode,
		CollectionTypeID: collection,
		MaterialTypeID:   material,
		LoanDate:         today.AddDays(-daysAgo),
		DueDate:          today.AddDays(dueInDays),
		RenewalCount:     renewals,
	}
	return loan, h.Store.SaveLoan(ctx, loan)
}

// loadNewMemberScenario: one student, two current loans, no fines.
func loadNewMemberScenario(ctx context.Context, h *Handler) error {
	if err := seedStandardRules(ctx, h); err != nil {
		return err
	}
	if err := seedMember(ctx, h, "alice", "Alice Okafor", "student"); err != nil {
		return err
	}

	if _, err := seedLoan(ctx, h, "alice", "BK-1001", "general", "book", 3, 25, 0); err != nil {
		return err
	}
	_, err := seedLoan(ctx, h, "alice", "BK-1002", "general", "book", 1, 27, 0)
	return err
}

// loadOverdueFinesScenario: loans past due with and without grace cover.
func loadOverdueFinesScenario(ctx context.Context, h *Handler) error {
	if err := seedStandardRules(ctx, h); err != nil {
		return err
	}
	if err := seedMember(ctx, h, "bruno", "Bruno Silva", "student"); err != nil {
		return err
	}
	if err := seedMember(ctx, h, "carla", "Carla Jensen", "public"); err != nil {
		return err
	}

	// Student rule has 2 grace days: 5 days overdue charges 3 days at 0.25.
	if _, err := seedLoan(ctx, h, "bruno", "BK-2001", "general", "book", 33, -5, 0); err != nil {
		return err
	}
	// Inside grace: 1 day overdue, no charge yet.
	if _, err := seedLoan(ctx, h, "bruno", "BK-2002", "general", "book", 29, -1, 0); err != nil {
		return err
	}
	// Default rule, no grace: 10 days overdue charges 10 days at 0.50.
	_, err := seedLoan(ctx, h, "carla", "BK-2003", "general", "book", 31, -10, 0)
	return err
}

// loadRenewalLimitsScenario: one loan at the limit, one with room, and a
// backdated overdue loan so the fines check blocks renewals elsewhere.
func loadRenewalLimitsScenario(ctx context.Context, h *Handler) error {
	if err := seedStandardRules(ctx, h); err != nil {
		return err
	}
	if err := seedMember(ctx, h, "dmitri", "Dmitri Volkov", "student"); err != nil {
		return err
	}
	if err := seedMember(ctx, h, "elena", "Elena Marsh", "student"); err != nil {
		return err
	}

	// At the student reborrow limit of 3.
	if _, err := seedLoan(ctx, h, "dmitri", "BK-3001", "general", "book", 60, 5, 3); err != nil {
		return err
	}
	// One renewal left.
	if _, err := seedLoan(ctx, h, "dmitri", "BK-3002", "general", "book", 40, 10, 2); err != nil {
		return err
	}
	// Elena: current loan plus an overdue one - the accrued fine blocks
	// renewing the current loan too.
	if _, err := seedLoan(ctx, h, "elena", "BK-3003", "general", "book", 5, 20, 0); err != nil {
		return err
	}
	_, err := seedLoan(ctx, h, "elena", "BK-3004", "general", "book", 35, -7, 0)
	return err
}

// loadMixedRulesScenario: items across material and collection types so
// specific rules beat the wildcard default.
func loadMixedRulesScenario(ctx context.Context, h *Handler) error {
	if err := seedStandardRules(ctx, h); err != nil {
		return err
	}
	if err := seedMember(ctx, h, "fay", "Fay Whitfield", "student"); err != nil {
		return err
	}
	if err := seedMember(ctx, h, "gus", "Gus Moreau", "faculty"); err != nil {
		return err
	}

	// Media DVD rule (7 days, 1.00/day, no grace) beats the student
	// default on specificity.
	if _, err := seedLoan(ctx, h, "fay", "DVD-4001", "media", "dvd", 10, -3, 0); err != nil {
		return err
	}
	// Course reserve (3 days, 2.00/day, no renewals).
	if _, err := seedLoan(ctx, h, "fay", "RES-4002", "reserve", "book", 4, -1, 0); err != nil {
		return err
	}
	// Faculty rule: 56 days, 7 grace days.
	_, err := seedLoan(ctx, h, "gus", "BK-4003", "general", "book", 50, 6, 1)
	return err
}
