/*
errors.go - Centralized error types for the circulation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify errors with errors.Is/As and the helpers below.

ERROR CATEGORIES:
  1. Data-integrity faults - rule resolution failures (hard failures,
     nothing is mutated, never silently defaulted)
  2. Not-found errors - missing loans, members, rules
  3. Ledger errors - duplicate fine entries (expected during retries)

NOTE:
  A renewal denial is NOT an error. It is an expected business outcome
  modeled as a result variant (see eligibility.go) that callers render
  as user feedback.

SEE ALSO:
  - rules.go: Returns the resolution errors
  - ledger.go: Returns ErrDuplicateFine
*/
package circulation

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoApplicableRule is returned when no loan rule matches the input.
	// This is a data-integrity fault: the rule table is incomplete.
	ErrNoApplicableRule = errors.New("no applicable loan rule")

	// ErrAmbiguousRule is returned when two or more rules tie at the same
	// specificity. The resolver fails rather than guessing.
	ErrAmbiguousRule = errors.New("ambiguous loan rule")

	// ErrDuplicateFine is returned when an identical fine entry (same loan,
	// date, amount) already exists. Expected behavior for accrual retries.
	ErrDuplicateFine = errors.New("duplicate fine entry")

	// ErrLoanNotFound is returned when a referenced loan doesn't exist.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrMemberNotFound is returned when a referenced member doesn't exist.
	ErrMemberNotFound = errors.New("member not found")

	// ErrRuleNotFound is returned when a referenced rule doesn't exist.
	ErrRuleNotFound = errors.New("loan rule not found")

	// ErrAlreadyReturned is returned when mutating a terminal loan.
	ErrAlreadyReturned = errors.New("loan already returned")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NoApplicableRuleError reports the lookup that found no rule.
type NoApplicableRuleError struct {
	MemberTypeID     string
	CollectionTypeID string
	MaterialTypeID   string
}

func (e *NoApplicableRuleError) Error() string {
	return fmt.Sprintf("no applicable loan rule for member type %q, collection %q, material %q",
		e.MemberTypeID, e.CollectionTypeID, e.MaterialTypeID)
}

func (e *NoApplicableRuleError) Unwrap() error { return ErrNoApplicableRule }

// AmbiguousRuleError reports the rules that tied at the same specificity.
type AmbiguousRuleError struct {
	MemberTypeID     string
	CollectionTypeID string
	MaterialTypeID   string
	Specificity      int
	RuleIDs          []RuleID
}

func (e *AmbiguousRuleError) Error() string {
	ids := make([]string, len(e.RuleIDs))
	for i, id := range e.RuleIDs {
		ids[i] = string(id)
	}
	return fmt.Sprintf("ambiguous loan rule: %d rules match at specificity %d for member type %q, collection %q, material %q: %s",
		len(e.RuleIDs), e.Specificity, e.MemberTypeID, e.CollectionTypeID, e.MaterialTypeID,
		strings.Join(ids, ", "))
}

func (e *AmbiguousRuleError) Unwrap() error { return ErrAmbiguousRule }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLoanNotFound) ||
		errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrRuleNotFound)
}

// IsDataIntegrity returns true for rule-table faults the operator must fix.
func IsDataIntegrity(err error) bool {
	return errors.Is(err, ErrNoApplicableRule) ||
		errors.Is(err, ErrAmbiguousRule)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAlreadyReturned) ||
		errors.Is(err, ErrDuplicateFine)
}
