/*
eligibility.go - Renewal and checkout eligibility decisions

PURPOSE:
  Decides whether a loan may be renewed (or an item checked out) given the
  governing rule, the loan's state, and the member's outstanding balance.
  Decisions are pure domain logic - no I/O, no side effects. The facade
  performs the mutation after a positive decision, under the same lock.

DECISION ORDER (renewal, first failing check wins):
  1. Loan must be outstanding         -> "already returned"
  2. RenewalCount < ReborrowLimit     -> "renewal limit reached"
  3. Outstanding balance must be zero -> "outstanding fines"
  4. Not overdue beyond grace         -> "item overdue"

  The order is fixed and deterministic: a returned loan is always denied
  with "already returned" even if it would also fail later checks.

FAIL-CLOSED POSTURE:
  Any unpaid fine balance blocks renewal entirely. Overdue-ness is judged
  against the grace window, not raw overdue days: renewal within grace is
  still allowed.

A denial is a normal result variant, not an error. Callers render the
reason as user feedback unmodified.
*/
package circulation

// =============================================================================
// DECISION TYPES
// =============================================================================

// DenialReason is the user-facing reason a request was denied.
type DenialReason string

const (
	DenialAlreadyReturned  DenialReason = "already returned"
	DenialRenewalLimit     DenialReason = "renewal limit reached"
	DenialOutstandingFines DenialReason = "outstanding fines"
	DenialItemOverdue      DenialReason = "item overdue"
	DenialLoanLimit        DenialReason = "loan limit reached"
)

// Decision is the outcome of an eligibility check.
type Decision struct {
	Eligible bool
	Reason   DenialReason // set only when denied
}

func eligible() Decision                  { return Decision{Eligible: true} }
func denied(reason DenialReason) Decision { return Decision{Reason: reason} }

// =============================================================================
// RENEWAL ELIGIBILITY
// =============================================================================

// CheckRenewalEligibility applies the renewal rule chain in fixed order.
func CheckRenewalEligibility(loan Loan, rule LoanRule, outstandingBalance Money, asOf Date) Decision {
	// Rule 1: terminal loans cannot be renewed
	if !loan.Outstanding() {
		return denied(DenialAlreadyReturned)
	}

	// Rule 2: renewal count against the rule's reborrow limit
	if loan.RenewalCount >= rule.ReborrowLimit {
		return denied(DenialRenewalLimit)
	}

	// Rule 3: any unpaid fine balance blocks renewal
	if outstandingBalance.IsPositive() {
		return denied(DenialOutstandingFines)
	}

	// Rule 4: renewal must happen before or within the grace window
	if loan.OverdueDays(asOf) > rule.EffectiveGracePeriod() {
		return denied(DenialItemOverdue)
	}

	return eligible()
}

// ApplyRenewal mutates the loan for a renewal that passed eligibility:
// increments the renewal count and recomputes the due date from the
// renewal date. Callers persist the loan afterwards; both fields change
// together or not at all.
func ApplyRenewal(loan *Loan, rule LoanRule, renewalDate Date) {
	loan.RenewalCount++
	loan.DueDate = RenewalDueDate(*loan, rule, renewalDate)
}

// =============================================================================
// CHECKOUT ELIGIBILITY
// =============================================================================

// CheckCheckoutEligibility decides whether a member may borrow another item.
// Same fail-closed posture as renewal: unpaid fines block borrowing.
func CheckCheckoutEligibility(rule LoanRule, activeLoans int, outstandingBalance Money) Decision {
	if outstandingBalance.IsPositive() {
		return denied(DenialOutstandingFines)
	}
	if activeLoans >= rule.LoanLimit {
		return denied(DenialLoanLimit)
	}
	return eligible()
}
