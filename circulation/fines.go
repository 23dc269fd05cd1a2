/*
fines.go - Fine accrual

PURPOSE:
  Computes the fine owed for an overdue or returned-late loan and posts it
  to the member's ledger. The computation is pure; the posting is
  idempotent per (loan, date, amount) so concurrent or repeated accrual
  calls never double-charge.

ALGORITHM:
  overdueDays    = max(0, asOfDate - dueDate in whole days)
  chargeableDays = max(0, overdueDays - gracePeriodDays)
  amount         = chargeableDays * fineEachDay

  A negative grace period clamps to zero (see LoanRule.EffectiveGracePeriod).

IDEMPOTENCY:
  Before appending, the engine checks for an existing entry with the same
  loan, date, and amount. The storage layer backs this with a uniqueness
  constraint so the check-then-insert race is also safe.

NEVER REVERSED:
  Accrued fines are never reversed by this engine. Payments arrive as
  separate credit entries through the ledger's payment path.
*/
package circulation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// FINE COMPUTATION (pure)
// =============================================================================

// ChargeableDays returns the overdue days that actually accrue fines,
// after the grace period.
func ChargeableDays(loan Loan, rule LoanRule, asOf Date) int {
	days := loan.OverdueDays(asOf) - rule.EffectiveGracePeriod()
	if days < 0 {
		return 0
	}
	return days
}

// ComputeFine returns the fine amount owed for the loan as of the given date.
func ComputeFine(loan Loan, rule LoanRule, asOf Date) Money {
	return rule.FineEachDay.MulDays(ChargeableDays(loan, rule, asOf))
}

// =============================================================================
// ACCRUAL ENGINE
// =============================================================================

// AccrualEngine posts computed fines to the ledger.
type AccrualEngine struct {
	Fines FineStore
}

// NewAccrualEngine creates an accrual engine over the given fine store.
func NewAccrualEngine(fines FineStore) *AccrualEngine {
	return &AccrualEngine{Fines: fines}
}

// Accrue computes the fine for the loan as of asOf and appends a debit
// entry. Returns nil when the amount is zero or an identical entry
// already exists for this loan and day - calling Accrue twice for the
// same loan/day never double-charges.
func (e *AccrualEngine) Accrue(ctx context.Context, loan Loan, rule LoanRule, asOf Date) (*FineEntry, error) {
	amount := ComputeFine(loan, rule, asOf)
	if !amount.IsPositive() {
		return nil, nil
	}

	exists, err := e.Fines.FineExists(ctx, loan.ID, asOf, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing fines: %w", err)
	}
	if exists {
		return nil, nil
	}

	entry := FineEntry{
		ID:          FineID(uuid.NewString()),
		MemberID:    loan.MemberID,
		LoanID:      loan.ID,
		Date:        asOf,
		Debit:       amount,
		Credit:      ZeroMoney(),
		Description: fmt.Sprintf("overdue fine for item %s (loan %s)", loan.ItemCode, loan.ID),
	}

	if err := e.Fines.AppendFine(ctx, entry); err != nil {
		// A concurrent accrual won the insert race. The charge exists, so
		// this call has nothing to add.
		if errors.Is(err, ErrDuplicateFine) {
			return nil, nil
		}
		return nil, err
	}

	return &entry, nil
}
