/*
ledger.go - Append-only fines ledger

PURPOSE:
  The fines ledger is the source of truth for what a member owes. Every
  accrued fine is a debit entry; every payment is a credit entry. The
  outstanding balance is always the running sum of debit minus credit,
  recomputed on read - there is no cached "balance" field to drift out
  of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: entries are never updated or deleted
  2. NEVER REVERSED: the engine never removes an accrued fine; a waiver
     or payment is a separate credit entry
  3. IDEMPOTENT ACCRUAL: at most one debit per (loan, date, amount)

PAYMENTS:
  RecordPayment is the ledger's credit path. It belongs to the payment
  collaborator, not the accrual engine - accrual only ever debits.

SEE ALSO:
  - fines.go: Accrual engine appending debit entries
  - store.go: FineStore persistence interface
*/
package circulation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// FINES LEDGER
// =============================================================================

// FineLedger reads and appends ledger entries for members.
type FineLedger struct {
	Store FineStore
}

// NewFineLedger creates a ledger over the given store.
func NewFineLedger(store FineStore) *FineLedger {
	return &FineLedger{Store: store}
}

// Entries returns all ledger entries for a member, chronologically.
func (l *FineLedger) Entries(ctx context.Context, memberID MemberID) ([]FineEntry, error) {
	return l.Store.FinesByMember(ctx, memberID)
}

// OutstandingBalance computes the member's unpaid balance: the sum of
// debit minus credit over every entry. Recomputed on every read.
func (l *FineLedger) OutstandingBalance(ctx context.Context, memberID MemberID) (Money, error) {
	entries, err := l.Store.FinesByMember(ctx, memberID)
	if err != nil {
		return Money{}, err
	}

	balance := ZeroMoney()
	for _, e := range entries {
		balance = balance.Add(e.Debit).Sub(e.Credit)
	}
	return balance, nil
}

// RecordPayment appends a credit entry offsetting accrued fines.
// Payments never mutate past entries.
func (l *FineLedger) RecordPayment(ctx context.Context, memberID MemberID, amount Money, asOf Date, note string) (FineEntry, error) {
	if !amount.IsPositive() {
		return FineEntry{}, fmt.Errorf("payment amount must be positive, got %s", amount)
	}

	if note == "" {
		note = "fine payment"
	}
	entry := FineEntry{
		ID:          FineID(uuid.NewString()),
		MemberID:    memberID,
		Date:        asOf,
		Debit:       ZeroMoney(),
		Credit:      amount,
		Description: note,
	}

	if err := l.Store.AppendFine(ctx, entry); err != nil {
		return FineEntry{}, err
	}
	return entry, nil
}
