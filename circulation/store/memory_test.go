package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/circulation-engine/circulation"
	"github.com/warp/circulation-engine/circulation/store"
)

func day(y int, m time.Month, d int) circulation.Date {
	return circulation.NewDate(y, m, d)
}

func debit(id, memberID, loanID string, date circulation.Date, amount string) circulation.FineEntry {
	return circulation.FineEntry{
		ID:       circulation.FineID(id),
		MemberID: circulation.MemberID(memberID),
		LoanID:   circulation.LoanID(loanID),
		Date:     date,
		Debit:    circulation.MustParseMoney(amount),
		Credit:   circulation.ZeroMoney(),
	}
}

// =============================================================================
// FINE LEDGER INVARIANTS
// =============================================================================

func TestMemory_AppendFine_DuplicateRejected(t *testing.T) {
	// GIVEN: A debit for (loan-1, March 27, 1.50)
	// WHEN: Appending an identical debit
	// THEN: ErrDuplicateFine - the ledger enforces accrual idempotency

	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.AppendFine(ctx, debit("f-1", "m-1", "loan-1", day(2026, time.March, 27), "1.50")))

	err := mem.AppendFine(ctx, debit("f-2", "m-1", "loan-1", day(2026, time.March, 27), "1.50"))
	assert.ErrorIs(t, err, circulation.ErrDuplicateFine)
}

func TestMemory_AppendFine_DifferentAmountSameDay_Allowed(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.AppendFine(ctx, debit("f-1", "m-1", "loan-1", day(2026, time.March, 27), "1.50")))
	require.NoError(t, mem.AppendFine(ctx, debit("f-2", "m-1", "loan-1", day(2026, time.March, 27), "2.00")))
}

func TestMemory_AppendFine_CreditsNeverCollide(t *testing.T) {
	// Two identical payments on the same day are both legitimate.
	ctx := context.Background()
	mem := store.NewMemory()

	payment := circulation.FineEntry{
		ID: "p-1", MemberID: "m-1",
		Date:   day(2026, time.March, 27),
		Debit:  circulation.ZeroMoney(),
		Credit: circulation.MustParseMoney("1.00"),
	}
	require.NoError(t, mem.AppendFine(ctx, payment))
	payment.ID = "p-2"
	require.NoError(t, mem.AppendFine(ctx, payment))

	entries, err := mem.FinesByMember(ctx, "m-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestMemory_FinesByMember_Chronological(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.AppendFine(ctx, debit("f-2", "m-1", "loan-1", day(2026, time.March, 28), "2.00")))
	require.NoError(t, mem.AppendFine(ctx, debit("f-1", "m-1", "loan-1", day(2026, time.March, 27), "1.50")))
	require.NoError(t, mem.AppendFine(ctx, debit("f-3", "m-1", "loan-2", day(2026, time.March, 26), "0.50")))

	entries, err := mem.FinesByMember(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, circulation.FineID("f-3"), entries[0].ID)
	assert.Equal(t, circulation.FineID("f-1"), entries[1].ID)
	assert.Equal(t, circulation.FineID("f-2"), entries[2].ID)
}

func TestMemory_FineExists(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.AppendFine(ctx, debit("f-1", "m-1", "loan-1", day(2026, time.March, 27), "1.50")))

	exists, err := mem.FineExists(ctx, "loan-1", day(2026, time.March, 27), circulation.MustParseMoney("1.50"))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = mem.FineExists(ctx, "loan-1", day(2026, time.March, 28), circulation.MustParseMoney("1.50"))
	require.NoError(t, err)
	assert.False(t, exists)
}

// =============================================================================
// LOAN QUERIES
// =============================================================================

func TestMemory_LoansByMember_NewestFirst(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	for i, loanDate := range []circulation.Date{
		day(2026, time.March, 1),
		day(2026, time.March, 15),
		day(2026, time.February, 10),
	} {
		require.NoError(t, mem.SaveLoan(ctx, circulation.Loan{
			ID:       circulation.LoanID([]string{"a", "b", "c"}[i]),
			MemberID: "m-1",
			ItemCode: "BK-1",
			LoanDate: loanDate,
			DueDate:  loanDate.AddDays(21),
		}))
	}

	loans, err := mem.LoansByMember(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, loans, 3)
	assert.Equal(t, circulation.LoanID("b"), loans[0].ID)
	assert.Equal(t, circulation.LoanID("a"), loans[1].ID)
	assert.Equal(t, circulation.LoanID("c"), loans[2].ID)
}

func TestMemory_ActiveLoanCount_ExcludesReturned(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	returned := day(2026, time.March, 10)
	require.NoError(t, mem.SaveLoan(ctx, circulation.Loan{
		ID: "a", MemberID: "m-1", ItemCode: "BK-1",
		LoanDate: day(2026, time.March, 1), DueDate: day(2026, time.March, 22),
	}))
	require.NoError(t, mem.SaveLoan(ctx, circulation.Loan{
		ID: "b", MemberID: "m-1", ItemCode: "BK-2",
		LoanDate: day(2026, time.March, 1), DueDate: day(2026, time.March, 22),
		ReturnDate: &returned,
	}))

	count, err := mem.ActiveLoanCount(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// =============================================================================
// TRANSACTION SEMANTICS
// =============================================================================

func TestTxMemory_RollbackOnError(t *testing.T) {
	// GIVEN: A transaction that saves a loan then fails
	// WHEN: WithTx returns the error
	// THEN: The loan save is rolled back

	ctx := context.Background()
	tx := store.NewTxMemory()
	boom := errors.New("boom")

	err := tx.WithTx(ctx, func(s circulation.Store) error {
		if err := s.SaveLoan(ctx, circulation.Loan{
			ID: "a", MemberID: "m-1", ItemCode: "BK-1",
			LoanDate: day(2026, time.March, 1), DueDate: day(2026, time.March, 22),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	loan, err := tx.GetLoan(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, loan)
}

func TestTxMemory_CommitOnSuccess(t *testing.T) {
	ctx := context.Background()
	tx := store.NewTxMemory()

	err := tx.WithTx(ctx, func(s circulation.Store) error {
		return s.SaveLoan(ctx, circulation.Loan{
			ID: "a", MemberID: "m-1", ItemCode: "BK-1",
			LoanDate: day(2026, time.March, 1), DueDate: day(2026, time.March, 22),
		})
	})
	require.NoError(t, err)

	loan, err := tx.GetLoan(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, loan)
}
