package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/circulation-engine/circulation"
	"github.com/warp/circulation-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func day(y int, m time.Month, d int) circulation.Date {
	return circulation.NewDate(y, m, d)
}

// =============================================================================
// RULE ROUND TRIPS
// =============================================================================

func TestSQLite_Rule_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rule := circulation.LoanRule{
		ID:              "student-books",
		Name:            "Students / Books",
		MemberTypeID:    circulation.Dim("student"),
		MaterialTypeID:  circulation.Dim("book"),
		LoanLimit:       10,
		LoanPeriodDays:  28,
		ReborrowLimit:   3,
		FineEachDay:     circulation.MustParseMoney("0.25"),
		GracePeriodDays: 2,
	}
	require.NoError(t, store.SaveRule(ctx, rule))

	got, err := store.GetRule(ctx, "student-books")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, rule.Name, got.Name)
	require.NotNil(t, got.MemberTypeID)
	assert.Equal(t, "student", *got.MemberTypeID)
	assert.Nil(t, got.CollectionTypeID, "unset dimension stays a wildcard")
	require.NotNil(t, got.MaterialTypeID)
	assert.Equal(t, "book", *got.MaterialTypeID)
	assert.True(t, got.FineEachDay.Equal(rule.FineEachDay))
	assert.Equal(t, 2, got.GracePeriodDays)
	assert.Equal(t, 2, got.Specificity())
}

func TestSQLite_Rule_UpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rule := circulation.LoanRule{ID: "default", Name: "v1", LoanPeriodDays: 21}
	require.NoError(t, store.SaveRule(ctx, rule))

	rule.Name = "v2"
	rule.LoanPeriodDays = 14
	require.NoError(t, store.SaveRule(ctx, rule))

	got, err := store.GetRule(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Name)
	assert.Equal(t, 14, got.LoanPeriodDays)

	rules, err := store.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	require.NoError(t, store.DeleteRule(ctx, "default"))
	got, err = store.GetRule(ctx, "default")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// =============================================================================
// LOAN ROUND TRIPS
// =============================================================================

func TestSQLite_Loan_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	loan := circulation.Loan{
		ID:               "l-1",
		MemberID:         "m-1",
		ItemCode:         "BK-1001",
		CollectionTypeID: "general",
		MaterialTypeID:   "book",
		LoanDate:         day(2026, time.March, 1),
		DueDate:          day(2026, time.March, 22),
		RenewalCount:     1,
	}
	require.NoError(t, store.SaveLoan(ctx, loan))

	got, err := store.GetLoan(ctx, "l-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, loan.ItemCode, got.ItemCode)
	assert.True(t, got.LoanDate.Equal(loan.LoanDate))
	assert.True(t, got.DueDate.Equal(loan.DueDate))
	assert.Equal(t, 1, got.RenewalCount)
	assert.Nil(t, got.ReturnDate)
	assert.True(t, got.Outstanding())

	// Stamp a return and save again
	returned := day(2026, time.March, 20)
	got.ReturnDate = &returned
	require.NoError(t, store.SaveLoan(ctx, *got))

	got, err = store.GetLoan(ctx, "l-1")
	require.NoError(t, err)
	require.NotNil(t, got.ReturnDate)
	assert.True(t, got.ReturnDate.Equal(returned))
	assert.False(t, got.Outstanding())
}

func TestSQLite_ActiveLoanCount(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	returned := day(2026, time.March, 20)
	loans := []circulation.Loan{
		{ID: "a", MemberID: "m-1", ItemCode: "BK-1", LoanDate: day(2026, time.March, 1), DueDate: day(2026, time.March, 22)},
		{ID: "b", MemberID: "m-1", ItemCode: "BK-2", LoanDate: day(2026, time.March, 2), DueDate: day(2026, time.March, 23), ReturnDate: &returned},
		{ID: "c", MemberID: "m-2", ItemCode: "BK-3", LoanDate: day(2026, time.March, 3), DueDate: day(2026, time.March, 24)},
	}
	for _, loan := range loans {
		require.NoError(t, store.SaveLoan(ctx, loan))
	}

	count, err := store.ActiveLoanCount(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.LoansByMember(ctx, "m-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, circulation.LoanID("b"), got[0].ID, "newest first")
}

// =============================================================================
// FINE LEDGER
// =============================================================================

func TestSQLite_AppendFine_DuplicateRejected(t *testing.T) {
	// The partial unique index backs accrual idempotency: same loan, day,
	// and debit collide; a different amount on the same day does not.
	ctx := context.Background()
	store := newTestStore(t)

	entry := circulation.FineEntry{
		ID: "f-1", MemberID: "m-1", LoanID: "l-1",
		Date:        day(2026, time.March, 27),
		Debit:       circulation.MustParseMoney("1.50"),
		Credit:      circulation.ZeroMoney(),
		Description: "overdue fine",
	}
	require.NoError(t, store.AppendFine(ctx, entry))

	entry.ID = "f-2"
	err := store.AppendFine(ctx, entry)
	assert.ErrorIs(t, err, circulation.ErrDuplicateFine)

	entry.ID = "f-3"
	entry.Debit = circulation.MustParseMoney("2.00")
	require.NoError(t, store.AppendFine(ctx, entry))
}

func TestSQLite_AppendFine_CreditsNeverCollide(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	payment := circulation.FineEntry{
		ID: "p-1", MemberID: "m-1",
		Date:   day(2026, time.March, 27),
		Debit:  circulation.ZeroMoney(),
		Credit: circulation.MustParseMoney("1.00"),
	}
	require.NoError(t, store.AppendFine(ctx, payment))
	payment.ID = "p-2"
	require.NoError(t, store.AppendFine(ctx, payment))
}

func TestSQLite_FinesByMember_AndExists(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i, d := range []circulation.Date{
		day(2026, time.March, 28),
		day(2026, time.March, 27),
	} {
		require.NoError(t, store.AppendFine(ctx, circulation.FineEntry{
			ID:       circulation.FineID([]string{"f-1", "f-2"}[i]),
			MemberID: "m-1", LoanID: "l-1",
			Date:   d,
			Debit:  circulation.MustParseMoney("1.00"),
			Credit: circulation.ZeroMoney(),
		}))
	}

	entries, err := store.FinesByMember(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Date.Before(entries[1].Date), "chronological")

	exists, err := store.FineExists(ctx, "l-1", day(2026, time.March, 27), circulation.MustParseMoney("1.00"))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.FineExists(ctx, "l-1", day(2026, time.March, 27), circulation.MustParseMoney("9.99"))
	require.NoError(t, err)
	assert.False(t, exists)
}

// =============================================================================
// MEMBERS
// =============================================================================

func TestSQLite_Member_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveMember(ctx, circulation.Member{
		ID: "m-1", Name: "Alice", MemberTypeID: "student",
	}))

	got, err := store.GetMember(ctx, "m-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "student", got.MemberTypeID)

	missing, err := store.GetMember(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	members, err := store.ListMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSQLite_WithTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(s circulation.Store) error {
		if err := s.SaveLoan(ctx, circulation.Loan{
			ID: "l-1", MemberID: "m-1", ItemCode: "BK-1",
			LoanDate: day(2026, time.March, 1), DueDate: day(2026, time.March, 22),
		}); err != nil {
			return err
		}
		if err := s.AppendFine(ctx, circulation.FineEntry{
			ID: "f-1", MemberID: "m-1", LoanID: "l-1",
			Date:  day(2026, time.March, 27),
			Debit: circulation.MustParseMoney("1.00"), Credit: circulation.ZeroMoney(),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	loan, err := store.GetLoan(ctx, "l-1")
	require.NoError(t, err)
	assert.Nil(t, loan, "loan save rolled back")

	entries, err := store.FinesByMember(ctx, "m-1")
	require.NoError(t, err)
	assert.Empty(t, entries, "fine append rolled back")
}

func TestSQLite_WithTx_CommitOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.WithTx(ctx, func(s circulation.Store) error {
		return s.SaveMember(ctx, circulation.Member{ID: "m-1", Name: "Alice", MemberTypeID: "student"})
	})
	require.NoError(t, err)

	got, err := store.GetMember(ctx, "m-1")
	require.NoError(t, err)
	require.NotNil(t, got)
}

// =============================================================================
// MAINTENANCE
// =============================================================================

func TestSQLite_Reset(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveMember(ctx, circulation.Member{ID: "m-1", Name: "Alice", MemberTypeID: "student"}))
	require.NoError(t, store.SaveRule(ctx, circulation.LoanRule{ID: "default", LoanPeriodDays: 21}))

	require.NoError(t, store.Reset(ctx))

	members, err := store.ListMembers(ctx)
	require.NoError(t, err)
	assert.Empty(t, members)
	rules, err := store.ListRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}
