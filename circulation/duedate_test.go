package circulation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/circulation-engine/circulation"
)

func date(y int, m time.Month, d int) circulation.Date {
	return circulation.NewDate(y, m, d)
}

// =============================================================================
// DUE DATE CALCULATION TESTS
// =============================================================================

func TestComputeDueDate_CalendarDays(t *testing.T) {
	// GIVEN: A 21-day loan period
	// WHEN: Checking out March 1
	// THEN: Due March 22 - plain calendar days, no holiday skipping

	rule := circulation.LoanRule{LoanPeriodDays: 21}
	due := circulation.ComputeDueDate(date(2026, time.March, 1), rule)
	assert.Equal(t, date(2026, time.March, 22), due)
}

func TestComputeDueDate_CrossesMonthAndYear(t *testing.T) {
	rule := circulation.LoanRule{LoanPeriodDays: 14}
	due := circulation.ComputeDueDate(date(2025, time.December, 27), rule)
	assert.Equal(t, date(2026, time.January, 10), due)
}

func TestComputeDueDate_ZeroPeriod_DueSameDay(t *testing.T) {
	rule := circulation.LoanRule{LoanPeriodDays: 0}
	due := circulation.ComputeDueDate(date(2026, time.March, 1), rule)
	assert.Equal(t, date(2026, time.March, 1), due)
}

// =============================================================================
// RENEWAL DUE DATE TESTS
// =============================================================================

func TestRenewalDueDate_FromRenewalDate(t *testing.T) {
	// GIVEN: A loan due March 22, renewed early on March 10
	// WHEN: Computing the renewal due date with a 21-day period
	// THEN: March 10 + 21 = March 31, counted from the renewal date,
	//       NOT from the old due date

	loan := circulation.Loan{DueDate: date(2026, time.March, 22)}
	rule := circulation.LoanRule{LoanPeriodDays: 21}

	due := circulation.RenewalDueDate(loan, rule, date(2026, time.March, 10))
	assert.Equal(t, date(2026, time.March, 31), due)
}

func TestRenewalDueDate_NeverMovesEarlier(t *testing.T) {
	// GIVEN: A loan due March 22 under a rule that now has a 3-day period
	// WHEN: Renewing on March 10 (candidate would be March 13)
	// THEN: The due date stays March 22 - renewal never shortens a loan

	loan := circulation.Loan{DueDate: date(2026, time.March, 22)}
	rule := circulation.LoanRule{LoanPeriodDays: 3}

	due := circulation.RenewalDueDate(loan, rule, date(2026, time.March, 10))
	assert.Equal(t, date(2026, time.March, 22), due)
}

func TestRenewalDueDate_ZeroPeriod_KeepsCurrentDueDate(t *testing.T) {
	// Candidate equals the renewal date, which is before the current due
	// date, so the current due date stands.
	loan := circulation.Loan{DueDate: date(2026, time.March, 22)}
	rule := circulation.LoanRule{LoanPeriodDays: 0}

	due := circulation.RenewalDueDate(loan, rule, date(2026, time.March, 10))
	assert.Equal(t, date(2026, time.March, 22), due)
}

func TestRenewalDueDate_OverdueLoan_ExtendsFromRenewalDate(t *testing.T) {
	// GIVEN: A loan already overdue (due March 1), renewed March 10
	// THEN: New due date is March 10 + period

	loan := circulation.Loan{DueDate: date(2026, time.March, 1)}
	rule := circulation.LoanRule{LoanPeriodDays: 7}

	due := circulation.RenewalDueDate(loan, rule, date(2026, time.March, 10))
	assert.Equal(t, date(2026, time.March, 17), due)
}

// =============================================================================
// DATE ARITHMETIC TESTS
// =============================================================================

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, circulation.DaysBetween(date(2026, time.March, 1), date(2026, time.March, 1)))
	assert.Equal(t, 5, circulation.DaysBetween(date(2026, time.March, 1), date(2026, time.March, 6)))
	assert.Equal(t, -5, circulation.DaysBetween(date(2026, time.March, 6), date(2026, time.March, 1)))
	// Across a DST boundary the count stays in whole days
	assert.Equal(t, 31, circulation.DaysBetween(date(2026, time.March, 1), date(2026, time.April, 1)))
}

func TestOverdueDays_NeverNegative(t *testing.T) {
	loan := circulation.Loan{DueDate: date(2026, time.March, 22)}

	assert.Equal(t, 0, loan.OverdueDays(date(2026, time.March, 10)))
	assert.Equal(t, 0, loan.OverdueDays(date(2026, time.March, 22)))
	assert.Equal(t, 4, loan.OverdueDays(date(2026, time.March, 26)))
}
