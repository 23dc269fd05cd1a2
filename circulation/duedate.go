/*
duedate.go - Due-date calculation

PURPOSE:
  Computes a loan's due date from its loan date and the governing rule's
  period, and recomputes it on renewal. All arithmetic is date-only
  calendar days with no time-zone shifting.

RENEWAL SEMANTICS:
  A renewal extends from the renewal moment's date, not the original loan
  date. Renewing on day 10 of a 14-day loan yields day 24, not day 28.

MONOTONICITY:
  Renewal never shortens a due date. When the recomputed value lands
  earlier than the loan's current due date (possible only with a zero-day
  loan period or clock skew), the current due date is kept.
*/
package circulation

// =============================================================================
// DUE-DATE CALCULATOR
// =============================================================================

// ComputeDueDate returns loanDate plus the rule's loan period in calendar days.
func ComputeDueDate(loanDate Date, rule LoanRule) Date {
	return loanDate.AddDays(rule.LoanPeriodDays)
}

// RenewalDueDate computes the due date a renewal on renewalDate would
// produce. The result is never earlier than the loan's current due date.
func RenewalDueDate(loan Loan, rule LoanRule, renewalDate Date) Date {
	candidate := ComputeDueDate(renewalDate, rule)
	if candidate.Before(loan.DueDate) {
		return loan.DueDate
	}
	return candidate
}
