/*
Package circulation provides the loan and fines policy engine.

PURPOSE:
  This package contains the rules that govern borrowing: how long a member
  may keep an item, whether and how many times a loan may be renewed, and
  how much is owed when an item comes back late. It is a library invoked
  by request handlers - it has no wire protocol of its own.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A monetary amount backed by decimal.Decimal
  - LoanRule: Policy record for a (member type, collection, material) combination
  - Loan: One borrowing transaction
  - FineEntry: An immutable debit/credit ledger line
  - Member: The borrower a rule is resolved for

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors on fines
  2. Type Safety: Strong typing for IDs prevents mixing loan/member/rule IDs
  3. Immutability: Fine entries are never modified, only offset by credits
  4. Purity: Rule evaluation is side-effect-free; persistence happens last

USAGE:
  rule := circulation.LoanRule{
      LoanPeriodDays: 14,
      ReborrowLimit:  1,
      FineEachDay:    circulation.NewMoneyFromInt(500),
  }
  due := circulation.ComputeDueDate(loanDate, rule)

SEE ALSO:
  - rules.go: Rule resolution with specificity tie-break
  - fines.go: Fine accrual
  - facade.go: The entry point request handlers call
*/
package circulation

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fine amounts (decimal, never float)
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money        { return Money{Value: decimal.NewFromFloat(value)} }
func NewMoneyFromInt(value int) Money     { return Money{Value: decimal.NewFromInt(int64(value))} }
func ZeroMoney() Money                    { return Money{Value: decimal.Zero} }

// ParseMoney parses a decimal string like "0.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Value: d}, nil
}

// MustParseMoney parses a decimal string, falling back to zero on bad
// input. Use only for trusted literals and database reads.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		return ZeroMoney()
	}
	return m
}

func (m Money) Add(b Money) Money              { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money              { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) MulDays(days int) Money         { return Money{Value: m.Value.Mul(decimal.NewFromInt(int64(days)))} }
func (m Money) IsZero() bool                   { return m.Value.IsZero() }
func (m Money) IsPositive() bool               { return m.Value.IsPositive() }
func (m Money) IsNegative() bool               { return m.Value.IsNegative() }
func (m Money) GreaterThan(b Money) bool       { return m.Value.GreaterThan(b.Value) }
func (m Money) Equal(b Money) bool             { return m.Value.Equal(b.Value) }
func (m Money) String() string                 { return m.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type MemberID string
type LoanID string
type RuleID string
type FineID string

// =============================================================================
// LOAN RULE - Policy record governing a borrowing combination
// =============================================================================

// LoanRule governs borrowing for a (member type, collection type, material
// type) combination. A nil dimension is a wildcard matching any value.
//
// Rules are read-only reference data: created and updated by administrative
// collaborators, never by the engine.
type LoanRule struct {
	ID   RuleID
	Name string

	// Match dimensions. nil = wildcard (matches any value).
	MemberTypeID     *string
	CollectionTypeID *string
	MaterialTypeID   *string

	LoanLimit       int   // max simultaneous active loans
	LoanPeriodDays  int   // calendar days per loan period
	ReborrowLimit   int   // max renewals per loan (0 = no renewal allowed)
	FineEachDay     Money // charged per chargeable overdue day
	GracePeriodDays int   // days past due before fines start accruing
}

// Dim wraps a dimension value for rule construction. nil fields stay wildcards.
func Dim(s string) *string { return &s }

// Matches reports whether every non-nil dimension equals the input exactly.
func (r LoanRule) Matches(memberTypeID, collectionTypeID, materialTypeID string) bool {
	if r.MemberTypeID != nil && *r.MemberTypeID != memberTypeID {
		return false
	}
	if r.CollectionTypeID != nil && *r.CollectionTypeID != collectionTypeID {
		return false
	}
	if r.MaterialTypeID != nil && *r.MaterialTypeID != materialTypeID {
		return false
	}
	return true
}

// Specificity counts non-nil dimensions. Higher wins during resolution.
func (r LoanRule) Specificity() int {
	n := 0
	if r.MemberTypeID != nil {
		n++
	}
	if r.CollectionTypeID != nil {
		n++
	}
	if r.MaterialTypeID != nil {
		n++
	}
	return n
}

// EffectiveGracePeriod clamps a negative grace period to zero. The source
// data model does not forbid negative values; the engine treats them as "no
// grace" rather than charging before the due date.
func (r LoanRule) EffectiveGracePeriod() int {
	if r.GracePeriodDays < 0 {
		return 0
	}
	return r.GracePeriodDays
}

// =============================================================================
// LOAN - One borrowing transaction
// =============================================================================

// Loan is owned exclusively by the member who created it and is mutated only
// through renewal or return. Once ReturnDate is set it is terminal.
//
// Invariants:
//   - DueDate >= LoanDate
//   - RenewalCount <= ReborrowLimit of the governing rule
type Loan struct {
	ID       LoanID
	MemberID MemberID
	ItemCode string

	// Item dimensions captured at checkout so the governing rule can be
	// re-resolved without a catalogue lookup.
	CollectionTypeID string
	MaterialTypeID   string

	LoanDate     Date
	DueDate      Date
	RenewalCount int
	ReturnDate   *Date // nil while outstanding
}

// Outstanding reports whether the item has not been returned yet.
func (l Loan) Outstanding() bool { return l.ReturnDate == nil }

// OverdueDays returns whole days past due as of the given date, never negative.
func (l Loan) OverdueDays(asOf Date) int {
	days := DaysBetween(l.DueDate, asOf)
	if days < 0 {
		return 0
	}
	return days
}

// =============================================================================
// FINE ENTRY - Append-only ledger line
// =============================================================================

// FineEntry attributes a debit (accrued fine) or credit (payment) to a
// member. Fine accrual entries carry a first-class loan reference; payment
// entries have an empty LoanID.
//
// The ledger is append-only: entries are never mutated or deleted, only
// offset by credit entries. A member's outstanding balance is the sum of
// debit minus credit over all their entries, recomputed on read.
type FineEntry struct {
	ID          FineID
	MemberID    MemberID
	LoanID      LoanID // empty for payments
	Date        Date
	Debit       Money
	Credit      Money
	Description string
}

// =============================================================================
// MEMBER
// =============================================================================

// Member is the borrower identity the engine receives from collaborators.
// Identity and role arrive as explicit parameters - no engine state depends
// on ambient request context.
type Member struct {
	ID           MemberID
	Name         string
	MemberTypeID string
}

// ItemRef describes the item being checked out, supplied by the catalogue
// collaborator.
type ItemRef struct {
	ItemCode         string
	CollectionTypeID string
	MaterialTypeID   string
}
