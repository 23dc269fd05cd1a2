/*
store.go - Persistence interfaces for rules, loans, and fines

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  RuleStore:   Read/write loan rules (written by admin collaborators only)
  LoanStore:   Loan persistence and per-member queries
  FineStore:   Append-only fine ledger persistence
  MemberStore: Member records
  Store:       All of the above
  TxStore:     Store plus WithTx for atomic multi-write operations

APPEND-ONLY CONTRACT:
  FineStore has no update or delete. AppendFine rejects an entry whose
  (loan, date, debit) already exists with ErrDuplicateFine - this backs
  accrual idempotency even when two accruals race.

ATOMICITY:
  WithTx ensures all-or-nothing semantics. A renewal (fine accrual plus
  loan update) either fully commits or leaves nothing behind; a loan is
  never left with an incremented renewal count but a stale due date.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - circulation/store: In-memory for testing/dev
*/
package circulation

import "context"

// =============================================================================
// STORE INTERFACES
// =============================================================================

// RuleStore persists loan rules. Rules are reference data: the engine only
// reads them; the write methods exist for administrative collaborators.
type RuleStore interface {
	SaveRule(ctx context.Context, rule LoanRule) error
	GetRule(ctx context.Context, id RuleID) (*LoanRule, error)
	ListRules(ctx context.Context) ([]LoanRule, error)
	DeleteRule(ctx context.Context, id RuleID) error
}

// LoanStore persists loans.
type LoanStore interface {
	// SaveLoan inserts or updates a loan.
	SaveLoan(ctx context.Context, loan Loan) error

	// GetLoan returns a loan by ID, or nil when absent.
	GetLoan(ctx context.Context, id LoanID) (*Loan, error)

	// LoansByMember returns all loans for a member, newest first.
	LoansByMember(ctx context.Context, memberID MemberID) ([]Loan, error)

	// ActiveLoanCount returns the member's outstanding loan count.
	ActiveLoanCount(ctx context.Context, memberID MemberID) (int, error)
}

// FineStore persists ledger entries. APPEND-ONLY: no update, no delete.
type FineStore interface {
	// AppendFine adds a ledger entry. Returns ErrDuplicateFine when an
	// entry with the same loan, date, and debit already exists.
	AppendFine(ctx context.Context, entry FineEntry) error

	// FinesByMember returns all entries for a member, chronologically.
	FinesByMember(ctx context.Context, memberID MemberID) ([]FineEntry, error)

	// FineExists checks for an existing debit entry with this exact
	// loan, date, and amount.
	FineExists(ctx context.Context, loanID LoanID, date Date, amount Money) (bool, error)
}

// MemberStore persists member records.
type MemberStore interface {
	SaveMember(ctx context.Context, member Member) error
	GetMember(ctx context.Context, id MemberID) (*Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
}

// Store combines all persistence interfaces the engine needs.
type Store interface {
	RuleStore
	LoanStore
	FineStore
	MemberStore
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
// Use this for read-check-mutate sequences (renewal, checkout, return).
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
