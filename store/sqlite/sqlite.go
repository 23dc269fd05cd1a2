/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements circulation.TxStore using SQLite. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  circulation.Store:   Rules, loans, fine ledger, members
  circulation.TxStore: WithTx for atomic read-check-mutate sequences

APPEND-ONLY ENFORCEMENT:
  fine_entries has no UPDATE or DELETE path. Corrections arrive as credit
  entries only.

KEY TABLES:
  loan_rules:   Reference data with nullable wildcard dimensions
  loans:        Borrowing transactions
  fine_entries: Immutable debit/credit ledger
  members:      Borrower records

IDEMPOTENCY:
  idx_unique_fine_accrual enforces at most one debit per
  (loan_id, fines_date, debit). Racing accrual inserts lose cleanly with
  circulation.ErrDuplicateFine, which the accrual engine treats as
  already-charged.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/circulation.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  engine := circulation.NewEngine(store)

SEE ALSO:
  - circulation/store.go: Interface definitions
  - circulation/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/circulation-engine/circulation"
)

// Store implements circulation.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Loan rules (reference data, nullable dimensions are wildcards)
	CREATE TABLE IF NOT EXISTS loan_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		member_type_id TEXT,
		collection_type_id TEXT,
		material_type_id TEXT,
		loan_limit INTEGER NOT NULL DEFAULT 0,
		loan_period_days INTEGER NOT NULL DEFAULT 0,
		reborrow_limit INTEGER NOT NULL DEFAULT 0,
		fine_each_day TEXT NOT NULL DEFAULT '0',
		grace_period_days INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_loan_rules_member_type
		ON loan_rules(member_type_id);

	-- Loans
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		item_code TEXT NOT NULL,
		collection_type_id TEXT NOT NULL DEFAULT '',
		material_type_id TEXT NOT NULL DEFAULT '',
		loan_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		renewal_count INTEGER NOT NULL DEFAULT 0,
		return_date TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_loans_member
		ON loans(member_id);
	CREATE INDEX IF NOT EXISTS idx_loans_member_outstanding
		ON loans(member_id) WHERE return_date IS NULL;

	-- Fine entries (append-only ledger)
	CREATE TABLE IF NOT EXISTS fine_entries (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		loan_id TEXT NOT NULL DEFAULT '',
		fines_date TEXT NOT NULL,
		debit TEXT NOT NULL DEFAULT '0',
		credit TEXT NOT NULL DEFAULT '0',
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_fine_entries_member
		ON fine_entries(member_id, fines_date);

	-- CRITICAL: at most one accrued debit per loan/day/amount.
	-- Backs accrual idempotency even when two accrual calls race.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_fine_accrual
		ON fine_entries(loan_id, fines_date, debit)
		WHERE loan_id != '' AND debit != '0';

	-- Members
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		member_type_id TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier covers *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// RULE STORE
// =============================================================================

// SaveRule inserts or updates a loan rule.
func (s *Store) SaveRule(ctx context.Context, rule circulation.LoanRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRule(ctx, s.db, rule)
}

func saveRule(ctx context.Context, db querier, rule circulation.LoanRule) error {
	query := `
		INSERT INTO loan_rules
		(id, name, member_type_id, collection_type_id, material_type_id,
		 loan_limit, loan_period_days, reborrow_limit, fine_each_day, grace_period_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			member_type_id = excluded.member_type_id,
			collection_type_id = excluded.collection_type_id,
			material_type_id = excluded.material_type_id,
			loan_limit = excluded.loan_limit,
			loan_period_days = excluded.loan_period_days,
			reborrow_limit = excluded.reborrow_limit,
			fine_each_day = excluded.fine_each_day,
			grace_period_days = excluded.grace_period_days
	`

	_, err := db.ExecContext(ctx, query,
		rule.ID, rule.Name,
		nullDim(rule.MemberTypeID), nullDim(rule.CollectionTypeID), nullDim(rule.MaterialTypeID),
		rule.LoanLimit, rule.LoanPeriodDays, rule.ReborrowLimit,
		rule.FineEachDay.String(), rule.GracePeriodDays,
	)
	return err
}

// GetRule retrieves a rule by ID, or nil when absent.
func (s *Store) GetRule(ctx context.Context, id circulation.RuleID) (*circulation.LoanRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRule(ctx, s.db, id)
}

func getRule(ctx context.Context, db querier, id circulation.RuleID) (*circulation.LoanRule, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, member_type_id, collection_type_id, material_type_id,
		       loan_limit, loan_period_days, reborrow_limit, fine_each_day, grace_period_days
		FROM loan_rules WHERE id = ?`, id)

	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListRules returns all rules ordered by ID.
func (s *Store) ListRules(ctx context.Context) ([]circulation.LoanRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRules(ctx, s.db)
}

func listRules(ctx context.Context, db querier) ([]circulation.LoanRule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, member_type_id, collection_type_id, material_type_id,
		       loan_limit, loan_period_days, reborrow_limit, fine_each_day, grace_period_days
		FROM loan_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []circulation.LoanRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// DeleteRule removes a rule.
func (s *Store) DeleteRule(ctx context.Context, id circulation.RuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM loan_rules WHERE id = ?", id)
	return err
}

func scanRule(row rowScanner) (circulation.LoanRule, error) {
	var (
		rule        circulation.LoanRule
		memberType  sql.NullString
		collection  sql.NullString
		material    sql.NullString
		fineEachDay string
	)

	err := row.Scan(
		&rule.ID, &rule.Name, &memberType, &collection, &material,
		&rule.LoanLimit, &rule.LoanPeriodDays, &rule.ReborrowLimit,
		&fineEachDay, &rule.GracePeriodDays,
	)
	if err != nil {
		return rule, err
	}

	rule.MemberTypeID = dimPtr(memberType)
	rule.CollectionTypeID = dimPtr(collection)
	rule.MaterialTypeID = dimPtr(material)
	rule.FineEachDay = circulation.MustParseMoney(fineEachDay)
	return rule, nil
}

// =============================================================================
// LOAN STORE
// =============================================================================

// SaveLoan inserts or updates a loan.
func (s *Store) SaveLoan(ctx context.Context, loan circulation.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveLoan(ctx, s.db, loan)
}

func saveLoan(ctx context.Context, db querier, loan circulation.Loan) error {
	var returnDate *string
	if loan.ReturnDate != nil {
		d := loan.ReturnDate.String()
		returnDate = &d
	}

	query := `
		INSERT INTO loans
		(id, member_id, item_code, collection_type_id, material_type_id,
		 loan_date, due_date, renewal_count, return_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			due_date = excluded.due_date,
			renewal_count = excluded.renewal_count,
			return_date = excluded.return_date
	`

	_, err := db.ExecContext(ctx, query,
		loan.ID, loan.MemberID, loan.ItemCode,
		loan.CollectionTypeID, loan.MaterialTypeID,
		loan.LoanDate.String(), loan.DueDate.String(),
		loan.RenewalCount, returnDate,
	)
	return err
}

// GetLoan retrieves a loan by ID, or nil when absent.
func (s *Store) GetLoan(ctx context.Context, id circulation.LoanID) (*circulation.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLoan(ctx, s.db, id)
}

func getLoan(ctx context.Context, db querier, id circulation.LoanID) (*circulation.Loan, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, member_id, item_code, collection_type_id, material_type_id,
		       loan_date, due_date, renewal_count, return_date
		FROM loans WHERE id = ?`, id)

	loan, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// LoansByMember returns all loans for a member, newest first.
func (s *Store) LoansByMember(ctx context.Context, memberID circulation.MemberID) ([]circulation.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loansByMember(ctx, s.db, memberID)
}

func loansByMember(ctx context.Context, db querier, memberID circulation.MemberID) ([]circulation.Loan, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, member_id, item_code, collection_type_id, material_type_id,
		       loan_date, due_date, renewal_count, return_date
		FROM loans
		WHERE member_id = ?
		ORDER BY loan_date DESC, id`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var loans []circulation.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

// ActiveLoanCount returns the member's outstanding loan count.
func (s *Store) ActiveLoanCount(ctx context.Context, memberID circulation.MemberID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeLoanCount(ctx, s.db, memberID)
}

func activeLoanCount(ctx context.Context, db querier, memberID circulation.MemberID) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM loans WHERE member_id = ? AND return_date IS NULL",
		memberID,
	).Scan(&count)
	return count, err
}

func scanLoan(row rowScanner) (circulation.Loan, error) {
	var (
		loan       circulation.Loan
		loanDate   string
		dueDate    string
		returnDate sql.NullString
	)

	err := row.Scan(
		&loan.ID, &loan.MemberID, &loan.ItemCode,
		&loan.CollectionTypeID, &loan.MaterialTypeID,
		&loanDate, &dueDate, &loan.RenewalCount, &returnDate,
	)
	if err != nil {
		return loan, err
	}

	loan.LoanDate, _ = circulation.ParseDate(loanDate)
	loan.DueDate, _ = circulation.ParseDate(dueDate)
	if returnDate.Valid {
		d, _ := circulation.ParseDate(returnDate.String)
		loan.ReturnDate = &d
	}
	return loan, nil
}

// =============================================================================
// FINE STORE (append-only ledger)
// =============================================================================

// AppendFine adds a ledger entry. This is the ONLY write path: no update,
// no delete.
func (s *Store) AppendFine(ctx context.Context, entry circulation.FineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendFine(ctx, s.db, entry)
}

func appendFine(ctx context.Context, db querier, entry circulation.FineEntry) error {
	query := `
		INSERT INTO fine_entries
		(id, member_id, loan_id, fines_date, debit, credit, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		entry.ID, entry.MemberID, entry.LoanID,
		entry.Date.String(),
		entry.Debit.String(), entry.Credit.String(),
		entry.Description,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return circulation.ErrDuplicateFine
		}
		return fmt.Errorf("failed to append fine entry: %w", err)
	}
	return nil
}

// FinesByMember returns all ledger entries for a member, chronologically.
func (s *Store) FinesByMember(ctx context.Context, memberID circulation.MemberID) ([]circulation.FineEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return finesByMember(ctx, s.db, memberID)
}

func finesByMember(ctx context.Context, db querier, memberID circulation.MemberID) ([]circulation.FineEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, member_id, loan_id, fines_date, debit, credit, description
		FROM fine_entries
		WHERE member_id = ?
		ORDER BY fines_date ASC, created_at ASC`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fine entries: %w", err)
	}
	defer rows.Close()

	var entries []circulation.FineEntry
	for rows.Next() {
		var (
			entry         circulation.FineEntry
			date          string
			debit, credit string
		)
		if err := rows.Scan(&entry.ID, &entry.MemberID, &entry.LoanID,
			&date, &debit, &credit, &entry.Description); err != nil {
			return nil, err
		}
		entry.Date, _ = circulation.ParseDate(date)
		entry.Debit = circulation.MustParseMoney(debit)
		entry.Credit = circulation.MustParseMoney(credit)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// FineExists checks for an existing debit with this loan, date, and amount.
func (s *Store) FineExists(ctx context.Context, loanID circulation.LoanID, date circulation.Date, amount circulation.Money) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fineExists(ctx, s.db, loanID, date, amount)
}

func fineExists(ctx context.Context, db querier, loanID circulation.LoanID, date circulation.Date, amount circulation.Money) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fine_entries WHERE loan_id = ? AND fines_date = ? AND debit = ?",
		loanID, date.String(), amount.String(),
	).Scan(&count)
	return count > 0, err
}

// =============================================================================
// MEMBER STORE
// =============================================================================

// SaveMember inserts or updates a member.
func (s *Store) SaveMember(ctx context.Context, member circulation.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveMember(ctx, s.db, member)
}

func saveMember(ctx context.Context, db querier, member circulation.Member) error {
	query := `
		INSERT INTO members (id, name, member_type_id)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			member_type_id = excluded.member_type_id
	`
	_, err := db.ExecContext(ctx, query, member.ID, member.Name, member.MemberTypeID)
	return err
}

// GetMember retrieves a member by ID, or nil when absent.
func (s *Store) GetMember(ctx context.Context, id circulation.MemberID) (*circulation.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getMember(ctx, s.db, id)
}

func getMember(ctx context.Context, db querier, id circulation.MemberID) (*circulation.Member, error) {
	var member circulation.Member
	err := db.QueryRowContext(ctx,
		"SELECT id, name, member_type_id FROM members WHERE id = ?", id,
	).Scan(&member.ID, &member.Name, &member.MemberTypeID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// ListMembers returns all members ordered by name.
func (s *Store) ListMembers(ctx context.Context) ([]circulation.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listMembers(ctx, s.db)
}

func listMembers(ctx context.Context, db querier) ([]circulation.Member, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, member_type_id FROM members ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []circulation.Member
	for rows.Next() {
		var member circulation.Member
		if err := rows.Scan(&member.ID, &member.Name, &member.MemberTypeID); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (circulation.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(circulation.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes Store calls through an open transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveRule(ctx context.Context, rule circulation.LoanRule) error {
	return saveRule(ctx, ts.tx, rule)
}

func (ts *txStore) GetRule(ctx context.Context, id circulation.RuleID) (*circulation.LoanRule, error) {
	return getRule(ctx, ts.tx, id)
}

func (ts *txStore) ListRules(ctx context.Context) ([]circulation.LoanRule, error) {
	return listRules(ctx, ts.tx)
}

func (ts *txStore) DeleteRule(ctx context.Context, id circulation.RuleID) error {
	_, err := ts.tx.ExecContext(ctx, "DELETE FROM loan_rules WHERE id = ?", id)
	return err
}

func (ts *txStore) SaveLoan(ctx context.Context, loan circulation.Loan) error {
	return saveLoan(ctx, ts.tx, loan)
}

func (ts *txStore) GetLoan(ctx context.Context, id circulation.LoanID) (*circulation.Loan, error) {
	return getLoan(ctx, ts.tx, id)
}

func (ts *txStore) LoansByMember(ctx context.Context, memberID circulation.MemberID) ([]circulation.Loan, error) {
	return loansByMember(ctx, ts.tx, memberID)
}

func (ts *txStore) ActiveLoanCount(ctx context.Context, memberID circulation.MemberID) (int, error) {
	return activeLoanCount(ctx, ts.tx, memberID)
}

func (ts *txStore) AppendFine(ctx context.Context, entry circulation.FineEntry) error {
	return appendFine(ctx, ts.tx, entry)
}

func (ts *txStore) FinesByMember(ctx context.Context, memberID circulation.MemberID) ([]circulation.FineEntry, error) {
	return finesByMember(ctx, ts.tx, memberID)
}

func (ts *txStore) FineExists(ctx context.Context, loanID circulation.LoanID, date circulation.Date, amount circulation.Money) (bool, error) {
	return fineExists(ctx, ts.tx, loanID, date, amount)
}

func (ts *txStore) SaveMember(ctx context.Context, member circulation.Member) error {
	return saveMember(ctx, ts.tx, member)
}

func (ts *txStore) GetMember(ctx context.Context, id circulation.MemberID) (*circulation.Member, error) {
	return getMember(ctx, ts.tx, id)
}

func (ts *txStore) ListMembers(ctx context.Context) ([]circulation.Member, error) {
	return listMembers(ctx, ts.tx)
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Reset clears all data. Used by scenario loaders; never call in production.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"fine_entries", "loans", "loan_rules", "members"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullDim(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func dimPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
