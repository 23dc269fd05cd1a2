// Package store provides in-memory circulation.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/circulation-engine/circulation"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	rules   map[circulation.RuleID]circulation.LoanRule
	loans   map[circulation.LoanID]circulation.Loan
	fines   map[circulation.MemberID][]circulation.FineEntry
	members map[circulation.MemberID]circulation.Member
}

func NewMemory() *Memory {
	return &Memory{
		rules:   make(map[circulation.RuleID]circulation.LoanRule),
		loans:   make(map[circulation.LoanID]circulation.Loan),
		fines:   make(map[circulation.MemberID][]circulation.FineEntry),
		members: make(map[circulation.MemberID]circulation.Member),
	}
}

// =============================================================================
// RULE STORE
// =============================================================================

func (m *Memory) SaveRule(_ context.Context, rule circulation.LoanRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = rule
	return nil
}

func (m *Memory) GetRule(_ context.Context, id circulation.RuleID) (*circulation.LoanRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rule, ok := m.rules[id]
	if !ok {
		return nil, nil
	}
	return &rule, nil
}

func (m *Memory) ListRules(_ context.Context) ([]circulation.LoanRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rules := make([]circulation.LoanRule, 0, len(m.rules))
	for _, rule := range m.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

func (m *Memory) DeleteRule(_ context.Context, id circulation.RuleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rules, id)
	return nil
}

// =============================================================================
// LOAN STORE
// =============================================================================

func (m *Memory) SaveLoan(_ context.Context, loan circulation.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loans[loan.ID] = loan
	return nil
}

func (m *Memory) GetLoan(_ context.Context, id circulation.LoanID) (*circulation.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loan, ok := m.loans[id]
	if !ok {
		return nil, nil
	}
	return &loan, nil
}

func (m *Memory) LoansByMember(_ context.Context, memberID circulation.MemberID) ([]circulation.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var loans []circulation.Loan
	for _, loan := range m.loans {
		if loan.MemberID == memberID {
			loans = append(loans, loan)
		}
	}
	sort.Slice(loans, func(i, j int) bool {
		if loans[i].LoanDate.Equal(loans[j].LoanDate) {
			return loans[i].ID < loans[j].ID
		}
		return loans[j].LoanDate.Before(loans[i].LoanDate)
	})
	return loans, nil
}

func (m *Memory) ActiveLoanCount(_ context.Context, memberID circulation.MemberID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, loan := range m.loans {
		if loan.MemberID == memberID && loan.Outstanding() {
			count++
		}
	}
	return count, nil
}

// =============================================================================
// FINE STORE (append-only)
// =============================================================================

func (m *Memory) AppendFine(_ context.Context, entry circulation.FineEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendFineLocked(entry)
}

func (m *Memory) appendFineLocked(entry circulation.FineEntry) error {
	if entry.LoanID != "" && entry.Debit.IsPositive() {
		for _, existing := range m.fines[entry.MemberID] {
			if existing.LoanID == entry.LoanID &&
				existing.Date.Equal(entry.Date) &&
				existing.Debit.Equal(entry.Debit) {
				return circulation.ErrDuplicateFine
			}
		}
	}

	entries := m.fines[entry.MemberID]
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Date.After(entry.Date)
	})
	entries = append(entries, circulation.FineEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = entry
	m.fines[entry.MemberID] = entries
	return nil
}

func (m *Memory) FinesByMember(_ context.Context, memberID circulation.MemberID) ([]circulation.FineEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]circulation.FineEntry, len(m.fines[memberID]))
	copy(result, m.fines[memberID])
	return result, nil
}

func (m *Memory) FineExists(_ context.Context, loanID circulation.LoanID, date circulation.Date, amount circulation.Money) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, entries := range m.fines {
		for _, e := range entries {
			if e.LoanID == loanID && e.Date.Equal(date) && e.Debit.Equal(amount) {
				return true, nil
			}
		}
	}
	return false, nil
}

// =============================================================================
// MEMBER STORE
// =============================================================================

func (m *Memory) SaveMember(_ context.Context, member circulation.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[member.ID] = member
	return nil
}

func (m *Memory) GetMember(_ context.Context, id circulation.MemberID) (*circulation.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	member, ok := m.members[id]
	if !ok {
		return nil, nil
	}
	return &member, nil
}

func (m *Memory) ListMembers(_ context.Context) ([]circulation.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := make([]circulation.Member, 0, len(m.members))
	for _, member := range m.members {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
	txMu sync.Mutex
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction, simulated with a snapshot and
// rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(circulation.Store) error) error {
	tm.txMu.Lock()
	defer tm.txMu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(tm.Memory); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	rules   map[circulation.RuleID]circulation.LoanRule
	loans   map[circulation.LoanID]circulation.Loan
	fines   map[circulation.MemberID][]circulation.FineEntry
	members map[circulation.MemberID]circulation.Member
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	s := memorySnapshot{
		rules:   make(map[circulation.RuleID]circulation.LoanRule, len(tm.rules)),
		loans:   make(map[circulation.LoanID]circulation.Loan, len(tm.loans)),
		fines:   make(map[circulation.MemberID][]circulation.FineEntry, len(tm.fines)),
		members: make(map[circulation.MemberID]circulation.Member, len(tm.members)),
	}
	for k, v := range tm.rules {
		s.rules[k] = v
	}
	for k, v := range tm.loans {
		s.loans[k] = v
	}
	for k, v := range tm.fines {
		s.fines[k] = append([]circulation.FineEntry{}, v...)
	}
	for k, v := range tm.members {
		s.members[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.rules = s.rules
	tm.loans = s.loans
	tm.fines = s.fines
	tm.members = s.members
}
