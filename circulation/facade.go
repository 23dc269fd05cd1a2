/*
facade.go - Policy facade, the single entry point for collaborators

PURPOSE:
  Request handlers call the Engine; the Engine composes the resolver, the
  accrual engine, the eligibility checks, and the due-date calculator in
  the correct order and returns a consistent decision object.

OPERATION FLOW:
  AttemptRenewal: resolve rule -> settle accrual -> compute balance ->
                  check eligibility -> apply renewal -> persist
  GetDuesSummary: per active loan resolve rule + accrue as of today ->
                  sum the ledger
  Checkout:       resolve rule -> balance + loan-limit checks -> create loan
  ReturnItem:     resolve rule -> settle accrual as of return -> stamp return

CONCURRENCY:
  The only hazard is two simultaneous operations on the same loan or the
  same member's ledger. Every mutating operation acquires an exclusive
  per-loan or per-member critical section around its read-check-mutate
  sequence, so eligibility checks observe a consistent renewal count and
  balance and no two renewals can both pass for the same loan. Lock
  ordering is loan before member; no path acquires them in the other
  order.

  All mutations of one operation run inside a single WithTx: either the
  fine entry and the loan update both commit, or neither does.

ERROR MODEL:
  Rule-resolution faults and storage failures abort the operation with
  nothing mutated. Denials are normal result values carrying the reason
  for display.
*/
package circulation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// =============================================================================
// RESULT TYPES - Render-ready structures for templating collaborators
// =============================================================================

// DuesSummary reports a member's fines and outstanding balance.
type DuesSummary struct {
	MemberID         MemberID
	AsOf             Date
	Fines            []FineEntry
	TotalOutstanding Money
}

// RenewalResult reports the outcome of a renewal attempt.
type RenewalResult struct {
	LoanID       LoanID
	Renewed      bool
	Reason       DenialReason // set only when denied
	DueDate      Date         // new due date on success, current otherwise
	RenewalCount int
}

// CheckoutResult reports the outcome of a checkout attempt.
type CheckoutResult struct {
	Created bool
	Reason  DenialReason // set only when denied
	Loan    *Loan        // set only on success
}

// ReturnResult reports the outcome of returning an item.
type ReturnResult struct {
	LoanID     LoanID
	ReturnDate Date
	FineAmount Money // fine charged at return, zero when on time
}

// =============================================================================
// POLICY ENGINE
// =============================================================================

// Engine is the policy facade surrounding collaborators call.
type Engine struct {
	store TxStore
	locks keyedLocks
}

// NewEngine creates the policy facade over a transactional store.
func NewEngine(store TxStore) *Engine {
	return &Engine{store: store}
}

// GetDuesSummary resolves rules per active loan, accrues fines for each
// overdue loan as of asOf, then sums the member's ledger.
func (e *Engine) GetDuesSummary(ctx context.Context, memberID MemberID, asOf Date) (DuesSummary, error) {
	unlock := e.locks.lock("member:" + string(memberID))
	defer unlock()

	summary := DuesSummary{MemberID: memberID, AsOf: asOf}

	err := e.store.WithTx(ctx, func(s Store) error {
		member, err := s.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}

		loans, err := s.LoansByMember(ctx, memberID)
		if err != nil {
			return err
		}

		resolver := NewResolver(s)
		accrual := NewAccrualEngine(s)
		for _, loan := range loans {
			if !loan.Outstanding() {
				continue
			}
			rule, err := resolver.Resolve(ctx, member.MemberTypeID, loan.CollectionTypeID, loan.MaterialTypeID)
			if err != nil {
				return err
			}
			if _, err := accrual.Accrue(ctx, loan, rule, asOf); err != nil {
				return err
			}
		}

		ledger := NewFineLedger(s)
		summary.Fines, err = ledger.Entries(ctx, memberID)
		if err != nil {
			return err
		}
		summary.TotalOutstanding, err = ledger.OutstandingBalance(ctx, memberID)
		return err
	})
	if err != nil {
		return DuesSummary{}, err
	}
	return summary, nil
}

// AttemptRenewal resolves the loan's rule, settles any outstanding accrual,
// runs the eligibility chain, and on success persists the renewed loan.
// Denials come back in the result with the reason unmodified for display.
func (e *Engine) AttemptRenewal(ctx context.Context, loanID LoanID, asOf Date) (RenewalResult, error) {
	unlock := e.locks.lock("loan:" + string(loanID))
	defer unlock()

	var result RenewalResult

	err := e.store.WithTx(ctx, func(s Store) error {
		loan, err := s.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if loan == nil {
			return ErrLoanNotFound
		}

		member, err := s.GetMember(ctx, loan.MemberID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}

		rule, err := NewResolver(s).Resolve(ctx, member.MemberTypeID, loan.CollectionTypeID, loan.MaterialTypeID)
		if err != nil {
			return err
		}

		// Settle outstanding accrual before judging the balance.
		if _, err := NewAccrualEngine(s).Accrue(ctx, *loan, rule, asOf); err != nil {
			return err
		}

		balance, err := NewFineLedger(s).OutstandingBalance(ctx, loan.MemberID)
		if err != nil {
			return err
		}

		result = RenewalResult{
			LoanID:       loanID,
			DueDate:      loan.DueDate,
			RenewalCount: loan.RenewalCount,
		}

		decision := CheckRenewalEligibility(*loan, rule, balance, asOf)
		if !decision.Eligible {
			result.Reason = decision.Reason
			return nil
		}

		ApplyRenewal(loan, rule, asOf)
		if err := s.SaveLoan(ctx, *loan); err != nil {
			return err
		}

		result.Renewed = true
		result.DueDate = loan.DueDate
		result.RenewalCount = loan.RenewalCount
		return nil
	})
	if err != nil {
		return RenewalResult{}, err
	}
	return result, nil
}

// Checkout creates a loan for the member if the governing rule's loan limit
// allows another item and the member owes nothing.
func (e *Engine) Checkout(ctx context.Context, memberID MemberID, item ItemRef, asOf Date) (CheckoutResult, error) {
	unlock := e.locks.lock("member:" + string(memberID))
	defer unlock()

	var result CheckoutResult

	err := e.store.WithTx(ctx, func(s Store) error {
		member, err := s.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}

		rule, err := NewResolver(s).Resolve(ctx, member.MemberTypeID, item.CollectionTypeID, item.MaterialTypeID)
		if err != nil {
			return err
		}

		balance, err := NewFineLedger(s).OutstandingBalance(ctx, memberID)
		if err != nil {
			return err
		}
		active, err := s.ActiveLoanCount(ctx, memberID)
		if err != nil {
			return err
		}

		decision := CheckCheckoutEligibility(rule, active, balance)
		if !decision.Eligible {
			result.Reason = decision.Reason
			return nil
		}

		loan := Loan{
			ID:               LoanID(uuid.NewString()),
			MemberID:         memberID,
			ItemCode:         item.ItemCode,
			CollectionTypeID: item.CollectionTypeID,
			MaterialTypeID:   item.MaterialTypeID,
			LoanDate:         asOf,
			DueDate:          ComputeDueDate(asOf, rule),
		}
		if err := s.SaveLoan(ctx, loan); err != nil {
			return err
		}

		result.Created = true
		result.Loan = &loan
		return nil
	})
	if err != nil {
		return CheckoutResult{}, err
	}
	return result, nil
}

// ReturnItem settles accrual as of the return date and stamps the loan
// returned. Returning an already-returned loan fails with ErrAlreadyReturned.
func (e *Engine) ReturnItem(ctx context.Context, loanID LoanID, asOf Date) (ReturnResult, error) {
	unlock := e.locks.lock("loan:" + string(loanID))
	defer unlock()

	var result ReturnResult

	err := e.store.WithTx(ctx, func(s Store) error {
		loan, err := s.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if loan == nil {
			return ErrLoanNotFound
		}
		if !loan.Outstanding() {
			return fmt.Errorf("return loan %s: %w", loanID, ErrAlreadyReturned)
		}

		member, err := s.GetMember(ctx, loan.MemberID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}

		rule, err := NewResolver(s).Resolve(ctx, member.MemberTypeID, loan.CollectionTypeID, loan.MaterialTypeID)
		if err != nil {
			return err
		}

		if _, err := NewAccrualEngine(s).Accrue(ctx, *loan, rule, asOf); err != nil {
			return err
		}

		returned := asOf
		loan.ReturnDate = &returned
		if err := s.SaveLoan(ctx, *loan); err != nil {
			return err
		}

		result = ReturnResult{
			LoanID:     loanID,
			ReturnDate: asOf,
			FineAmount: ComputeFine(*loan, rule, asOf),
		}
		return nil
	})
	if err != nil {
		return ReturnResult{}, err
	}
	return result, nil
}

// RecordPayment appends a credit entry to the member's ledger.
func (e *Engine) RecordPayment(ctx context.Context, memberID MemberID, amount Money, asOf Date, note string) (FineEntry, error) {
	unlock := e.locks.lock("member:" + string(memberID))
	defer unlock()

	var entry FineEntry
	err := e.store.WithTx(ctx, func(s Store) error {
		member, err := s.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}
		entry, err = NewFineLedger(s).RecordPayment(ctx, memberID, amount, asOf, note)
		return err
	})
	if err != nil {
		return FineEntry{}, err
	}
	return entry, nil
}

// SweepOverdueLoans accrues fines for every outstanding loan of every
// member as of asOf. Safe to run repeatedly: accrual is idempotent per
// loan/day. One member's failure (broken rule data, say) must not starve
// accrual for the members after them, so failed members are skipped and
// reported in the joined error alongside the count of new fine entries.
func (e *Engine) SweepOverdueLoans(ctx context.Context, asOf Date) (int, error) {
	members, err := e.store.ListMembers(ctx)
	if err != nil {
		return 0, err
	}

	charged := 0
	var errs []error
	for _, member := range members {
		n, err := e.accrueForMember(ctx, member, asOf)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep member %s: %w", member.ID, err))
			continue
		}
		charged += n
	}
	return charged, errors.Join(errs...)
}

// accrueForMember settles accrual for one member's outstanding loans and
// reports how many new entries were created.
func (e *Engine) accrueForMember(ctx context.Context, member Member, asOf Date) (int, error) {
	unlock := e.locks.lock("member:" + string(member.ID))
	defer unlock()

	charged := 0
	err := e.store.WithTx(ctx, func(s Store) error {
		loans, err := s.LoansByMember(ctx, member.ID)
		if err != nil {
			return err
		}

		resolver := NewResolver(s)
		accrual := NewAccrualEngine(s)
		for _, loan := range loans {
			if !loan.Outstanding() {
				continue
			}
			rule, err := resolver.Resolve(ctx, member.MemberTypeID, loan.CollectionTypeID, loan.MaterialTypeID)
			if err != nil {
				return err
			}
			entry, err := accrual.Accrue(ctx, loan, rule, asOf)
			if err != nil {
				return err
			}
			if entry != nil {
				charged++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return charged, nil
}

// =============================================================================
// KEYED LOCKS - Per-loan / per-member critical sections
// =============================================================================

// keyedLocks serializes operations on the same key. Locks are created
// lazily and kept for the process lifetime; the key space (loans and
// members touched by this process) is small.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
