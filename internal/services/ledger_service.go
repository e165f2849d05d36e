package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"finledger/internal/core"
	applog "finledger/internal/log"
)

// LedgerService owns income and expense transactions and the read models
// built on them: paginated lists and period summaries.
type LedgerService struct {
	base
}

// NewLedgerService creates a ledger service over store. Options add the
// result cache, the event publisher and the retry policy.
func NewLedgerService(store Store, opts ...Option) *LedgerService {
	return &LedgerService{base: newBase(store, opts)}
}

// TransactionPatch carries the editable fields of a transaction. Nil fields
// keep their stored value.
type TransactionPatch struct {
	Type        *core.TxType
	Amount      *core.Money
	Category    *string
	Description *string
	Date        *time.Time
}

func (p TransactionPatch) apply(t core.Transaction) core.Transaction {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	return t
}

// Create records an income or expense and moves the account balance in the
// same atomic unit. Transfers go through TransferService.
func (s *LedgerService) Create(ctx context.Context, ownerID int64, t core.Transaction) (core.Transaction, error) {
	t.ID = 0
	t.OwnerID = ownerID
	t.RecurringRuleID = nil
	t.Normalize()
	if t.Type == core.TxTransfer {
		return core.Transaction{}, core.Invalidf("use the transfers endpoint to move money between accounts")
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var (
		saved core.Transaction
		ids   []int64
	)
	err := s.atomic(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		saved, ids, err = post(ctx, tx, t)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction created", applog.NewFields().
		WithOperation(applog.OpCreate).
		WithOwner(ownerID).
		WithTransaction(saved.ID, string(saved.Type), saved.Amount.Cents).
		ToSlice()...)
	s.committed(ctx, core.LedgerEvent{Kind: core.EventTransactionCreated, OwnerID: ownerID, TransactionID: saved.ID, AccountIDs: ids})
	return saved, nil
}

// Get returns the transaction if it belongs to the owner.
func (s *LedgerService) Get(ctx context.Context, ownerID, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, ownerID, id)
}

// Update edits an income or expense. The old signed effect is reversed and
// the new one applied to the same account in one atomic unit. Transfers
// cannot be edited and a transaction cannot become one.
func (s *LedgerService) Update(ctx context.Context, ownerID, id int64, patch TransactionPatch) (core.Transaction, error) {
	var (
		updated core.Transaction
		ids     []int64
	)
	err := s.atomic(ctx, func(ctx context.Context, tx Tx) error {
		old, err := tx.LockTransaction(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if old.Type == core.TxTransfer {
			return core.ErrTransferEdit
		}

		next := patch.apply(old)
		next.Normalize()
		if next.Type == core.TxTransfer {
			return core.ErrTypeChange
		}
		if err := next.Validate(); err != nil {
			return err
		}
		if next.Category != old.Category || next.Type != old.Type {
			if err := requireCategory(ctx, tx, next); err != nil {
				return err
			}
		}

		oldLegs, err := old.Legs()
		if err != nil {
			return err
		}
		newLegs, err := next.Legs()
		if err != nil {
			return err
		}
		ids = core.AccountIDs(oldLegs, newLegs)
		locked, err := tx.LockAccounts(ctx, ownerID, ids...)
		if err != nil {
			return err
		}
		if err := tx.UpdateTransaction(ctx, next); err != nil {
			return err
		}
		if err := applyLegs(ctx, tx, locked, core.Reverse(oldLegs), newLegs); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction updated", applog.NewFields().
		WithOperation(applog.OpUpdate).
		WithOwner(ownerID).
		WithTransaction(id, string(updated.Type), updated.Amount.Cents).
		ToSlice()...)
	s.committed(ctx, core.LedgerEvent{Kind: core.EventTransactionUpdated, OwnerID: ownerID, TransactionID: id, AccountIDs: ids})
	return updated, nil
}

// Delete reverses every balance leg of the transaction, transfers
// included, and removes the record.
func (s *LedgerService) Delete(ctx context.Context, ownerID, id int64) error {
	var (
		ids     []int64
		removed core.Transaction
	)
	err := s.atomic(ctx, func(ctx context.Context, tx Tx) error {
		old, err := tx.LockTransaction(ctx, ownerID, id)
		if err != nil {
			return err
		}
		removed = old
		legs, err := old.Legs()
		if err != nil {
			return err
		}
		ids = core.AccountIDs(legs)
		locked, err := tx.LockAccounts(ctx, ownerID, ids...)
		if err != nil {
			return err
		}
		if err := tx.DeleteTransaction(ctx, ownerID, id); err != nil {
			return err
		}
		return applyLegs(ctx, tx, locked, core.Reverse(legs))
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted", applog.NewFields().
		WithOperation(applog.OpDelete).
		WithOwner(ownerID).
		WithTransaction(id, string(removed.Type), removed.Amount.Cents).
		ToSlice()...)
	s.committed(ctx, core.LedgerEvent{Kind: core.EventTransactionDeleted, OwnerID: ownerID, TransactionID: id, AccountIDs: ids})
	return nil
}

// List returns a page of the owner's transactions, newest first.
func (s *LedgerService) List(ctx context.Context, ownerID int64, f core.TxFilter, page, limit int) (core.Page[core.Transaction], error) {
	return s.store.ListTransactions(ctx, ownerID, f, page, limit)
}

// Summary totals income and expense in the filter window. Transfers are
// excluded from both totals.
func (s *LedgerService) Summary(ctx context.Context, ownerID int64, f core.TxFilter) (core.Summary, error) {
	return cached(ctx, s.cache, ownerID, "summary:"+filterKey(f), func() (core.Summary, error) {
		totals, err := s.store.SumAmounts(ctx, ownerID, f)
		if err != nil {
			return core.Summary{}, err
		}
		var sum core.Summary
		for _, t := range totals {
			if err := sum.Add(t.Type, t.Amount); err != nil {
				return core.Summary{}, fmt.Errorf("summarize: %w", err)
			}
		}
		return sum, nil
	})
}

// SummaryByCategory totals expenses per category, largest first.
func (s *LedgerService) SummaryByCategory(ctx context.Context, ownerID int64, f core.TxFilter) ([]core.CategoryTotal, error) {
	return cached(ctx, s.cache, ownerID, "categories:"+filterKey(f), func() ([]core.CategoryTotal, error) {
		totals, err := s.store.SumAmounts(ctx, ownerID, f)
		if err != nil {
			return nil, err
		}
		byCategory := make(map[string]int64)
		for _, t := range totals {
			b, err := t.Type.Bucket()
			if err != nil {
				return nil, fmt.Errorf("summarize by category: %w", err)
			}
			switch b {
			case core.BucketExpense:
				byCategory[t.Category] += t.Amount.Cents
			case core.BucketIncome, core.BucketNone:
			}
		}
		out := make([]core.CategoryTotal, 0, len(byCategory))
		for name, cents := range byCategory {
			out = append(out, core.CategoryTotal{Category: name, TotalAmount: core.Money{Cents: cents}})
		}
		core.SortCategoryTotals(out)
		return out, nil
	})
}

func filterKey(f core.TxFilter) string {
	var from, to int64
	if !f.From.IsZero() {
		from = f.From.Unix()
	}
	if !f.To.IsZero() {
		to = f.To.Unix()
	}
	return strconv.FormatInt(from, 10) + ":" + strconv.FormatInt(to, 10) + ":" + strconv.FormatInt(f.AccountID, 10)
}
