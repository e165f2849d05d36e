package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finledger/internal/core"
)

// DefaultMaxCatchUp bounds how many occurrences one rule may emit in a single
// pass.
const DefaultMaxCatchUp = 1000

// RecurringScheduler owns recurring rules and materializes their due
// occurrences through the ledger write path.
type RecurringScheduler struct {
	base
	maxCatchUp int
}

// NewRecurringScheduler creates a scheduler. A maxCatchUp of zero or less
// selects DefaultMaxCatchUp.
func NewRecurringScheduler(store Store, maxCatchUp int, opts ...Option) *RecurringScheduler {
	if maxCatchUp <= 0 {
		maxCatchUp = DefaultMaxCatchUp
	}
	return &RecurringScheduler{base: newBase(store, opts), maxCatchUp: maxCatchUp}
}

// Create stores a rule whose first occurrence is its start date.
func (s *RecurringScheduler) Create(ctx context.Context, ownerID int64, r core.RecurringRule) (core.RecurringRule, error) {
	r.ID = 0
	r.OwnerID = ownerID
	r.Normalize()
	if r.Type == core.TxIncome && r.Category == "" {
		r.Category = core.IncomeCategory
	}
	if r.Type == core.TxTransfer {
		r.Category = core.TransferCategory
	}
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	r.NextDueDate = r.StartDate

	var created core.RecurringRule
	err := s.atomic(ctx, func(ctx context.Context, tx Tx) error {
		tmpl := r.Template(r.StartDate)
		legs, err := tmpl.Legs()
		if err != nil {
			return err
		}
		if _, err := tx.LockAccounts(ctx, ownerID, core.AccountIDs(legs)...); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("%w (%v)", core.ErrUnknownAccount, err)
			}
			return err
		}
		if err := requireCategory(ctx, tx, tmpl); err != nil {
			return err
		}
		created, err = tx.CreateRule(ctx, r)
		return err
	})
	if err != nil {
		return core.RecurringRule{}, err
	}

	slog.InfoContext(ctx, "Recurring rule created",
		"owner_id", ownerID,
		"rule_id", created.ID,
		"frequency", created.Frequency,
		"interval", created.Interval,
		"next_due_date", created.NextDueDate.Format("2006-01-02"))
	return created, nil
}

// List returns the owner's rules ordered by next due date.
func (s *RecurringScheduler) List(ctx context.Context, ownerID int64) ([]core.RecurringRule, error) {
	return s.store.ListRules(ctx, ownerID)
}

// Delete removes the rule. Transactions it already produced stay.
func (s *RecurringScheduler) Delete(ctx context.Context, ownerID, id int64) error {
	err := s.atomic(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockRule(ctx, ownerID, id); err != nil {
			return err
		}
		return tx.DeleteRule(ctx, ownerID, id)
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Recurring rule deleted", "owner_id", ownerID, "rule_id", id)
	return nil
}
