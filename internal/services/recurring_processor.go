package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finledger/internal/core"
	applog "finledger/internal/log"
)

// RuleFailure records a rule that could not be brought up to date in a pass.
type RuleFailure struct {
	RuleID  int64
	OwnerID int64
	Err     error
}

// PassResult summarizes one scheduling pass.
type PassResult struct {
	RulesChecked int
	Materialized int
	Failures     []RuleFailure
}

// ProcessDue materializes every occurrence due at or before now, across all
// owners.
func (s *RecurringScheduler) ProcessDue(ctx context.Context, now time.Time) (PassResult, error) {
	return s.process(ctx, 0, now)
}

// CatchUp is ProcessDue restricted to one owner. It runs when the owner
// reads their schedules so the ledger reflects every occurrence due so far.
func (s *RecurringScheduler) CatchUp(ctx context.Context, ownerID int64, now time.Time) (PassResult, error) {
	if ownerID <= 0 {
		return PassResult{}, core.Invalidf("owner is required")
	}
	return s.process(ctx, ownerID, now)
}

func (s *RecurringScheduler) process(ctx context.Context, ownerID int64, now time.Time) (PassResult, error) {
	var res PassResult
	rules, err := s.store.DueRules(ctx, ownerID, now)
	if err != nil {
		return res, fmt.Errorf("list due rules: %w", err)
	}
	res.RulesChecked = len(rules)

	for _, r := range rules {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, err := s.catchUpRule(ctx, r, now)
		res.Materialized += n
		if err != nil {
			res.Failures = append(res.Failures, RuleFailure{RuleID: r.ID, OwnerID: r.OwnerID, Err: err})
			slog.ErrorContext(ctx, "Recurring rule not brought up to date",
				"rule_id", r.ID,
				"owner_id", r.OwnerID,
				"materialized", n,
				"error", err)
		}
	}

	if res.RulesChecked > 0 {
		slog.InfoContext(ctx, "Recurring pass complete",
			applog.FieldOperation, applog.OpCatchUp,
			"owner_id", ownerID,
			"rules_checked", res.RulesChecked,
			"materialized", res.Materialized,
			"failed", len(res.Failures))
	}
	return res, nil
}

// catchUpRule emits every pending occurrence of r, one atomic unit each, so
// an interrupted pass leaves next_due_date matching what was committed.
func (s *RecurringScheduler) catchUpRule(ctx context.Context, r core.RecurringRule, now time.Time) (int, error) {
	pending, err := core.CountDue(r.NextDueDate, r.StartDate, now, r.Frequency, r.Interval, s.maxCatchUp)
	if err != nil {
		return 0, err
	}
	if pending > s.maxCatchUp {
		return 0, fmt.Errorf("%w: rule %d has more than %d pending occurrences", core.ErrCatchUpLimit, r.ID, s.maxCatchUp)
	}

	emitted := 0
	for emitted < pending {
		ok, err := s.materializeNext(ctx, r.OwnerID, r.ID, now)
		if err != nil {
			return emitted, err
		}
		if !ok {
			break
		}
		emitted++
	}
	return emitted, nil
}

// materializeNext re-reads the rule under lock and, if it is still due,
// inserts the occurrence, applies its legs and advances next_due_date in the
// same atomic unit. It reports false when nothing was due, including when a
// concurrent pass or a delete got there first.
func (s *RecurringScheduler) materializeNext(ctx context.Context, ownerID, ruleID int64, now time.Time) (bool, error) {
	var (
		saved core.Transaction
		ids   []int64
		done  bool
	)
	err := s.atomic(ctx, func(ctx context.Context, tx Tx) error {
		done = false
		r, err := tx.LockRule(ctx, ownerID, ruleID)
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if r.NextDueDate.After(now) {
			return nil
		}

		saved, ids, err = post(ctx, tx, r.Template(r.NextDueDate))
		if err != nil {
			return err
		}
		next, err := core.Advance(r.NextDueDate, r.StartDate, r.Frequency, r.Interval)
		if err != nil {
			return err
		}
		if err := tx.SetRuleNextDue(ctx, r.ID, next); err != nil {
			return err
		}
		done = true
		return nil
	})
	if err != nil || !done {
		return false, err
	}

	slog.DebugContext(ctx, "Recurring occurrence materialized",
		"rule_id", ruleID,
		"transaction_id", saved.ID,
		"date", saved.Date.Format("2006-01-02"))
	s.committed(ctx, core.LedgerEvent{
		Kind:          core.EventRuleMaterialized,
		OwnerID:       ownerID,
		TransactionID: saved.ID,
		RuleID:        ruleID,
		AccountIDs:    ids,
	})
	return true, nil
}
