package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"finledger/internal/core"
)

const ruleColumns = "id, owner_id, type, amount, category, description, account_id, destination_account_id, frequency, interval_count, start_date, next_due_date, created_at"

func scanRule(s scanner) (core.RecurringRule, error) {
	var (
		r                      core.RecurringRule
		typ, freq              string
		start, next, createdAt int64
		dest                   sql.NullInt64
	)
	if err := s.Scan(&r.ID, &r.OwnerID, &typ, &r.Amount.Cents, &r.Category, &r.Description, &r.AccountID, &dest,
		&freq, &r.Interval, &start, &next, &createdAt); err != nil {
		return core.RecurringRule{}, err
	}
	r.Type = core.TxType(typ)
	r.Frequency = core.Frequency(freq)
	r.StartDate = fromUnix(start)
	r.NextDueDate = fromUnix(next)
	r.CreatedAt = fromUnix(createdAt)
	if dest.Valid {
		r.DestinationAccountID = &dest.Int64
	}
	return r, nil
}

func (c conn) listRules(ctx context.Context, query string, args ...any) ([]core.RecurringRule, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}
	defer rows.Close()

	rules := []core.RecurringRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (c conn) ListRules(ctx context.Context, ownerID int64) ([]core.RecurringRule, error) {
	return c.listRules(ctx, "SELECT "+ruleColumns+" FROM recurring_rules WHERE owner_id = ? ORDER BY next_due_date, id", ownerID)
}

func (c conn) DueRules(ctx context.Context, ownerID int64, now time.Time) ([]core.RecurringRule, error) {
	if ownerID > 0 {
		return c.listRules(ctx,
			"SELECT "+ruleColumns+" FROM recurring_rules WHERE owner_id = ? AND next_due_date <= ? ORDER BY next_due_date, id",
			ownerID, toUnix(now))
	}
	return c.listRules(ctx,
		"SELECT "+ruleColumns+" FROM recurring_rules WHERE next_due_date <= ? ORDER BY next_due_date, id",
		toUnix(now))
}

func (c conn) CreateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	err := c.queryRow(ctx,
		`INSERT INTO recurring_rules (owner_id, type, amount, category, description, account_id, destination_account_id,
		                              frequency, interval_count, start_date, next_due_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		r.OwnerID, string(r.Type), r.Amount.Cents, r.Category, r.Description, r.AccountID, nullable(r.DestinationAccountID),
		string(r.Frequency), r.Interval, toUnix(r.StartDate), toUnix(r.NextDueDate), toUnix(r.CreatedAt),
	).Scan(&r.ID)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("insert recurring rule: %w", classify(err))
	}
	return r, nil
}

func (c conn) LockRule(ctx context.Context, ownerID, id int64) (core.RecurringRule, error) {
	row := c.queryRow(ctx, "SELECT "+ruleColumns+" FROM recurring_rules WHERE id = ? AND owner_id = ?"+c.d.forUpdate, id, ownerID)
	r, err := scanRule(row)
	if err != nil {
		return core.RecurringRule{}, notFound(err, "recurring rule", id)
	}
	return r, nil
}

func (c conn) SetRuleNextDue(ctx context.Context, id int64, next time.Time) error {
	res, err := c.exec(ctx, "UPDATE recurring_rules SET next_due_date = ? WHERE id = ?", toUnix(next), id)
	if err != nil {
		return fmt.Errorf("advance recurring rule: %w", err)
	}
	return expectOne(res, "recurring rule", id)
}

// DeleteRule removes the rule and detaches the transactions it already
// materialized; those stay in the ledger.
func (c conn) DeleteRule(ctx context.Context, ownerID, id int64) error {
	if _, err := c.exec(ctx, "UPDATE transactions SET recurring_rule_id = NULL WHERE recurring_rule_id = ? AND owner_id = ?", id, ownerID); err != nil {
		return fmt.Errorf("detach materialized transactions: %w", err)
	}
	res, err := c.exec(ctx, "DELETE FROM recurring_rules WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("delete recurring rule: %w", err)
	}
	return expectOne(res, "recurring rule", id)
}
