package storage

import (
	"context"
	"fmt"
	"time"

	"finledger/internal/core"
)

func (c conn) ListBudgets(ctx context.Context, ownerID int64, month, year int) ([]core.Budget, error) {
	rows, err := c.query(ctx,
		`SELECT id, owner_id, category_name, month, year, amount, created_at
		 FROM budgets WHERE owner_id = ? AND month = ? AND year = ? ORDER BY category_name`,
		ownerID, month, year)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	budgets := []core.Budget{}
	for rows.Next() {
		var (
			b         core.Budget
			createdAt int64
		)
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.CategoryName, &b.Month, &b.Year, &b.Amount.Cents, &createdAt); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.CreatedAt = fromUnix(createdAt)
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// UpsertBudget sets the planned amount for (owner, category, month, year),
// replacing any previous value for that key.
func (c conn) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	var createdAt int64
	err := c.queryRow(ctx,
		`INSERT INTO budgets (owner_id, category_name, month, year, amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (owner_id, category_name, month, year) DO UPDATE SET amount = excluded.amount
		 RETURNING id, created_at`,
		b.OwnerID, b.CategoryName, b.Month, b.Year, b.Amount.Cents, toUnix(b.CreatedAt),
	).Scan(&b.ID, &createdAt)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", classify(err))
	}
	b.CreatedAt = fromUnix(createdAt)
	return b, nil
}
