package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finledger/internal/core"
)

func (c conn) ListCategories(ctx context.Context, ownerID int64) ([]core.Category, error) {
	rows, err := c.query(ctx, "SELECT id, owner_id, name, created_at FROM categories WHERE owner_id = ? ORDER BY name, id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []core.Category{}
	for rows.Next() {
		var (
			cat       core.Category
			createdAt int64
		)
		if err := rows.Scan(&cat.ID, &cat.OwnerID, &cat.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cat.CreatedAt = fromUnix(createdAt)
		categories = append(categories, cat)
	}
	return categories, rows.Err()
}

func (c conn) CreateCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	if cat.CreatedAt.IsZero() {
		cat.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	err := c.queryRow(ctx,
		"INSERT INTO categories (owner_id, name, created_at) VALUES (?, ?, ?) RETURNING id",
		cat.OwnerID, cat.Name, toUnix(cat.CreatedAt),
	).Scan(&cat.ID)
	if err != nil {
		err = classify(err)
		if errors.Is(err, core.ErrConflict) {
			return core.Category{}, fmt.Errorf("%w: category %q", core.ErrConflict, cat.Name)
		}
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return cat, nil
}

func (c conn) CategoryExists(ctx context.Context, ownerID int64, name string) (bool, error) {
	var n int
	if err := c.queryRow(ctx, "SELECT COUNT(*) FROM categories WHERE owner_id = ? AND name = ?", ownerID, name).Scan(&n); err != nil {
		return false, fmt.Errorf("check category: %w", classify(err))
	}
	return n > 0, nil
}
