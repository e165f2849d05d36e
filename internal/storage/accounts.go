package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"finledger/internal/core"
)

const accountColumns = "id, owner_id, name, type, initial_balance, current_balance, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func toUnix(t time.Time) int64 {
	return t.UTC().Unix()
}

func fromUnix(s int64) time.Time {
	return time.Unix(s, 0).UTC()
}

func scanAccount(s scanner) (core.Account, error) {
	var (
		a         core.Account
		typ       string
		createdAt int64
	)
	if err := s.Scan(&a.ID, &a.OwnerID, &a.Name, &typ, &a.InitialBalance.Cents, &a.CurrentBalance.Cents, &createdAt); err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(typ)
	a.CreatedAt = fromUnix(createdAt)
	return a, nil
}

func (c conn) GetAccount(ctx context.Context, ownerID, id int64) (core.Account, error) {
	row := c.queryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ? AND owner_id = ?", id, ownerID)
	a, err := scanAccount(row)
	if err != nil {
		return core.Account{}, notFound(err, "account", id)
	}
	return a, nil
}

func (c conn) ListAccounts(ctx context.Context, ownerID int64) ([]core.Account, error) {
	rows, err := c.query(ctx, "SELECT "+accountColumns+" FROM accounts WHERE owner_id = ? ORDER BY created_at, id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []core.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (c conn) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	a.CurrentBalance = a.InitialBalance
	err := c.queryRow(ctx,
		`INSERT INTO accounts (owner_id, name, type, initial_balance, current_balance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		a.OwnerID, a.Name, string(a.Type), a.InitialBalance.Cents, a.CurrentBalance.Cents, toUnix(a.CreatedAt),
	).Scan(&a.ID)
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", classify(err))
	}
	return a, nil
}

func (c conn) LockAccounts(ctx context.Context, ownerID int64, ids ...int64) (map[int64]core.Account, error) {
	locked := make(map[int64]core.Account, len(ids))
	for _, id := range core.AccountIDs(legsFor(ids)) {
		row := c.queryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ? AND owner_id = ?"+c.d.forUpdate, id, ownerID)
		a, err := scanAccount(row)
		if err != nil {
			return nil, notFound(err, "account", id)
		}
		locked[id] = a
	}
	return locked, nil
}

// legsFor lets LockAccounts reuse the ordering and dedup of core.AccountIDs.
func legsFor(ids []int64) []core.Leg {
	legs := make([]core.Leg, len(ids))
	for i, id := range ids {
		legs[i] = core.Leg{AccountID: id}
	}
	return legs
}

func (c conn) ApplyDelta(ctx context.Context, accountID, delta int64) (core.Money, error) {
	var balance int64
	err := c.queryRow(ctx,
		"UPDATE accounts SET current_balance = current_balance + ? WHERE id = ? RETURNING current_balance",
		delta, accountID,
	).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Money{}, core.NotFoundf("account %d", accountID)
		}
		return core.Money{}, fmt.Errorf("apply delta to account %d: %w", accountID, classify(err))
	}
	return core.Money{Cents: balance}, nil
}
