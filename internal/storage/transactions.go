package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"finledger/internal/core"
)

const transactionColumns = "id, owner_id, type, amount, category, description, date, account_id, destination_account_id, recurring_rule_id, created_at"

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t               core.Transaction
		typ             string
		date, createdAt int64
		dest, rule      sql.NullInt64
	)
	if err := s.Scan(&t.ID, &t.OwnerID, &typ, &t.Amount.Cents, &t.Category, &t.Description, &date, &t.AccountID, &dest, &rule, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TxType(typ)
	t.Date = fromUnix(date)
	t.CreatedAt = fromUnix(createdAt)
	if dest.Valid {
		t.DestinationAccountID = &dest.Int64
	}
	if rule.Valid {
		t.RecurringRuleID = &rule.Int64
	}
	return t, nil
}

func nullable(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

// txWhere builds the owner-scoped WHERE clause for a filter. The account
// filter matches either side of a transfer.
func txWhere(ownerID int64, f core.TxFilter) (string, []any) {
	clauses := []string{"owner_id = ?"}
	args := []any{ownerID}
	if !f.From.IsZero() {
		clauses = append(clauses, "date >= ?")
		args = append(args, toUnix(f.From))
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "date <= ?")
		args = append(args, toUnix(f.To))
	}
	if f.AccountID > 0 {
		clauses = append(clauses, "(account_id = ? OR destination_account_id = ?)")
		args = append(args, f.AccountID, f.AccountID)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (c conn) GetTransaction(ctx context.Context, ownerID, id int64) (core.Transaction, error) {
	row := c.queryRow(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND owner_id = ?", id, ownerID)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction", id)
	}
	return t, nil
}

func (c conn) ListTransactions(ctx context.Context, ownerID int64, f core.TxFilter, page, limit int) (core.Page[core.Transaction], error) {
	page, limit = core.NormalizePaging(page, limit)
	where, args := txWhere(ownerID, f)

	var total int
	if err := c.queryRow(ctx, "SELECT COUNT(*) FROM transactions"+where, args...).Scan(&total); err != nil {
		return core.Page[core.Transaction]{}, fmt.Errorf("count transactions: %w", classify(err))
	}

	result := core.Page[core.Transaction]{Data: []core.Transaction{}, Limit: limit, TotalItems: total}
	result.Page, result.TotalPages = core.ClampPage(page, limit, total)
	if total == 0 {
		return result, nil
	}

	offset := (result.Page - 1) * limit
	rows, err := c.query(ctx,
		"SELECT "+transactionColumns+" FROM transactions"+where+" ORDER BY date DESC, id DESC LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return core.Page[core.Transaction]{}, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return core.Page[core.Transaction]{}, fmt.Errorf("scan transaction: %w", err)
		}
		result.Data = append(result.Data, t)
	}
	return result, rows.Err()
}

func (c conn) SumAmounts(ctx context.Context, ownerID int64, f core.TxFilter) ([]core.TypeTotal, error) {
	where, args := txWhere(ownerID, f)
	rows, err := c.query(ctx,
		"SELECT type, category, CAST(COALESCE(SUM(amount), 0) AS BIGINT) FROM transactions"+where+" GROUP BY type, category",
		args...)
	if err != nil {
		return nil, fmt.Errorf("sum transactions: %w", err)
	}
	defer rows.Close()

	var totals []core.TypeTotal
	for rows.Next() {
		var (
			tt  core.TypeTotal
			typ string
		)
		if err := rows.Scan(&typ, &tt.Category, &tt.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan total: %w", err)
		}
		tt.Type = core.TxType(typ)
		totals = append(totals, tt)
	}
	return totals, rows.Err()
}

func (c conn) AccountTransactions(ctx context.Context, ownerID, accountID int64) ([]core.Transaction, error) {
	rows, err := c.query(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE owner_id = ? AND (account_id = ? OR destination_account_id = ?) ORDER BY id",
		ownerID, accountID, accountID)
	if err != nil {
		return nil, fmt.Errorf("list account transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (c conn) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	err := c.queryRow(ctx,
		`INSERT INTO transactions (owner_id, type, amount, category, description, date, account_id, destination_account_id, recurring_rule_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		t.OwnerID, string(t.Type), t.Amount.Cents, t.Category, t.Description, toUnix(t.Date),
		t.AccountID, nullable(t.DestinationAccountID), nullable(t.RecurringRuleID), toUnix(t.CreatedAt),
	).Scan(&t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", classify(err))
	}
	return t, nil
}

func (c conn) LockTransaction(ctx context.Context, ownerID, id int64) (core.Transaction, error) {
	row := c.queryRow(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND owner_id = ?"+c.d.forUpdate, id, ownerID)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction", id)
	}
	return t, nil
}

// UpdateTransaction rewrites the editable fields. Account references are
// immutable and left untouched.
func (c conn) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := c.exec(ctx,
		"UPDATE transactions SET type = ?, amount = ?, category = ?, description = ?, date = ? WHERE id = ? AND owner_id = ?",
		string(t.Type), t.Amount.Cents, t.Category, t.Description, toUnix(t.Date), t.ID, t.OwnerID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return expectOne(res, "transaction", t.ID)
}

func (c conn) DeleteTransaction(ctx context.Context, ownerID, id int64) error {
	res, err := c.exec(ctx, "DELETE FROM transactions WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectOne(res, "transaction", id)
}

func expectOne(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.NotFoundf("%s %d", entity, id)
	}
	return nil
}
