// Package services implements the ledger engine: accounts, categories,
// transactions, transfers, budgets and the recurring scheduler. Every write
// runs as one atomic unit through Store.InTx.
package services

import (
	"context"
	"time"

	"finledger/internal/core"
)

// Reader serves unlocked queries. Results may trail a concurrent write by
// the time it takes to commit.
type Reader interface {
	GetAccount(ctx context.Context, ownerID, id int64) (core.Account, error)
	ListAccounts(ctx context.Context, ownerID int64) ([]core.Account, error)
	ListCategories(ctx context.Context, ownerID int64) ([]core.Category, error)
	GetTransaction(ctx context.Context, ownerID, id int64) (core.Transaction, error)
	// ListTransactions returns one page ordered by date then id, newest
	// first. A page past the end is clamped to the last page.
	ListTransactions(ctx context.Context, ownerID int64, f core.TxFilter, page, limit int) (core.Page[core.Transaction], error)
	// SumAmounts groups the matching transactions by type and category.
	SumAmounts(ctx context.Context, ownerID int64, f core.TxFilter) ([]core.TypeTotal, error)
	// AccountTransactions returns every live transaction that touches the
	// account on either side.
	AccountTransactions(ctx context.Context, ownerID, accountID int64) ([]core.Transaction, error)
	ListBudgets(ctx context.Context, ownerID int64, month, year int) ([]core.Budget, error)
	ListRules(ctx context.Context, ownerID int64) ([]core.RecurringRule, error)
	// DueRules lists rules with next_due_date at or before now. An ownerID
	// of zero selects every owner.
	DueRules(ctx context.Context, ownerID int64, now time.Time) ([]core.RecurringRule, error)
	Ping(ctx context.Context) error
}

// Store is the durable ledger.
type Store interface {
	Reader
	// InTx runs fn as one atomic unit. Returning an error rolls back every
	// change fn made.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx holds the write primitives available inside an atomic unit.
type Tx interface {
	CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
	// LockAccounts locks the owner's accounts in ascending id order and
	// returns them. A missing or foreign account yields core.ErrNotFound.
	LockAccounts(ctx context.Context, ownerID int64, ids ...int64) (map[int64]core.Account, error)
	// ApplyDelta adds delta to the cached balance and returns the result.
	ApplyDelta(ctx context.Context, accountID, delta int64) (core.Money, error)
	AccountTransactions(ctx context.Context, ownerID, accountID int64) ([]core.Transaction, error)

	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	CategoryExists(ctx context.Context, ownerID int64, name string) (bool, error)

	InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	LockTransaction(ctx context.Context, ownerID, id int64) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, ownerID, id int64) error

	UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error)

	CreateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error)
	LockRule(ctx context.Context, ownerID, id int64) (core.RecurringRule, error)
	SetRuleNextDue(ctx context.Context, id int64, next time.Time) error
	DeleteRule(ctx context.Context, ownerID, id int64) error
}

// Publisher announces committed ledger changes.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, ev core.LedgerEvent) error
}

// ResultCache memoizes read results per owner. Get reports the owner's
// current generation along with the lookup; Set stores under the generation
// observed before the value was computed, so a result computed across an
// Invalidate is never served.
type ResultCache interface {
	Get(ctx context.Context, ownerID int64, key string, dst any) (gen int64, ok bool)
	Set(ctx context.Context, ownerID, gen int64, key string, v any)
	Invalidate(ctx context.Context, ownerID int64)
}
