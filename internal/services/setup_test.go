package services_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"finledger/internal/core"
	"finledger/internal/services"
	"finledger/internal/storage"
)

const owner int64 = 1

type ledgerFixture struct {
	store      *storage.Repository
	accounts   *services.AccountService
	categories *services.CategoryService
	ledger     *services.LedgerService
	transfers  *services.TransferService
	budgets    *services.BudgetService
	recurring  *services.RecurringScheduler
}

func newFixture(t *testing.T, opts ...services.Option) *ledgerFixture {
	t.Helper()
	store, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ledger := services.NewLedgerService(store, opts...)
	return &ledgerFixture{
		store:      store,
		accounts:   services.NewAccountService(store, opts...),
		categories: services.NewCategoryService(store, opts...),
		ledger:     ledger,
		transfers:  services.NewTransferService(store, opts...),
		budgets:    services.NewBudgetService(store, ledger, opts...),
		recurring:  services.NewRecurringScheduler(store, 0, opts...),
	}
}

func (f *ledgerFixture) account(t *testing.T, ownerID int64, name string, initial int64) core.Account {
	t.Helper()
	a, err := f.accounts.Create(context.Background(), ownerID, name, core.AccountBank, core.Cents(initial))
	if err != nil {
		t.Fatalf("create account %q: %v", name, err)
	}
	return a
}

func (f *ledgerFixture) category(t *testing.T, ownerID int64, name string) {
	t.Helper()
	if _, err := f.categories.Create(context.Background(), ownerID, name); err != nil {
		t.Fatalf("create category %q: %v", name, err)
	}
}

func (f *ledgerFixture) balance(t *testing.T, ownerID, id int64) int64 {
	t.Helper()
	a, err := f.accounts.Get(context.Background(), ownerID, id)
	if err != nil {
		t.Fatalf("get account %d: %v", id, err)
	}
	return a.CurrentBalance.Cents
}

func (f *ledgerFixture) mustConsistent(t *testing.T, ownerID, id int64) {
	t.Helper()
	check, err := f.accounts.Verify(context.Background(), ownerID, id)
	if err != nil {
		t.Fatalf("verify account %d: %v", id, err)
	}
	if !check.Consistent() {
		t.Fatalf("account %d drifted: stored %d, replayed %d", id, check.Stored.Cents, check.Replayed.Cents)
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(v int64) *int64 { return &v }
