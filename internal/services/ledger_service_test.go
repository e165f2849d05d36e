package services_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"finledger/internal/cache"
	"finledger/internal/core"
	"finledger/internal/services"
)

func TestLedgerService_BalanceFollowsWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acct := f.account(t, owner, "Checking", 0)
	f.category(t, owner, "Food")

	if _, err := f.ledger.Create(ctx, owner, core.Transaction{Type: core.TxIncome, Amount: core.Cents(10000), Date: day(2024, 3, 1), AccountID: acct.ID}); err != nil {
		t.Fatalf("create income: %v", err)
	}
	exp, err := f.ledger.Create(ctx, owner, core.Transaction{Type: core.TxExpense, Amount: core.Cents(3000), Category: "Food", Date: day(2024, 3, 2), AccountID: acct.ID})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if got := f.balance(t, owner, acct.ID); got != 7000 {
		t.Fatalf("balance after create = %d, want 7000", got)
	}

	amount := core.Cents(5000)
	if _, err := f.ledger.Update(ctx, owner, exp.ID, services.TransactionPatch{Amount: &amount}); err != nil {
		t.Fatalf("update amount: %v", err)
	}
	if got := f.balance(t, owner, acct.ID); got != 5000 {
		t.Fatalf("balance after amount edit = %d, want 5000", got)
	}

	income := core.TxIncome
	updated, err := f.ledger.Update(ctx, owner, exp.ID, services.TransactionPatch{Type: &income})
	if err != nil {
		t.Fatalf("update type: %v", err)
	}
	if updated.Type != core.TxIncome {
		t.Fatalf("type = %q, want income", updated.Type)
	}
	if got := f.balance(t, owner, acct.ID); got != 15000 {
		t.Fatalf("balance after type edit = %d, want 15000", got)
	}

	if err := f.ledger.Delete(ctx, owner, exp.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := f.balance(t, owner, acct.ID); got != 10000 {
		t.Fatalf("balance after delete = %d, want 10000", got)
	}
	if _, err := f.ledger.Get(ctx, owner, exp.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("deleted transaction still readable: %v", err)
	}
	f.mustConsistent(t, owner, acct.ID)
}

func TestLedgerService_AmountRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acct := f.account(t, owner, "Wallet", 0)

	created, err := f.ledger.Create(ctx, owner, core.Transaction{Type: core.TxIncome, Amount: core.Cents(12345), Date: day(2024, 1, 15), AccountID: acct.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := f.ledger.Get(ctx, owner, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cents != 12345 {
		t.Fatalf("amount = %d, want 12345", got.Amount.Cents)
	}
	if got.Category != core.IncomeCategory {
		t.Fatalf("category = %q, want %q", got.Category, core.IncomeCategory)
	}
}

func TestLedgerService_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t, owner, "A", 1000)
	b := f.account(t, owner, "B", 0)
	other := f.account(t, 2, "Other", 0)

	tests := []struct {
		name string
		tx   core.Transaction
		want error
	}{
		{"zero amount", core.Transaction{Type: core.TxIncome, Amount: core.Cents(0), Date: day(2024, 1, 1), AccountID: a.ID}, core.ErrValidation},
		{"missing date", core.Transaction{Type: core.TxIncome, Amount: core.Cents(1), AccountID: a.ID}, core.ErrValidation},
		{"unknown category", core.Transaction{Type: core.TxExpense, Amount: core.Cents(1), Category: "Nope", Date: day(2024, 1, 1), AccountID: a.ID}, core.ErrUnknownCategory},
		{"unknown account", core.Transaction{Type: core.TxIncome, Amount: core.Cents(1), Date: day(2024, 1, 1), AccountID: 9999}, core.ErrUnknownAccount},
		{"account of another owner", core.Transaction{Type: core.TxIncome, Amount: core.Cents(1), Date: day(2024, 1, 1), AccountID: other.ID}, core.ErrUnknownAccount},
		{"transfer through ledger", core.Transaction{Type: core.TxTransfer, Amount: core.Cents(1), Date: day(2024, 1, 1), AccountID: a.ID, DestinationAccountID: ptr(b.ID)}, core.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Create(ctx, owner, tt.tx)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Create() error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, core.ErrValidation) {
				t.Fatalf("error %v is not a validation error", err)
			}
		})
	}

	if got := f.balance(t, owner, a.ID); got != 1000 {
		t.Fatalf("rejected writes moved the balance to %d", got)
	}
}

func TestLedgerService_OwnerIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acct := f.account(t, owner, "Mine", 0)
	tx, err := f.ledger.Create(ctx, owner, core.Transaction{Type: core.TxIncome, Amount: core.Cents(100), Date: day(2024, 2, 1), AccountID: acct.ID})
	if err != nil {
		t.Fatal(err)
	}

	const intruder int64 = 2
	if _, err := f.ledger.Get(ctx, intruder, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Get by other owner = %v, want not found", err)
	}
	amount := core.Cents(1)
	if _, err := f.ledger.Update(ctx, intruder, tx.ID, services.TransactionPatch{Amount: &amount}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Update by other owner = %v, want not found", err)
	}
	if err := f.ledger.Delete(ctx, intruder, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Delete by other owner = %v, want not found", err)
	}
	if _, err := f.accounts.Get(ctx, intruder, acct.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("account visible to other owner: %v", err)
	}
	page, err := f.ledger.List(ctx, intruder, core.TxFilter{}, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalItems != 0 {
		t.Fatalf("other owner sees %d transactions", page.TotalItems)
	}
}

func TestLedgerService_Summary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t, owner, "A", 0)
	b := f.account(t, owner, "B", 0)
	f.category(t, owner, "Food")
	f.category(t, owner, "Rent")

	mustCreate := func(tx core.Transaction) {
		t.Helper()
		if _, err := f.ledger.Create(ctx, owner, tx); err != nil {
			t.Fatalf("create %v: %v", tx.Type, err)
		}
	}
	mustCreate(core.Transaction{Type: core.TxIncome, Amount: core.Cents(10000), Date: day(2024, 5, 1), AccountID: a.ID})
	mustCreate(core.Transaction{Type: core.TxExpense, Amount: core.Cents(1000), Category: "Food", Date: day(2024, 5, 2), AccountID: a.ID})
	mustCreate(core.Transaction{Type: core.TxExpense, Amount: core.Cents(2000), Category: "Rent", Date: day(2024, 5, 3), AccountID: a.ID})
	if _, err := f.transfers.Create(ctx, owner, services.TransferRequest{Amount: core.Cents(5000), Date: day(2024, 5, 4), AccountID: a.ID, DestinationAccountID: b.ID}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	sum, err := f.ledger.Summary(ctx, owner, core.TxFilter{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalIncome.Cents != 10000 || sum.TotalExpense.Cents != 3000 || sum.NetBalance.Cents != 7000 {
		t.Fatalf("summary = %+v, want 10000/3000/7000", sum)
	}

	byCat, err := f.ledger.SummaryByCategory(ctx, owner, core.TxFilter{})
	if err != nil {
		t.Fatalf("summary by category: %v", err)
	}
	if len(byCat) != 2 || byCat[0].Category != "Rent" || byCat[1].Category != "Food" {
		t.Fatalf("summary by category = %+v, want Rent then Food", byCat)
	}

	onlyB, err := f.ledger.Summary(ctx, owner, core.TxFilter{AccountID: b.ID})
	if err != nil {
		t.Fatal(err)
	}
	if onlyB != (core.Summary{}) {
		t.Fatalf("account with only a transfer has summary %+v", onlyB)
	}

	window := core.TxFilter{Period: core.Period{From: day(2024, 5, 2), To: core.EndOfDay(day(2024, 5, 2))}}
	sum, err = f.ledger.Summary(ctx, owner, window)
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalIncome.Cents != 0 || sum.TotalExpense.Cents != 1000 {
		t.Fatalf("windowed summary = %+v, want only the food expense", sum)
	}
}

func TestLedgerService_PaginationClampsAfterDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acct := f.account(t, owner, "A", 0)

	var ids []int64
	for i := 0; i < 26; i++ {
		tx, err := f.ledger.Create(ctx, owner, core.Transaction{Type: core.TxIncome, Amount: core.Cents(int64(i + 1)), Date: day(2024, 1, 1).AddDate(0, 0, i), AccountID: acct.ID})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, tx.ID)
	}

	page, err := f.ledger.List(ctx, owner, core.TxFilter{}, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if page.Page != 2 || page.TotalPages != 2 || len(page.Data) != 1 || page.Limit != core.DefaultPageSize {
		t.Fatalf("page 2 = page %d of %d with %d rows", page.Page, page.TotalPages, len(page.Data))
	}
	if page.Data[0].ID != ids[0] {
		t.Fatalf("oldest transaction should be last, got %d", page.Data[0].ID)
	}

	if err := f.ledger.Delete(ctx, owner, ids[0]); err != nil {
		t.Fatal(err)
	}
	page, err = f.ledger.List(ctx, owner, core.TxFilter{}, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if page.Page != 1 || page.TotalPages != 1 || len(page.Data) != 25 || page.TotalItems != 25 {
		t.Fatalf("after delete: page %d of %d, %d rows, total %d", page.Page, page.TotalPages, len(page.Data), page.TotalItems)
	}
	if page.Data[0].ID != ids[25] {
		t.Fatalf("newest transaction should be first, got %d", page.Data[0].ID)
	}

	empty, err := f.ledger.List(ctx, 42, core.TxFilter{}, 3, 500)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Page != 1 || empty.TotalPages != 0 || empty.Limit != core.MaxPageSize || empty.Data == nil {
		t.Fatalf("empty page = %+v", empty)
	}
}

func TestLedgerService_RandomHistoryReplays(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	faker := gofakeit.New(7)
	f.category(t, owner, "Food")
	f.category(t, owner, "Travel")

	accts := []core.Account{
		f.account(t, owner, "A", 50000),
		f.account(t, owner, "B", 0),
		f.account(t, owner, "C", 1234),
	}
	pick := func() core.Account { return accts[faker.IntRange(0, len(accts)-1)] }

	var live []core.Transaction
	for i := 0; i < 120; i++ {
		date := day(2024, 1, 1).AddDate(0, 0, faker.IntRange(0, 365))
		amount := core.Cents(int64(faker.IntRange(1, 20000)))
		switch op := faker.IntRange(0, 4); op {
		case 0:
			tx, err := f.ledger.Create(ctx, owner, core.Transaction{Type: core.TxIncome, Amount: amount, Description: faker.Sentence(3), Date: date, AccountID: pick().ID})
			if err != nil {
				t.Fatalf("op %d income: %v", i, err)
			}
			live = append(live, tx)
		case 1:
			cat := faker.RandomString([]string{"Food", "Travel"})
			tx, err := f.ledger.Create(ctx, owner, core.Transaction{Type: core.TxExpense, Amount: amount, Category: cat, Date: date, AccountID: pick().ID})
			if err != nil {
				t.Fatalf("op %d expense: %v", i, err)
			}
			live = append(live, tx)
		case 2:
			src, dst := pick(), pick()
			if src.ID == dst.ID {
				continue
			}
			tx, err := f.transfers.Create(ctx, owner, services.TransferRequest{Amount: amount, Date: date, AccountID: src.ID, DestinationAccountID: dst.ID})
			if err != nil {
				t.Fatalf("op %d transfer: %v", i, err)
			}
			live = append(live, tx)
		case 3:
			if len(live) == 0 {
				continue
			}
			tx := live[faker.IntRange(0, len(live)-1)]
			_, err := f.ledger.Update(ctx, owner, tx.ID, services.TransactionPatch{Amount: &amount})
			if tx.Type == core.TxTransfer {
				if !errors.Is(err, core.ErrTransferEdit) {
					t.Fatalf("op %d transfer edit: %v", i, err)
				}
				continue
			}
			if err != nil {
				t.Fatalf("op %d update: %v", i, err)
			}
		case 4:
			if len(live) == 0 {
				continue
			}
			idx := faker.IntRange(0, len(live)-1)
			if err := f.ledger.Delete(ctx, owner, live[idx].ID); err != nil {
				t.Fatalf("op %d delete: %v", i, err)
			}
			live = append(live[:idx], live[idx+1:]...)
		}
	}

	for _, a := range accts {
		f.mustConsistent(t, owner, a.ID)
	}
}

func TestLedgerService_CachedSummaryFollowsWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, services.WithCache(cache.NewOwnerCache(64, time.Minute)))
	acct := f.account(t, owner, "A", 0)

	tx, err := f.ledger.Create(ctx, owner, core.Transaction{Type: core.TxIncome, Amount: core.Cents(700), Date: day(2024, 7, 1), AccountID: acct.ID})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		sum, err := f.ledger.Summary(ctx, owner, core.TxFilter{})
		if err != nil {
			t.Fatal(err)
		}
		if sum.TotalIncome.Cents != 700 {
			t.Fatalf("read %d: income = %d, want 700", i, sum.TotalIncome.Cents)
		}
	}

	if err := f.ledger.Delete(ctx, owner, tx.ID); err != nil {
		t.Fatal(err)
	}
	sum, err := f.ledger.Summary(ctx, owner, core.TxFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalIncome.Cents != 0 {
		t.Fatalf("summary served from a stale cache: %+v", sum)
	}
}

func TestLedgerService_WriteLogsCarryTransactionFields(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := context.Background()
	f := newFixture(t)
	acct := f.account(t, owner, "Checking", 0)

	tx, err := f.ledger.Create(ctx, owner, core.Transaction{
		Type:      core.TxIncome,
		Amount:    core.Cents(4200),
		AccountID: acct.ID,
		Date:      day(2024, 5, 1),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.Delete(ctx, owner, tx.ID); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	find := func(msg string) string {
		for _, l := range lines {
			if strings.Contains(l, msg) {
				return l
			}
		}
		t.Fatalf("no %q log line in:\n%s", msg, buf.String())
		return ""
	}
	for msg, op := range map[string]string{
		"Transaction created": "operation=create",
		"Transaction deleted": "operation=delete",
	} {
		line := find(msg)
		for _, want := range []string{op, "owner_id=1", "type=income", "amount_cents=4200", "transaction_id="} {
			if !strings.Contains(line, want) {
				t.Fatalf("%s log missing %s: %s", msg, want, line)
			}
		}
	}
}

func TestLedgerService_BalanceOverflowIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rich := f.account(t, owner, "Vault", math.MaxInt64-100)
	poor := f.account(t, owner, "Debt", math.MinInt64+100)

	tests := []struct {
		name string
		tx   core.Transaction
	}{
		{"income past the maximum", core.Transaction{Type: core.TxIncome, Amount: core.Cents(500), AccountID: rich.ID, Date: day(2024, 1, 2)}},
		{"expense past the minimum", core.Transaction{Type: core.TxExpense, Amount: core.Cents(500), Category: "Food", AccountID: poor.ID, Date: day(2024, 1, 2)}},
	}
	f.category(t, owner, "Food")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.ledger.Create(ctx, owner, tt.tx); !errors.Is(err, core.ErrBalanceOverflow) || !errors.Is(err, core.ErrValidation) {
				t.Fatalf("Create() error = %v, want balance overflow", err)
			}
		})
	}

	if got := f.balance(t, owner, rich.ID); got != math.MaxInt64-100 {
		t.Fatalf("balance moved to %d after a rejected write", got)
	}
	if got := f.balance(t, owner, poor.ID); got != math.MinInt64+100 {
		t.Fatalf("balance moved to %d after a rejected write", got)
	}
	page, err := f.ledger.List(ctx, owner, core.TxFilter{}, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalItems != 0 {
		t.Fatalf("rejected writes left %d transactions", page.TotalItems)
	}

	if _, err := f.ledger.Create(ctx, owner, core.Transaction{Type: core.TxIncome, Amount: core.Cents(core.MaxCents + 1), AccountID: rich.ID, Date: day(2024, 1, 2)}); !errors.Is(err, core.ErrAmountTooLarge) {
		t.Fatalf("oversized amount: got %v", err)
	}
}
