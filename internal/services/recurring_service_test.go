package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"finledger/internal/core"
	"finledger/internal/services"
	"finledger/internal/storage"
)

func TestRecurringScheduler_CatchUpMonthly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acct := f.account(t, owner, "Checking", 0)
	f.category(t, owner, "Rent")

	rule, err := f.recurring.Create(ctx, owner, core.RecurringRule{
		Type:      core.TxExpense,
		Amount:    core.Cents(100000),
		Category:  "Rent",
		AccountID: acct.ID,
		Frequency: core.Monthly,
		StartDate: day(2024, 1, 1),
	})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}
	if rule.Interval != 1 || !rule.NextDueDate.Equal(day(2024, 1, 1)) {
		t.Fatalf("new rule = %+v", rule)
	}

	res, err := f.recurring.CatchUp(ctx, owner, time.Date(2024, 4, 15, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("catch up: %v", err)
	}
	if res.Materialized != 4 || len(res.Failures) != 0 {
		t.Fatalf("pass = %+v, want 4 materialized", res)
	}

	page, err := f.ledger.List(ctx, owner, core.TxFilter{}, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalItems != 4 {
		t.Fatalf("ledger holds %d transactions, want 4", page.TotalItems)
	}
	for i, want := range []time.Time{day(2024, 4, 1), day(2024, 3, 1), day(2024, 2, 1), day(2024, 1, 1)} {
		got := page.Data[i]
		if !got.Date.Equal(want) {
			t.Fatalf("occurrence %d dated %v, want %v", i, got.Date, want)
		}
		if got.RecurringRuleID == nil || *got.RecurringRuleID != rule.ID {
			t.Fatalf("occurrence %d not linked to rule %d", i, rule.ID)
		}
	}
	if got := f.balance(t, owner, acct.ID); got != -400000 {
		t.Fatalf("balance = %d, want -400000", got)
	}

	rules, err := f.recurring.List(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 || !rules[0].NextDueDate.Equal(day(2024, 5, 1)) {
		t.Fatalf("next due = %v, want 2024-05-01", rules[0].NextDueDate)
	}

	again, err := f.recurring.CatchUp(ctx, owner, time.Date(2024, 4, 15, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if again.Materialized != 0 {
		t.Fatalf("second pass materialized %d occurrences", again.Materialized)
	}
	f.mustConsistent(t, owner, acct.ID)
}

func TestRecurringScheduler_ClampsEndOfMonth(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acct := f.account(t, owner, "Checking", 0)

	if _, err := f.recurring.Create(ctx, owner, core.RecurringRule{
		Type:      core.TxIncome,
		Amount:    core.Cents(500),
		AccountID: acct.ID,
		Frequency: core.Monthly,
		StartDate: day(2024, 1, 31),
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.recurring.ProcessDue(ctx, day(2024, 3, 31)); err != nil {
		t.Fatal(err)
	}
	page, err := f.ledger.List(ctx, owner, core.TxFilter{}, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []time.Time{day(2024, 3, 31), day(2024, 2, 29), day(2024, 1, 31)}
	if len(page.Data) != len(want) {
		t.Fatalf("got %d occurrences, want %d", len(page.Data), len(want))
	}
	for i := range want {
		if !page.Data[i].Date.Equal(want[i]) {
			t.Fatalf("occurrence %d = %v, want %v", i, page.Data[i].Date, want[i])
		}
	}
}

func TestRecurringScheduler_CatchUpLimit(t *testing.T) {
	ctx := context.Background()
	store, err := storage.OpenSQLite(ctx, t.TempDir()+"/ledger.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	accounts := services.NewAccountService(store)
	acct, err := accounts.Create(ctx, owner, "A", core.AccountCash, core.Cents(0))
	if err != nil {
		t.Fatal(err)
	}
	sched := services.NewRecurringScheduler(store, 5)
	rule, err := sched.Create(ctx, owner, core.RecurringRule{
		Type:      core.TxIncome,
		Amount:    core.Cents(1),
		AccountID: acct.ID,
		Frequency: core.Daily,
		StartDate: day(2024, 1, 1),
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := sched.ProcessDue(ctx, day(2024, 1, 10))
	if err != nil {
		t.Fatal(err)
	}
	if res.Materialized != 0 || len(res.Failures) != 1 {
		t.Fatalf("pass = %+v, want one rejected rule", res)
	}
	if f := res.Failures[0]; f.RuleID != rule.ID || !errors.Is(f.Err, core.ErrCatchUpLimit) {
		t.Fatalf("failure = %+v", f)
	}

	res, err = sched.ProcessDue(ctx, day(2024, 1, 5))
	if err != nil {
		t.Fatal(err)
	}
	if res.Materialized != 5 {
		t.Fatalf("within the limit materialized %d, want 5", res.Materialized)
	}
}

func TestRecurringScheduler_TransferRuleAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t, owner, "Checking", 10000)
	b := f.account(t, owner, "Savings", 0)

	rule, err := f.recurring.Create(ctx, owner, core.RecurringRule{
		Type:                 core.TxTransfer,
		Amount:               core.Cents(1000),
		AccountID:            a.ID,
		DestinationAccountID: ptr(b.ID),
		Frequency:            core.Weekly,
		Interval:             2,
		StartDate:            day(2024, 1, 1),
	})
	if err != nil {
		t.Fatal(err)
	}
	if rule.Category != core.TransferCategory {
		t.Fatalf("transfer rule category = %q", rule.Category)
	}

	if _, err := f.recurring.ProcessDue(ctx, day(2024, 1, 29)); err != nil {
		t.Fatal(err)
	}
	// Jan 1, 15, 29
	if f.balance(t, owner, a.ID) != 7000 || f.balance(t, owner, b.ID) != 3000 {
		t.Fatalf("balances = %d/%d", f.balance(t, owner, a.ID), f.balance(t, owner, b.ID))
	}

	if err := f.recurring.Delete(ctx, owner, rule.ID); err != nil {
		t.Fatal(err)
	}
	page, err := f.ledger.List(ctx, owner, core.TxFilter{AccountID: b.ID}, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalItems != 3 {
		t.Fatalf("materialized transfers after rule delete = %d, want 3", page.TotalItems)
	}
	for _, tx := range page.Data {
		if tx.RecurringRuleID != nil {
			t.Fatalf("transaction %d still linked to deleted rule", tx.ID)
		}
	}
	if err := f.recurring.Delete(ctx, owner, rule.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete = %v, want not found", err)
	}
}

func TestRecurringScheduler_CreateRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acct := f.account(t, owner, "A", 0)
	other := f.account(t, 2, "B", 0)

	tests := []struct {
		name string
		rule core.RecurringRule
		want error
	}{
		{"unknown frequency", core.RecurringRule{Type: core.TxIncome, Amount: core.Cents(1), AccountID: acct.ID, Frequency: "hourly", StartDate: day(2024, 1, 1)}, core.ErrValidation},
		{"negative interval", core.RecurringRule{Type: core.TxIncome, Amount: core.Cents(1), AccountID: acct.ID, Frequency: core.Daily, Interval: -1, StartDate: day(2024, 1, 1)}, core.ErrValidation},
		{"expense without category", core.RecurringRule{Type: core.TxExpense, Amount: core.Cents(1), Category: "Ghost", AccountID: acct.ID, Frequency: core.Daily, StartDate: day(2024, 1, 1)}, core.ErrUnknownCategory},
		{"foreign account", core.RecurringRule{Type: core.TxIncome, Amount: core.Cents(1), AccountID: other.ID, Frequency: core.Daily, StartDate: day(2024, 1, 1)}, core.ErrUnknownAccount},
		{"missing start", core.RecurringRule{Type: core.TxIncome, Amount: core.Cents(1), AccountID: acct.ID, Frequency: core.Daily}, core.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.recurring.Create(ctx, owner, tt.rule); !errors.Is(err, tt.want) {
				t.Fatalf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRecurringScheduler_ConcurrentPasses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, services.WithRetryPolicy(services.RetryPolicy{
		Attempts:  20,
		BaseDelay: time.Millisecond,
		MaxDelay:  20 * time.Millisecond,
	}))
	acct := f.account(t, owner, "Checking", 0)
	f.category(t, owner, "Food")

	if _, err := f.recurring.Create(ctx, owner, core.RecurringRule{
		Type:      core.TxIncome,
		Amount:    core.Cents(100),
		AccountID: acct.ID,
		Frequency: core.Daily,
		StartDate: day(2024, 1, 1),
	}); err != nil {
		t.Fatal(err)
	}

	const (
		passes  = 6
		manual  = 10
		wantDue = 61 // Jan 1 through Mar 1, 2024
	)
	now := day(2024, 3, 1)
	results := make([]services.PassResult, passes)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < passes; i++ {
		g.Go(func() error {
			res, err := f.recurring.ProcessDue(gctx, now)
			results[i] = res
			return err
		})
	}
	for i := 0; i < manual; i++ {
		g.Go(func() error {
			_, err := f.ledger.Create(gctx, owner, core.Transaction{
				Type:      core.TxExpense,
				Amount:    core.Cents(50),
				Category:  "Food",
				AccountID: acct.ID,
				Date:      day(2024, 2, 1),
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent writers: %v", err)
	}

	// anything a pass gave up on is picked up by the next one
	final, err := f.recurring.ProcessDue(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	total := final.Materialized
	for _, res := range results {
		total += res.Materialized
	}
	if total != wantDue {
		t.Fatalf("passes materialized %d occurrences, want %d", total, wantDue)
	}

	page, err := f.ledger.List(ctx, owner, core.TxFilter{}, 1, 100)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalItems != wantDue+manual {
		t.Fatalf("ledger holds %d transactions, want %d", page.TotalItems, wantDue+manual)
	}
	occurrences := 0
	for _, tx := range page.Data {
		if tx.RecurringRuleID != nil {
			occurrences++
		}
	}
	if occurrences != wantDue {
		t.Fatalf("ledger holds %d occurrences, want %d", occurrences, wantDue)
	}
	if got, want := f.balance(t, owner, acct.ID), int64(wantDue*100-manual*50); got != want {
		t.Fatalf("balance = %d, want %d", got, want)
	}
	f.mustConsistent(t, owner, acct.ID)
}

// cancelAfterCommits cancels the running pass once n atomic units committed.
type cancelAfterCommits struct {
	services.Store
	n      int
	cancel context.CancelFunc
}

func (s *cancelAfterCommits) InTx(ctx context.Context, fn func(ctx context.Context, tx services.Tx) error) error {
	err := s.Store.InTx(ctx, fn)
	if err == nil {
		s.n--
		if s.n == 0 {
			s.cancel()
		}
	}
	return err
}

func TestRecurringScheduler_InterruptedPassKeepsNextDueInStep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acct := f.account(t, owner, "Checking", 0)

	rule, err := f.recurring.Create(ctx, owner, core.RecurringRule{
		Type:      core.TxIncome,
		Amount:    core.Cents(1000),
		AccountID: acct.ID,
		Frequency: core.Weekly,
		StartDate: day(2024, 1, 1),
	})
	if err != nil {
		t.Fatal(err)
	}

	const committed = 3
	passCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sched := services.NewRecurringScheduler(&cancelAfterCommits{Store: f.store, n: committed, cancel: cancel}, 0)

	// nine weekly occurrences are due by Mar 1
	res, err := sched.ProcessDue(passCtx, day(2024, 3, 1))
	if err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	if res.Materialized != committed {
		t.Fatalf("materialized %d before the cancel, want %d", res.Materialized, committed)
	}
	if len(res.Failures) != 1 || !errors.Is(res.Failures[0].Err, context.Canceled) {
		t.Fatalf("failures = %+v, want one cancelled rule", res.Failures)
	}

	want := rule.StartDate
	for i := 0; i < committed; i++ {
		if want, err = core.Advance(want, rule.StartDate, rule.Frequency, rule.Interval); err != nil {
			t.Fatal(err)
		}
	}
	rules, err := f.recurring.List(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if !rules[0].NextDueDate.Equal(want) {
		t.Fatalf("next due = %v, want %v", rules[0].NextDueDate, want)
	}
	page, err := f.ledger.List(ctx, owner, core.TxFilter{}, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalItems != committed {
		t.Fatalf("ledger holds %d occurrences, want %d", page.TotalItems, committed)
	}
	f.mustConsistent(t, owner, acct.ID)

	resumed, err := f.recurring.ProcessDue(ctx, day(2024, 3, 1))
	if err != nil {
		t.Fatal(err)
	}
	if resumed.Materialized != 9-committed {
		t.Fatalf("resumed pass materialized %d, want %d", resumed.Materialized, 9-committed)
	}
	if got := f.balance(t, owner, acct.ID); got != 9000 {
		t.Fatalf("balance = %d, want 9000", got)
	}
}
