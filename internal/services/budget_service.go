package services

import (
	"context"
	"sort"
	"strings"

	"finledger/internal/core"
)

// BudgetService stores planned spend per category and month and compares it
// with actual expenses from the ledger.
//
// An amount of zero is an explicit zero budget: the category is planned with
// nothing to spend. A category without a stored row has no budget.
type BudgetService struct {
	base
	ledger *LedgerService
}

// NewBudgetService creates a budget service. Actuals are read through
// ledger so they share its summary cache.
func NewBudgetService(store Store, ledger *LedgerService, opts ...Option) *BudgetService {
	return &BudgetService{base: newBase(store, opts), ledger: ledger}
}

// Upsert sets the budget for (category, month, year). Repeating the call
// with the same key overwrites the amount.
func (s *BudgetService) Upsert(ctx context.Context, ownerID int64, category string, amount core.Money, month, year int) (core.Budget, error) {
	b := core.Budget{OwnerID: ownerID, CategoryName: category, Amount: amount, Month: month, Year: year}
	b.Normalize()
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	var saved core.Budget
	err := s.atomic(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		saved, err = tx.UpsertBudget(ctx, b)
		return err
	})
	return saved, err
}

// List returns the budgets stored for the month, ordered by category.
func (s *BudgetService) List(ctx context.Context, ownerID int64, month, year int) ([]core.Budget, error) {
	if month < 1 || month > 12 {
		return nil, core.ErrInvalidMonth
	}
	return s.store.ListBudgets(ctx, ownerID, month, year)
}

// Actuals returns what the owner spent on category during the month.
func (s *BudgetService) Actuals(ctx context.Context, ownerID int64, category string, month, year int) (core.Money, error) {
	totals, err := s.monthTotals(ctx, ownerID, month, year)
	if err != nil {
		return core.Money{}, err
	}
	return totals[strings.TrimSpace(category)], nil
}

// Report lines up planned and actual amounts for every category that has a
// budget or spending in the month, ordered by category.
func (s *BudgetService) Report(ctx context.Context, ownerID int64, month, year int) ([]core.BudgetLine, error) {
	budgets, err := s.List(ctx, ownerID, month, year)
	if err != nil {
		return nil, err
	}
	actuals, err := s.monthTotals(ctx, ownerID, month, year)
	if err != nil {
		return nil, err
	}

	lines := make(map[string]*core.BudgetLine)
	for _, b := range budgets {
		lines[b.CategoryName] = &core.BudgetLine{Category: b.CategoryName, Planned: b.Amount, HasBudget: true}
	}
	for name, amt := range actuals {
		l, ok := lines[name]
		if !ok {
			l = &core.BudgetLine{Category: name}
			lines[name] = l
		}
		l.Actual = amt
	}

	out := make([]core.BudgetLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *BudgetService) monthTotals(ctx context.Context, ownerID int64, month, year int) (map[string]core.Money, error) {
	if month < 1 || month > 12 {
		return nil, core.ErrInvalidMonth
	}
	from, to := core.MonthBounds(year, month)
	totals, err := s.ledger.SummaryByCategory(ctx, ownerID, core.TxFilter{Period: core.Period{From: from, To: to}})
	if err != nil {
		return nil, err
	}
	out := make(map[string]core.Money, len(totals))
	for _, t := range totals {
		out[t.Category] = t.TotalAmount
	}
	return out, nil
}
