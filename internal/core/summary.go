package core

import (
	"sort"
	"time"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// Summary holds income and expense totals for a period. Transfers never
// contribute.
type Summary struct {
	TotalIncome  Money `json:"total_income"`
	TotalExpense Money `json:"total_expense"`
	NetBalance   Money `json:"net_balance"`
}

// Add accumulates amount under the bucket of t.
func (s *Summary) Add(t TxType, amount Money) error {
	b, err := t.Bucket()
	if err != nil {
		return err
	}
	switch b {
	case BucketIncome:
		s.TotalIncome = s.TotalIncome.Add(amount)
	case BucketExpense:
		s.TotalExpense = s.TotalExpense.Add(amount)
	case BucketNone:
	}
	s.NetBalance = s.TotalIncome.Sub(s.TotalExpense)
	return nil
}

// TypeTotal is a stored sum of transaction amounts grouped by type and
// category.
type TypeTotal struct {
	Type     TxType
	Category string
	Amount   Money
}

// CategoryTotal is the expense total of one category.
type CategoryTotal struct {
	Category    string `json:"category"`
	TotalAmount Money  `json:"total_amount"`
}

// SortCategoryTotals orders totals by amount descending, then name.
func SortCategoryTotals(totals []CategoryTotal) {
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].TotalAmount.Cents != totals[j].TotalAmount.Cents {
			return totals[i].TotalAmount.Cents > totals[j].TotalAmount.Cents
		}
		return totals[i].Category < totals[j].Category
	})
}

// BudgetLine compares the planned amount of a category with its actual
// spending in one month.
type BudgetLine struct {
	Category  string `json:"category"`
	Planned   Money  `json:"planned"`
	Actual    Money  `json:"actual"`
	HasBudget bool   `json:"has_budget"`
}

// Period bounds a query by date; zero values leave that side open.
type Period struct {
	From time.Time
	To   time.Time
}

// TxFilter narrows transaction lists and summaries.
type TxFilter struct {
	Period
	AccountID int64
}

// Page is one page of an ordered result.
type Page[T any] struct {
	Data       []T `json:"data"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NormalizePaging applies defaults and bounds to caller supplied paging.
func NormalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

// ClampPage returns the number of pages for total items and the requested
// page moved onto the last page when it is out of range.
func ClampPage(page, limit, total int) (int, int) {
	if total == 0 {
		return 1, 0
	}
	pages := (total + limit - 1) / limit
	if page > pages {
		page = pages
	}
	return page, pages
}
