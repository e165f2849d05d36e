package core

import (
	"strings"
	"time"
)

const (
	AccountBank    AccountType = "bank"
	AccountCash    AccountType = "cash"
	AccountEWallet AccountType = "e-wallet"
	AccountCredit  AccountType = "credit"
	AccountOther   AccountType = "other"
)

const (
	TxIncome   TxType = "income"
	TxExpense  TxType = "expense"
	TxTransfer TxType = "transfer"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	// IncomeCategory is assigned to income without an explicit category.
	IncomeCategory = "Income"
	// TransferCategory is the fixed category of every transfer.
	TransferCategory = "Transfer"

	maxNameLength        = 100
	maxDescriptionLength = 500
)

type (
	AccountType string
	TxType      string
	Frequency   string

	Account struct {
		ID             int64       `json:"id"`
		OwnerID        int64       `json:"owner_id"`
		Name           string      `json:"name"`
		Type           AccountType `json:"type"`
		InitialBalance Money       `json:"initial_balance"`
		CurrentBalance Money       `json:"current_balance"`
		CreatedAt      time.Time   `json:"created_at"`
	}

	Category struct {
		ID        int64     `json:"id"`
		OwnerID   int64     `json:"owner_id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	}

	Transaction struct {
		ID                   int64     `json:"id"`
		OwnerID              int64     `json:"owner_id"`
		Type                 TxType    `json:"type"`
		Amount               Money     `json:"amount"`
		Category             string    `json:"category"`
		Description          string    `json:"description"`
		Date                 time.Time `json:"date"`
		AccountID            int64     `json:"account_id"`
		DestinationAccountID *int64    `json:"destination_account_id,omitempty"`
		RecurringRuleID      *int64    `json:"recurring_rule_id,omitempty"`
		CreatedAt            time.Time `json:"created_at"`
	}

	RecurringRule struct {
		ID                   int64     `json:"id"`
		OwnerID              int64     `json:"owner_id"`
		Type                 TxType    `json:"type"`
		Amount               Money     `json:"amount"`
		Category             string    `json:"category"`
		Description          string    `json:"description"`
		AccountID            int64     `json:"account_id"`
		DestinationAccountID *int64    `json:"destination_account_id,omitempty"`
		Frequency            Frequency `json:"frequency"`
		Interval             int       `json:"interval"`
		StartDate            time.Time `json:"start_date"`
		NextDueDate          time.Time `json:"next_due_date"`
		CreatedAt            time.Time `json:"created_at"`
	}

	Budget struct {
		ID           int64     `json:"id"`
		OwnerID      int64     `json:"owner_id"`
		CategoryName string    `json:"category_name"`
		Month        int       `json:"month"`
		Year         int       `json:"year"`
		Amount       Money     `json:"amount"`
		CreatedAt    time.Time `json:"created_at"`
	}
)

// Valid reports whether t is one of the supported account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountBank, AccountCash, AccountEWallet, AccountCredit, AccountOther:
		return true
	}
	return false
}

// Valid reports whether f is one of the supported frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// Validate checks the name and type of a new account.
func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > maxNameLength {
		return Invalidf("account name too long (max %d characters)", maxNameLength)
	}
	if !a.Type.Valid() {
		return Invalidf("unknown account type %q", a.Type)
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > maxNameLength {
		return Invalidf("category name too long (max %d characters)", maxNameLength)
	}
	return nil
}

// NormalizeTxType accepts a type in any letter case and surrounding space.
func NormalizeTxType(t TxType) TxType {
	return TxType(strings.ToLower(strings.TrimSpace(string(t))))
}

// Normalize lowercases the type, trims free text and applies the fixed
// categories of income and transfer entries.
func (t *Transaction) Normalize() {
	t.Type = NormalizeTxType(t.Type)
	t.Category = strings.TrimSpace(t.Category)
	t.Description = strings.TrimSpace(t.Description)
	t.Date = t.Date.UTC().Truncate(time.Second)
	switch t.Type {
	case TxIncome:
		if t.Category == "" {
			t.Category = IncomeCategory
		}
	case TxTransfer:
		t.Category = TransferCategory
	}
}

// Validate checks a normalized transaction: a positive amount, a date, an
// account and the fields required by its type.
func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return ErrMissingDate
	}
	if t.AccountID <= 0 {
		return ErrMissingAccount
	}
	if len(t.Description) > maxDescriptionLength {
		return Invalidf("description too long (max %d characters)", maxDescriptionLength)
	}
	switch t.Type {
	case TxIncome, TxExpense:
		if t.Category == "" {
			return ErrEmptyCategory
		}
		if t.DestinationAccountID != nil {
			return Invalidf("destination account is only allowed on transfers")
		}
	case TxTransfer:
		if t.DestinationAccountID == nil || *t.DestinationAccountID <= 0 {
			return ErrMissingDestination
		}
		if *t.DestinationAccountID == t.AccountID {
			return ErrSameAccount
		}
	default:
		return Invalidf("unknown transaction type %q", t.Type)
	}
	return nil
}

// Template returns the transaction a rule materializes for the given date.
func (r RecurringRule) Template(date time.Time) Transaction {
	id := r.ID
	tx := Transaction{
		OwnerID:              r.OwnerID,
		Type:                 r.Type,
		Amount:               r.Amount,
		Category:             r.Category,
		Description:          r.Description,
		Date:                 date,
		AccountID:            r.AccountID,
		DestinationAccountID: r.DestinationAccountID,
		RecurringRuleID:      &id,
	}
	tx.Normalize()
	return tx
}

// Normalize lowercases type and frequency, trims free text and defaults
// the interval to 1.
func (r *RecurringRule) Normalize() {
	r.Type = NormalizeTxType(r.Type)
	r.Frequency = Frequency(strings.ToLower(strings.TrimSpace(string(r.Frequency))))
	r.Category = strings.TrimSpace(r.Category)
	r.Description = strings.TrimSpace(r.Description)
	r.StartDate = r.StartDate.UTC().Truncate(time.Second)
	if r.Interval == 0 {
		r.Interval = 1
	}
}

// Validate checks the schedule fields and the transaction the rule would
// emit.
func (r RecurringRule) Validate() error {
	if !r.Frequency.Valid() {
		return Invalidf("unknown frequency %q", r.Frequency)
	}
	if r.Interval < 1 {
		return Invalidf("interval must be at least 1")
	}
	if r.StartDate.IsZero() {
		return Invalidf("start date is required")
	}
	// the materialized transaction must itself be valid
	return r.Template(r.StartDate).Validate()
}

func (b *Budget) Normalize() {
	b.CategoryName = strings.TrimSpace(b.CategoryName)
}

// Validate checks the category and period. A zero amount is allowed, a
// negative one is not.
func (b Budget) Validate() error {
	if b.CategoryName == "" {
		return ErrEmptyCategory
	}
	if b.Month < 1 || b.Month > 12 {
		return ErrInvalidMonth
	}
	if b.Year < 1900 || b.Year > 9999 {
		return Invalidf("invalid year %d", b.Year)
	}
	if b.Amount.Cents < 0 {
		return Invalidf("budget amount cannot be negative")
	}
	return nil
}
