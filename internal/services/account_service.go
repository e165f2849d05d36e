package services

import (
	"context"
	"log/slog"
	"strings"

	"finledger/internal/core"
)

// AccountService owns account records. Balances only change through the
// ledger write path.
type AccountService struct {
	base
}

// NewAccountService creates an account service over store.
func NewAccountService(store Store, opts ...Option) *AccountService {
	return &AccountService{base: newBase(store, opts)}
}

// Create opens an account whose current balance starts at the initial
// balance. The initial balance may be negative, e.g. for a credit card.
func (s *AccountService) Create(ctx context.Context, ownerID int64, name string, typ core.AccountType, initial core.Money) (core.Account, error) {
	a := core.Account{
		OwnerID:        ownerID,
		Name:           strings.TrimSpace(name),
		Type:           typ,
		InitialBalance: initial,
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}

	var created core.Account
	err := s.atomic(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		created, err = tx.CreateAccount(ctx, a)
		return err
	})
	if err != nil {
		return core.Account{}, err
	}
	slog.InfoContext(ctx, "Account created", "owner_id", ownerID, "account_id", created.ID, "type", created.Type)
	return created, nil
}

func (s *AccountService) Get(ctx context.Context, ownerID, id int64) (core.Account, error) {
	return s.store.GetAccount(ctx, ownerID, id)
}

// List returns the owner's accounts in creation order.
func (s *AccountService) List(ctx context.Context, ownerID int64) ([]core.Account, error) {
	return s.store.ListAccounts(ctx, ownerID)
}

// BalanceCheck compares the cached balance of an account with the value
// obtained by replaying its transactions.
type BalanceCheck struct {
	AccountID int64      `json:"account_id"`
	Stored    core.Money `json:"stored_balance"`
	Replayed  core.Money `json:"replayed_balance"`
	Drift     core.Money `json:"drift"`
}

// Consistent reports whether the stored balance matches the replay.
func (c BalanceCheck) Consistent() bool {
	return c.Drift.Cents == 0
}

// Verify replays the account's live transactions while holding its lock, so
// the comparison is not disturbed by concurrent writes.
func (s *AccountService) Verify(ctx context.Context, ownerID, id int64) (BalanceCheck, error) {
	var check BalanceCheck
	err := s.atomic(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := tx.LockAccounts(ctx, ownerID, id)
		if err != nil {
			return err
		}
		txs, err := tx.AccountTransactions(ctx, ownerID, id)
		if err != nil {
			return err
		}
		acct := locked[id]
		replayed, err := core.ReplayBalance(acct.InitialBalance, id, txs)
		if err != nil {
			return err
		}
		check = BalanceCheck{
			AccountID: id,
			Stored:    acct.CurrentBalance,
			Replayed:  replayed,
			Drift:     acct.CurrentBalance.Sub(replayed),
		}
		return nil
	})
	return check, err
}
