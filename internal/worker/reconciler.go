package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"finledger/internal/core"
	applog "finledger/internal/log"
	"finledger/internal/services"
)

// Reconciler replays the accounts touched by each ledger event and reports
// any difference between the stored balance and the transaction history.
type Reconciler struct {
	accounts *services.AccountService

	checked atomic.Int64
	drifted atomic.Int64
}

func NewReconciler(accounts *services.AccountService) *Reconciler {
	return &Reconciler{accounts: accounts}
}

// HandleLedgerEvent verifies every account named by ev. Drift is logged, not
// returned: redelivering the event cannot repair it.
func (r *Reconciler) HandleLedgerEvent(ctx context.Context, ev core.LedgerEvent) error {
	slog.DebugContext(ctx, "Processing ledger event",
		"kind", ev.Kind,
		"owner_id", ev.OwnerID,
		"transaction_id", ev.TransactionID)

	for _, id := range ev.AccountIDs {
		if _, err := r.verify(ctx, ev.OwnerID, id); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				slog.WarnContext(ctx, "Event names an unknown account", "owner_id", ev.OwnerID, "account_id", id)
				continue
			}
			return fmt.Errorf("verify account %d: %w", id, err)
		}
	}
	return nil
}

// VerifyOwner checks every account of the owner and returns the ones that
// drifted.
func (r *Reconciler) VerifyOwner(ctx context.Context, ownerID int64) ([]services.BalanceCheck, error) {
	accounts, err := r.accounts.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	var drifted []services.BalanceCheck
	for _, a := range accounts {
		check, err := r.verify(ctx, ownerID, a.ID)
		if err != nil {
			return drifted, fmt.Errorf("verify account %d: %w", a.ID, err)
		}
		if !check.Consistent() {
			drifted = append(drifted, check)
		}
	}
	slog.InfoContext(ctx, "Owner reconciliation completed",
		applog.FieldOperation, applog.OpVerify,
		applog.FieldOwnerID, ownerID,
		"accounts", len(accounts),
		"drifted", len(drifted))
	return drifted, nil
}

func (r *Reconciler) verify(ctx context.Context, ownerID, accountID int64) (services.BalanceCheck, error) {
	check, err := r.accounts.Verify(ctx, ownerID, accountID)
	if err != nil {
		return check, err
	}
	r.checked.Add(1)
	if !check.Consistent() {
		r.drifted.Add(1)
		slog.ErrorContext(ctx, "Account balance drift detected",
			applog.FieldOperation, applog.OpVerify,
			applog.FieldOwnerID, ownerID,
			applog.FieldAccountID, accountID,
			"stored_cents", check.Stored.Cents,
			"replayed_cents", check.Replayed.Cents,
			"drift_cents", check.Drift.Cents)
	}
	return check, nil
}

// Stats reports how many accounts were checked and how many drifted since
// start.
func (r *Reconciler) Stats() (checked, drifted int64) {
	return r.checked.Load(), r.drifted.Load()
}
