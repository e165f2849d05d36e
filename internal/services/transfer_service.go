package services

import (
	"context"
	"log/slog"
	"time"

	"finledger/internal/core"
	applog "finledger/internal/log"
)

// TransferService moves money between two accounts of the same owner. Both
// legs are applied in one atomic unit and stored as a single transaction.
type TransferService struct {
	base
}

// NewTransferService creates a transfer service over store.
func NewTransferService(store Store, opts ...Option) *TransferService {
	return &TransferService{base: newBase(store, opts)}
}

// TransferRequest moves Amount from AccountID to DestinationAccountID.
type TransferRequest struct {
	Amount               core.Money
	Description          string
	Date                 time.Time
	AccountID            int64
	DestinationAccountID int64
}

// Create records the transfer and applies both legs in one atomic unit.
// Both accounts must belong to the owner and differ.
func (s *TransferService) Create(ctx context.Context, ownerID int64, req TransferRequest) (core.Transaction, error) {
	dest := req.DestinationAccountID
	t := core.Transaction{
		OwnerID:              ownerID,
		Type:                 core.TxTransfer,
		Amount:               req.Amount,
		Description:          req.Description,
		Date:                 req.Date,
		AccountID:            req.AccountID,
		DestinationAccountID: &dest,
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var (
		saved core.Transaction
		ids   []int64
	)
	err := s.atomic(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		saved, ids, err = post(ctx, tx, t)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	fields := applog.NewFields().
		WithOperation(applog.OpTransfer).
		WithOwner(ownerID).
		WithTransaction(saved.ID, string(saved.Type), saved.Amount.Cents)
	slog.InfoContext(ctx, "Transfer created", append(fields.ToSlice(), "from_account", saved.AccountID, "to_account", dest)...)
	s.committed(ctx, core.LedgerEvent{Kind: core.EventTransactionCreated, OwnerID: ownerID, TransactionID: saved.ID, AccountIDs: ids})
	return saved, nil
}
