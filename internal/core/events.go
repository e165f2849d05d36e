package core

import "time"

// EventKind names the ledger change an event announces.
type EventKind string

const (
	EventTransactionCreated EventKind = "transaction.created"
	EventTransactionUpdated EventKind = "transaction.updated"
	EventTransactionDeleted EventKind = "transaction.deleted"
	EventRuleMaterialized   EventKind = "recurring.materialized"
)

// LedgerEvent announces a committed balance change.
type LedgerEvent struct {
	Kind          EventKind `json:"kind"`
	OwnerID       int64     `json:"owner_id"`
	TransactionID int64     `json:"transaction_id"`
	RuleID        int64     `json:"rule_id,omitempty"`
	AccountIDs    []int64   `json:"account_ids"`
	OccurredAt    time.Time `json:"occurred_at"`
}
