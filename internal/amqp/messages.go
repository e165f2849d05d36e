package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finledger/internal/core"
)

// LedgerEventMessage wraps a committed ledger event for the broker. The ID
// lets consumers spot redeliveries in their logs.
type LedgerEventMessage struct {
	ID        string           `json:"id"`
	Event     core.LedgerEvent `json:"event"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewLedgerEventMessage(ev core.LedgerEvent) *LedgerEventMessage {
	return &LedgerEventMessage{
		ID:        uuid.NewString(),
		Event:     ev,
		Timestamp: time.Now().UTC(),
	}
}

func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON decodes a message and rejects bodies without an
// event kind or owner.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Event.Kind == "" || msg.Event.OwnerID <= 0 {
		return nil, fmt.Errorf("incomplete ledger event message %q", msg.ID)
	}
	return &msg, nil
}
