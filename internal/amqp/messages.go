package amqp

import (
	"encoding/json"
	"time"

	"quickaccounting/internal/core"
)

const (
	EventTransactionCreated = "transaction.created"
	EventTransactionDeleted = "transaction.deleted"
)

// TransactionEvent announces a change to the ledger. The event name doubles as
// the routing key. Amount is nil only on deleted events.
type TransactionEvent struct {
	Event     string    `json:"event"`
	ID        string    `json:"id"`
	Type      string    `json:"type,omitempty"`
	Category  string    `json:"category,omitempty"`
	Amount    *float64  `json:"amount,omitempty"`
	Date      string    `json:"date,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewCreatedEvent builds the event for a freshly stored transaction.
func NewCreatedEvent(t core.Transaction, at time.Time) TransactionEvent {
	amount := t.Amount
	return TransactionEvent{
		Event:     EventTransactionCreated,
		ID:        t.ID,
		Type:      string(t.Type),
		Category:  t.Category,
		Amount:    &amount,
		Date:      t.Date,
		Timestamp: at,
	}
}

// NewDeletedEvent builds the event for a removed transaction. Only the ID is known.
func NewDeletedEvent(id string, at time.Time) TransactionEvent {
	return TransactionEvent{
		Event:     EventTransactionDeleted,
		ID:        id,
		Timestamp: at,
	}
}

func (e TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes an event body.
func TransactionEventFromJSON(data []byte) (TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return TransactionEvent{}, err
	}
	return e, nil
}
