package amqp

import (
	"encoding/json"
	"time"

	"gofinances/internal/core"
)

// Event names published on the ledger exchange.
const (
	EventTransactionCreated   = "transaction.created"
	EventTransactionDeleted   = "transaction.deleted"
	EventTransactionsImported = "transactions.imported"
)

// TransactionEvent is a lightweight notification of a committed ledger change.
// It carries only ids; consumers read the ledger for details.
type TransactionEvent struct {
	Event     string    `json:"event"`
	IDs       []string  `json:"ids"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionEvent(event string, ids ...string) *TransactionEvent {
	return &TransactionEvent{
		Event:     event,
		IDs:       ids,
		Count:     len(ids),
		Timestamp: time.Now().UTC(),
	}
}

func transactionIDs(ts []core.Transaction) []string {
	ids := make([]string, len(ts))
	for i, t := range ts {
		ids[i] = t.ID
	}
	return ids
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
