package amqp

import (
	"encoding/json"
	"time"
)

// LedgerEventMessage announces a posted transaction. It carries only the
// coordinates needed to reconcile; the worker fetches the full row from
// the database.
type LedgerEventMessage struct {
	Owner         string    `json:"owner"`
	TransactionID int64     `json:"transaction_id"`
	Account       string    `json:"account"`
	Date          string    `json:"date"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerEventMessage(owner string, txID int64, account, date string) *LedgerEventMessage {
	return &LedgerEventMessage{
		Owner:         owner,
		TransactionID: txID,
		Account:       account,
		Date:          date,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
