package amqp

import (
	"encoding/json"
	"time"
)

// MutationMessage is the lightweight broker payload for a committed
// ledger change. Consumers re-read the user's state from the database
// rather than trusting the payload amounts.
type MutationMessage struct {
	Op        string    `json:"op"` // "create", "update", "delete"
	TxID      string    `json:"tx_id"`
	UserID    string    `json:"user_id"`
	Category  string    `json:"category,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMutationMessage(op, txID, userID, category string) *MutationMessage {
	return &MutationMessage{
		Op:        op,
		TxID:      txID,
		UserID:    userID,
		Category:  category,
		Timestamp: time.Now(),
	}
}

func (m *MutationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MutationMessageFromJSON(data []byte) (*MutationMessage, error) {
	var msg MutationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
