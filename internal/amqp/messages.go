package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Actions carried by a TransactionSyncMessage.
const (
	ActionUpsert = "upsert"
	ActionDelete = "delete"
)

// TransactionSyncMessage asks the mirror worker to propagate one transaction.
// It carries only the ID and version; the worker reads the row itself.
type TransactionSyncMessage struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionSyncMessage creates an upsert message for id at version.
func NewTransactionSyncMessage(id string, version int64) *TransactionSyncMessage {
	return &TransactionSyncMessage{ID: id, Version: version, Action: ActionUpsert, Timestamp: time.Now()}
}

// NewTransactionDeleteMessage creates a delete message for id at version.
func NewTransactionDeleteMessage(id string, version int64) *TransactionSyncMessage {
	return &TransactionSyncMessage{ID: id, Version: version, Action: ActionDelete, Timestamp: time.Now()}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionSyncMessageFromJSON decodes and validates a message. Messages
// without an action are treated as upserts.
func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("message without transaction id")
	}
	switch msg.Action {
	case "":
		msg.Action = ActionUpsert
	case ActionUpsert, ActionDelete:
	default:
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	return &msg, nil
}
