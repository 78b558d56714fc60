package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Change operations carried by RecordChangedMessage.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// RecordChangedMessage tells every server instance that a user's record set
// changed. It carries no record data; receivers re-read the newest records.
type RecordChangedMessage struct {
	UserID    string    `json:"user_id"`
	RecordID  string    `json:"record_id"`
	Op        string    `json:"op"`
	Origin    string    `json:"origin,omitempty"` // publishing instance
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordChangedMessage(userID, recordID, op string) *RecordChangedMessage {
	return &RecordChangedMessage{
		UserID:    userID,
		RecordID:  recordID,
		Op:        op,
		Timestamp: time.Now(),
	}
}

func (m *RecordChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordChangedMessageFromJSON(data []byte) (*RecordChangedMessage, error) {
	var msg RecordChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errors.New("record changed message without user_id")
	}
	return &msg, nil
}
