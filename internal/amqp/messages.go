package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Change operations.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// ChangeMessage announces that a document changed. It carries only
// identifiers; consumers load the current document themselves.
type ChangeMessage struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Op         string    `json:"op"`
	Date       string    `json:"date,omitempty"` // transaction day, for locating deleted rows
	// PrevDate is the day before an update when it changed, so the old row
	// can be cleared from its sheet.
	PrevDate   string    `json:"prevDate,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewChangeMessage(collection, id, userID, op string) *ChangeMessage {
	return &ChangeMessage{
		Collection: collection,
		ID:         id,
		UserID:     userID,
		Op:         op,
		Timestamp:  time.Now(),
	}
}

func (m *ChangeMessage) Validate() error {
	if m.Collection == "" || m.ID == "" {
		return errors.New("change message needs collection and id")
	}
	if m.Op != OpUpsert && m.Op != OpDelete {
		return fmt.Errorf("unknown change op %q", m.Op)
	}
	return nil
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
