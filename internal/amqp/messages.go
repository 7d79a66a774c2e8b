package amqp

import (
	"encoding/json"
	"time"

	"hisaab/internal/events"
)

// LedgerChangedMessage tells consumers that an owner's ledger changed. It
// carries identifiers only; consumers refetch what they need.
type LedgerChangedMessage struct {
	Owner     string    `json:"owner"`
	Entity    string    `json:"entity"`
	Op        string    `json:"op"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(c events.Change) *LedgerChangedMessage {
	ts := c.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &LedgerChangedMessage{
		Owner:     c.Owner,
		Entity:    string(c.Entity),
		Op:        string(c.Op),
		ID:        c.ID,
		Timestamp: ts.UTC(),
	}
}

// Change converts the message back into an in-process change.
func (m *LedgerChangedMessage) Change() events.Change {
	return events.Change{
		Owner:  m.Owner,
		Entity: events.Entity(m.Entity),
		Op:     events.Op(m.Op),
		ID:     m.ID,
		At:     m.Timestamp,
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedFromJSON decodes a message and rejects ones without an owner.
func LedgerChangedFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Owner == "" {
		return nil, ErrMissingOwner
	}
	return &msg, nil
}
