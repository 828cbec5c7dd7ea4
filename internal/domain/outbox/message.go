package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/plotbook-crm/internal/domain/activity"
	"github.com/plotbook-crm/internal/domain/shared"
)

// Message stores an activity event until it has been relayed to Kafka
type Message struct {
	ID            int64               `json:"id"`
	EventID       uuid.UUID           `json:"event_id"`
	EntityID      uuid.UUID           `json:"entity_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewMessage(entry *activity.Entry) (*Message, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:   entry.EventID,
		EntityID:  entry.EntityID,
		Payload:   payload,
		Status:    shared.OutboxStatusPending,
		CreatedAt: time.Now(),
	}, nil
}

// Lag is how long the message waited in the outbox before now
func (m *Message) Lag(now time.Time) time.Duration {
	return now.Sub(m.CreatedAt)
}

// GetActivityEntry decodes the payload
func (m *Message) GetActivityEntry() (*activity.Entry, error) {
	var entry activity.Entry
	if err := json.Unmarshal(m.Payload, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
