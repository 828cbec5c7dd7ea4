package activity

import (
	"time"

	"github.com/google/uuid"
	"github.com/plotbook-crm/internal/domain/shared"
)

// Action names a recorded change
type Action string

const (
	ActionCustomerCreated    Action = "CUSTOMER_CREATED"
	ActionCustomerUpdated    Action = "CUSTOMER_UPDATED"
	ActionCustomerDeleted    Action = "CUSTOMER_DELETED"
	ActionInstallmentAdded   Action = "INSTALLMENT_ADDED"
	ActionInstallmentUpdated Action = "INSTALLMENT_UPDATED"
	ActionInstallmentRemoved Action = "INSTALLMENT_REMOVED"
	ActionStaffCreated       Action = "STAFF_CREATED"
	ActionStaffUpdated       Action = "STAFF_UPDATED"
	ActionStaffDeleted       Action = "STAFF_DELETED"
)

// Entry represents one activity in the audit trail
type Entry struct {
	EventID       uuid.UUID         `json:"event_id" bson:"event_id"`
	Action        Action            `json:"action" bson:"action"`
	EntityType    shared.EntityType `json:"entity_type" bson:"entity_type"`
	EntityID      uuid.UUID         `json:"entity_id" bson:"entity_id"`
	ActorID       uuid.UUID         `json:"actor_id" bson:"actor_id"`
	ActorName     string            `json:"actor_name" bson:"actor_name"`
	Summary       string            `json:"summary" bson:"summary"`
	Details       map[string]string `json:"details,omitempty" bson:"details,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at" bson:"occurred_at"`
	RecordedAt    *time.Time        `json:"recorded_at,omitempty" bson:"recorded_at,omitempty"`
}

// NewEntry creates an activity attributed to actor
func NewEntry(actor shared.Actor, action Action, entityType shared.EntityType, entityID uuid.UUID, summary string) *Entry {
	return &Entry{
		EventID:       uuid.New(),
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		ActorID:       actor.ID,
		ActorName:     actor.Name,
		Summary:       summary,
		Details:       map[string]string{},
		CorrelationID: actor.CorrelationID,
		OccurredAt:    time.Now().UTC(),
	}
}

// With adds a detail key and returns the entry for chaining
func (e *Entry) With(key, value string) *Entry {
	if e.Details == nil {
		e.Details = map[string]string{}
	}
	e.Details[key] = value
	return e
}
