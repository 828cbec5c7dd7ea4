package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/plotbook-crm/internal/domain/shared"
)

// Filter narrows an activity log listing. Zero values match everything.
type Filter struct {
	EntityType shared.EntityType
	EntityID   uuid.UUID
	ActorID    uuid.UUID
	Action     Action
	From       *time.Time
	To         *time.Time
}

// Repository manages activity log persistence with pagination support
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByEventID(ctx context.Context, eventID uuid.UUID) (*Entry, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Entry, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}

// ErrEntryNotFound indicates missing activity entry
type ErrEntryNotFound struct {
	EventID uuid.UUID
}

func (e ErrEntryNotFound) Error() string {
	return "activity entry not found: " + e.EventID.String()
}

// Is matches any ErrEntryNotFound when the target has no EventID
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	if t.EventID == uuid.Nil {
		return true
	}
	return e.EventID == t.EventID
}

// ErrDuplicateEntry indicates the event was already recorded
type ErrDuplicateEntry struct {
	EventID uuid.UUID
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate activity entry: " + e.EventID.String()
}

// Is matches any ErrDuplicateEntry when the target has no EventID
func (e ErrDuplicateEntry) Is(target error) bool {
	t, ok := target.(ErrDuplicateEntry)
	if !ok {
		return false
	}
	if t.EventID == uuid.Nil {
		return true
	}
	return e.EventID == t.EventID
}
