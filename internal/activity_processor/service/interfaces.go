package service

import (
	"context"
	"errors"

	"github.com/plotbook-crm/internal/domain/activity"
)

// ErrInvalidEntry marks an event that can never be recorded and should be
// dead-lettered instead of retried.
var ErrInvalidEntry = errors.New("invalid activity entry")

// RecordingService records consumed activity events in the activity log.
type RecordingService interface {
	RecordActivity(ctx context.Context, entry *activity.Entry) error
}

// EntryValidator validates activity events before they are recorded
type EntryValidator interface {
	Validate(ctx context.Context, entry *activity.Entry) error
	CheckIdempotency(ctx context.Context, entry *activity.Entry) (bool, error)
}

// ActivityRecorder writes a validated event to the activity log
type ActivityRecorder interface {
	Record(ctx context.Context, entry *activity.Entry) error
}
