package components

import (
	"context"
	"errors"
	"log/slog"

	"github.com/plotbook-crm/internal/activity_processor/service"
	"github.com/plotbook-crm/internal/domain/activity"
)

type ActivityRecorderImpl struct {
	activityRepo activity.Repository
	logger       *slog.Logger
}

func NewActivityRecorder(activityRepo activity.Repository, logger *slog.Logger) service.ActivityRecorder {
	return &ActivityRecorderImpl{
		activityRepo: activityRepo,
		logger:       logger,
	}
}

// Record stores the event. Losing a race with a redelivered copy of the same
// event counts as success.
func (r *ActivityRecorderImpl) Record(ctx context.Context, entry *activity.Entry) error {
	logger := r.logger
	if entry.CorrelationID != "" {
		logger = r.logger.With("correlation_id", entry.CorrelationID)
	}

	err := r.activityRepo.Create(ctx, entry)
	if errors.Is(err, activity.ErrDuplicateEntry{}) {
		logger.Info("Activity recorded concurrently, skipping", "event_id", entry.EventID.String())
		return nil
	}
	if err != nil {
		logger.Error("Failed to create activity entry", "event_id", entry.EventID.String(), "error", err)
		return err
	}

	logger.Debug("Created activity entry",
		"event_id", entry.EventID.String(),
		"action", entry.Action,
		"actor_id", entry.ActorID.String(),
	)
	return nil
}
