package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/plotbook-crm/internal/domain/activity"
)

type RecordingServiceImpl struct {
	validator EntryValidator
	recorder  ActivityRecorder
	logger    *slog.Logger
}

func NewRecordingService(
	validator EntryValidator,
	recorder ActivityRecorder,
	logger *slog.Logger,
) RecordingService {
	return &RecordingServiceImpl{
		validator: validator,
		recorder:  recorder,
		logger:    logger,
	}
}

// RecordActivity validates the event, skips it if already recorded and
// otherwise stores it. Validation failures wrap ErrInvalidEntry.
func (s *RecordingServiceImpl) RecordActivity(ctx context.Context, entry *activity.Entry) error {
	logger := s.logger
	if entry.CorrelationID != "" {
		logger = s.logger.With("correlation_id", entry.CorrelationID)
	}

	logger.Info("Recording activity",
		"event_id", entry.EventID.String(),
		"action", entry.Action,
		"entity_id", entry.EntityID.String(),
	)

	// 1. Validate
	if err := s.validator.Validate(ctx, entry); err != nil {
		logger.Warn("Activity validation failed", "event_id", entry.EventID.String(), "error", err)
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// 2. Idempotency
	skip, err := s.validator.CheckIdempotency(ctx, entry)
	if err != nil {
		return err
	}
	if skip {
		return nil
	}

	// 3. Store
	if err := s.recorder.Record(ctx, entry); err != nil {
		logger.Error("Failed to record activity", "event_id", entry.EventID.String(), "error", err)
		return fmt.Errorf("failed to record activity %s: %w", entry.EventID.String(), err)
	}

	logger.Info("Activity recorded", "event_id", entry.EventID.String())
	return nil
}
