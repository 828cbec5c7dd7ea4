package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/plotbook-crm/internal/activity_processor/service"
	"github.com/plotbook-crm/internal/domain/activity"
	"github.com/plotbook-crm/internal/platform/messaging/producers"
)

const (
	stageDecode   = "decode"
	stageValidate = "validate"
)

// ActivityEventHandler handles activity events consumed from Kafka
type ActivityEventHandler struct {
	recordingService service.RecordingService
	producer         producers.DeadLetterPublisher
	logger           *slog.Logger
}

func NewActivityEventHandler(
	logger *slog.Logger,
	recordingService service.RecordingService,
	producer producers.DeadLetterPublisher,
) *ActivityEventHandler {
	return &ActivityEventHandler{
		recordingService: recordingService,
		producer:         producer,
		logger:           logger,
	}
}

// HandleMessage records one event. A nil return commits the offset; events
// that can never be recorded are moved to the DLQ and committed.
func (h *ActivityEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var entry activity.Entry
	if err := json.Unmarshal(value, &entry); err != nil {
		h.logger.Error("Failed to unmarshal activity event from Kafka message",
			"error", err,
			"message_key", string(key),
		)
		return h.deadLetter(ctx, producers.Rejection{Key: key, Value: value, Stage: stageDecode, Cause: err})
	}

	logger := h.logger
	if entry.CorrelationID != "" {
		logger = h.logger.With("correlation_id", entry.CorrelationID)
	}

	logger.Info("Received activity event",
		"event_id", entry.EventID.String(),
		"action", entry.Action,
		"entity_type", entry.EntityType,
	)

	err := h.recordingService.RecordActivity(ctx, &entry)
	if errors.Is(err, service.ErrInvalidEntry) {
		return h.deadLetter(ctx, producers.Rejection{
			Key: key, Value: value, Stage: stageValidate, Cause: err, EventID: entry.EventID.String(),
		})
	}
	if err != nil {
		logger.Error("Failed to record activity event", "event_id", entry.EventID.String(), "error", err)
		return fmt.Errorf("recording activity %s failed: %w", entry.EventID.String(), err)
	}

	return nil
}

// deadLetter parks the message on the DLQ. The original error is returned
// when the DLQ is unavailable so the message is redelivered.
func (h *ActivityEventHandler) deadLetter(ctx context.Context, rejection producers.Rejection) error {
	logger := h.logger.With("message_key", string(rejection.Key), "stage", rejection.Stage)

	if h.producer != nil {
		dlqErr := h.producer.PublishToDLQ(ctx, rejection)
		if dlqErr == nil {
			logger.Info("Moved unrecordable activity event to DLQ", "reason", rejection.Cause)
			return nil
		}
		logger.Error("Failed to publish message to DLQ", "dlq_error", dlqErr, "original_error", rejection.Cause)
	}

	return fmt.Errorf("%s activity event failed: %w", rejection.Stage, rejection.Cause)
}
