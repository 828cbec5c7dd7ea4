package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/plotbook-crm/internal/domain/outbox"
	"github.com/plotbook-crm/internal/domain/shared"
	"github.com/plotbook-crm/internal/platform/messaging/producers"
)

// ErrUndeliverable marks an outbox message whose payload can never be published
var ErrUndeliverable = errors.New("outbox payload is not a valid activity entry")

// ActivityPublisher relays one outbox message to the activity topic
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, message *outbox.Message) error
}

// ActivityPublisherImpl implements ActivityPublisher
type ActivityPublisherImpl struct {
	outboxRepo outbox.Repository
	publisher  producers.MessagePublisher
	logger     *slog.Logger
}

func NewActivityPublisher(
	outboxRepo outbox.Repository,
	publisher producers.MessagePublisher,
	logger *slog.Logger,
) ActivityPublisher {
	return &ActivityPublisherImpl{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		logger:     logger,
	}
}

// PublishActivity writes the stored payload to Kafka keyed by entity id and
// marks the message PROCESSED. Undecodable payloads are marked
// FAILED_TO_PUBLISH immediately.
func (p *ActivityPublisherImpl) PublishActivity(ctx context.Context, message *outbox.Message) error {
	entry, err := message.GetActivityEntry()
	if err != nil {
		p.logger.Error("Failed to unmarshal activity entry from outbox payload",
			"outbox_id", message.ID, "event_id", message.EventID, "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("%w: outbox %d: %v", ErrUndeliverable, message.ID, err)
	}

	logger := p.logger
	if entry.CorrelationID != "" {
		logger = p.logger.With("correlation_id", entry.CorrelationID)
	}

	logger.Debug("Publishing outbox message", "outbox_id", message.ID, "event_id", message.EventID)

	if err := p.publisher.Publish(ctx, message.EntityID.String(), message.Payload); err != nil {
		return fmt.Errorf("failed to publish outbox %d: %w", message.ID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "event_id", message.EventID, "error", err,
		)
		// The event is republished on the next tick; consumers deduplicate on event id
		return fmt.Errorf("published outbox %d but failed to mark it PROCESSED: %w", message.ID, err)
	}

	logger.Info("Outbox message published and marked PROCESSED",
		"outbox_id", message.ID, "event_id", message.EventID, "relay_lag", message.Lag(time.Now()).String(),
	)
	return nil
}
