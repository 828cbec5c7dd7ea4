package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/plotbook-crm/internal/config"
	"github.com/plotbook-crm/internal/domain/outbox"
	"github.com/plotbook-crm/internal/domain/shared"
)

const purgeInterval = time.Hour

// Poller relays pending outbox messages on a fixed interval and purges
// relayed ones once they age past the retention window
type Poller struct {
	outboxRepo       outbox.Repository
	publisher        ActivityPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
	claimTimeout     time.Duration
	retention        time.Duration
	now              func() time.Time
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher ActivityPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
		claimTimeout:     cfg.ClaimTimeout,
		retention:        cfg.Retention,
		now:              time.Now,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting Outbox Poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
		"claim_timeout", p.claimTimeout.String(),
		"retention", p.retention.String(),
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	var purge <-chan time.Time
	if p.retention > 0 {
		purgeTicker := time.NewTicker(purgeInterval)
		defer purgeTicker.Stop()
		purge = purgeTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox Poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		case <-purge:
			p.purgeProcessed(ctx)
		}
	}
}

func (p *Poller) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.ClaimPending(ctx, p.batchSize, p.now().Add(-p.claimTimeout))
	if err != nil {
		return fmt.Errorf("failed to claim pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found.")
		return nil
	}

	p.logger.Info("Claimed pending outbox messages", "count", len(messages))

	for _, msg := range messages {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := p.publisher.PublishActivity(ctx, msg)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrUndeliverable) {
			// Already marked FAILED_TO_PUBLISH by the publisher
			continue
		}

		p.logger.Error("Failed to publish outbox message",
			"outbox_id", msg.ID, "event_id", msg.EventID, "previous_attempts", msg.Attempts, "error", err,
		)
		p.recordFailedAttempt(ctx, msg)
	}
	return nil
}

// recordFailedAttempt leaves the message pending until the claim expires,
// or gives up on it once the retry budget is spent
func (p *Poller) recordFailedAttempt(ctx context.Context, msg *outbox.Message) {
	attempts, err := p.outboxRepo.RecordFailure(ctx, msg.ID)
	if err != nil {
		p.logger.Error("Failed to record outbox delivery failure", "outbox_id", msg.ID, "error", err)
		return
	}

	if attempts < p.maxRetryAttempts {
		return
	}

	p.logger.Warn("Max retry attempts reached for outbox message, marking as FAILED_TO_PUBLISH",
		"outbox_id", msg.ID, "event_id", msg.EventID, "attempts_made", attempts,
	)
	if err := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); err != nil {
		p.logger.Error("Failed to update outbox status to FAILED_TO_PUBLISH after max retries", "outbox_id", msg.ID, "error", err)
	}
}

func (p *Poller) purgeProcessed(ctx context.Context) {
	cutoff := p.now().Add(-p.retention)
	purged, err := p.outboxRepo.PurgeProcessed(ctx, cutoff)
	if err != nil {
		p.logger.Error("Failed to purge processed outbox messages", "error", err)
		return
	}
	if purged > 0 {
		p.logger.Info("Purged processed outbox messages", "count", purged, "cutoff", cutoff)
	}
}
