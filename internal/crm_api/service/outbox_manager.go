package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/plotbook-crm/internal/domain/activity"
	"github.com/plotbook-crm/internal/domain/outbox"
)

type OutboxManagerImpl struct {
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

func NewOutboxManager(outboxRepo outbox.Repository, logger *slog.Logger) OutboxManager {
	return &OutboxManagerImpl{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// Enqueue writes entry to the outbox table using tx, so it commits or rolls
// back together with the entity change it describes
func (m *OutboxManagerImpl) Enqueue(ctx context.Context, tx pgx.Tx, entry *activity.Entry) error {
	logger := m.logger
	if entry.CorrelationID != "" {
		logger = m.logger.With("correlation_id", entry.CorrelationID)
	}

	message, err := outbox.NewMessage(entry)
	if err != nil {
		logger.Error("Failed to create new outbox message (marshal payload)",
			"event_id", entry.EventID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message payload for event %s: %w", entry.EventID, err)
	}

	if err := m.outboxRepo.WithTx(tx).Create(ctx, message); err != nil {
		logger.Error("Failed to create outbox message",
			"event_id", entry.EventID.String(),
			"entity_id", entry.EntityID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message for event %s: %w", entry.EventID, err)
	}

	logger.Debug("Outbox message staged",
		"event_id", entry.EventID.String(),
		"action", string(entry.Action),
	)
	return nil
}
