package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/plotbook-crm/internal/domain/outbox"
	"github.com/plotbook-crm/internal/domain/shared"
	"github.com/plotbook-crm/internal/platform/persistence"
)

// OutboxRepository stores activity events in activity_outbox until the
// activity processor relays them to Kafka
type OutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
	now     func() time.Time
}

func NewOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) outbox.Repository {
	return &OutboxRepository{
		querier: db.Pool(),
		logger:  logger,
		now:     time.Now,
	}
}

// WithTx binds the repository to tx so an event commits with the write
// that produced it
func (r *OutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	return &OutboxRepository{
		querier: tx,
		logger:  r.logger,
		now:     r.now,
	}
}

func (r *OutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	err := r.querier.QueryRow(ctx, `
		INSERT INTO activity_outbox (event_id, entity_id, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		message.EventID, message.EntityID, message.Payload, message.Status, message.Attempts, message.CreatedAt,
	).Scan(&message.ID)
	if err == nil {
		return nil
	}

	if _, ok := persistence.IsUniqueViolation(err); ok {
		return outbox.ErrDuplicateMessage{EventID: message.EventID}
	}
	r.logger.Error("Failed to enqueue activity event", "event_id", message.EventID, "error", err)
	return fmt.Errorf("failed to create outbox message: %w", err)
}

func (r *OutboxRepository) ClaimPending(ctx context.Context, limit int, claimedBefore time.Time) ([]*outbox.Message, error) {
	query := `
		UPDATE activity_outbox AS o
		SET last_attempt_at = $3
		FROM (
			SELECT id FROM activity_outbox
			WHERE status = $1 AND (last_attempt_at IS NULL OR last_attempt_at < $4)
			ORDER BY created_at, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		) AS batch
		WHERE o.id = batch.id
		RETURNING o.id, o.event_id, o.entity_id, o.payload, o.status, o.attempts, o.created_at, o.last_attempt_at`

	rows, err := r.querier.Query(ctx, query, shared.OutboxStatusPending, limit, r.now(), claimedBefore)
	if err != nil {
		r.logger.Error("Failed to claim pending activity events", "error", err)
		return nil, fmt.Errorf("failed to claim pending outbox messages: %w", err)
	}

	messages, err := pgx.CollectRows(rows, scanOutboxMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to read claimed outbox messages: %w", err)
	}

	// RETURNING carries no ordering guarantee
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

func (r *OutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	result, err := r.querier.Exec(ctx,
		`UPDATE activity_outbox SET status = $1, last_attempt_at = $2 WHERE id = $3`,
		status, r.now(), id,
	)
	if err != nil {
		r.logger.Error("Failed to update outbox status", "outbox_id", id, "status", status, "error", err)
		return fmt.Errorf("failed to update outbox message status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return outbox.ErrMessageNotFound{ID: id}
	}
	return nil
}

func (r *OutboxRepository) RecordFailure(ctx context.Context, id int64) (int, error) {
	var attempts int
	err := r.querier.QueryRow(ctx,
		`UPDATE activity_outbox SET attempts = attempts + 1, last_attempt_at = $1 WHERE id = $2 RETURNING attempts`,
		r.now(), id,
	).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, outbox.ErrMessageNotFound{ID: id}
		}
		r.logger.Error("Failed to record outbox delivery failure", "outbox_id", id, "error", err)
		return 0, fmt.Errorf("failed to record outbox failure: %w", err)
	}
	return attempts, nil
}

// PurgeProcessed deletes relayed messages last touched before the cutoff.
// Messages that failed to publish are kept for inspection.
func (r *OutboxRepository) PurgeProcessed(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.querier.Exec(ctx,
		`DELETE FROM activity_outbox WHERE status = $1 AND last_attempt_at < $2`,
		shared.OutboxStatusProcessed, before,
	)
	if err != nil {
		r.logger.Error("Failed to purge processed outbox messages", "before", before, "error", err)
		return 0, fmt.Errorf("failed to purge outbox: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanOutboxMessage(row pgx.CollectableRow) (*outbox.Message, error) {
	var m outbox.Message
	err := row.Scan(&m.ID, &m.EventID, &m.EntityID, &m.Payload, &m.Status, &m.Attempts, &m.CreatedAt, &m.LastAttemptAt)
	return &m, err
}
