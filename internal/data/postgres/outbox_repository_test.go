package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/plotbook-crm/internal/domain/outbox"
	"github.com/plotbook-crm/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var outboxColumnNames = []string{"id", "event_id", "entity_id", "payload", "status", "attempts", "created_at", "last_attempt_at"}

func sampleMessage() *outbox.Message {
	return &outbox.Message{
		EventID:   uuid.New(),
		EntityID:  uuid.New(),
		Payload:   json.RawMessage(`{"action":"CUSTOMER_CREATED"}`),
		Status:    shared.OutboxStatusPending,
		CreatedAt: time.Now(),
	}
}

func newOutboxRepo(t *testing.T, now time.Time) (*OutboxRepository, pgxmock.PgxPoolIface) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return &OutboxRepository{
		querier: mock,
		logger:  newTestLogger(),
		now:     func() time.Time { return now },
	}, mock
}

func TestOutboxRepository_Create(t *testing.T) {
	repo, mock := newOutboxRepo(t, time.Now())
	query := regexp.QuoteMeta("INSERT INTO activity_outbox (event_id, entity_id, payload, status, attempts, created_at)")

	t.Run("success assigns id", func(t *testing.T) {
		msg := sampleMessage()
		mock.ExpectQuery(query).
			WithArgs(msg.EventID, msg.EntityID, msg.Payload, msg.Status, msg.Attempts, msg.CreatedAt).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(17)))

		require.NoError(t, repo.Create(context.Background(), msg))
		assert.Equal(t, int64(17), msg.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate event", func(t *testing.T) {
		msg := sampleMessage()
		mock.ExpectQuery(query).
			WithArgs(msg.EventID, msg.EntityID, msg.Payload, msg.Status, msg.Attempts, msg.CreatedAt).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.Create(context.Background(), msg)
		assert.Equal(t, outbox.ErrDuplicateMessage{EventID: msg.EventID}, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_ClaimPending(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	staleBefore := now.Add(-30 * time.Second)

	t.Run("returns claimed rows oldest first", func(t *testing.T) {
		repo, mock := newOutboxRepo(t, now)
		older, newer := sampleMessage(), sampleMessage()
		older.ID, older.CreatedAt = 3, now.Add(-time.Minute)
		newer.ID, newer.CreatedAt = 4, now.Add(-time.Second)

		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
			WithArgs(shared.OutboxStatusPending, 50, now, staleBefore).
			WillReturnRows(pgxmock.NewRows(outboxColumnNames).
				AddRow(newer.ID, newer.EventID, newer.EntityID, newer.Payload, newer.Status, newer.Attempts, newer.CreatedAt, &now).
				AddRow(older.ID, older.EventID, older.EntityID, older.Payload, older.Status, older.Attempts, older.CreatedAt, &now))

		messages, err := repo.ClaimPending(context.Background(), 50, staleBefore)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, int64(3), messages[0].ID)
		assert.Equal(t, int64(4), messages[1].ID)
		assert.Equal(t, older.EventID, messages[0].EventID)
		require.NotNil(t, messages[0].LastAttemptAt)
		assert.True(t, now.Equal(*messages[0].LastAttemptAt))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure", func(t *testing.T) {
		repo, mock := newOutboxRepo(t, now)
		dbErr := errors.New("connection reset")
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE activity_outbox AS o")).
			WithArgs(shared.OutboxStatusPending, 50, now, staleBefore).
			WillReturnError(dbErr)

		_, err := repo.ClaimPending(context.Background(), 50, staleBefore)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_UpdateStatus(t *testing.T) {
	now := time.Now()
	repo, mock := newOutboxRepo(t, now)

	t.Run("marks processed", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE activity_outbox SET status = $1")).
			WithArgs(shared.OutboxStatusProcessed, now, int64(9)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.UpdateStatus(context.Background(), 9, shared.OutboxStatusProcessed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE activity_outbox SET status = $1")).
			WithArgs(shared.OutboxStatusProcessed, now, int64(10)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateStatus(context.Background(), 10, shared.OutboxStatusProcessed)
		assert.Equal(t, outbox.ErrMessageNotFound{ID: 10}, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_RecordFailure(t *testing.T) {
	now := time.Now()
	repo, mock := newOutboxRepo(t, now)
	query := regexp.QuoteMeta("SET attempts = attempts + 1")

	t.Run("returns new attempt count", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(now, int64(9)).
			WillReturnRows(pgxmock.NewRows([]string{"attempts"}).AddRow(3))

		attempts, err := repo.RecordFailure(context.Background(), 9)
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(now, int64(11)).WillReturnError(pgx.ErrNoRows)

		_, err := repo.RecordFailure(context.Background(), 11)
		assert.Equal(t, outbox.ErrMessageNotFound{ID: 11}, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_PurgeProcessed(t *testing.T) {
	repo, mock := newOutboxRepo(t, time.Now())
	cutoff := time.Now().Add(-72 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM activity_outbox WHERE status = $1")).
		WithArgs(shared.OutboxStatusProcessed, cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 12))

	purged, err := repo.PurgeProcessed(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(12), purged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_WithTx(t *testing.T) {
	repo := &OutboxRepository{logger: newTestLogger(), now: time.Now}

	txRepo, ok := repo.WithTx(pgx.Tx(nil)).(*OutboxRepository)
	require.True(t, ok)
	assert.Equal(t, repo.logger, txRepo.logger)
	assert.NotNil(t, txRepo.now)
}
