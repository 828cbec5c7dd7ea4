package service

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"github.com/plotbook-crm/internal/domain/activity"
)

// WorkerPoolRecordingService bounds concurrent Mongo writes with an ants pool.
// RecordActivity still blocks until its own task has finished so the consumer
// commits offsets only for recorded events.
type WorkerPoolRecordingService struct {
	baseService RecordingService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolRecordingService(
	baseService RecordingService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolRecordingService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolRecordingService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// RecordActivity submits the event to the pool and waits for its result
func (s *WorkerPoolRecordingService) RecordActivity(ctx context.Context, entry *activity.Entry) error {
	logger := s.logger
	if entry.CorrelationID != "" {
		logger = s.logger.With("correlation_id", entry.CorrelationID)
	}

	logger.Debug("Submitting activity to worker pool", "event_id", entry.EventID.String())

	resultChan := make(chan error, 1)
	entryCopy := *entry

	err := s.pool.Submit(func() {
		resultChan <- s.baseService.RecordActivity(ctx, &entryCopy)
	})
	if err != nil {
		logger.Error("Failed to submit activity to worker pool",
			"event_id", entry.EventID.String(),
			"error", err,
		)
		return err
	}

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolRecordingService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolRecordingService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolRecordingService) Capacity() int {
	return s.pool.Cap()
}
