package components

import (
	"log/slog"

	"github.com/plotbook-crm/internal/activity_processor/service"
	"github.com/plotbook-crm/internal/config"
	"github.com/plotbook-crm/internal/domain/activity"
)

// CreateRecordingService wires the recording pipeline behind the worker pool.
// The returned shutdown func releases the pool and is never nil.
func CreateRecordingService(
	activityRepo activity.Repository,
	logger *slog.Logger,
	cfg *config.Config,
) (service.RecordingService, func()) {
	validator := NewEntryValidator(activityRepo, logger)
	recorder := NewActivityRecorder(activityRepo, logger)

	baseService := service.NewRecordingService(validator, recorder, logger)

	workerPoolService, err := service.NewWorkerPoolRecordingService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService, func() {}
	}

	logger.Info("Created worker pool recording service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService, workerPoolService.Shutdown
}
