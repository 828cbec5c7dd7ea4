package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/plotbook-crm/internal/activity_processor/service"
	"github.com/plotbook-crm/internal/domain/activity"
	"github.com/plotbook-crm/internal/domain/shared"
)

var knownActions = map[activity.Action]struct{}{
	activity.ActionCustomerCreated:    {},
	activity.ActionCustomerUpdated:    {},
	activity.ActionCustomerDeleted:    {},
	activity.ActionInstallmentAdded:   {},
	activity.ActionInstallmentUpdated: {},
	activity.ActionInstallmentRemoved: {},
	activity.ActionStaffCreated:       {},
	activity.ActionStaffUpdated:       {},
	activity.ActionStaffDeleted:       {},
}

type EntryValidatorImpl struct {
	activityRepo activity.Repository
	logger       *slog.Logger
}

func NewEntryValidator(activityRepo activity.Repository, logger *slog.Logger) service.EntryValidator {
	return &EntryValidatorImpl{
		activityRepo: activityRepo,
		logger:       logger,
	}
}

// Validate checks that the event carries an id, a known action and an entity
func (v *EntryValidatorImpl) Validate(_ context.Context, entry *activity.Entry) error {
	if entry.EventID == uuid.Nil {
		return errors.New("event_id is required")
	}
	if _, ok := knownActions[entry.Action]; !ok {
		return fmt.Errorf("unknown action %q", entry.Action)
	}
	switch entry.EntityType {
	case shared.EntityTypeCustomer, shared.EntityTypeInstallment, shared.EntityTypeStaff:
	default:
		return fmt.Errorf("unknown entity type %q", entry.EntityType)
	}
	if entry.EntityID == uuid.Nil {
		return errors.New("entity_id is required")
	}
	if entry.OccurredAt.IsZero() {
		return errors.New("occurred_at is required")
	}
	return nil
}

// CheckIdempotency reports whether the event was already recorded
func (v *EntryValidatorImpl) CheckIdempotency(ctx context.Context, entry *activity.Entry) (bool, error) {
	logger := v.logger
	if entry.CorrelationID != "" {
		logger = v.logger.With("correlation_id", entry.CorrelationID)
	}

	existing, err := v.activityRepo.GetByEventID(ctx, entry.EventID)
	if err != nil && !errors.Is(err, activity.ErrEntryNotFound{}) {
		logger.Error("Failed to check activity log for idempotency", "event_id", entry.EventID.String(), "error", err)
		return false, fmt.Errorf("idempotency check failed for event %s: %w", entry.EventID.String(), err)
	}

	if existing != nil {
		logger.Info("Activity already recorded (idempotency)", "event_id", entry.EventID.String())
		return true, nil
	}
	return false, nil
}
