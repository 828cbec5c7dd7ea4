package service

import (
	"context"

	"github.com/plotbook-crm/internal/domain/activity"
)

// ActivityServiceImpl implements the ActivityService interface
type ActivityServiceImpl struct {
	activityRepo activity.Repository
}

// NewActivityService creates a new activity log service
func NewActivityService(activityRepo activity.Repository) ActivityService {
	return &ActivityServiceImpl{
		activityRepo: activityRepo,
	}
}

// ListActivity retrieves a page of the audit trail, newest first
// Returns entries, total count, and any error
func (s *ActivityServiceImpl) ListActivity(ctx context.Context, filter activity.Filter, page, perPage int) ([]*activity.Entry, int64, error) {
	offset := (page - 1) * perPage

	entries, err := s.activityRepo.List(ctx, filter, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.activityRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
