package components

import (
	"context"

	"github.com/google/uuid"
	"github.com/plotbook-crm/internal/domain/activity"
	"github.com/stretchr/testify/mock"
)

type MockActivityRepo struct {
	mock.Mock
}

func (m *MockActivityRepo) Create(ctx context.Context, entry *activity.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockActivityRepo) GetByEventID(ctx context.Context, eventID uuid.UUID) (*activity.Entry, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*activity.Entry), args.Error(1)
}

func (m *MockActivityRepo) List(ctx context.Context, filter activity.Filter, limit, offset int) ([]*activity.Entry, error) {
	args := m.Called(ctx, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*activity.Entry), args.Error(1)
}

func (m *MockActivityRepo) Count(ctx context.Context, filter activity.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}
