package staff

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Filter narrows a staff listing
type Filter struct {
	Role       Role
	ActiveOnly bool
	Limit      int
	Offset     int
}

// Repository defines staff persistence operations
type Repository interface {
	Create(ctx context.Context, staff *Staff) error
	GetByID(ctx context.Context, id uuid.UUID) (*Staff, error)
	GetByEmail(ctx context.Context, email string) (*Staff, error)
	List(ctx context.Context, filter Filter) ([]*Staff, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	Update(ctx context.Context, staff *Staff) error
	Delete(ctx context.Context, id uuid.UUID) error
	WithTx(tx pgx.Tx) Repository
}

// ErrStaffNotFound indicates missing staff member
type ErrStaffNotFound struct {
	StaffID uuid.UUID
	Email   string
}

func (e ErrStaffNotFound) Error() string {
	if e.Email != "" {
		return "staff not found: " + e.Email
	}
	return "staff not found: " + e.StaffID.String()
}

// ErrDuplicateEmail indicates email uniqueness violation
type ErrDuplicateEmail struct {
	Email string
}

func (e ErrDuplicateEmail) Error() string {
	return "staff with email already exists: " + e.Email
}
