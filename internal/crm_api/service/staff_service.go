package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/plotbook-crm/internal/domain/activity"
	"github.com/plotbook-crm/internal/domain/shared"
	"github.com/plotbook-crm/internal/domain/staff"
)

// StaffServiceImpl implements the StaffService interface
type StaffServiceImpl struct {
	db        TxRunner
	staffRepo staff.Repository
	outbox    OutboxManager
	logger    *slog.Logger
}

// NewStaffService creates a new staff service
func NewStaffService(logger *slog.Logger, db TxRunner, staffRepo staff.Repository, outbox OutboxManager) StaffService {
	return &StaffServiceImpl{
		db:        db,
		staffRepo: staffRepo,
		outbox:    outbox,
		logger:    logger,
	}
}

// CreateStaff adds a staff member, returns ErrDuplicateEmail if the email is taken
func (s *StaffServiceImpl) CreateStaff(ctx context.Context, input StaffInput) (*staff.Staff, error) {
	member, err := staff.NewStaff(input.Name, input.Email, input.Phone, input.Role, input.Password, input.JoiningDate)
	if err != nil {
		return nil, err
	}
	if input.IsActive != nil {
		member.IsActive = *input.IsActive
	}

	if err := s.create(ctx, actorFor(ctx), member); err != nil {
		return nil, err
	}
	return member, nil
}

// GetStaff retrieves a staff member, returns ErrStaffNotFound if not found
func (s *StaffServiceImpl) GetStaff(ctx context.Context, id uuid.UUID) (*staff.Staff, error) {
	return s.staffRepo.GetByID(ctx, id)
}

// ListStaff returns one page of the roster and the total count for the filter
func (s *StaffServiceImpl) ListStaff(ctx context.Context, filter staff.Filter) ([]*staff.Staff, int64, error) {
	members, err := s.staffRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.staffRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return members, total, nil
}

// UpdateStaff changes profile, password and activation of a staff member
func (s *StaffServiceImpl) UpdateStaff(ctx context.Context, id uuid.UUID, input StaffInput) (*staff.Staff, error) {
	actor := actorFor(ctx)
	var result *staff.Staff

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := s.staffRepo.WithTx(tx)
		member, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if err := member.SetProfile(input.Name, input.Email, input.Phone, input.Role); err != nil {
			return err
		}
		if input.Password != "" {
			if err := member.SetPassword(input.Password); err != nil {
				return err
			}
		}
		if input.IsActive != nil {
			member.IsActive = *input.IsActive
		}
		if input.JoiningDate != nil {
			member.JoiningDate = input.JoiningDate
		}

		if err := repo.Update(ctx, member); err != nil {
			return err
		}

		entry := activity.NewEntry(actor, activity.ActionStaffUpdated, shared.EntityTypeStaff, member.ID,
			fmt.Sprintf("Updated staff member %s", member.Name)).
			With("role", string(member.Role)).
			With("is_active", fmt.Sprintf("%t", member.IsActive))
		if input.Password != "" {
			entry.With("password_changed", "true")
		}
		if err := s.outbox.Enqueue(ctx, tx, entry); err != nil {
			return err
		}
		result = member
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Staff updated", "staff_id", id.String(), "actor_id", actor.ID.String())
	return result, nil
}

// DeleteStaff removes a staff member from the roster
func (s *StaffServiceImpl) DeleteStaff(ctx context.Context, id uuid.UUID) error {
	actor := actorFor(ctx)

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := s.staffRepo.WithTx(tx)
		member, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, id); err != nil {
			return err
		}
		entry := activity.NewEntry(actor, activity.ActionStaffDeleted, shared.EntityTypeStaff, id,
			fmt.Sprintf("Deleted staff member %s", member.Name)).
			With("email", member.Email)
		return s.outbox.Enqueue(ctx, tx, entry)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Staff deleted", "staff_id", id.String(), "actor_id", actor.ID.String())
	return nil
}

// EnsureBootstrapAdmin seeds an admin account when no staff exist yet. It is
// a no-op when email is empty or the roster already has members.
func (s *StaffServiceImpl) EnsureBootstrapAdmin(ctx context.Context, email, password string) error {
	if email == "" {
		return nil
	}

	total, err := s.staffRepo.Count(ctx, staff.Filter{})
	if err != nil {
		return err
	}
	if total > 0 {
		return nil
	}

	admin, err := staff.NewStaff("Administrator", email, "", staff.RoleAdmin, password, nil)
	if err != nil {
		return fmt.Errorf("invalid bootstrap admin: %w", err)
	}

	if err := s.create(ctx, SystemActor, admin); err != nil {
		var dup staff.ErrDuplicateEmail
		if errors.As(err, &dup) {
			// Another replica seeded it first
			return nil
		}
		return err
	}

	s.logger.Warn("Bootstrap admin account created", "email", admin.Email)
	return nil
}

func (s *StaffServiceImpl) create(ctx context.Context, actor shared.Actor, member *staff.Staff) error {
	entry := activity.NewEntry(actor, activity.ActionStaffCreated, shared.EntityTypeStaff, member.ID,
		fmt.Sprintf("Added staff member %s", member.Name)).
		With("email", member.Email).
		With("role", string(member.Role))

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.staffRepo.WithTx(tx).Create(ctx, member); err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, tx, entry)
	})
	if err != nil {
		s.logger.Error("Failed to create staff", "email", member.Email, "error", err)
		return err
	}

	s.logger.Info("Staff created", "staff_id", member.ID.String(), "role", string(member.Role))
	return nil
}
