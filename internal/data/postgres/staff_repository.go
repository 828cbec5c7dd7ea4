package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/plotbook-crm/internal/domain/staff"
	"github.com/plotbook-crm/internal/platform/persistence"
)

const staffColumns = `id, name, email, phone, role, password_hash, is_active, joining_date, created_at, updated_at`

// StaffRepository implements the staff.Repository interface for PostgreSQL
type StaffRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewStaffRepository creates a new PostgreSQL staff repository
func NewStaffRepository(logger *slog.Logger, db *persistence.PostgresDB) staff.Repository {
	return &StaffRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx
func (r *StaffRepository) WithTx(tx pgx.Tx) staff.Repository {
	return &StaffRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new staff member. Returns ErrDuplicateEmail on email clash.
func (r *StaffRepository) Create(ctx context.Context, s *staff.Staff) error {
	query := `
		INSERT INTO staff (` + staffColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.querier.Exec(ctx, query,
		s.ID, s.Name, s.Email, s.Phone, s.Role, s.PasswordHash, s.IsActive, s.JoiningDate, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if _, ok := persistence.IsUniqueViolation(err); ok {
			return staff.ErrDuplicateEmail{Email: s.Email}
		}
		r.logger.Error("Failed to create staff", "email", s.Email, "error", err)
		return fmt.Errorf("failed to create staff: %w", err)
	}
	return nil
}

// GetByID retrieves a staff member by ID
func (r *StaffRepository) GetByID(ctx context.Context, id uuid.UUID) (*staff.Staff, error) {
	s, err := scanStaff(r.querier.QueryRow(ctx, `SELECT `+staffColumns+` FROM staff WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, staff.ErrStaffNotFound{StaffID: id}
		}
		r.logger.Error("Failed to get staff", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get staff: %w", err)
	}
	return s, nil
}

// GetByEmail retrieves a staff member by login email, case-insensitively
func (r *StaffRepository) GetByEmail(ctx context.Context, email string) (*staff.Staff, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s, err := scanStaff(r.querier.QueryRow(ctx, `SELECT `+staffColumns+` FROM staff WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, staff.ErrStaffNotFound{Email: email}
		}
		r.logger.Error("Failed to get staff by email", "error", err)
		return nil, fmt.Errorf("failed to get staff by email: %w", err)
	}
	return s, nil
}

// List returns staff ordered by name
func (r *StaffRepository) List(ctx context.Context, filter staff.Filter) ([]*staff.Staff, error) {
	where, args := buildStaffWhere(filter)
	query := `SELECT ` + staffColumns + ` FROM staff` + where + ` ORDER BY name ASC, id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list staff", "error", err)
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	members := []*staff.Staff{}
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		members = append(members, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over staff: %w", err)
	}
	return members, nil
}

// Count returns the number of staff matching the filter
func (r *StaffRepository) Count(ctx context.Context, filter staff.Filter) (int64, error) {
	where, args := buildStaffWhere(filter)
	var count int64
	if err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM staff`+where, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count staff", "error", err)
		return 0, fmt.Errorf("failed to count staff: %w", err)
	}
	return count, nil
}

// Update persists profile, password and activation changes
func (r *StaffRepository) Update(ctx context.Context, s *staff.Staff) error {
	query := `
		UPDATE staff
		SET name = $1, email = $2, phone = $3, role = $4, password_hash = $5, is_active = $6,
			joining_date = $7, updated_at = $8
		WHERE id = $9
	`
	result, err := r.querier.Exec(ctx, query,
		s.Name, s.Email, s.Phone, s.Role, s.PasswordHash, s.IsActive, s.JoiningDate, s.UpdatedAt, s.ID,
	)
	if err != nil {
		if _, ok := persistence.IsUniqueViolation(err); ok {
			return staff.ErrDuplicateEmail{Email: s.Email}
		}
		r.logger.Error("Failed to update staff", "id", s.ID.String(), "error", err)
		return fmt.Errorf("failed to update staff: %w", err)
	}
	if result.RowsAffected() == 0 {
		return staff.ErrStaffNotFound{StaffID: s.ID}
	}
	return nil
}

// Delete removes a staff member. Customers assigned to them keep no agent.
func (r *StaffRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.querier.Exec(ctx, `DELETE FROM staff WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete staff", "id", id.String(), "error", err)
		return fmt.Errorf("failed to delete staff: %w", err)
	}
	if result.RowsAffected() == 0 {
		return staff.ErrStaffNotFound{StaffID: id}
	}
	return nil
}

func scanStaff(row pgx.Row) (*staff.Staff, error) {
	var s staff.Staff
	err := row.Scan(
		&s.ID, &s.Name, &s.Email, &s.Phone, &s.Role, &s.PasswordHash, &s.IsActive, &s.JoiningDate, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func buildStaffWhere(f staff.Filter) (string, []any) {
	var conds []string
	var args []any
	if f.Role != "" {
		args = append(args, f.Role)
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	if f.ActiveOnly {
		conds = append(conds, "is_active = TRUE")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
