// Package postgres provides PostgreSQL implementations of the domain repositories.
// It handles all database operations while maintaining transaction safety and
// proper error handling for the plot booking CRM.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/plotbook-crm/internal/domain/customer"
	"github.com/plotbook-crm/internal/platform/persistence"
)

const customerColumns = `id, customer_code, name, phone, email, address, aadhaar_card, pan_card,
		project_name, plot_number, plot_size, booking_date, total_amount, booking_amount,
		received_amount, balance_amount, next_due_date, agent_id, status, version, created_at, updated_at`

const installmentColumns = `id, customer_id, installment_no, installment_date, received_amount, balance_amount,
		status, payment_mode, bank_name, reference, cheque_date, remarks`

var sortColumns = map[string]string{
	customer.SortCreatedAt:     "created_at",
	customer.SortBookingDate:   "booking_date",
	customer.SortBalanceAmount: "balance_amount",
	customer.SortName:          "name",
}

// CustomerRepository implements the customer.Repository interface for PostgreSQL
type CustomerRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewCustomerRepository creates a new PostgreSQL customer repository.
func NewCustomerRepository(logger *slog.Logger, db *persistence.PostgresDB) customer.Repository {
	return &CustomerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx. Create and Update issue several
// statements and should always run through a transaction-bound repository.
func (r *CustomerRepository) WithTx(tx pgx.Tx) customer.Repository {
	return &CustomerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new customer and its installments
func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	query := `
		INSERT INTO customers (` + customerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`

	_, err := r.querier.Exec(ctx, query,
		c.ID, c.CustomerCode, c.Name, c.Phone, c.Email, c.Address, c.AadhaarCard, c.PanCard,
		c.ProjectName, c.PlotNumber, c.PlotSize, c.BookingDate, c.TotalAmount, c.BookingAmount,
		c.ReceivedAmount, c.BalanceAmount, c.NextDueDate, c.AgentID, c.Status, c.Version, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if _, ok := persistence.IsUniqueViolation(err); ok {
			return customer.ErrDuplicateCustomerCode{Code: c.CustomerCode}
		}
		if _, ok := persistence.IsForeignKeyViolation(err); ok {
			return customer.ErrUnknownAgent
		}
		r.logger.Error("Failed to create customer", "customer_code", c.CustomerCode, "error", err)
		return fmt.Errorf("failed to create customer: %w", err)
	}

	return r.insertInstallments(ctx, c)
}

// GetByID retrieves a customer with its installments in order
func (r *CustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	c, err := scanCustomer(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrCustomerNotFound{CustomerID: id}
		}
		r.logger.Error("Failed to get customer", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	if err := r.loadInstallments(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetByCode retrieves a customer by its customer code. Returns nil, nil when
// no customer carries the code.
func (r *CustomerRepository) GetByCode(ctx context.Context, code string) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE customer_code = $1`

	c, err := scanCustomer(r.querier.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get customer by code", "customer_code", code, "error", err)
		return nil, fmt.Errorf("failed to get customer by code: %w", err)
	}

	if err := r.loadInstallments(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns customers matching the filter without their installments
func (r *CustomerRepository) List(ctx context.Context, filter customer.Filter) ([]*customer.Customer, error) {
	where, args := buildCustomerWhere(filter)
	query := `SELECT ` + customerColumns + ` FROM customers` + where + orderBy(filter)

	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list customers", "error", err)
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	customers := []*customer.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			r.logger.Error("Failed to scan customer", "error", err)
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over customers: %w", err)
	}

	return customers, nil
}

// Count returns the number of customers matching the filter, ignoring paging
func (r *CustomerRepository) Count(ctx context.Context, filter customer.Filter) (int64, error) {
	where, args := buildCustomerWhere(filter)

	var count int64
	if err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count customers", "error", err)
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}
	return count, nil
}

// Update persists the customer and replaces its installments.
// Returns ErrConcurrentModification when the stored version is not Version-1.
func (r *CustomerRepository) Update(ctx context.Context, c *customer.Customer) error {
	query := `
		UPDATE customers
		SET customer_code = $1, name = $2, phone = $3, email = $4, address = $5, aadhaar_card = $6,
			pan_card = $7, project_name = $8, plot_number = $9, plot_size = $10, booking_date = $11,
			total_amount = $12, booking_amount = $13, received_amount = $14, balance_amount = $15,
			next_due_date = $16, agent_id = $17, status = $18, version = $19, updated_at = $20
		WHERE id = $21 AND version = $22
	`

	result, err := r.querier.Exec(ctx, query,
		c.CustomerCode, c.Name, c.Phone, c.Email, c.Address, c.AadhaarCard,
		c.PanCard, c.ProjectName, c.PlotNumber, c.PlotSize, c.BookingDate,
		c.TotalAmount, c.BookingAmount, c.ReceivedAmount, c.BalanceAmount,
		c.NextDueDate, c.AgentID, c.Status, c.Version, c.UpdatedAt,
		c.ID, c.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		if _, ok := persistence.IsUniqueViolation(err); ok {
			return customer.ErrDuplicateCustomerCode{Code: c.CustomerCode}
		}
		if _, ok := persistence.IsForeignKeyViolation(err); ok {
			return customer.ErrUnknownAgent
		}
		r.logger.Error("Failed to update customer", "id", c.ID.String(), "error", err)
		return fmt.Errorf("failed to update customer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return customer.ErrConcurrentModification{CustomerID: c.ID}
	}

	if _, err := r.querier.Exec(ctx, `DELETE FROM installments WHERE customer_id = $1`, c.ID); err != nil {
		r.logger.Error("Failed to clear installments", "id", c.ID.String(), "error", err)
		return fmt.Errorf("failed to clear installments: %w", err)
	}

	return r.insertInstallments(ctx, c)
}

// Delete removes a customer; installments cascade
func (r *CustomerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.querier.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete customer", "id", id.String(), "error", err)
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return customer.ErrCustomerNotFound{CustomerID: id}
	}
	return nil
}

// Summary aggregates totals across all bookings for the dashboard
func (r *CustomerRepository) Summary(ctx context.Context, now time.Time) (*customer.Summary, error) {
	summary := &customer.Summary{
		ByStatus:        map[customer.Status]int64{},
		BookingsByAgent: []customer.AgentBookings{},
	}

	totalsQuery := `
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0), COALESCE(SUM(received_amount), 0),
			COALESCE(SUM(balance_amount), 0),
			COUNT(*) FILTER (WHERE next_due_date < $1 AND balance_amount > 0)
		FROM customers
	`
	err := r.querier.QueryRow(ctx, totalsQuery, now).Scan(
		&summary.TotalCustomers,
		&summary.TotalSaleValue,
		&summary.TotalReceived,
		&summary.TotalOutstanding,
		&summary.OverdueCustomers,
	)
	if err != nil {
		r.logger.Error("Failed to aggregate customer totals", "error", err)
		return nil, fmt.Errorf("failed to aggregate customer totals: %w", err)
	}

	statusRows, err := r.querier.Query(ctx, `SELECT status, COUNT(*) FROM customers GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count customers by status: %w", err)
	}
	for statusRows.Next() {
		var status customer.Status
		var n int64
		if err := statusRows.Scan(&status, &n); err != nil {
			statusRows.Close()
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		summary.ByStatus[status] = n
	}
	statusRows.Close()
	if err := statusRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over status counts: %w", err)
	}

	bouncedQuery := `
		SELECT COUNT(*) FROM installments
		WHERE LOWER(TRIM(status)) IN ('cheque bounce', 'bounced')
	`
	if err := r.querier.QueryRow(ctx, bouncedQuery).Scan(&summary.BouncedInstalments); err != nil {
		return nil, fmt.Errorf("failed to count bounced installments: %w", err)
	}

	agentQuery := `
		SELECT c.agent_id, s.name, COUNT(*), COALESCE(SUM(c.total_amount), 0)
		FROM customers c
		JOIN staff s ON s.id = c.agent_id
		GROUP BY c.agent_id, s.name
		ORDER BY COUNT(*) DESC, s.name ASC
	`
	agentRows, err := r.querier.Query(ctx, agentQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate bookings by agent: %w", err)
	}
	defer agentRows.Close()
	for agentRows.Next() {
		var ab customer.AgentBookings
		if err := agentRows.Scan(&ab.AgentID, &ab.AgentName, &ab.Bookings, &ab.SaleValue); err != nil {
			return nil, fmt.Errorf("failed to scan agent bookings: %w", err)
		}
		summary.BookingsByAgent = append(summary.BookingsByAgent, ab)
	}
	if err := agentRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over agent bookings: %w", err)
	}

	return summary, nil
}

func (r *CustomerRepository) insertInstallments(ctx context.Context, c *customer.Customer) error {
	query := `
		INSERT INTO installments (` + installmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for _, inst := range c.Installments {
		_, err := r.querier.Exec(ctx, query,
			inst.ID, c.ID, inst.InstallmentNo, inst.InstallmentDate, inst.ReceivedAmount, inst.BalanceAmount,
			inst.Status, inst.PaymentMode, inst.BankName, inst.Reference, inst.ChequeDate, inst.Remarks,
		)
		if err != nil {
			r.logger.Error("Failed to insert installment",
				"customer_id", c.ID.String(),
				"installment_no", inst.InstallmentNo,
				"error", err)
			return fmt.Errorf("failed to insert installment %d: %w", inst.InstallmentNo, err)
		}
	}
	return nil
}

func (r *CustomerRepository) loadInstallments(ctx context.Context, c *customer.Customer) error {
	query := `SELECT ` + installmentColumns + ` FROM installments WHERE customer_id = $1 ORDER BY installment_no ASC`

	rows, err := r.querier.Query(ctx, query, c.ID)
	if err != nil {
		r.logger.Error("Failed to load installments", "customer_id", c.ID.String(), "error", err)
		return fmt.Errorf("failed to load installments: %w", err)
	}
	defer rows.Close()

	c.Installments = []customer.Installment{}
	for rows.Next() {
		var inst customer.Installment
		err := rows.Scan(
			&inst.ID, &inst.CustomerID, &inst.InstallmentNo, &inst.InstallmentDate,
			&inst.ReceivedAmount, &inst.BalanceAmount, &inst.Status, &inst.PaymentMode,
			&inst.BankName, &inst.Reference, &inst.ChequeDate, &inst.Remarks,
		)
		if err != nil {
			return fmt.Errorf("failed to scan installment: %w", err)
		}
		c.Installments = append(c.Installments, inst)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over installments: %w", err)
	}
	return nil
}

func scanCustomer(row pgx.Row) (*customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(
		&c.ID, &c.CustomerCode, &c.Name, &c.Phone, &c.Email, &c.Address, &c.AadhaarCard, &c.PanCard,
		&c.ProjectName, &c.PlotNumber, &c.PlotSize, &c.BookingDate, &c.TotalAmount, &c.BookingAmount,
		&c.ReceivedAmount, &c.BalanceAmount, &c.NextDueDate, &c.AgentID, &c.Status, &c.Version,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Installments = []customer.Installment{}
	return &c, nil
}

// buildCustomerWhere renders the filter into a WHERE clause with positional args
func buildCustomerWhere(f customer.Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		add("(name ILIKE $%[1]d OR phone ILIKE $%[1]d OR customer_code ILIKE $%[1]d OR plot_number ILIKE $%[1]d)", "%"+s+"%")
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.AgentID != nil {
		add("agent_id = $%d", *f.AgentID)
	}
	if f.ProjectName != "" {
		add("project_name = $%d", f.ProjectName)
	}
	if f.BookedFrom != nil {
		add("booking_date >= $%d", *f.BookedFrom)
	}
	if f.BookedTo != nil {
		add("booking_date <= $%d", *f.BookedTo)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(f customer.Filter) string {
	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if f.SortDesc {
		direction = "DESC"
	}
	return " ORDER BY " + column + " " + direction + ", id ASC"
}
