package customer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Sortable list columns
const (
	SortCreatedAt     = "created_at"
	SortBookingDate   = "booking_date"
	SortBalanceAmount = "balance_amount"
	SortName          = "name"
)

// Filter narrows and orders a customer listing
type Filter struct {
	Search      string
	Status      Status
	AgentID     *uuid.UUID
	ProjectName string
	BookedFrom  *time.Time
	BookedTo    *time.Time
	SortBy      string
	SortDesc    bool
	Limit       int
	Offset      int
}

// Summary aggregates the booking book for the dashboard
type Summary struct {
	TotalCustomers     int64            `json:"total_customers"`
	ByStatus           map[Status]int64 `json:"by_status"`
	TotalSaleValue     decimal.Decimal  `json:"total_sale_value"`
	TotalReceived      decimal.Decimal  `json:"total_received"`
	TotalOutstanding   decimal.Decimal  `json:"total_outstanding"`
	BouncedInstalments int64            `json:"bounced_installments"`
	OverdueCustomers   int64            `json:"overdue_customers"`
	BookingsByAgent    []AgentBookings  `json:"bookings_by_agent"`
}

// AgentBookings counts bookings attributed to one agent
type AgentBookings struct {
	AgentID   uuid.UUID       `json:"agent_id"`
	AgentName string          `json:"agent_name"`
	Bookings  int64           `json:"bookings"`
	SaleValue decimal.Decimal `json:"sale_value"`
}

// Repository defines customer persistence operations
type Repository interface {
	Create(ctx context.Context, customer *Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	GetByCode(ctx context.Context, code string) (*Customer, error)
	List(ctx context.Context, filter Filter) ([]*Customer, error)
	Count(ctx context.Context, filter Filter) (int64, error)

	// Update persists the customer and its full installment list using
	// optimistic locking on Version-1
	Update(ctx context.Context, customer *Customer) error
	Delete(ctx context.Context, id uuid.UUID) error
	Summary(ctx context.Context, now time.Time) (*Summary, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrCustomerNotFound indicates missing customer
type ErrCustomerNotFound struct {
	CustomerID uuid.UUID
}

func (e ErrCustomerNotFound) Error() string {
	return "customer not found: " + e.CustomerID.String()
}

// ErrInstallmentNotFound indicates missing installment on a customer
type ErrInstallmentNotFound struct {
	InstallmentID uuid.UUID
}

func (e ErrInstallmentNotFound) Error() string {
	return "installment not found: " + e.InstallmentID.String()
}

// ErrDuplicateCustomerCode indicates customer code uniqueness violation
type ErrDuplicateCustomerCode struct {
	Code string
}

func (e ErrDuplicateCustomerCode) Error() string {
	return "customer with code already exists: " + e.Code
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	CustomerID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for customer: " + e.CustomerID.String()
}
