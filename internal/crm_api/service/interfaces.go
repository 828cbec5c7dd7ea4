package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/plotbook-crm/internal/domain/activity"
	"github.com/plotbook-crm/internal/domain/customer"
	"github.com/plotbook-crm/internal/domain/ledger"
	"github.com/plotbook-crm/internal/domain/staff"
	"github.com/shopspring/decimal"
)

// TxRunner runs fn inside a database transaction; *persistence.PostgresDB satisfies it
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// OutboxManager stages activity entries in the caller's transaction
type OutboxManager interface {
	Enqueue(ctx context.Context, tx pgx.Tx, entry *activity.Entry) error
}

// CustomerInput is the editable content of a booking. A nil Installments
// slice leaves the stored installments untouched on update.
type CustomerInput struct {
	Details       customer.Details
	TotalAmount   decimal.Decimal
	BookingAmount decimal.Decimal
	Installments  []customer.Installment
}

// CustomerService defines the interface for plot booking operations
type CustomerService interface {
	// CreateCustomer stores a new booking with reconciled amounts
	// Returns ErrDuplicateCustomerCode if the customer code is taken
	CreateCustomer(ctx context.Context, input CustomerInput) (*customer.Customer, error)

	// GetCustomer retrieves a booking with its installments
	// Returns ErrCustomerNotFound if the customer doesn't exist
	GetCustomer(ctx context.Context, id uuid.UUID) (*customer.Customer, error)

	// ListCustomers returns one page of bookings and the total matching count
	ListCustomers(ctx context.Context, filter customer.Filter) ([]*customer.Customer, int64, error)

	// UpdateCustomer replaces the booking if version matches the stored one
	// Returns ErrConcurrentModification on a stale version
	UpdateCustomer(ctx context.Context, id uuid.UUID, version int, input CustomerInput) (*customer.Customer, error)

	DeleteCustomer(ctx context.Context, id uuid.UUID) error

	// Installment writes return the whole reconciled customer as stored
	AddInstallment(ctx context.Context, customerID uuid.UUID, inst customer.Installment) (*customer.Customer, error)
	UpdateInstallment(ctx context.Context, customerID, installmentID uuid.UUID, inst customer.Installment) (*customer.Customer, error)
	RemoveInstallment(ctx context.Context, customerID, installmentID uuid.UUID) (*customer.Customer, error)

	// PreviewLedger reconciles an unsaved draft without touching storage
	PreviewLedger(totalAmount, bookingAmount decimal.Decimal, lines []ledger.Line) ledger.Result
}

// StaffInput is the editable content of a staff member. An empty Password
// keeps the current one on update; a nil IsActive keeps the current state.
type StaffInput struct {
	Name        string
	Email       string
	Phone       string
	Role        staff.Role
	Password    string
	IsActive    *bool
	JoiningDate *time.Time
}

// StaffService defines the interface for roster management
type StaffService interface {
	CreateStaff(ctx context.Context, input StaffInput) (*staff.Staff, error)
	GetStaff(ctx context.Context, id uuid.UUID) (*staff.Staff, error)
	ListStaff(ctx context.Context, filter staff.Filter) ([]*staff.Staff, int64, error)
	UpdateStaff(ctx context.Context, id uuid.UUID, input StaffInput) (*staff.Staff, error)
	DeleteStaff(ctx context.Context, id uuid.UUID) error

	// EnsureBootstrapAdmin creates the first admin when the roster is empty
	EnsureBootstrapAdmin(ctx context.Context, email, password string) error
}

// Claims is what a verified access token says about its bearer
type Claims struct {
	StaffID uuid.UUID
	Name    string
	Role    staff.Role
}

// AuthService issues and verifies staff access tokens
type AuthService interface {
	// Login returns a signed token and the authenticated staff member
	// Returns ErrInvalidCredentials or ErrInactive on rejection
	Login(ctx context.Context, email, password string) (string, time.Time, *staff.Staff, error)
	ParseToken(token string) (*Claims, error)
}

// ActivityService reads the audit trail
type ActivityService interface {
	ListActivity(ctx context.Context, filter activity.Filter, page, perPage int) ([]*activity.Entry, int64, error)
}

// WhatsAppMessage is a rendered template ready to share
type WhatsAppMessage struct {
	Template string `json:"template"`
	Phone    string `json:"phone"`
	Text     string `json:"text"`
	Link     string `json:"link"`
}

// CSVExport is a rendered customer export. Truncated reports that more
// customers matched than the export cap allows.
type CSVExport struct {
	Data      []byte
	Rows      int
	Truncated bool
}

// ReportService builds dashboards, exports and customer communications
type ReportService interface {
	Dashboard(ctx context.Context) (*customer.Summary, error)
	StatementPDF(ctx context.Context, customerID uuid.UUID) ([]byte, *customer.Customer, error)
	ExportCSV(ctx context.Context, filter customer.Filter) (*CSVExport, error)
	WhatsApp(ctx context.Context, customerID uuid.UUID, template string) (*WhatsAppMessage, error)
}
