package customer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/plotbook-crm/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrEmptyName            = errors.New("customer name cannot be empty")
	ErrEmptyCustomerCode    = errors.New("customer code cannot be empty")
	ErrNegativeAmount       = errors.New("amount cannot be negative")
	ErrInvalidStatus        = errors.New("invalid customer status")
	ErrInvalidInstallment   = errors.New("invalid installment status")
	ErrInvalidPaymentMode   = errors.New("invalid payment mode")
	ErrUnknownAgent         = errors.New("agent does not match any staff member")
	ErrDuplicateInstallment = errors.New("installment listed more than once")
	ErrForeignInstallment   = errors.New("installment does not belong to this customer")
)

// Status is the lifecycle state of a plot booking
type Status string

const (
	StatusActive    Status = "Active"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// Installment statuses
const (
	InstallmentPending      = "Pending"
	InstallmentPaid         = "Paid"
	InstallmentPartial      = "Partial"
	InstallmentChequeBounce = ledger.StatusChequeBounce
	InstallmentBounced      = ledger.StatusBounced
)

// Payment modes
const (
	PaymentModeCash    = "Cash"
	PaymentModeCheque  = "Cheque"
	PaymentModeUPI     = "UPI"
	PaymentModeNEFT    = "NEFT/RTGS"
	PaymentModeCard    = "Card"
	PaymentModeUnknown = ""
)

var installmentStatuses = map[string]struct{}{
	InstallmentPending:      {},
	InstallmentPaid:         {},
	InstallmentPartial:      {},
	InstallmentChequeBounce: {},
	InstallmentBounced:      {},
}

var paymentModes = map[string]struct{}{
	PaymentModeCash:    {},
	PaymentModeCheque:  {},
	PaymentModeUPI:     {},
	PaymentModeNEFT:    {},
	PaymentModeCard:    {},
	PaymentModeUnknown: {},
}

// Installment is one payment event against a customer's booking
type Installment struct {
	ID              uuid.UUID       `json:"id"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	InstallmentNo   int             `json:"installment_no"`
	InstallmentDate time.Time       `json:"installment_date"`
	ReceivedAmount  decimal.Decimal `json:"received_amount"`
	BalanceAmount   decimal.Decimal `json:"balance_amount"` // Derived
	Status          string          `json:"status"`
	PaymentMode     string          `json:"payment_mode,omitempty"`
	BankName        string          `json:"bank_name,omitempty"`
	Reference       string          `json:"reference,omitempty"` // Cheque number or UTR
	ChequeDate      *time.Time      `json:"cheque_date,omitempty"`
	Remarks         string          `json:"remarks,omitempty"`
}

// IsBounced reports whether the installment failed to clear
func (i *Installment) IsBounced() bool {
	return ledger.IsBounced(i.Status)
}

// Customer is a plot booking together with its ordered installments
type Customer struct {
	ID             uuid.UUID       `json:"id"`
	CustomerCode   string          `json:"customer_code"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone"`
	Email          string          `json:"email,omitempty"`
	Address        string          `json:"address,omitempty"`
	AadhaarCard    string          `json:"aadhaar_card,omitempty"`
	PanCard        string          `json:"pan_card,omitempty"`
	ProjectName    string          `json:"project_name"`
	PlotNumber     string          `json:"plot_number"`
	PlotSize       string          `json:"plot_size,omitempty"`
	BookingDate    time.Time       `json:"booking_date"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	BookingAmount  decimal.Decimal `json:"booking_amount"`
	ReceivedAmount decimal.Decimal `json:"received_amount"` // Derived
	BalanceAmount  decimal.Decimal `json:"balance_amount"`  // Derived
	NextDueDate    *time.Time      `json:"next_due_date,omitempty"`
	AgentID        *uuid.UUID      `json:"agent_id,omitempty"`
	Status         Status          `json:"status"`
	Version        int             `json:"version"` // For optimistic locking
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Installments   []Installment   `json:"installments"`
}

// Details carries the editable, non-derived customer attributes
type Details struct {
	CustomerCode string
	Name         string
	Phone        string
	Email        string
	Address      string
	AadhaarCard  string
	PanCard      string
	ProjectName  string
	PlotNumber   string
	PlotSize     string
	BookingDate  time.Time
	NextDueDate  *time.Time
	AgentID      *uuid.UUID
	Status       Status
}

// NewCustomer creates a booking with reconciled amounts and no installments
func NewCustomer(details Details, totalAmount, bookingAmount decimal.Decimal) (*Customer, error) {
	if err := validateDetails(&details); err != nil {
		return nil, err
	}
	if totalAmount.IsNegative() || bookingAmount.IsNegative() {
		return nil, ErrNegativeAmount
	}

	now := time.Now()
	c := &Customer{
		ID:            uuid.New(),
		TotalAmount:   totalAmount,
		BookingAmount: bookingAmount,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
		Installments:  []Installment{},
	}
	c.applyDetails(details)
	c.Recalculate()
	return c, nil
}

// Update replaces the editable attributes and amounts, then reconciles
func (c *Customer) Update(details Details, totalAmount, bookingAmount decimal.Decimal) error {
	if err := validateDetails(&details); err != nil {
		return err
	}
	if totalAmount.IsNegative() || bookingAmount.IsNegative() {
		return ErrNegativeAmount
	}

	c.applyDetails(details)
	c.TotalAmount = totalAmount
	c.BookingAmount = bookingAmount
	c.touch()
	return nil
}

// SetAmounts changes the sale value and booking amount only
func (c *Customer) SetAmounts(totalAmount, bookingAmount decimal.Decimal) error {
	if totalAmount.IsNegative() || bookingAmount.IsNegative() {
		return ErrNegativeAmount
	}
	c.TotalAmount = totalAmount
	c.BookingAmount = bookingAmount
	c.touch()
	return nil
}

// ReplaceInstallments swaps the whole installment list, keeping the given order.
// Entries with an ID must already belong to this customer; entries without
// one are new payments.
func (c *Customer) ReplaceInstallments(installments []Installment) error {
	seen := make(map[uuid.UUID]struct{}, len(installments))
	for i := range installments {
		if err := ValidateInstallment(&installments[i]); err != nil {
			return err
		}
		id := installments[i].ID
		if id != uuid.Nil {
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: %s", ErrDuplicateInstallment, id)
			}
			if c.indexOf(id) < 0 {
				return fmt.Errorf("%w: %s", ErrForeignInstallment, id)
			}
			seen[id] = struct{}{}
		}
	}
	for i := range installments {
		if installments[i].ID == uuid.Nil {
			installments[i].ID = uuid.New()
		}
		installments[i].CustomerID = c.ID
	}
	c.Installments = installments
	c.touch()
	return nil
}

// AddInstallment appends a payment to the end of the sequence
func (c *Customer) AddInstallment(inst Installment) (*Installment, error) {
	if err := ValidateInstallment(&inst); err != nil {
		return nil, err
	}
	inst.ID = uuid.New()
	inst.CustomerID = c.ID
	c.Installments = append(c.Installments, inst)
	c.touch()
	return &c.Installments[len(c.Installments)-1], nil
}

// UpdateInstallment replaces an existing installment in place
func (c *Customer) UpdateInstallment(id uuid.UUID, inst Installment) (*Installment, error) {
	idx := c.indexOf(id)
	if idx < 0 {
		return nil, ErrInstallmentNotFound{InstallmentID: id}
	}
	if err := ValidateInstallment(&inst); err != nil {
		return nil, err
	}
	inst.ID = id
	inst.CustomerID = c.ID
	c.Installments[idx] = inst
	c.touch()
	return &c.Installments[idx], nil
}

// RemoveInstallment deletes an installment; later ones move up one position
func (c *Customer) RemoveInstallment(id uuid.UUID) error {
	idx := c.indexOf(id)
	if idx < 0 {
		return ErrInstallmentNotFound{InstallmentID: id}
	}
	c.Installments = append(c.Installments[:idx], c.Installments[idx+1:]...)
	c.touch()
	return nil
}

// FindInstallment returns the installment with the given id
func (c *Customer) FindInstallment(id uuid.UUID) (*Installment, error) {
	idx := c.indexOf(id)
	if idx < 0 {
		return nil, ErrInstallmentNotFound{InstallmentID: id}
	}
	return &c.Installments[idx], nil
}

// Recalculate renumbers installments and substitutes the reconciled ledger
// values into the customer and each installment.
func (c *Customer) Recalculate() {
	lines := make([]ledger.Line, len(c.Installments))
	for i, inst := range c.Installments {
		lines[i] = ledger.Line{ReceivedAmount: inst.ReceivedAmount, Status: inst.Status}
	}

	res := ledger.Reconcile(c.TotalAmount, c.BookingAmount, lines)

	c.ReceivedAmount = res.ReceivedAmount
	c.BalanceAmount = res.BalanceAmount
	for i := range c.Installments {
		c.Installments[i].InstallmentNo = i + 1
		c.Installments[i].BalanceAmount = res.Installments[i].BalanceAmount
	}
}

// BouncedCount returns the number of installments that failed to clear
func (c *Customer) BouncedCount() int {
	n := 0
	for i := range c.Installments {
		if c.Installments[i].IsBounced() {
			n++
		}
	}
	return n
}

// IsOverdue reports whether the next due date has passed with money outstanding
func (c *Customer) IsOverdue(now time.Time) bool {
	return c.NextDueDate != nil && c.NextDueDate.Before(now) && c.BalanceAmount.IsPositive()
}

// ValidateInstallment checks amounts and enumerated fields of an installment
func ValidateInstallment(inst *Installment) error {
	if inst.ReceivedAmount.IsNegative() {
		return ErrNegativeAmount
	}
	inst.Status = strings.TrimSpace(inst.Status)
	if inst.Status == "" {
		inst.Status = InstallmentPending
	}
	if _, ok := installmentStatuses[inst.Status]; !ok {
		return ErrInvalidInstallment
	}
	if _, ok := paymentModes[inst.PaymentMode]; !ok {
		return ErrInvalidPaymentMode
	}
	return nil
}

func validateDetails(details *Details) error {
	details.Name = strings.TrimSpace(details.Name)
	details.CustomerCode = strings.TrimSpace(details.CustomerCode)
	if details.Name == "" {
		return ErrEmptyName
	}
	if details.CustomerCode == "" {
		return ErrEmptyCustomerCode
	}
	if details.Status == "" {
		details.Status = StatusActive
	}
	switch details.Status {
	case StatusActive, StatusCompleted, StatusCancelled:
	default:
		return ErrInvalidStatus
	}
	return nil
}

func (c *Customer) applyDetails(d Details) {
	c.CustomerCode = d.CustomerCode
	c.Name = d.Name
	c.Phone = d.Phone
	c.Email = d.Email
	c.Address = d.Address
	c.AadhaarCard = d.AadhaarCard
	c.PanCard = d.PanCard
	c.ProjectName = d.ProjectName
	c.PlotNumber = d.PlotNumber
	c.PlotSize = d.PlotSize
	c.BookingDate = d.BookingDate
	c.NextDueDate = d.NextDueDate
	c.AgentID = d.AgentID
	c.Status = d.Status
}

// touch reconciles after a mutation and advances the version
func (c *Customer) touch() {
	c.Recalculate()
	c.UpdatedAt = time.Now()
	c.Version++
}

func (c *Customer) indexOf(id uuid.UUID) int {
	for i := range c.Installments {
		if c.Installments[i].ID == id {
			return i
		}
	}
	return -1
}
