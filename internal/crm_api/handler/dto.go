package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/plotbook-crm/internal/crm_api/service"
	"github.com/plotbook-crm/internal/domain/activity"
	"github.com/plotbook-crm/internal/domain/customer"
	"github.com/plotbook-crm/internal/domain/ledger"
	"github.com/plotbook-crm/internal/domain/shared"
	"github.com/plotbook-crm/internal/domain/staff"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Amount accepts a JSON number, a numeric string, an empty string or null.
// Anything that is not a number reads as zero.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = s
	}
	if raw == "null" {
		raw = ""
	}
	a.Decimal = ledger.CoerceAmount(raw)
	return nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339; empty input yields nil
func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, value); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("%s must be a date (YYYY-MM-DD)", field)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

func (p PaginationParams) offset() int {
	return (p.Page - 1) * p.PerPage
}

// InstallmentRequest represents one installment in create and update requests
type InstallmentRequest struct {
	ID              string `json:"id,omitempty"`
	InstallmentDate string `json:"installment_date"`
	ReceivedAmount  Amount `json:"received_amount"`
	Status          string `json:"status"`
	PaymentMode     string `json:"payment_mode"`
	BankName        string `json:"bank_name"`
	Reference       string `json:"reference"`
	ChequeDate      string `json:"cheque_date"`
	Remarks         string `json:"remarks"`
}

func (r InstallmentRequest) toDomain() (customer.Installment, error) {
	if r.ReceivedAmount.IsNegative() {
		return customer.Installment{}, customer.ErrNegativeAmount
	}

	inst := customer.Installment{
		ReceivedAmount: r.ReceivedAmount.Decimal,
		Status:         r.Status,
		PaymentMode:    r.PaymentMode,
		BankName:       strings.TrimSpace(r.BankName),
		Reference:      strings.TrimSpace(r.Reference),
		Remarks:        r.Remarks,
	}

	if r.ID != "" {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return customer.Installment{}, errors.New("installment id must be a UUID")
		}
		inst.ID = id
	}

	date, err := parseDate("installment_date", r.InstallmentDate)
	if err != nil {
		return customer.Installment{}, err
	}
	if date != nil {
		inst.InstallmentDate = *date
	}

	inst.ChequeDate, err = parseDate("cheque_date", r.ChequeDate)
	if err != nil {
		return customer.Installment{}, err
	}
	return inst, nil
}

// CustomerRequest represents a request to create or replace a booking. When
// Installments is omitted on update the stored installments are kept.
type CustomerRequest struct {
	CustomerCode  string               `json:"customer_code" binding:"required"`
	Name          string               `json:"name" binding:"required"`
	Phone         string               `json:"phone"`
	Email         string               `json:"email" binding:"omitempty,email"`
	Address       string               `json:"address"`
	AadhaarCard   string               `json:"aadhaar_card"`
	PanCard       string               `json:"pan_card"`
	ProjectName   string               `json:"project_name"`
	PlotNumber    string               `json:"plot_number"`
	PlotSize      string               `json:"plot_size"`
	BookingDate   string               `json:"booking_date"`
	TotalAmount   Amount               `json:"total_amount"`
	BookingAmount Amount               `json:"booking_amount"`
	NextDueDate   string               `json:"next_due_date"`
	AgentID       string               `json:"agent_id" binding:"omitempty,uuid"`
	Status        string               `json:"status" binding:"omitempty,oneof=Active Completed Cancelled"`
	Installments  []InstallmentRequest `json:"installments"`
	Version       *int                 `json:"version"`
}

func (r CustomerRequest) toInput() (service.CustomerInput, error) {
	var input service.CustomerInput
	if r.TotalAmount.IsNegative() || r.BookingAmount.IsNegative() {
		return input, customer.ErrNegativeAmount
	}

	details := customer.Details{
		CustomerCode: r.CustomerCode,
		Name:         r.Name,
		Phone:        strings.TrimSpace(r.Phone),
		Email:        strings.TrimSpace(r.Email),
		Address:      r.Address,
		AadhaarCard:  strings.TrimSpace(r.AadhaarCard),
		PanCard:      strings.ToUpper(strings.TrimSpace(r.PanCard)),
		ProjectName:  strings.TrimSpace(r.ProjectName),
		PlotNumber:   strings.TrimSpace(r.PlotNumber),
		PlotSize:     r.PlotSize,
		Status:       customer.Status(r.Status),
	}

	bookingDate, err := parseDate("booking_date", r.BookingDate)
	if err != nil {
		return input, err
	}
	if bookingDate != nil {
		details.BookingDate = *bookingDate
	}
	if details.NextDueDate, err = parseDate("next_due_date", r.NextDueDate); err != nil {
		return input, err
	}
	if r.AgentID != "" {
		agentID, err := uuid.Parse(r.AgentID)
		if err != nil {
			return input, errors.New("agent_id must be a UUID")
		}
		details.AgentID = &agentID
	}

	input.Details = details
	input.TotalAmount = r.TotalAmount.Decimal
	input.BookingAmount = r.BookingAmount.Decimal

	if r.Installments != nil {
		input.Installments = make([]customer.Installment, 0, len(r.Installments))
		for i, ir := range r.Installments {
			inst, err := ir.toDomain()
			if err != nil {
				return input, fmt.Errorf("installment %d: %w", i+1, err)
			}
			input.Installments = append(input.Installments, inst)
		}
	}
	return input, nil
}

// ListCustomersQuery represents the customer list and export filters
type ListCustomersQuery struct {
	PaginationParams
	Search     string `form:"search"`
	Status     string `form:"status" binding:"omitempty,oneof=Active Completed Cancelled"`
	AgentID    string `form:"agent_id" binding:"omitempty,uuid"`
	Project    string `form:"project"`
	BookedFrom string `form:"booked_from"`
	BookedTo   string `form:"booked_to"`
	SortBy     string `form:"sort_by" binding:"omitempty,oneof=created_at booking_date balance_amount name"`
	Order      string `form:"order" binding:"omitempty,oneof=asc desc"`
}

func (q ListCustomersQuery) toFilter() (customer.Filter, error) {
	filter := customer.Filter{
		Search:      strings.TrimSpace(q.Search),
		Status:      customer.Status(q.Status),
		ProjectName: q.Project,
		SortBy:      q.SortBy,
		SortDesc:    q.Order != "asc",
		Limit:       q.PerPage,
		Offset:      q.offset(),
	}
	if filter.SortBy == "" {
		filter.SortBy = customer.SortCreatedAt
	}
	if q.AgentID != "" {
		id, err := uuid.Parse(q.AgentID)
		if err != nil {
			return filter, errors.New("agent_id must be a UUID")
		}
		filter.AgentID = &id
	}

	var err error
	if filter.BookedFrom, err = parseDate("booked_from", q.BookedFrom); err != nil {
		return filter, err
	}
	if filter.BookedTo, err = parseDate("booked_to", q.BookedTo); err != nil {
		return filter, err
	}
	return filter, nil
}

// InstallmentResponse represents an installment in API responses
type InstallmentResponse struct {
	ID              string          `json:"id"`
	InstallmentNo   int             `json:"installment_no"`
	InstallmentDate string          `json:"installment_date"`
	ReceivedAmount  decimal.Decimal `json:"received_amount"`
	BalanceAmount   decimal.Decimal `json:"balance_amount"`
	Status          string          `json:"status"`
	PaymentMode     string          `json:"payment_mode,omitempty"`
	BankName        string          `json:"bank_name,omitempty"`
	Reference       string          `json:"reference,omitempty"`
	ChequeDate      string          `json:"cheque_date,omitempty"`
	Remarks         string          `json:"remarks,omitempty"`
}

// CustomerResponse represents a booking in API responses
type CustomerResponse struct {
	ID             string                `json:"id"`
	CustomerCode   string                `json:"customer_code"`
	Name           string                `json:"name"`
	Phone          string                `json:"phone"`
	Email          string                `json:"email,omitempty"`
	Address        string                `json:"address,omitempty"`
	AadhaarCard    string                `json:"aadhaar_card,omitempty"`
	PanCard        string                `json:"pan_card,omitempty"`
	ProjectName    string                `json:"project_name"`
	PlotNumber     string                `json:"plot_number"`
	PlotSize       string                `json:"plot_size,omitempty"`
	BookingDate    string                `json:"booking_date"`
	TotalAmount    decimal.Decimal       `json:"total_amount"`
	BookingAmount  decimal.Decimal       `json:"booking_amount"`
	ReceivedAmount decimal.Decimal       `json:"received_amount"`
	BalanceAmount  decimal.Decimal       `json:"balance_amount"`
	NextDueDate    string                `json:"next_due_date,omitempty"`
	AgentID        string                `json:"agent_id,omitempty"`
	Status         string                `json:"status"`
	BouncedCount   int                   `json:"bounced_count"`
	Version        int                   `json:"version"`
	CreatedAt      string                `json:"created_at"`
	UpdatedAt      string                `json:"updated_at"`
	Installments   []InstallmentResponse `json:"installments,omitempty"`
}

// mapCustomerToResponse maps a booking to its response DTO. Installments are
// omitted from list rows.
func mapCustomerToResponse(c *customer.Customer, withInstallments bool) CustomerResponse {
	resp := CustomerResponse{
		ID:             c.ID.String(),
		CustomerCode:   c.CustomerCode,
		Name:           c.Name,
		Phone:          c.Phone,
		Email:          c.Email,
		Address:        c.Address,
		AadhaarCard:    c.AadhaarCard,
		PanCard:        c.PanCard,
		ProjectName:    c.ProjectName,
		PlotNumber:     c.PlotNumber,
		PlotSize:       c.PlotSize,
		BookingDate:    formatDate(&c.BookingDate),
		TotalAmount:    c.TotalAmount,
		BookingAmount:  c.BookingAmount,
		ReceivedAmount: c.ReceivedAmount,
		BalanceAmount:  c.BalanceAmount,
		NextDueDate:    formatDate(c.NextDueDate),
		Status:         string(c.Status),
		BouncedCount:   c.BouncedCount(),
		Version:        c.Version,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      c.UpdatedAt.Format(time.RFC3339),
	}
	if c.AgentID != nil {
		resp.AgentID = c.AgentID.String()
	}

	if withInstallments {
		resp.Installments = make([]InstallmentResponse, 0, len(c.Installments))
		for _, inst := range c.Installments {
			resp.Installments = append(resp.Installments, InstallmentResponse{
				ID:              inst.ID.String(),
				InstallmentNo:   inst.InstallmentNo,
				InstallmentDate: formatDate(&inst.InstallmentDate),
				ReceivedAmount:  inst.ReceivedAmount,
				BalanceAmount:   inst.BalanceAmount,
				Status:          inst.Status,
				PaymentMode:     inst.PaymentMode,
				BankName:        inst.BankName,
				Reference:       inst.Reference,
				ChequeDate:      formatDate(inst.ChequeDate),
				Remarks:         inst.Remarks,
			})
		}
	}
	return resp
}

// LedgerPreviewRequest represents an unsaved draft to reconcile
type LedgerPreviewRequest struct {
	TotalAmount   Amount `json:"total_amount"`
	BookingAmount Amount `json:"booking_amount"`
	Installments  []struct {
		ReceivedAmount Amount `json:"received_amount"`
		Status         string `json:"status"`
	} `json:"installments"`
}

// LedgerPreviewResponse represents the reconciled draft
type LedgerPreviewResponse struct {
	ReceivedAmount decimal.Decimal            `json:"received_amount"`
	BalanceAmount  decimal.Decimal            `json:"balance_amount"`
	Installments   []LedgerInstallmentPreview `json:"installments"`
}

// LedgerInstallmentPreview is one reconciled draft installment
type LedgerInstallmentPreview struct {
	InstallmentNo  int             `json:"installment_no"`
	ReceivedAmount decimal.Decimal `json:"received_amount"`
	Status         string          `json:"status"`
	BalanceAmount  decimal.Decimal `json:"balance_amount"`
	Bounced        bool            `json:"bounced"`
}

// StaffRequest represents a request to create or update a staff member
type StaffRequest struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Phone       string `json:"phone"`
	Role        string `json:"role" binding:"required,oneof=admin manager agent accountant"`
	Password    string `json:"password"`
	IsActive    *bool  `json:"is_active"`
	JoiningDate string `json:"joining_date"`
}

func (r StaffRequest) toInput() (service.StaffInput, error) {
	joining, err := parseDate("joining_date", r.JoiningDate)
	if err != nil {
		return service.StaffInput{}, err
	}
	return service.StaffInput{
		Name:        r.Name,
		Email:       r.Email,
		Phone:       r.Phone,
		Role:        staff.Role(r.Role),
		Password:    r.Password,
		IsActive:    r.IsActive,
		JoiningDate: joining,
	}, nil
}

// ListStaffQuery represents the staff list filters
type ListStaffQuery struct {
	PaginationParams
	Role       string `form:"role" binding:"omitempty,oneof=admin manager agent accountant"`
	ActiveOnly bool   `form:"active_only"`
}

// StaffResponse represents a staff member in API responses
type StaffResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Role        string `json:"role"`
	IsActive    bool   `json:"is_active"`
	JoiningDate string `json:"joining_date,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func mapStaffToResponse(s *staff.Staff) StaffResponse {
	return StaffResponse{
		ID:          s.ID.String(),
		Name:        s.Name,
		Email:       s.Email,
		Phone:       s.Phone,
		Role:        string(s.Role),
		IsActive:    s.IsActive,
		JoiningDate: formatDate(s.JoiningDate),
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   s.UpdatedAt.Format(time.RFC3339),
	}
}

// LoginRequest represents staff credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued access token
type LoginResponse struct {
	Token     string        `json:"token"`
	TokenType string        `json:"token_type"`
	ExpiresAt string        `json:"expires_at"`
	Staff     StaffResponse `json:"staff"`
}

// ListActivityQuery represents the activity log filters
type ListActivityQuery struct {
	PaginationParams
	EntityType string `form:"entity_type" binding:"omitempty,oneof=CUSTOMER INSTALLMENT STAFF"`
	EntityID   string `form:"entity_id" binding:"omitempty,uuid"`
	ActorID    string `form:"actor_id" binding:"omitempty,uuid"`
	Action     string `form:"action"`
	From       string `form:"from"`
	To         string `form:"to"`
}

func (q ListActivityQuery) toFilter() (activity.Filter, error) {
	filter := activity.Filter{
		EntityType: shared.EntityType(q.EntityType),
		Action:     activity.Action(strings.ToUpper(strings.TrimSpace(q.Action))),
	}

	var err error
	if q.EntityID != "" {
		if filter.EntityID, err = uuid.Parse(q.EntityID); err != nil {
			return filter, errors.New("entity_id must be a UUID")
		}
	}
	if q.ActorID != "" {
		if filter.ActorID, err = uuid.Parse(q.ActorID); err != nil {
			return filter, errors.New("actor_id must be a UUID")
		}
	}
	if filter.From, err = parseDate("from", q.From); err != nil {
		return filter, err
	}
	if filter.To, err = parseDate("to", q.To); err != nil {
		return filter, err
	}
	return filter, nil
}

// ActivityResponse represents one audit trail entry
type ActivityResponse struct {
	EventID       string            `json:"event_id"`
	Action        string            `json:"action"`
	EntityType    string            `json:"entity_type"`
	EntityID      string            `json:"entity_id"`
	ActorID       string            `json:"actor_id"`
	ActorName     string            `json:"actor_name"`
	Summary       string            `json:"summary"`
	Details       map[string]string `json:"details,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	OccurredAt    string            `json:"occurred_at"`
}

func mapActivityToResponse(e *activity.Entry) ActivityResponse {
	return ActivityResponse{
		EventID:       e.EventID.String(),
		Action:        string(e.Action),
		EntityType:    string(e.EntityType),
		EntityID:      e.EntityID.String(),
		ActorID:       e.ActorID.String(),
		ActorName:     e.ActorName,
		Summary:       e.Summary,
		Details:       e.Details,
		CorrelationID: e.CorrelationID,
		OccurredAt:    e.OccurredAt.Format(time.RFC3339),
	}
}
