package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/plotbook-crm/internal/crm_api/middleware"
	"github.com/plotbook-crm/internal/crm_api/service"
	"github.com/plotbook-crm/internal/domain/activity"
	"github.com/plotbook-crm/internal/domain/customer"
	"github.com/plotbook-crm/internal/domain/ledger"
	"github.com/plotbook-crm/internal/domain/staff"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCustomerService struct {
	mock.Mock
}

func (m *MockCustomerService) CreateCustomer(ctx context.Context, input service.CustomerInput) (*customer.Customer, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerService) GetCustomer(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerService) ListCustomers(ctx context.Context, filter customer.Filter) ([]*customer.Customer, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*customer.Customer), args.Get(1).(int64), args.Error(2)
}

func (m *MockCustomerService) UpdateCustomer(ctx context.Context, id uuid.UUID, version int, input service.CustomerInput) (*customer.Customer, error) {
	args := m.Called(ctx, id, version, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerService) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCustomerService) AddInstallment(ctx context.Context, customerID uuid.UUID, inst customer.Installment) (*customer.Customer, error) {
	args := m.Called(ctx, customerID, inst)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerService) UpdateInstallment(ctx context.Context, customerID, installmentID uuid.UUID, inst customer.Installment) (*customer.Customer, error) {
	args := m.Called(ctx, customerID, installmentID, inst)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerService) RemoveInstallment(ctx context.Context, customerID, installmentID uuid.UUID) (*customer.Customer, error) {
	args := m.Called(ctx, customerID, installmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

// PreviewLedger records the call and delegates to the real reconciliation
func (m *MockCustomerService) PreviewLedger(totalAmount, bookingAmount decimal.Decimal, lines []ledger.Line) ledger.Result {
	m.Called(totalAmount, bookingAmount, lines)
	return ledger.Reconcile(totalAmount, bookingAmount, lines)
}

type MockStaffService struct {
	mock.Mock
}

func (m *MockStaffService) CreateStaff(ctx context.Context, input service.StaffInput) (*staff.Staff, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*staff.Staff), args.Error(1)
}

func (m *MockStaffService) GetStaff(ctx context.Context, id uuid.UUID) (*staff.Staff, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*staff.Staff), args.Error(1)
}

func (m *MockStaffService) ListStaff(ctx context.Context, filter staff.Filter) ([]*staff.Staff, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*staff.Staff), args.Get(1).(int64), args.Error(2)
}

func (m *MockStaffService) UpdateStaff(ctx context.Context, id uuid.UUID, input service.StaffInput) (*staff.Staff, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*staff.Staff), args.Error(1)
}

func (m *MockStaffService) DeleteStaff(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStaffService) EnsureBootstrapAdmin(ctx context.Context, email, password string) error {
	args := m.Called(ctx, email, password)
	return args.Error(0)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (string, time.Time, *staff.Staff, error) {
	args := m.Called(ctx, email, password)
	if args.Get(2) == nil {
		return "", time.Time{}, nil, args.Error(3)
	}
	return args.String(0), args.Get(1).(time.Time), args.Get(2).(*staff.Staff), args.Error(3)
}

func (m *MockAuthService) ParseToken(token string) (*service.Claims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Claims), args.Error(1)
}

type MockActivityService struct {
	mock.Mock
}

func (m *MockActivityService) ListActivity(ctx context.Context, filter activity.Filter, page, perPage int) ([]*activity.Entry, int64, error) {
	args := m.Called(ctx, filter, page, perPage)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*activity.Entry), args.Get(1).(int64), args.Error(2)
}

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) Dashboard(ctx context.Context) (*customer.Summary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Summary), args.Error(1)
}

func (m *MockReportService) StatementPDF(ctx context.Context, customerID uuid.UUID) ([]byte, *customer.Customer, error) {
	args := m.Called(ctx, customerID)
	if args.Get(1) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]byte), args.Get(1).(*customer.Customer), args.Error(2)
}

func (m *MockReportService) ExportCSV(ctx context.Context, filter customer.Filter) (*service.CSVExport, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CSVExport), args.Error(1)
}

func (m *MockReportService) WhatsApp(ctx context.Context, customerID uuid.UUID, template string) (*service.WhatsAppMessage, error) {
	args := m.Called(ctx, customerID, template)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.WhatsAppMessage), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CorrelationID())
	return r
}

// serve sends body (marshalled unless it is a string) and returns the recorder
func serve(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

// decodeData unmarshals the envelope's data field into out
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) Response {
	t.Helper()

	var envelope struct {
		Data          json.RawMessage `json:"data"`
		Error         *ErrorInfo      `json:"error"`
		CorrelationID string          `json:"correlation_id"`
		Meta          *MetaInfo       `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope), rr.Body.String())
	if out != nil {
		require.NotEmpty(t, envelope.Data, "'data' field should not be empty")
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return Response{Error: envelope.Error, CorrelationID: envelope.CorrelationID, Meta: envelope.Meta}
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func sampleCustomer() *customer.Customer {
	now := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	c := &customer.Customer{
		ID:             uuid.New(),
		CustomerCode:   "PLT-2024-0001",
		Name:           "Ravi Kumar",
		Phone:          "98765 43210",
		ProjectName:    "Green Meadows",
		PlotNumber:     "A-17",
		BookingDate:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		TotalAmount:    dec(100000),
		BookingAmount:  dec(20000),
		ReceivedAmount: dec(50000),
		BalanceAmount:  dec(50000),
		Status:         customer.StatusActive,
		Version:        4,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	c.Installments = []customer.Installment{{
		ID:              uuid.New(),
		CustomerID:      c.ID,
		InstallmentNo:   1,
		InstallmentDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		ReceivedAmount:  dec(30000),
		BalanceAmount:   dec(50000),
		Status:          customer.InstallmentPaid,
		PaymentMode:     customer.PaymentModeUPI,
	}}
	return c
}

func sampleStaff() *staff.Staff {
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	return &staff.Staff{
		ID:        uuid.New(),
		Name:      "Meena Sharma",
		Email:     "meena@plots.example",
		Role:      staff.RoleAgent,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
