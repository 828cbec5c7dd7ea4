package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/plotbook-crm/internal/domain/customer"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

var customerColumnNames = []string{
	"id", "customer_code", "name", "phone", "email", "address", "aadhaar_card", "pan_card",
	"project_name", "plot_number", "plot_size", "booking_date", "total_amount", "booking_amount",
	"received_amount", "balance_amount", "next_due_date", "agent_id", "status", "version", "created_at", "updated_at",
}

var installmentColumnNames = []string{
	"id", "customer_id", "installment_no", "installment_date", "received_amount", "balance_amount",
	"status", "payment_mode", "bank_name", "reference", "cheque_date", "remarks",
}

func sampleCustomer(t *testing.T) *customer.Customer {
	t.Helper()
	c, err := customer.NewCustomer(customer.Details{
		CustomerCode: "PLT-2024-0007",
		Name:         "Sunita Verma",
		Phone:        "9811122233",
		ProjectName:  "Sunrise Enclave",
		PlotNumber:   "B-07",
		BookingDate:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}, decimal.NewFromInt(500000), decimal.NewFromInt(100000))
	require.NoError(t, err)
	_, err = c.AddInstallment(customer.Installment{
		InstallmentDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		ReceivedAmount:  decimal.NewFromInt(50000),
		Status:          customer.InstallmentPaid,
		PaymentMode:     customer.PaymentModeUPI,
		Reference:       "UTR0001",
	})
	require.NoError(t, err)
	return c
}

func customerRow(c *customer.Customer) []any {
	return []any{
		c.ID, c.CustomerCode, c.Name, c.Phone, c.Email, c.Address, c.AadhaarCard, c.PanCard,
		c.ProjectName, c.PlotNumber, c.PlotSize, c.BookingDate, c.TotalAmount, c.BookingAmount,
		c.ReceivedAmount, c.BalanceAmount, nil, nil, c.Status, c.Version, c.CreatedAt, c.UpdatedAt,
	}
}

// anyArgs matches n bind parameters of any value
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func installmentArgs(c *customer.Customer, inst customer.Installment) []any {
	return []any{
		inst.ID, c.ID, inst.InstallmentNo, inst.InstallmentDate, inst.ReceivedAmount, inst.BalanceAmount,
		inst.Status, inst.PaymentMode, inst.BankName, inst.Reference, inst.ChequeDate, inst.Remarks,
	}
}

func installmentRow(c *customer.Customer, inst customer.Installment) []any {
	row := installmentArgs(c, inst)
	row[10] = nil // cheque_date
	return row
}

func TestCustomerRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &CustomerRepository{querier: mock, logger: newTestLogger()}
	c := sampleCustomer(t)

	insertCustomer := regexp.QuoteMeta("INSERT INTO customers (")
	insertInstallment := regexp.QuoteMeta("INSERT INTO installments (")

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(insertCustomer).
			WithArgs(c.ID, c.CustomerCode, c.Name, c.Phone, c.Email, c.Address, c.AadhaarCard, c.PanCard,
				c.ProjectName, c.PlotNumber, c.PlotSize, c.BookingDate, c.TotalAmount, c.BookingAmount,
				c.ReceivedAmount, c.BalanceAmount, c.NextDueDate, c.AgentID, c.Status, c.Version, c.CreatedAt, c.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(insertInstallment).
			WithArgs(installmentArgs(c, c.Installments[0])...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.Create(ctx, c))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate code", func(t *testing.T) {
		mock.ExpectExec(insertCustomer).
			WithArgs(anyArgs(22)...).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "customers_customer_code_key"})

		err := repo.Create(ctx, c)
		assert.Equal(t, customer.ErrDuplicateCustomerCode{Code: c.CustomerCode}, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown agent", func(t *testing.T) {
		mock.ExpectExec(insertCustomer).
			WithArgs(anyArgs(22)...).
			WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "customers_agent_id_fkey"})

		err := repo.Create(ctx, c)
		assert.ErrorIs(t, err, customer.ErrUnknownAgent)
		assert.NoError(t, mock.ExpectationsWereMet(), "installments must not be inserted")
	})

	t.Run("installment failure", func(t *testing.T) {
		dbErr := errors.New("insert failed")
		mock.ExpectExec(insertCustomer).WithArgs(anyArgs(22)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(insertInstallment).WithArgs(installmentArgs(c, c.Installments[0])...).WillReturnError(dbErr)

		err := repo.Create(ctx, c)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to insert installment 1")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCustomerRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &CustomerRepository{querier: mock, logger: newTestLogger()}
	expected := sampleCustomer(t)

	selectCustomer := regexp.QuoteMeta("FROM customers WHERE id = $1")
	selectInstallments := regexp.QuoteMeta("FROM installments WHERE customer_id = $1 ORDER BY installment_no ASC")

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(selectCustomer).WithArgs(expected.ID).
			WillReturnRows(pgxmock.NewRows(customerColumnNames).AddRow(customerRow(expected)...))
		mock.ExpectQuery(selectInstallments).WithArgs(expected.ID).
			WillReturnRows(pgxmock.NewRows(installmentColumnNames).AddRow(installmentRow(expected, expected.Installments[0])...))

		got, err := repo.GetByID(ctx, expected.ID)
		require.NoError(t, err)
		assert.Equal(t, expected, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(selectCustomer).WithArgs(expected.ID).WillReturnError(pgx.ErrNoRows)

		got, err := repo.GetByID(ctx, expected.ID)
		assert.Nil(t, got)
		var notFound customer.ErrCustomerNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, expected.ID, notFound.CustomerID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("connection reset")
		mock.ExpectQuery(selectCustomer).WithArgs(expected.ID).WillReturnError(dbErr)

		_, err := repo.GetByID(ctx, expected.ID)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to get customer")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCustomerRepository_GetByCode(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &CustomerRepository{querier: mock, logger: newTestLogger()}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE customer_code = $1")).WithArgs("PLT-404").WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByCode(context.Background(), "PLT-404")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_Update(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &CustomerRepository{querier: mock, logger: newTestLogger()}
	c := sampleCustomer(t)

	updateCustomer := regexp.QuoteMeta("UPDATE customers")
	deleteInstallments := regexp.QuoteMeta("DELETE FROM installments WHERE customer_id = $1")

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(updateCustomer).
			WithArgs(c.CustomerCode, c.Name, c.Phone, c.Email, c.Address, c.AadhaarCard,
				c.PanCard, c.ProjectName, c.PlotNumber, c.PlotSize, c.BookingDate,
				c.TotalAmount, c.BookingAmount, c.ReceivedAmount, c.BalanceAmount,
				c.NextDueDate, c.AgentID, c.Status, c.Version, c.UpdatedAt, c.ID, c.Version-1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(deleteInstallments).WithArgs(c.ID).WillReturnResult(pgxmock.NewResult("DELETE", 3))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO installments (")).
			WithArgs(installmentArgs(c, c.Installments[0])...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.Update(ctx, c))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent modification", func(t *testing.T) {
		mock.ExpectExec(updateCustomer).WithArgs(anyArgs(22)...).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(ctx, c)
		var concurrent customer.ErrConcurrentModification
		require.ErrorAs(t, err, &concurrent)
		assert.Equal(t, c.ID, concurrent.CustomerID)
		assert.NoError(t, mock.ExpectationsWereMet(), "installments must not be touched")
	})

	t.Run("unknown agent", func(t *testing.T) {
		mock.ExpectExec(updateCustomer).
			WithArgs(anyArgs(22)...).
			WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "customers_agent_id_fkey"})

		assert.ErrorIs(t, repo.Update(ctx, c), customer.ErrUnknownAgent)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCustomerRepository_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &CustomerRepository{querier: mock, logger: newTestLogger()}
	id := uuid.New()
	query := regexp.QuoteMeta("DELETE FROM customers WHERE id = $1")

	mock.ExpectExec(query).WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	assert.NoError(t, repo.Delete(context.Background(), id))

	mock.ExpectExec(query).WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.Equal(t, customer.ErrCustomerNotFound{CustomerID: id}, repo.Delete(context.Background(), id))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_ListAndCount(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &CustomerRepository{querier: mock, logger: newTestLogger()}
	c := sampleCustomer(t)
	filter := customer.Filter{Search: "verma", Status: customer.StatusActive, SortBy: customer.SortBalanceAmount, SortDesc: true, Limit: 20, Offset: 40}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE (name ILIKE $1 OR phone ILIKE $1 OR customer_code ILIKE $1 OR plot_number ILIKE $1) AND status = $2 ORDER BY balance_amount DESC, id ASC LIMIT $3 OFFSET $4")).
		WithArgs("%verma%", customer.StatusActive, 20, 40).
		WillReturnRows(pgxmock.NewRows(customerColumnNames).AddRow(customerRow(c)...))

	list, err := repo.List(ctx, filter)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.CustomerCode, list[0].CustomerCode)
	assert.Empty(t, list[0].Installments, "listing does not load installments")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM customers WHERE")).
		WithArgs("%verma%", customer.StatusActive).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(41)))

	count, err := repo.Count(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(41), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_Summary(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &CustomerRepository{querier: mock, logger: newTestLogger()}
	now := time.Now()
	agentID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) FILTER (WHERE next_due_date < $1 AND balance_amount > 0)")).
		WithArgs(now).
		WillReturnRows(pgxmock.NewRows([]string{"count", "sale", "received", "outstanding", "overdue"}).
			AddRow(int64(3), decimal.NewFromInt(1500000), decimal.NewFromInt(900000), decimal.NewFromInt(600000), int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow(customer.StatusActive, int64(2)).
			AddRow(customer.StatusCompleted, int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM installments")).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(4)))
	mock.ExpectQuery(regexp.QuoteMeta("JOIN staff s ON s.id = c.agent_id")).
		WillReturnRows(pgxmock.NewRows([]string{"agent_id", "name", "count", "sale"}).
			AddRow(agentID, "Arjun", int64(2), decimal.NewFromInt(1000000)))

	summary, err := repo.Summary(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalCustomers)
	assert.Equal(t, int64(1), summary.OverdueCustomers)
	assert.Equal(t, int64(4), summary.BouncedInstalments)
	assert.True(t, decimal.NewFromInt(600000).Equal(summary.TotalOutstanding))
	assert.Equal(t, map[customer.Status]int64{customer.StatusActive: 2, customer.StatusCompleted: 1}, summary.ByStatus)
	require.Len(t, summary.BookingsByAgent, 1)
	assert.Equal(t, "Arjun", summary.BookingsByAgent[0].AgentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildCustomerWhere(t *testing.T) {
	agentID := uuid.New()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		filter    customer.Filter
		wantWhere string
		wantArgs  []any
	}{
		{"Empty", customer.Filter{}, "", nil},
		{"Whitespace search ignored", customer.Filter{Search: "   "}, "", nil},
		{
			"AgentProjectAndRange",
			customer.Filter{AgentID: &agentID, ProjectName: "Green Valley", BookedFrom: &from},
			" WHERE agent_id = $1 AND project_name = $2 AND booking_date >= $3",
			[]any{agentID, "Green Valley", from},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildCustomerWhere(tt.filter)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, " ORDER BY created_at ASC, id ASC", orderBy(customer.Filter{}))
	assert.Equal(t, " ORDER BY created_at ASC, id ASC", orderBy(customer.Filter{SortBy: "1; DROP TABLE customers"}))
	assert.Equal(t, " ORDER BY name DESC, id ASC", orderBy(customer.Filter{SortBy: customer.SortName, SortDesc: true}))
}

func TestCustomerRepository_WithTx(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	originalRepo := &CustomerRepository{querier: mockPool, logger: newTestLogger()}

	mockPool.ExpectBegin()
	tx, err := mockPool.Begin(context.Background())
	require.NoError(t, err)

	txRepo := originalRepo.WithTx(tx)
	assert.Equal(t, tx, txRepo.(*CustomerRepository).querier, "Querier in new repo should be the transaction")
	assert.Equal(t, originalRepo.logger, txRepo.(*CustomerRepository).logger)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
