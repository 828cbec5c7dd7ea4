package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/plotbook-crm/internal/domain/activity"
	"github.com/plotbook-crm/internal/domain/customer"
	"github.com/plotbook-crm/internal/domain/ledger"
	"github.com/plotbook-crm/internal/domain/shared"
	"github.com/plotbook-crm/internal/platform/cache"
	"github.com/shopspring/decimal"
)

// SystemActor attributes writes made outside an authenticated request
var SystemActor = shared.Actor{Name: "system", Role: "system"}

func actorFor(ctx context.Context) shared.Actor {
	if actor, err := shared.ActorFromContext(ctx); err == nil {
		return actor
	}
	return SystemActor
}

// CustomerServiceImpl implements the CustomerService interface
type CustomerServiceImpl struct {
	db           TxRunner
	customerRepo customer.Repository
	outbox       OutboxManager
	cache        cache.Store
	logger       *slog.Logger
}

// NewCustomerService creates a new customer service
func NewCustomerService(
	logger *slog.Logger,
	db TxRunner,
	customerRepo customer.Repository,
	outbox OutboxManager,
	cacheStore cache.Store,
) CustomerService {
	return &CustomerServiceImpl{
		db:           db,
		customerRepo: customerRepo,
		outbox:       outbox,
		cache:        cacheStore,
		logger:       logger,
	}
}

// CreateCustomer creates a booking, checking for a duplicate customer code first
func (s *CustomerServiceImpl) CreateCustomer(ctx context.Context, input CustomerInput) (*customer.Customer, error) {
	c, err := customer.NewCustomer(input.Details, input.TotalAmount, input.BookingAmount)
	if err != nil {
		return nil, err
	}
	if input.Installments != nil {
		if err := c.ReplaceInstallments(input.Installments); err != nil {
			return nil, err
		}
		c.Version = 1
	}

	existing, err := s.customerRepo.GetByCode(ctx, c.CustomerCode)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, customer.ErrDuplicateCustomerCode{Code: c.CustomerCode}
	}

	actor := actorFor(ctx)
	entry := activity.NewEntry(actor, activity.ActionCustomerCreated, shared.EntityTypeCustomer, c.ID,
		fmt.Sprintf("Booked plot %s for %s", c.PlotNumber, c.Name)).
		With("customer_code", c.CustomerCode).
		With("total_amount", c.TotalAmount.String()).
		With("booking_amount", c.BookingAmount.String())

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.customerRepo.WithTx(tx).Create(ctx, c); err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, tx, entry)
	})
	if err != nil {
		s.logger.Error("Failed to create customer", "customer_code", c.CustomerCode, "error", err)
		return nil, err
	}

	s.invalidateReports(ctx)
	s.logger.Info("Customer created",
		"customer_id", c.ID.String(),
		"customer_code", c.CustomerCode,
		"actor_id", actor.ID.String(),
	)
	return c, nil
}

// GetCustomer retrieves a booking by its ID, returns ErrCustomerNotFound if not found
func (s *CustomerServiceImpl) GetCustomer(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	return s.customerRepo.GetByID(ctx, id)
}

// ListCustomers returns one page of bookings and the total count for the filter
func (s *CustomerServiceImpl) ListCustomers(ctx context.Context, filter customer.Filter) ([]*customer.Customer, int64, error) {
	customers, err := s.customerRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.customerRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return customers, total, nil
}

// UpdateCustomer replaces the editable fields, and the installments when
// given, of the booking stored at the given version
func (s *CustomerServiceImpl) UpdateCustomer(ctx context.Context, id uuid.UUID, version int, input CustomerInput) (*customer.Customer, error) {
	return s.mutate(ctx, id, func(c *customer.Customer, actor shared.Actor) (*activity.Entry, error) {
		if c.Version != version {
			return nil, customer.ErrConcurrentModification{CustomerID: id}
		}
		if err := c.Update(input.Details, input.TotalAmount, input.BookingAmount); err != nil {
			return nil, err
		}
		if input.Installments != nil {
			if err := c.ReplaceInstallments(input.Installments); err != nil {
				return nil, err
			}
		}
		return activity.NewEntry(actor, activity.ActionCustomerUpdated, shared.EntityTypeCustomer, c.ID,
			fmt.Sprintf("Updated booking of %s", c.Name)).
			With("customer_code", c.CustomerCode).
			With("received_amount", c.ReceivedAmount.String()).
			With("balance_amount", c.BalanceAmount.String()), nil
	})
}

// DeleteCustomer removes a booking and its installments
func (s *CustomerServiceImpl) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	actor := actorFor(ctx)

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := s.customerRepo.WithTx(tx)
		c, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, id); err != nil {
			return err
		}
		entry := activity.NewEntry(actor, activity.ActionCustomerDeleted, shared.EntityTypeCustomer, id,
			fmt.Sprintf("Deleted booking of %s", c.Name)).
			With("customer_code", c.CustomerCode)
		return s.outbox.Enqueue(ctx, tx, entry)
	})
	if err != nil {
		return err
	}

	s.invalidateReports(ctx)
	s.logger.Info("Customer deleted", "customer_id", id.String(), "actor_id", actor.ID.String())
	return nil
}

// AddInstallment appends a payment and returns the reconciled booking
func (s *CustomerServiceImpl) AddInstallment(ctx context.Context, customerID uuid.UUID, inst customer.Installment) (*customer.Customer, error) {
	return s.mutate(ctx, customerID, func(c *customer.Customer, actor shared.Actor) (*activity.Entry, error) {
		added, err := c.AddInstallment(inst)
		if err != nil {
			return nil, err
		}
		return installmentEntry(actor, activity.ActionInstallmentAdded, c, added, "added"), nil
	})
}

// UpdateInstallment replaces one payment and returns the reconciled booking
func (s *CustomerServiceImpl) UpdateInstallment(ctx context.Context, customerID, installmentID uuid.UUID, inst customer.Installment) (*customer.Customer, error) {
	return s.mutate(ctx, customerID, func(c *customer.Customer, actor shared.Actor) (*activity.Entry, error) {
		updated, err := c.UpdateInstallment(installmentID, inst)
		if err != nil {
			return nil, err
		}
		return installmentEntry(actor, activity.ActionInstallmentUpdated, c, updated, "updated"), nil
	})
}

// RemoveInstallment deletes one payment and returns the reconciled booking
func (s *CustomerServiceImpl) RemoveInstallment(ctx context.Context, customerID, installmentID uuid.UUID) (*customer.Customer, error) {
	return s.mutate(ctx, customerID, func(c *customer.Customer, actor shared.Actor) (*activity.Entry, error) {
		removed, err := c.FindInstallment(installmentID)
		if err != nil {
			return nil, err
		}
		entry := installmentEntry(actor, activity.ActionInstallmentRemoved, c, removed, "removed")
		if err := c.RemoveInstallment(installmentID); err != nil {
			return nil, err
		}
		return entry.
			With("received_amount", c.ReceivedAmount.String()).
			With("balance_amount", c.BalanceAmount.String()), nil
	})
}

// PreviewLedger reconciles a draft booking
func (s *CustomerServiceImpl) PreviewLedger(totalAmount, bookingAmount decimal.Decimal, lines []ledger.Line) ledger.Result {
	return ledger.Reconcile(totalAmount, bookingAmount, lines)
}

// mutate loads the customer inside a transaction, applies fn, persists the
// result with a single version step and stages the returned activity entry
func (s *CustomerServiceImpl) mutate(
	ctx context.Context,
	id uuid.UUID,
	fn func(c *customer.Customer, actor shared.Actor) (*activity.Entry, error),
) (*customer.Customer, error) {
	actor := actorFor(ctx)
	var result *customer.Customer

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := s.customerRepo.WithTx(tx)
		c, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		loadedVersion := c.Version
		entry, err := fn(c, actor)
		if err != nil {
			return err
		}
		// Domain mutations each advance the version; a write is one step
		c.Version = loadedVersion + 1

		if err := repo.Update(ctx, c); err != nil {
			return err
		}
		if err := s.outbox.Enqueue(ctx, tx, entry); err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		s.logger.Warn("Customer write rejected", "customer_id", id.String(), "error", err)
		return nil, err
	}

	s.invalidateReports(ctx)
	s.logger.Info("Customer updated",
		"customer_id", id.String(),
		"version", result.Version,
		"actor_id", actor.ID.String(),
	)
	return result, nil
}

func (s *CustomerServiceImpl) invalidateReports(ctx context.Context) {
	s.cache.Invalidate(ctx, cache.DashboardSummaryKey)
}

func installmentEntry(actor shared.Actor, action activity.Action, c *customer.Customer, inst *customer.Installment, verb string) *activity.Entry {
	return activity.NewEntry(actor, action, shared.EntityTypeCustomer, c.ID,
		fmt.Sprintf("Installment %d %s for %s", inst.InstallmentNo, verb, c.Name)).
		With("installment_id", inst.ID.String()).
		With("amount", inst.ReceivedAmount.String()).
		With("status", inst.Status).
		With("received_amount", c.ReceivedAmount.String()).
		With("balance_amount", c.BalanceAmount.String())
}
