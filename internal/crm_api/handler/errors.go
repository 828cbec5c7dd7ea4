package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/plotbook-crm/internal/crm_api/middleware"
	"github.com/plotbook-crm/internal/crm_api/service"
	"github.com/plotbook-crm/internal/domain/customer"
	"github.com/plotbook-crm/internal/domain/staff"
)

var validationErrors = []error{
	customer.ErrEmptyName,
	customer.ErrEmptyCustomerCode,
	customer.ErrNegativeAmount,
	customer.ErrInvalidStatus,
	customer.ErrInvalidInstallment,
	customer.ErrInvalidPaymentMode,
	customer.ErrUnknownAgent,
	customer.ErrDuplicateInstallment,
	customer.ErrForeignInstallment,
	staff.ErrEmptyName,
	staff.ErrInvalidEmail,
	staff.ErrInvalidRole,
	staff.ErrPasswordTooShort,
	service.ErrUnknownTemplate,
	service.ErrNoPhone,
	service.ErrNoInstallment,
}

// respondError maps domain and service errors onto the response envelope
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		customerNotFound    customer.ErrCustomerNotFound
		installmentNotFound customer.ErrInstallmentNotFound
		staffNotFound       staff.ErrStaffNotFound
		duplicateCode       customer.ErrDuplicateCustomerCode
		duplicateEmail      staff.ErrDuplicateEmail
		conflict            customer.ErrConcurrentModification
	)

	switch {
	case errors.As(err, &customerNotFound):
		RespondNotFound(c, "Customer not found")
	case errors.As(err, &installmentNotFound):
		RespondNotFound(c, "Installment not found")
	case errors.As(err, &staffNotFound):
		RespondNotFound(c, "Staff member not found")
	case errors.As(err, &duplicateCode):
		RespondConflict(c, "Customer with this customer code already exists")
	case errors.As(err, &duplicateEmail):
		RespondConflict(c, "Staff member with this email already exists")
	case errors.As(err, &conflict):
		RespondConflict(c, "Customer was modified by someone else; reload and retry")
	case errors.Is(err, staff.ErrInvalidCredentials):
		RespondUnauthorized(c, "Invalid email or password")
	case errors.Is(err, staff.ErrInactive):
		RespondForbidden(c, "Staff account is inactive")
	case isValidationError(err):
		RespondBadRequest(c, err.Error())
	default:
		logger.Error("Request failed",
			"path", c.FullPath(),
			"correlation_id", middleware.GetCorrelationID(c),
			"error", err,
		)
		RespondInternalError(c)
	}
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
