package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/plotbook-crm/internal/crm_api/service"
	"github.com/plotbook-crm/internal/domain/customer"
	"github.com/plotbook-crm/internal/domain/ledger"
)

// CustomerHandler handles HTTP requests for plot bookings and their installments
type CustomerHandler struct {
	customerService service.CustomerService
	logger          *slog.Logger
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(logger *slog.Logger, customerService service.CustomerService) *CustomerHandler {
	return &CustomerHandler{
		customerService: customerService,
		logger:          logger,
	}
}

// List returns one page of bookings matching the query filters
func (h *CustomerHandler) List(c *gin.Context) {
	var query ListCustomersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	filter, err := query.toFilter()
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	customers, total, err := h.customerService.ListCustomers(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response := make([]CustomerResponse, 0, len(customers))
	for _, cust := range customers {
		response = append(response, mapCustomerToResponse(cust, false))
	}
	RespondWithPaginatedData(c, http.StatusOK, response, query.Page, query.PerPage, total)
}

// Create stores a new booking and echoes the reconciled record
func (h *CustomerHandler) Create(c *gin.Context) {
	var req CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	input, err := req.toInput()
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	cust, err := h.customerService.CreateCustomer(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	RespondCreated(c, mapCustomerToResponse(cust, true))
}

// GetByID returns a booking with its installments
func (h *CustomerHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "customer")
	if !ok {
		return
	}

	cust, err := h.customerService.GetCustomer(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	RespondOK(c, mapCustomerToResponse(cust, true))
}

// Update replaces a booking; the request must carry the version it was read at
func (h *CustomerHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "customer")
	if !ok {
		return
	}

	var req CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Version == nil {
		RespondBadRequest(c, "version is required")
		return
	}
	input, err := req.toInput()
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	cust, err := h.customerService.UpdateCustomer(c.Request.Context(), id, *req.Version, input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	RespondOK(c, mapCustomerToResponse(cust, true))
}

// Delete removes a booking and its installments
func (h *CustomerHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "customer")
	if !ok {
		return
	}

	if err := h.customerService.DeleteCustomer(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	RespondNoContent(c)
}

// AddInstallment appends a payment and returns the reconciled booking
func (h *CustomerHandler) AddInstallment(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "customer")
	if !ok {
		return
	}
	inst, ok := h.bindInstallment(c)
	if !ok {
		return
	}

	cust, err := h.customerService.AddInstallment(c.Request.Context(), id, inst)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	RespondCreated(c, mapCustomerToResponse(cust, true))
}

// UpdateInstallment edits one payment and returns the reconciled booking
func (h *CustomerHandler) UpdateInstallment(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "customer")
	if !ok {
		return
	}
	installmentID, ok := parseIDParam(c, "installmentId", "installment")
	if !ok {
		return
	}
	inst, ok := h.bindInstallment(c)
	if !ok {
		return
	}

	cust, err := h.customerService.UpdateInstallment(c.Request.Context(), id, installmentID, inst)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	RespondOK(c, mapCustomerToResponse(cust, true))
}

// RemoveInstallment deletes one payment and returns the reconciled booking
func (h *CustomerHandler) RemoveInstallment(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "customer")
	if !ok {
		return
	}
	installmentID, ok := parseIDParam(c, "installmentId", "installment")
	if !ok {
		return
	}

	cust, err := h.customerService.RemoveInstallment(c.Request.Context(), id, installmentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	RespondOK(c, mapCustomerToResponse(cust, true))
}

// PreviewLedger reconciles a draft booking without saving it
func (h *CustomerHandler) PreviewLedger(c *gin.Context) {
	var req LedgerPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.TotalAmount.IsNegative() || req.BookingAmount.IsNegative() {
		RespondBadRequest(c, customer.ErrNegativeAmount.Error())
		return
	}

	lines := make([]ledger.Line, 0, len(req.Installments))
	for _, inst := range req.Installments {
		if inst.ReceivedAmount.IsNegative() {
			RespondBadRequest(c, customer.ErrNegativeAmount.Error())
			return
		}
		lines = append(lines, ledger.Line{ReceivedAmount: inst.ReceivedAmount.Decimal, Status: inst.Status})
	}

	result := h.customerService.PreviewLedger(req.TotalAmount.Decimal, req.BookingAmount.Decimal, lines)

	response := LedgerPreviewResponse{
		ReceivedAmount: result.ReceivedAmount,
		BalanceAmount:  result.BalanceAmount,
		Installments:   make([]LedgerInstallmentPreview, 0, len(result.Installments)),
	}
	for i, b := range result.Installments {
		response.Installments = append(response.Installments, LedgerInstallmentPreview{
			InstallmentNo:  i + 1,
			ReceivedAmount: b.ReceivedAmount,
			Status:         b.Status,
			BalanceAmount:  b.BalanceAmount,
			Bounced:        ledger.IsBounced(b.Status),
		})
	}
	RespondOK(c, response)
}

func (h *CustomerHandler) bindInstallment(c *gin.Context) (customer.Installment, bool) {
	var req InstallmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return customer.Installment{}, false
	}
	inst, err := req.toDomain()
	if err != nil {
		RespondBadRequest(c, err.Error())
		return customer.Installment{}, false
	}
	return inst, true
}

// parseIDParam reads a UUID path parameter, answering 400 when malformed
func parseIDParam(c *gin.Context, param, name string) (uuid.UUID, bool) {
	raw := c.Param(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		RespondBadRequest(c, "Invalid "+name+" ID")
		return uuid.Nil, false
	}
	return id, true
}
