package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/plotbook-crm/internal/crm_api/middleware"
	"github.com/plotbook-crm/internal/crm_api/service"
	"github.com/plotbook-crm/internal/domain/staff"
)

// StaffHandler handles HTTP requests for the staff roster
type StaffHandler struct {
	staffService service.StaffService
	logger       *slog.Logger
}

// NewStaffHandler creates a new staff handler
func NewStaffHandler(logger *slog.Logger, staffService service.StaffService) *StaffHandler {
	return &StaffHandler{
		staffService: staffService,
		logger:       logger,
	}
}

func (h *StaffHandler) List(c *gin.Context) {
	var query ListStaffQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	members, total, err := h.staffService.ListStaff(c.Request.Context(), staff.Filter{
		Role:       staff.Role(query.Role),
		ActiveOnly: query.ActiveOnly,
		Limit:      query.PerPage,
		Offset:     query.offset(),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response := make([]StaffResponse, 0, len(members))
	for _, m := range members {
		response = append(response, mapStaffToResponse(m))
	}
	RespondWithPaginatedData(c, http.StatusOK, response, query.Page, query.PerPage, total)
}

// Create adds a staff member; a password is mandatory here
func (h *StaffHandler) Create(c *gin.Context) {
	input, ok := h.bindStaff(c)
	if !ok {
		return
	}
	if input.Password == "" {
		RespondBadRequest(c, "password is required")
		return
	}

	member, err := h.staffService.CreateStaff(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	RespondCreated(c, mapStaffToResponse(member))
}

func (h *StaffHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "staff")
	if !ok {
		return
	}

	member, err := h.staffService.GetStaff(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	RespondOK(c, mapStaffToResponse(member))
}

// Update edits a staff member; an empty password keeps the current one
func (h *StaffHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "staff")
	if !ok {
		return
	}
	input, ok := h.bindStaff(c)
	if !ok {
		return
	}

	member, err := h.staffService.UpdateStaff(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	RespondOK(c, mapStaffToResponse(member))
}

func (h *StaffHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "staff")
	if !ok {
		return
	}

	if claims := middleware.GetClaims(c); claims != nil && claims.StaffID == id {
		RespondBadRequest(c, "You cannot delete your own account")
		return
	}

	if err := h.staffService.DeleteStaff(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	RespondNoContent(c)
}

func (h *StaffHandler) bindStaff(c *gin.Context) (service.StaffInput, bool) {
	var req StaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return service.StaffInput{}, false
	}
	input, err := req.toInput()
	if err != nil {
		RespondBadRequest(c, err.Error())
		return service.StaffInput{}, false
	}
	return input, true
}
