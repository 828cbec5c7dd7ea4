package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/plotbook-crm/internal/crm_api/service"
)

// ActivityHandler serves the audit trail
type ActivityHandler struct {
	activityService service.ActivityService
	logger          *slog.Logger
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(logger *slog.Logger, activityService service.ActivityService) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
		logger:          logger,
	}
}

// List returns recorded activities, newest first
func (h *ActivityHandler) List(c *gin.Context) {
	var query ListActivityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	filter, err := query.toFilter()
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	entries, total, err := h.activityService.ListActivity(c.Request.Context(), filter, query.Page, query.PerPage)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response := make([]ActivityResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, mapActivityToResponse(e))
	}
	RespondWithPaginatedData(c, http.StatusOK, response, query.Page, query.PerPage, total)
}
