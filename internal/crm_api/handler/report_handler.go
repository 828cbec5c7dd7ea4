package handler

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/plotbook-crm/internal/crm_api/service"
)

// ReportHandler serves the dashboard, documents and message templates
type ReportHandler struct {
	reportService service.ReportService
	logger        *slog.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(logger *slog.Logger, reportService service.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		logger:        logger,
	}
}

func (h *ReportHandler) Dashboard(c *gin.Context) {
	summary, err := h.reportService.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	RespondOK(c, summary)
}

// Statement renders the customer's account statement as a PDF download
func (h *ReportHandler) Statement(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "customer")
	if !ok {
		return
	}

	pdf, cust, err := h.reportService.StatementPDF(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	RespondFile(c, "application/pdf", "statement-"+safeFilename(cust.CustomerCode)+".pdf", pdf)
}

// Export headers let the console warn when a download hit the row cap
const (
	ExportRowsHeader      = "X-Export-Rows"
	ExportTruncatedHeader = "X-Export-Truncated"
)

// ExportCSV downloads every booking matching the list filters
func (h *ReportHandler) ExportCSV(c *gin.Context) {
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

	export, err := h.reportService.ExportCSV(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Header(ExportRowsHeader, strconv.Itoa(export.Rows))
	if export.Truncated {
		c.Header(ExportTruncatedHeader, "true")
	}
	RespondFile(c, "text/csv; charset=utf-8", "customers-"+time.Now().Format("20060102")+".csv", export.Data)
}

// WhatsApp renders a message template for the customer with a share link
func (h *ReportHandler) WhatsApp(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "customer")
	if !ok {
		return
	}

	msg, err := h.reportService.WhatsApp(c.Request.Context(), id, c.Param("template"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	RespondOK(c, msg)
}

func safeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
