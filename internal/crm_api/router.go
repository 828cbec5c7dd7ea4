package crm_api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/plotbook-crm/internal/crm_api/handler"
	"github.com/plotbook-crm/internal/crm_api/middleware"
	"github.com/plotbook-crm/internal/domain/staff"
)

// handlers groups the HTTP handlers mounted by setupRouter
type handlers struct {
	auth     *handler.AuthHandler
	customer *handler.CustomerHandler
	staff    *handler.StaffHandler
	activity *handler.ActivityHandler
	report   *handler.ReportHandler
}

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	h handlers,
	tokens middleware.TokenParser,
	loginLimiter *middleware.IPRateLimiter,
	metrics *middleware.Metrics,
	checks []HealthCheck,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger, "/health", "/metrics"))
	r.Use(metrics.Middleware())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		v1.POST("/auth/login", loginLimiter.Middleware(), h.auth.Login)

		secured := v1.Group("", middleware.Authenticate(tokens))

		customers := secured.Group("/customers")
		{
			customers.GET("", h.customer.List)
			customers.POST("", h.customer.Create)
			customers.GET("/export.csv", h.report.ExportCSV)
			customers.POST("/ledger/preview", h.customer.PreviewLedger)
			customers.GET("/:id", h.customer.GetByID)
			customers.PUT("/:id", h.customer.Update)
			customers.DELETE("/:id", middleware.RequireRole(staff.RoleAdmin, staff.RoleManager), h.customer.Delete)
			customers.GET("/:id/statement.pdf", h.report.Statement)
			customers.GET("/:id/whatsapp/:template", h.report.WhatsApp)

			customers.POST("/:id/installments", h.customer.AddInstallment)
			customers.PUT("/:id/installments/:installmentId", h.customer.UpdateInstallment)
			customers.DELETE("/:id/installments/:installmentId", h.customer.RemoveInstallment)
		}

		// Roster management is admin only
		roster := secured.Group("/staff", middleware.RequireRole(staff.RoleAdmin))
		{
			roster.GET("", h.staff.List)
			roster.POST("", h.staff.Create)
			roster.GET("/:id", h.staff.GetByID)
			roster.PUT("/:id", h.staff.Update)
			roster.DELETE("/:id", h.staff.Delete)
		}

		secured.GET("/activity-logs", h.activity.List)
		secured.GET("/reports/dashboard", h.report.Dashboard)
	}

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Health check endpoint for monitoring
	r.GET("/health", healthHandler(checks))
}
