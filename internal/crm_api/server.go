package crm_api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/plotbook-crm/internal/config"
	"github.com/plotbook-crm/internal/crm_api/handler"
	"github.com/plotbook-crm/internal/crm_api/middleware"
	"github.com/plotbook-crm/internal/crm_api/service"
	"github.com/rs/cors"
)

// Services bundles the application services the HTTP layer depends on
type Services struct {
	Customer service.CustomerService
	Staff    service.StaffService
	Auth     service.AuthService
	Activity service.ActivityService
	Report   service.ReportService
}

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger // For structured logging
	httpServer *http.Server // Underlying HTTP server
	httpRouter *gin.Engine  // Gin router instance
}

// NewServer creates and configures a new HTTP server with the given services.
// checks are reported by the /health endpoint.
func NewServer(log *slog.Logger, cfg *config.Config, services Services, checks ...HealthCheck) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := newEngine(log, cfg.Server.TrustedProxies)

	h := handlers{
		auth:     handler.NewAuthHandler(log, services.Auth),
		customer: handler.NewCustomerHandler(log, services.Customer),
		staff:    handler.NewStaffHandler(log, services.Staff),
		activity: handler.NewActivityHandler(log, services.Activity),
		report:   handler.NewReportHandler(log, services.Report),
	}

	setupRouter(log, httpRouter, h,
		services.Auth,
		middleware.NewIPRateLimiter(cfg.Auth.LoginRatePerSecond, cfg.Auth.LoginBurst),
		middleware.NewMetrics("plotbook"),
		checks,
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.CorrelationIDHeader},
		ExposedHeaders:   []string{middleware.CorrelationIDHeader, "Content-Disposition", handler.ExportRowsHeader, handler.ExportTruncatedHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler(httpRouter)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}
}

// newEngine builds the gin engine. Forwarded client addresses are honoured
// only from the given proxies; with none, the socket peer is the client.
func newEngine(log *slog.Logger, trustedProxies []string) *gin.Engine {
	engine := gin.New()
	if err := engine.SetTrustedProxies(trustedProxies); err != nil {
		log.Error("Invalid trusted proxy list, ignoring forwarded headers", "proxies", trustedProxies, "error", err)
		_ = engine.SetTrustedProxies(nil)
	}
	return engine
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server, waiting for in-flight requests
// until ctx expires
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}
