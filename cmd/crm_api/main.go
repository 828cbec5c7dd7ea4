package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/plotbook-crm/internal/config"
	"github.com/plotbook-crm/internal/crm_api"
	"github.com/plotbook-crm/internal/crm_api/service"
	"github.com/plotbook-crm/internal/data/mongo"
	"github.com/plotbook-crm/internal/data/postgres"
	"github.com/plotbook-crm/internal/logger"
	"github.com/plotbook-crm/internal/platform/cache"
	"github.com/plotbook-crm/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("crm_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.RequireTokenSigning(); err != nil {
		fmt.Printf("Invalid auth configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting CRM API",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Migrations run as part of pool setup
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// A Redis outage disables caching instead of failing startup
	redisCache := cache.NewRedisCache(appCtx, log, &cfg.Redis)

	// Initialize repositories
	customerRepo := postgres.NewCustomerRepository(log, postgresDB)
	staffRepo := postgres.NewStaffRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	activityRepo := mongo.NewActivityRepository(log, mongoDB.Database())

	// Initialize services
	outboxManager := service.NewOutboxManager(outboxRepo, log)
	services := crm_api.Services{
		Customer: service.NewCustomerService(log, postgresDB, customerRepo, outboxManager, redisCache),
		Staff:    service.NewStaffService(log, postgresDB, staffRepo, outboxManager),
		Auth:     service.NewAuthService(log, staffRepo, &cfg.Auth),
		Activity: service.NewActivityService(activityRepo),
		Report:   service.NewReportService(log, customerRepo, redisCache, cfg.Redis.CacheTTL),
	}

	if err := services.Staff.EnsureBootstrapAdmin(appCtx, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPassword); err != nil {
		log.Error("Failed to seed bootstrap admin", "error", err)
		os.Exit(1)
	}

	server := crm_api.NewServer(log, cfg, services,
		crm_api.HealthCheck{Name: "postgres", Critical: true, Probe: postgresDB.Ping},
		crm_api.HealthCheck{Name: "mongodb", Critical: true, Probe: mongoDB.Ping},
		crm_api.HealthCheck{Name: "redis", Probe: func(ctx context.Context) error {
			if !redisCache.Healthy(ctx) {
				return errors.New("redis unreachable")
			}
			return nil
		}},
	)

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Drain requests before closing the stores they use
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	postgresDB.Close()

	if err = redisCache.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("CRM API shutdown completed with errors")
	} else {
		log.Info("CRM API shutdown completed successfully")
	}
}
