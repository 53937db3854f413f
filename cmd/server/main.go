package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bcnelson/helpdesk-settings/internal/api"
	"github.com/bcnelson/helpdesk-settings/internal/config"
	"github.com/bcnelson/helpdesk-settings/internal/connection"
	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/bcnelson/helpdesk-settings/internal/navigation"
	"github.com/bcnelson/helpdesk-settings/internal/notify"
	"github.com/bcnelson/helpdesk-settings/internal/service"
	"github.com/bcnelson/helpdesk-settings/internal/storage"
	"github.com/bcnelson/helpdesk-settings/internal/storage/sql"
	"github.com/bcnelson/helpdesk-settings/internal/telemetry"
	"github.com/bcnelson/helpdesk-settings/internal/validation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	shutdownTracing := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.OTLPInsecure,
	}, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	// Create data directory if needed (for SQLite)
	if cfg.Database.Driver == "sqlite3" {
		if dir := filepath.Dir(cfg.Database.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				logger.Fatal("failed to create data directory", zap.Error(err))
			}
		}
	}

	// Initialize storage
	store, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	if cfg.Helpdesk.SeedPriorities {
		n, err := storage.SeedPriorities(ctx, store, cfg.Helpdesk.OrganizationID, domain.DefaultTicketPriorities(cfg.Helpdesk.OrganizationID))
		if err != nil {
			logger.Fatal("failed to seed ticket priorities", zap.Error(err))
		}
		if n > 0 {
			logger.Info("seeded ticket priorities", zap.Int("count", n))
		}
	}

	recorder := notify.NewRecorder(100)
	notifier := notify.Multi{recorder, notify.NewLogger(logger)}
	validator := validation.NewDefaultEngine()

	sla, err := service.NewSLAService(
		cfg.Helpdesk.OrganizationID,
		store,
		validator,
		notifier,
		metrics,
		logger,
		cfg.Sync.SyncBackTimeout,
	)
	if err != nil {
		logger.Fatal("failed to initialize SLA service", zap.Error(err))
	}
	settings := service.NewSettingsService(store, validator, notifier, sla, metrics, logger)

	loadCtx, cancelLoad := context.WithTimeout(ctx, cfg.Sync.LoadTimeout)
	if err := settings.LoadAll(loadCtx); err != nil {
		logger.Warn("some sections use defaults", zap.Error(err))
	}
	if _, err := sla.FetchPolicies(loadCtx); err != nil {
		logger.Warn("fetching SLA policies failed", zap.Error(err))
	}
	cancelLoad()

	exitRegistry := navigation.NewRegistry(logger)
	guard := navigation.NewGuard(settings.Tracker(), exitRegistry, domain.Sections)

	tester := connection.New(connection.Options{
		Timeout:       cfg.Connection.Timeout,
		RatePerMinute: cfg.Connection.RatePerMinute,
		Burst:         cfg.Connection.Burst,
	}, metrics, logger)

	// Create router
	router := api.NewRouter(settings, guard, tester, recorder, reg, metrics, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info("starting helpdesk settings service",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("organization_id", cfg.Helpdesk.OrganizationID),
	)

	// Start server in goroutine
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if dirty := exitRegistry.Intercept(); len(dirty) > 0 {
		logger.Warn("unsaved edits are discarded on shutdown", zap.Int("sections", len(dirty)))
	}
	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Let in-flight SLA sync-backs finish.
	sla.Wait()

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("flushing traces failed", zap.Error(err))
	}

	logger.Info("server stopped")
}
