package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/echoboardhq/echoboard-segments/internal/background"
	"github.com/echoboardhq/echoboard-segments/internal/config"
	"github.com/echoboardhq/echoboard-segments/internal/database"
	"github.com/echoboardhq/echoboard-segments/internal/handlers"
	middlewareCustom "github.com/echoboardhq/echoboard-segments/internal/middleware"
	"github.com/echoboardhq/echoboard-segments/internal/repositories"
	"github.com/echoboardhq/echoboard-segments/internal/routes"
	"github.com/echoboardhq/echoboard-segments/internal/services"
	pkghttp "github.com/echoboardhq/echoboard-segments/pkg/http"
	pkglogger "github.com/echoboardhq/echoboard-segments/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Apply pending migrations
	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := database.Migrate(migrateCtx, db); err != nil {
		migrateCancel()
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrateCancel()

	// Initialize repositories
	segmentRepo := repositories.NewSegmentRepository(db)
	membershipRepo := repositories.NewMembershipRepository(db)
	principalRepo := repositories.NewPrincipalRepository(db)

	// Assemble notification sinks
	notifier := buildNotifier(cfg, logger)

	// Initialize services
	segmentService := services.NewSegmentService(segmentRepo, membershipRepo, logger)
	evaluationService := services.NewEvaluationService(segmentRepo, membershipRepo, principalRepo, notifier, logger)
	statsService := services.NewStatsService(segmentRepo, membershipRepo, principalRepo, logger)

	// Initialize handlers
	auditLogger := pkglogger.NewAuditLogger(logger)
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	segmentHandler := handlers.NewSegmentHandlerWithAudit(segmentService, evaluationService, statsService, auditLogger, ipConfig)

	// Background workers
	scheduler := background.NewScheduler(evaluationService, segmentRepo, logger, cfg.Evaluator.Schedule)
	segmentService.SetScheduleReloader(scheduler)
	purgeManager := background.NewPurgeManager(segmentRepo, logger, cfg.Evaluator.PurgeInterval, cfg.Evaluator.PurgeRetention)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.Env)
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, segmentHandler)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start background workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	if err := scheduler.Start(workerCtx); err != nil {
		logger.Error("failed to start evaluation scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	go purgeManager.Start(workerCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	workerCancel()
	scheduler.Stop()
	purgeManager.Stop()
	evaluationService.Drain()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildNotifier assembles the configured churn sinks. With nothing configured
// the evaluation service falls back to its no-op notifier.
func buildNotifier(cfg *config.Config, logger *slog.Logger) services.Notifier {
	var sinks services.MultiNotifier

	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, services.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.WebhookTimeout, logger))
	}

	if cfg.Notify.AWSRegion != "" && cfg.Notify.FromAddress != "" && cfg.Notify.ToAddress != "" {
		sesNotifier, err := services.NewSESNotifier(cfg.Notify.AWSRegion, cfg.Notify.FromAddress, cfg.Notify.ToAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email notifier", slog.Any("error", err))
		} else {
			sinks = append(sinks, sesNotifier)
		}
	}

	if len(sinks) == 0 {
		return nil
	}
	return sinks
}
