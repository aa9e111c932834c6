package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/steuerflow/taxfiling-api/internal/config"
	"github.com/steuerflow/taxfiling-api/internal/handler"
	"github.com/steuerflow/taxfiling-api/internal/i18n"
	"github.com/steuerflow/taxfiling-api/internal/infra/observability"
	"github.com/steuerflow/taxfiling-api/internal/infra/resilience"
	"github.com/steuerflow/taxfiling-api/internal/infra/supabase"
	"github.com/steuerflow/taxfiling-api/internal/pdf"
	"github.com/steuerflow/taxfiling-api/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Int("upload_batch_size", cfg.UploadBatchSize),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL must be set")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(context.Background(), "taxfiling-api", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")
	uploadBulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	// --- Supabase client ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	supabaseClient := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cfg.StorageBucket,
		cb,
		resilienceCfg,
		logger,
	)

	// --- Translations & PDF ---
	bundle := i18n.Load()
	renderer := pdf.NewRenderer(bundle)

	// --- Services ---
	authSvc := service.NewAuthService(supabaseClient, cfg.JWTSecret, cfg.JWTAccessTTL, metrics, logger)
	filingSvc := service.NewFilingService(
		supabaseClient,
		supabaseClient,
		renderer,
		bundle,
		uploadBulkhead,
		service.FilingConfig{
			SessionTTL:      cfg.SessionTTL,
			UploadBatchSize: cfg.UploadBatchSize,
			UploadTimeout:   cfg.UploadTimeout,
		},
		metrics,
		logger,
	)
	formsSvc := service.NewFormsService(supabaseClient, logger)

	// --- Router ---
	router := handler.NewRouter(filingSvc, formsSvc, authSvc, metrics, logger, cfg.CORSOrigins)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
