package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"listing_ingest/internal/api"
	"listing_ingest/internal/compliance"
	"listing_ingest/internal/config"
	"listing_ingest/internal/domain"
	"listing_ingest/internal/extraction"
	"listing_ingest/internal/fetch"
	"listing_ingest/internal/normalize"
	"listing_ingest/internal/publisher"
	"listing_ingest/internal/reasoning"
	"listing_ingest/internal/resilience"
	"listing_ingest/internal/scheduler"
	"listing_ingest/internal/service"
	"listing_ingest/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			logger.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	listingStore := postgres.NewListingStore(db)
	reportStore := postgres.NewReportStore(db)
	sweepStateStore := postgres.NewSweepStateStore(db)
	txManager := postgres.NewTransactionManager(db)

	retryPolicy := resilience.RetryPolicy{
		MaxRetries: cfg.Extraction.Retry.MaxRetries,
		BaseDelay:  cfg.Extraction.Retry.BaseDelay,
		Base:       cfg.Extraction.Retry.Base,
		MaxDelay:   cfg.Extraction.Retry.MaxDelay,
	}
	breakerCfg := resilience.BreakerConfig{
		FailureThreshold: cfg.Extraction.Breaker.FailureThreshold,
		ResetTimeout:     cfg.Extraction.Breaker.ResetTimeout,
	}

	fetcher := fetch.New(fetch.Config{
		Timeout:   cfg.Extraction.FetchTimeout,
		UserAgent: cfg.Extraction.UserAgent,
	}, logger)

	reasoner := reasoning.NewGuarded(
		reasoning.NewClient(reasoning.Config{
			Name:        cfg.Reasoning.Name,
			BaseURL:     cfg.Reasoning.BaseURL,
			APIKey:      cfg.Reasoning.APIKey,
			Model:       cfg.Reasoning.Model,
			Timeout:     cfg.Reasoning.Timeout,
			CostPerCall: cfg.Reasoning.CostPerCall,
		}, logger),
		reasoning.GuardConfig{
			RateLimit:   cfg.Reasoning.RateLimitRPS,
			Burst:       cfg.Reasoning.Burst,
			Retry:       retryPolicy,
			Breaker:     breakerCfg,
			DailyBudget: cfg.Reasoning.DailyBudget,
		},
		logger,
	)

	router := extraction.NewRouter(extraction.Config{
		CacheTTL:   cfg.Extraction.CacheTTL,
		DedupTTL:   cfg.Extraction.DedupTTL,
		DailyQuota: cfg.Extraction.DailyQuota,
		Retry:      retryPolicy,
		Breaker:    breakerCfg,
	}, logger).WithPageFetcher(fetcher)

	direct := extraction.Tier{Provider: extraction.NewURLExtractor(reasoner)}
	content := extraction.Tier{Provider: extraction.NewContentExtractor(fetcher, reasoner, cfg.Extraction.MaxContentChars)}
	router.Register(domain.SourceStructured,
		extraction.Tier{Provider: extraction.NewSelectorScraper(fetcher), Cached: true, Metered: true},
		direct,
		content,
	)
	router.Register(domain.SourceUnstructured, direct, content)

	orchestrator := compliance.NewOrchestrator(logger,
		compliance.NewTermsCheck(reasoner, fetcher, cfg.Reasoning.TermsCacheTTL),
		compliance.NewPersonalDataCheck(reasoner),
		compliance.NewCopyrightCheck(reasoner),
	)

	ingestService := service.NewIngestService(
		normalize.New(reasoner, logger).WithConfidenceThreshold(cfg.Ingest.ConfidenceThreshold),
		orchestrator,
		router,
		listingStore,
		reportStore,
		txManager,
		rabbitMQ,
		logger,
		cfg.Ingest,
	)

	srv := &http.Server{
		Addr:         cfg.HTTP.ListenAddr,
		Handler:      api.New(ingestService, cfg, router, listingStore, logger).Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.Sweep.Enabled {
		sched := scheduler.NewScheduler(
			ingestService,
			sweepStateStore,
			cfg.SourceConfigs(),
			cfg.Sweep.Interval,
			cfg.Sweep.Timeout,
			logger,
		)
		go func() {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}

	logger.Info("starting listing ingestor",
		"sources", len(cfg.Sources),
		"workers", cfg.Ingest.Workers,
		"daily_quota", cfg.Extraction.DailyQuota,
		"sweep_enabled", cfg.Sweep.Enabled,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		logger.Error("server error", "error", err)
		exitCode = 1
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
