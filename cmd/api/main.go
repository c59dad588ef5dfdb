package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach_backend/internal/alerts"
	"outreach_backend/internal/compliance"
	"outreach_backend/internal/directory"
	"outreach_backend/internal/events"
	apphttp "outreach_backend/internal/http"
	"outreach_backend/internal/http/router"
	"outreach_backend/internal/pipeline"
	"outreach_backend/internal/profiles"
	"outreach_backend/internal/provider"
	"outreach_backend/internal/recordings"
	"outreach_backend/internal/routing"
	"outreach_backend/internal/scheduler"
	"outreach_backend/internal/sessions"
	sessionsservice "outreach_backend/internal/sessions/service"
	"outreach_backend/platform/config"
	"outreach_backend/platform/db"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Recording storage (MinIO). Without it the session endpoints still work,
	// recording downloads just answer 503.
	var recordingStore sessionsservice.RecordingStore = recordings.Disabled{}
	if cfg.IsMinIOEnabled() {
		store, err := recordings.New(cfg, log)
		if err != nil {
			log.Error("failed to initialize recording storage", "error", err)
			panic("failed to initialize recording storage: " + err.Error())
		}
		if err := withRetry(ctx, log, "ensure recordings bucket", 5, 2*time.Second, func() error {
			return store.EnsureBucket(ctx)
		}); err != nil {
			log.Error("failed to ensure recordings bucket", "error", err)
			panic("failed to ensure recordings bucket: " + err.Error())
		}
		recordingStore = store
		log.Info("recording storage initialized")
	} else {
		log.Warn("MINIO_ENDPOINT not configured; recording downloads disabled")
	}

	// Task queue client for the attempt pipeline
	queue, err := scheduler.NewClient(cfg, log)
	if err != nil {
		log.Error("failed to initialize task queue client", "error", err)
		panic("failed to initialize task queue client: " + err.Error())
	}
	defer queue.Close()

	queuePing, err := scheduler.NewRedisPing(cfg)
	if err != nil {
		log.Error("failed to initialize queue health check", "error", err)
		panic("failed to initialize queue health check: " + err.Error())
	}
	defer queuePing.Close()

	// Email alerts subscribe to domain events (not HTTP-facing)
	alerts.New(cfg, log).Register(eventBus)

	// Telephony provider dialer
	dialer := provider.NewDialer(cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	complianceModule := compliance.NewModule(pool, val, log)
	profilesModule := profiles.NewModule(pool, val, log)
	directoryModule := directory.NewModule(pool, val, log)
	routingModule := routing.NewModule(pool, directoryModule.Service(), eventBus, val, log)
	sessionsModule := sessions.NewModule(pool, routingModule.Service(), recordingStore, eventBus, val, log)
	providerModule := provider.NewModule(pool, dialer, sessionsModule.Service(), log)
	pipelineModule := pipeline.NewModule(
		pool,
		complianceModule.Service(),
		profilesModule.Service(),
		sessionsModule.Service(),
		dialer,
		queue,
		eventBus,
		cfg.GetProviderFromNumber(),
		val,
		log,
	)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:      cfg,
		Logger:      log,
		Health:      db.NewPoolAdapter(pool),
		QueueHealth: queuePing,
		EventBus:    eventBus,
		Modules: []apphttp.Module{
			complianceModule,
			profilesModule,
			directoryModule,
			routingModule,
			sessionsModule,
			providerModule,
			pipelineModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("%s: %w", name, lastErr)
}
