// The worker consumes outreach attempt tasks from Redis and runs them
// through the pipeline. It shares the composition root with the API server
// but exposes no HTTP surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach_backend/internal/compliance"
	"outreach_backend/internal/directory"
	"outreach_backend/internal/events"
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
	log.Info("starting worker", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The API server owns migrations; the worker only waits for the database.
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

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	var recordingStore sessionsservice.RecordingStore = recordings.Disabled{}
	if cfg.IsMinIOEnabled() {
		store, err := recordings.New(cfg, log)
		if err != nil {
			log.Error("failed to initialize recording storage", "error", err)
			panic("failed to initialize recording storage: " + err.Error())
		}
		recordingStore = store
	}

	queue, err := scheduler.NewClient(cfg, log)
	if err != nil {
		log.Error("failed to initialize task queue client", "error", err)
		panic("failed to initialize task queue client: " + err.Error())
	}
	defer queue.Close()

	dialer := provider.NewDialer(cfg, log)

	complianceModule := compliance.NewModule(pool, val, log)
	profilesModule := profiles.NewModule(pool, val, log)
	directoryModule := directory.NewModule(pool, val, log)
	routingModule := routing.NewModule(pool, directoryModule.Service(), eventBus, val, log)
	sessionsModule := sessions.NewModule(pool, routingModule.Service(), recordingStore, eventBus, val, log)
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

	worker, err := scheduler.NewWorker(cfg, pipelineModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- worker.Run()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, draining worker")
		worker.Shutdown()
	case err := <-runErr:
		if err != nil {
			log.Error("worker error", "error", err)
			panic("worker error: " + err.Error())
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
