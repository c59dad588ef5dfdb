package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// AttemptExecutor runs one outreach attempt. Implemented by the pipeline
// service; the worker only understands tasks, not outreach semantics.
type AttemptExecutor interface {
	ExecuteAttempt(ctx context.Context, p ContactAttemptPayload) error
}

// retryAfterer is implemented by errors that carry their own backoff hint,
// like capacity declines that know when a slot frees up.
type retryAfterer interface {
	RetryAfterDuration() time.Duration
}

// Worker consumes outreach tasks from Redis.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(cfg config.SchedulerConfig, executor AttemptExecutor, log *logger.Logger) (*Worker, error) {
	opt, err := RedisConnOpt(cfg)
	if err != nil {
		return nil, err
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.GetAsynqConcurrency(),
		Queues: map[string]int{
			cfg.GetAsynqQueueName(): 1,
		},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			var ra retryAfterer
			if errors.As(err, &ra) && ra.RetryAfterDuration() > 0 {
				return ra.RetryAfterDuration()
			}
			return asynq.DefaultRetryDelayFunc(n, err, task)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error("task failed", "type", task.Type(), "error", err)
		}),
		Logger: asynqLogger{log},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeContactAttempt, func(ctx context.Context, t *asynq.Task) error {
		p, err := ParseContactAttemptPayload(t)
		if err != nil {
			// A payload that cannot be decoded will never succeed.
			return errors.Join(err, asynq.SkipRetry)
		}
		return executor.ExecuteAttempt(ctx, p)
	})

	return &Worker{server: server, mux: mux}, nil
}

// Run blocks, processing tasks until Shutdown.
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

// asynqLogger adapts the structured logger onto asynq's logging interface.
type asynqLogger struct {
	log *logger.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug("asynq", "msg", args) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info("asynq", "msg", args) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn("asynq", "msg", args) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error("asynq", "msg", args) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Error("asynq_fatal", "msg", args) }
