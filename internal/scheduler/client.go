package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// Client enqueues outreach attempt tasks.
type Client struct {
	inner *asynq.Client
	queue string
	log   *logger.Logger
}

// RedisConnOpt builds the asynq Redis connection options from config.
func RedisConnOpt(cfg config.SchedulerConfig) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opt, nil
}

func NewClient(cfg config.SchedulerConfig, log *logger.Logger) (*Client, error) {
	opt, err := RedisConnOpt(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		inner: asynq.NewClient(opt),
		queue: cfg.GetAsynqQueueName(),
		log:   log,
	}, nil
}

// NewClientWithOpt wires a client onto an existing connection option.
// Used by tests running against an embedded Redis.
func NewClientWithOpt(opt asynq.RedisConnOpt, queue string, log *logger.Logger) *Client {
	return &Client{inner: asynq.NewClient(opt), queue: queue, log: log}
}

func (c *Client) Close() error {
	return c.inner.Close()
}

// EnqueueContactAttempt queues an attempt for immediate execution. The task
// ID is derived from the trigger so a replayed trigger is a no-op.
func (c *Client) EnqueueContactAttempt(ctx context.Context, p ContactAttemptPayload) error {
	task, err := NewContactAttemptTask(p)
	if err != nil {
		return err
	}

	_, err = c.inner.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(taskID(p)),
		asynq.MaxRetry(8),
		asynq.Timeout(5*time.Minute),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		c.log.Info("duplicate trigger absorbed", "trigger_id", p.TriggerID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue contact attempt: %w", err)
	}
	return nil
}

// ScheduleContactAttempt queues an attempt to run at a later time, used for
// retry delays.
func (c *Client) ScheduleContactAttempt(ctx context.Context, p ContactAttemptPayload, runAt time.Time) error {
	task, err := NewContactAttemptTask(p)
	if err != nil {
		return err
	}

	_, err = c.inner.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(taskID(p)),
		asynq.ProcessAt(runAt),
		asynq.MaxRetry(8),
		asynq.Timeout(5*time.Minute),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		c.log.Info("retry already scheduled", "trigger_id", p.TriggerID, "attempt", p.AttemptNumber)
		return nil
	}
	if err != nil {
		return fmt.Errorf("schedule contact attempt: %w", err)
	}
	return nil
}

// taskID makes enqueueing idempotent per trigger and attempt number.
func taskID(p ContactAttemptPayload) string {
	return fmt.Sprintf("%s:%s:%d", TypeContactAttempt, p.TriggerID, p.AttemptNumber)
}
