package scheduler

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"outreach_backend/platform/config"
)

// RedisPing answers readiness probes for the task queue's Redis backend.
// asynq owns the task connections; this one exists only so /api/ready can
// report a queue outage before triggers start piling up.
type RedisPing struct {
	client *redis.Client
}

func NewRedisPing(cfg config.SchedulerConfig) (*RedisPing, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisPing{client: redis.NewClient(opt)}, nil
}

func (r *RedisPing) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisPing) Close() error {
	return r.client.Close()
}
