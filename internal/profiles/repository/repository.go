// Package repository provides Postgres persistence for contact profiles and
// the usage counters the rate limiter reads.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_backend/internal/profiles/domain"
)

var ErrNotFound = errors.New("contact profile not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Usage is a snapshot of current attempt load, taken in a single query so
// both counters describe the same moment. OldestInWindow is when the oldest
// attempt counted by LastHour ran; it tells a declined caller when the
// trailing-hour counter will free a slot.
type Usage struct {
	InFlight       int
	LastHour       int
	OldestInWindow *time.Time
}

func (r *Repository) Get(ctx context.Context, orgID uuid.UUID) (*domain.ContactProfile, error) {
	const q = `
		SELECT organization_id, allowed_days, window_start, window_end, timezone,
		       max_concurrent, max_per_hour, max_attempts, retry_delays_minutes, updated_at
		FROM contact_profiles
		WHERE organization_id = $1`

	var (
		p            domain.ContactProfile
		days         []int32
		delayMinutes []int32
	)
	err := r.pool.QueryRow(ctx, q, orgID).Scan(
		&p.OrganizationID, &days, &p.WindowStart, &p.WindowEnd, &p.Timezone,
		&p.MaxConcurrent, &p.MaxPerHour, &p.MaxAttempts, &delayMinutes, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact profile: %w", err)
	}

	p.AllowedDays = make([]time.Weekday, 0, len(days))
	for _, d := range days {
		p.AllowedDays = append(p.AllowedDays, time.Weekday(d))
	}
	p.RetryDelays = make([]time.Duration, 0, len(delayMinutes))
	for _, m := range delayMinutes {
		p.RetryDelays = append(p.RetryDelays, time.Duration(m)*time.Minute)
	}
	return &p, nil
}

func (r *Repository) Upsert(ctx context.Context, p *domain.ContactProfile) error {
	const q = `
		INSERT INTO contact_profiles (organization_id, allowed_days, window_start, window_end, timezone,
		                              max_concurrent, max_per_hour, max_attempts, retry_delays_minutes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (organization_id) DO UPDATE SET
			allowed_days = EXCLUDED.allowed_days,
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			timezone = EXCLUDED.timezone,
			max_concurrent = EXCLUDED.max_concurrent,
			max_per_hour = EXCLUDED.max_per_hour,
			max_attempts = EXCLUDED.max_attempts,
			retry_delays_minutes = EXCLUDED.retry_delays_minutes,
			updated_at = EXCLUDED.updated_at`

	days := make([]int32, 0, len(p.AllowedDays))
	for _, d := range p.AllowedDays {
		days = append(days, int32(d))
	}
	delayMinutes := make([]int32, 0, len(p.RetryDelays))
	for _, d := range p.RetryDelays {
		delayMinutes = append(delayMinutes, int32(d/time.Minute))
	}

	_, err := r.pool.Exec(ctx, q,
		p.OrganizationID, days, p.WindowStart, p.WindowEnd, p.Timezone,
		p.MaxConcurrent, p.MaxPerHour, p.MaxAttempts, delayMinutes, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert contact profile: %w", err)
	}
	return nil
}

// CurrentUsage counts in-flight attempts and attempts executed in the
// trailing hour with one aggregate read. Reading both in separate queries
// could admit an attempt that neither counter alone would have admitted.
func (r *Repository) CurrentUsage(ctx context.Context, orgID uuid.UUID, now time.Time) (Usage, error) {
	const q = `
		SELECT
			COUNT(*) FILTER (WHERE status = 'calling'),
			COUNT(*) FILTER (WHERE executed_at IS NOT NULL AND executed_at > $2),
			MIN(executed_at) FILTER (WHERE executed_at IS NOT NULL AND executed_at > $2)
		FROM attempts
		WHERE organization_id = $1`

	var u Usage
	if err := r.pool.QueryRow(ctx, q, orgID, now.Add(-time.Hour)).Scan(&u.InFlight, &u.LastHour, &u.OldestInWindow); err != nil {
		return Usage{}, fmt.Errorf("read attempt usage: %w", err)
	}
	return u, nil
}

// LastAttemptSeq returns the highest attempt sequence recorded for the
// contact, zero when none exist.
func (r *Repository) LastAttemptSeq(ctx context.Context, orgID, contactID uuid.UUID) (int, error) {
	const q = `
		SELECT COALESCE(MAX(seq), 0) FROM attempts
		WHERE organization_id = $1 AND contact_id = $2`

	var seq int
	if err := r.pool.QueryRow(ctx, q, orgID, contactID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read last attempt seq: %w", err)
	}
	return seq, nil
}
