// Package repository provides Postgres persistence for outreach attempts
// and the per-job step ledger that makes pipeline execution idempotent.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("attempt not found")

// Attempt statuses.
const (
	StatusPlanned   = "planned"
	StatusCalling   = "calling"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Attempt is one planned or executed outreach attempt. Seq is 1-based per
// contact; the (contact_id, seq) unique constraint is what makes duplicate
// executions harmless.
type Attempt struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	ContactID      uuid.UUID
	TriggerID      string
	Seq            int
	Status         string
	Phone          string
	Email          string
	SessionID      *uuid.UUID
	ScheduledFor   time.Time
	ExecutedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const attemptColumns = `
	id, organization_id, contact_id, trigger_id, seq, status, phone, email,
	session_id, scheduled_for, executed_at, created_at, updated_at`

func scanAttempt(row pgx.Row) (*Attempt, error) {
	var a Attempt
	err := row.Scan(
		&a.ID, &a.OrganizationID, &a.ContactID, &a.TriggerID, &a.Seq, &a.Status,
		&a.Phone, &a.Email, &a.SessionID, &a.ScheduledFor, &a.ExecutedAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan attempt: %w", err)
	}
	return &a, nil
}

// CreateAttempt inserts the attempt unless the (contact_id, seq) slot is
// already taken. The boolean reports whether this call created the row.
func (r *Repository) CreateAttempt(ctx context.Context, a *Attempt) (bool, error) {
	const q = `
		INSERT INTO attempts (id, organization_id, contact_id, trigger_id, seq, status, phone, email,
		                      session_id, scheduled_for, executed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (contact_id, seq) DO NOTHING`

	tag, err := r.pool.Exec(ctx, q,
		a.ID, a.OrganizationID, a.ContactID, a.TriggerID, a.Seq, a.Status,
		a.Phone, a.Email, a.SessionID, a.ScheduledFor, a.ExecutedAt,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert attempt: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) GetBySeq(ctx context.Context, orgID, contactID uuid.UUID, seq int) (*Attempt, error) {
	q := `SELECT ` + attemptColumns + ` FROM attempts WHERE organization_id = $1 AND contact_id = $2 AND seq = $3`
	return scanAttempt(r.pool.QueryRow(ctx, q, orgID, contactID, seq))
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Attempt, error) {
	q := `SELECT ` + attemptColumns + ` FROM attempts WHERE id = $1`
	return scanAttempt(r.pool.QueryRow(ctx, q, id))
}

// PlannedByTrigger finds the trigger's half-dispatched attempt, if any.
// Returns (nil, nil) when the trigger has no attempt still in planned state.
func (r *Repository) PlannedByTrigger(ctx context.Context, orgID, contactID uuid.UUID, triggerID string) (*Attempt, error) {
	q := `SELECT ` + attemptColumns + `
		FROM attempts
		WHERE organization_id = $1 AND contact_id = $2 AND trigger_id = $3 AND status = $4
		ORDER BY seq DESC
		LIMIT 1`

	a, err := scanAttempt(r.pool.QueryRow(ctx, q, orgID, contactID, triggerID, StatusPlanned))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return a, err
}

func (r *Repository) LinkSession(ctx context.Context, attemptID, sessionID uuid.UUID) error {
	const q = `UPDATE attempts SET session_id = $2, updated_at = now() WHERE id = $1 AND session_id IS NULL`

	if _, err := r.pool.Exec(ctx, q, attemptID, sessionID); err != nil {
		return fmt.Errorf("link session: %w", err)
	}
	return nil
}

// MarkCalling moves the attempt into the in-flight state and stamps the
// execution time the hourly counter reads.
func (r *Repository) MarkCalling(ctx context.Context, attemptID uuid.UUID, at time.Time) error {
	const q = `
		UPDATE attempts SET status = $2, executed_at = $3, updated_at = $3
		WHERE id = $1 AND status = $4`

	if _, err := r.pool.Exec(ctx, q, attemptID, StatusCalling, at, StatusPlanned); err != nil {
		return fmt.Errorf("mark attempt calling: %w", err)
	}
	return nil
}

func (r *Repository) UpdateStatus(ctx context.Context, attemptID uuid.UUID, status string) error {
	const q = `UPDATE attempts SET status = $2, updated_at = now() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, q, attemptID, status)
	if err != nil {
		return fmt.Errorf("update attempt status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListByContact(ctx context.Context, orgID, contactID uuid.UUID) ([]Attempt, error) {
	q := `
		SELECT ` + attemptColumns + `
		FROM attempts
		WHERE organization_id = $1 AND contact_id = $2
		ORDER BY seq`

	rows, err := r.pool.Query(ctx, q, orgID, contactID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// StepDone reports whether the named step already completed for the job.
func (r *Repository) StepDone(ctx context.Context, jobKey, step string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM pipeline_steps WHERE job_key = $1 AND step_name = $2)`

	var done bool
	if err := r.pool.QueryRow(ctx, q, jobKey, step).Scan(&done); err != nil {
		return false, fmt.Errorf("check pipeline step: %w", err)
	}
	return done, nil
}

// MarkStepDone records step completion. Re-marking is harmless.
func (r *Repository) MarkStepDone(ctx context.Context, jobKey, step string) error {
	const q = `
		INSERT INTO pipeline_steps (job_key, step_name, completed_at)
		VALUES ($1, $2, now())
		ON CONFLICT (job_key, step_name) DO NOTHING`

	if _, err := r.pool.Exec(ctx, q, jobKey, step); err != nil {
		return fmt.Errorf("mark pipeline step: %w", err)
	}
	return nil
}
