// Package repository provides Postgres persistence for call sessions.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_backend/internal/sessions/domain"
)

var (
	ErrNotFound = errors.New("session not found")

	// ErrStaleStatus means a guarded status update lost a race: the row's
	// current status was not the expected one.
	ErrStaleStatus = errors.New("session status changed concurrently")
)

const sessionColumns = `
	id, organization_id, contact_id, attempt_id, provider_ref, status,
	from_number, to_number, handoff_recipient_id, transcript, metadata,
	recording_key, started_at, answered_at, ended_at, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		s             domain.Session
		rawTranscript []byte
		rawMetadata   []byte
	)
	err := row.Scan(
		&s.ID, &s.OrganizationID, &s.ContactID, &s.AttemptID, &s.ProviderRef, &s.Status,
		&s.FromNumber, &s.ToNumber, &s.HandoffRecipientID, &rawTranscript, &rawMetadata,
		&s.RecordingKey, &s.StartedAt, &s.AnsweredAt, &s.EndedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if len(rawTranscript) > 0 {
		if err := json.Unmarshal(rawTranscript, &s.Transcript); err != nil {
			return nil, fmt.Errorf("decode transcript: %w", err)
		}
	}
	if len(rawMetadata) > 0 {
		if err := json.Unmarshal(rawMetadata, &s.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &s, nil
}

func (r *Repository) Create(ctx context.Context, s *domain.Session) error {
	const q = `
		INSERT INTO sessions (id, organization_id, contact_id, attempt_id, provider_ref, status,
		                      from_number, to_number, handoff_recipient_id, transcript, metadata,
		                      recording_key, started_at, answered_at, ended_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '[]', '{}', $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, q,
		s.ID, s.OrganizationID, s.ContactID, s.AttemptID, s.ProviderRef, s.Status,
		s.FromNumber, s.ToNumber, s.HandoffRecipientID, s.RecordingKey,
		s.StartedAt, s.AnsweredAt, s.EndedAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE organization_id = $1 AND id = $2`
	return scanSession(r.pool.QueryRow(ctx, q, orgID, id))
}

func (r *Repository) GetByProviderRef(ctx context.Context, providerRef string) (*domain.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE provider_ref = $1`
	return scanSession(r.pool.QueryRow(ctx, q, providerRef))
}

func (r *Repository) SetProviderRef(ctx context.Context, id uuid.UUID, providerRef string) error {
	const q = `UPDATE sessions SET provider_ref = $2, updated_at = now() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, q, id, providerRef)
	if err != nil {
		return fmt.Errorf("set provider ref: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TransitionStatus moves the session from one status to another, guarded by
// the expected current status so concurrent callbacks cannot double-apply.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.Status, at time.Time) error {
	const q = `
		UPDATE sessions SET
			status = $3,
			answered_at = CASE WHEN $3 = 'answered' THEN $4 ELSE answered_at END,
			ended_at = CASE WHEN $5 THEN $4 ELSE ended_at END,
			updated_at = $4
		WHERE id = $1 AND status = $2`

	tag, err := r.pool.Exec(ctx, q, id, from, to, at, domain.IsTerminal(to))
	if err != nil {
		return fmt.Errorf("transition session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (r *Repository) SetHandoffRecipient(ctx context.Context, id, recipientID uuid.UUID) error {
	const q = `UPDATE sessions SET handoff_recipient_id = $2, updated_at = now() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, q, id, recipientID)
	if err != nil {
		return fmt.Errorf("set handoff recipient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MergeMetadata folds qualification facts into the session's metadata.
// Later values win on key collisions.
func (r *Repository) MergeMetadata(ctx context.Context, id uuid.UUID, facts map[string]string) error {
	raw, err := json.Marshal(facts)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	const q = `UPDATE sessions SET metadata = metadata || $2::jsonb, updated_at = now() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, q, id, raw)
	if err != nil {
		return fmt.Errorf("merge metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendTranscript appends entries to the stored transcript. Works on
// terminal sessions too: providers deliver final transcripts after the call
// ends.
func (r *Repository) AppendTranscript(ctx context.Context, id uuid.UUID, entries []domain.TranscriptEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode transcript entries: %w", err)
	}

	const q = `UPDATE sessions SET transcript = transcript || $2::jsonb, updated_at = now() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, q, id, raw)
	if err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetRecordingKey(ctx context.Context, id uuid.UUID, key string) error {
	const q = `UPDATE sessions SET recording_key = $2, updated_at = now() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, q, id, key)
	if err != nil {
		return fmt.Errorf("set recording key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListByContact(ctx context.Context, orgID, contactID uuid.UUID) ([]domain.Session, error) {
	q := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE organization_id = $1 AND contact_id = $2
		ORDER BY started_at DESC`

	rows, err := r.pool.Query(ctx, q, orgID, contactID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
