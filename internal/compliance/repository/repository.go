// Package repository provides Postgres persistence for do-not-contact records.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_backend/internal/compliance/transport"
)

var ErrNotFound = errors.New("do-not-contact record not found")

// Record is a stored suppression entry. Phone is normalized E.164,
// email is lowercased. Either may be empty but not both.
type Record struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Phone          string
	Email          string
	Scope          transport.Scope
	CreatedAt      time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// MatchScope reports the scope of the first suppression record matching the
// given contact identifiers for the channel. Returns ("", false, nil) when no
// record matches. A scope of "all" matches every channel.
func (r *Repository) MatchScope(ctx context.Context, orgID uuid.UUID, phone, email string, channel transport.Channel) (transport.Scope, bool, error) {
	const q = `
		SELECT scope FROM do_not_contact
		WHERE organization_id = $1
		  AND ((phone <> '' AND phone = $2) OR (email <> '' AND email = $3))
		  AND (scope = $4 OR scope = 'all')
		LIMIT 1`

	var scope transport.Scope
	err := r.pool.QueryRow(ctx, q, orgID, phone, email, string(channel)).Scan(&scope)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("match do-not-contact: %w", err)
	}
	return scope, true, nil
}

func (r *Repository) Create(ctx context.Context, rec *Record) error {
	const q = `
		INSERT INTO do_not_contact (id, organization_id, phone, email, scope, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.pool.Exec(ctx, q, rec.ID, rec.OrganizationID, rec.Phone, rec.Email, rec.Scope, rec.CreatedAt); err != nil {
		return fmt.Errorf("insert do-not-contact: %w", err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, orgID uuid.UUID) ([]Record, error) {
	const q = `
		SELECT id, organization_id, phone, email, scope, created_at
		FROM do_not_contact
		WHERE organization_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, fmt.Errorf("list do-not-contact: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.OrganizationID, &rec.Phone, &rec.Email, &rec.Scope, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan do-not-contact: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	const q = `DELETE FROM do_not_contact WHERE organization_id = $1 AND id = $2`

	tag, err := r.pool.Exec(ctx, q, orgID, id)
	if err != nil {
		return fmt.Errorf("delete do-not-contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
