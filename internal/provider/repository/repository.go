// Package repository provides Postgres persistence for provider API keys.
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

var ErrNotFound = errors.New("api key not found")

// APIKey is a stored credential for provider callbacks. Only the bcrypt
// hash is persisted; the plaintext secret is shown once at creation.
type APIKey struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Prefix         string
	KeyHash        []byte
	CreatedAt      time.Time
	LastUsedAt     *time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, key *APIKey) error {
	const q = `
		INSERT INTO api_keys (id, organization_id, name, prefix, key_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.pool.Exec(ctx, q, key.ID, key.OrganizationID, key.Name, key.Prefix, key.KeyHash, key.CreatedAt); err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (r *Repository) GetByPrefix(ctx context.Context, prefix string) (*APIKey, error) {
	const q = `
		SELECT id, organization_id, name, prefix, key_hash, created_at, last_used_at
		FROM api_keys
		WHERE prefix = $1`

	var k APIKey
	err := r.pool.QueryRow(ctx, q, prefix).Scan(
		&k.ID, &k.OrganizationID, &k.Name, &k.Prefix, &k.KeyHash, &k.CreatedAt, &k.LastUsedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return &k, nil
}

func (r *Repository) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE api_keys SET last_used_at = now() WHERE id = $1`

	if _, err := r.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	const q = `DELETE FROM api_keys WHERE organization_id = $1 AND id = $2`

	tag, err := r.pool.Exec(ctx, q, orgID, id)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
