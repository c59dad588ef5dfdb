// Package repository provides Postgres persistence for recipients.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_backend/internal/directory/domain"
)

var ErrNotFound = errors.New("recipient not found")

const recipientColumns = `
	id, organization_id, kind, name, department, location_id, phone,
	priority, active, accepting, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRecipient(row pgx.Row) (*domain.Recipient, error) {
	var r domain.Recipient
	err := row.Scan(
		&r.ID, &r.OrganizationID, &r.Kind, &r.Name, &r.Department, &r.LocationID,
		&r.Phone, &r.Priority, &r.Active, &r.Accepting, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan recipient: %w", err)
	}
	return &r, nil
}

func (r *Repository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Recipient, error) {
	q := `SELECT ` + recipientColumns + ` FROM recipients WHERE organization_id = $1 AND id = $2`
	return scanRecipient(r.pool.QueryRow(ctx, q, orgID, id))
}

// BestInDepartment returns the highest-priority available recipient in the
// department, preferring an exact location match when locationID is set.
// Ties break on recipient ID so repeated calls pick the same row.
func (r *Repository) BestInDepartment(ctx context.Context, orgID uuid.UUID, department string, locationID *uuid.UUID) (*domain.Recipient, error) {
	q := `
		SELECT ` + recipientColumns + `
		FROM recipients
		WHERE organization_id = $1 AND department = $2 AND active AND accepting
		  AND ($3::uuid IS NULL OR location_id IS NULL OR location_id = $3)
		ORDER BY (location_id = $3) DESC NULLS LAST, priority DESC, id ASC
		LIMIT 1`
	return scanRecipient(r.pool.QueryRow(ctx, q, orgID, department, locationID))
}

func (r *Repository) Create(ctx context.Context, rec *domain.Recipient) error {
	const q = `
		INSERT INTO recipients (id, organization_id, kind, name, department, location_id, phone,
		                        priority, active, accepting, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, q,
		rec.ID, rec.OrganizationID, rec.Kind, rec.Name, rec.Department, rec.LocationID,
		rec.Phone, rec.Priority, rec.Active, rec.Accepting, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert recipient: %w", err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, rec *domain.Recipient) error {
	const q = `
		UPDATE recipients SET
			kind = $3, name = $4, department = $5, location_id = $6, phone = $7,
			priority = $8, active = $9, accepting = $10, updated_at = $11
		WHERE organization_id = $1 AND id = $2`

	tag, err := r.pool.Exec(ctx, q,
		rec.OrganizationID, rec.ID, rec.Kind, rec.Name, rec.Department, rec.LocationID,
		rec.Phone, rec.Priority, rec.Active, rec.Accepting, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update recipient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, orgID uuid.UUID) ([]domain.Recipient, error) {
	q := `
		SELECT ` + recipientColumns + `
		FROM recipients
		WHERE organization_id = $1
		ORDER BY department, priority DESC, name`

	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var out []domain.Recipient
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *Repository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	const q = `DELETE FROM recipients WHERE organization_id = $1 AND id = $2`

	tag, err := r.pool.Exec(ctx, q, orgID, id)
	if err != nil {
		return fmt.Errorf("delete recipient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
