// Package repository provides Postgres persistence for routing rules.
// Conditions are stored as JSONB and parsed into predicates at load time.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_backend/internal/routing/domain"
)

var ErrNotFound = errors.New("routing rule not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ruleColumns = `
	id, organization_id, name, priority, location_id, conditions,
	target_type, target_recipient_id, target_department, fallback_rule_id,
	active, created_at, updated_at`

func scanRule(row pgx.Row) (*domain.Rule, error) {
	var (
		r        domain.Rule
		rawConds []byte
	)
	err := row.Scan(
		&r.ID, &r.OrganizationID, &r.Name, &r.Priority, &r.LocationID, &rawConds,
		&r.Target.Type, &r.Target.RecipientID, &r.Target.Department, &r.FallbackRuleID,
		&r.Active, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan routing rule: %w", err)
	}

	r.Conditions, err = domain.ParseConditions(rawConds)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", r.ID, err)
	}
	return &r, nil
}

// ActiveRules loads every active rule applicable to the query: rules scoped
// to the given location plus global rules. With no location only global
// rules apply.
func (r *Repository) ActiveRules(ctx context.Context, orgID uuid.UUID, locationID *uuid.UUID) ([]*domain.Rule, error) {
	q := `
		SELECT ` + ruleColumns + `
		FROM routing_rules
		WHERE organization_id = $1 AND active
		  AND (location_id IS NULL OR location_id = $2)`

	rows, err := r.pool.Query(ctx, q, orgID, locationID)
	if err != nil {
		return nil, fmt.Errorf("load active rules: %w", err)
	}
	defer rows.Close()

	var out []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *Repository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Rule, error) {
	q := `SELECT ` + ruleColumns + ` FROM routing_rules WHERE organization_id = $1 AND id = $2`
	return scanRule(r.pool.QueryRow(ctx, q, orgID, id))
}

func (r *Repository) List(ctx context.Context, orgID uuid.UUID) ([]*domain.Rule, error) {
	q := `
		SELECT ` + ruleColumns + `
		FROM routing_rules
		WHERE organization_id = $1
		ORDER BY priority DESC, created_at`

	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, fmt.Errorf("list routing rules: %w", err)
	}
	defer rows.Close()

	var out []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *Repository) Create(ctx context.Context, rule *domain.Rule) error {
	rawConds, err := domain.EncodeConditions(rule.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}

	const q = `
		INSERT INTO routing_rules (id, organization_id, name, priority, location_id, conditions,
		                           target_type, target_recipient_id, target_department, fallback_rule_id,
		                           active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.pool.Exec(ctx, q,
		rule.ID, rule.OrganizationID, rule.Name, rule.Priority, rule.LocationID, rawConds,
		rule.Target.Type, rule.Target.RecipientID, rule.Target.Department, rule.FallbackRuleID,
		rule.Active, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert routing rule: %w", err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, rule *domain.Rule) error {
	rawConds, err := domain.EncodeConditions(rule.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}

	const q = `
		UPDATE routing_rules SET
			name = $3, priority = $4, location_id = $5, conditions = $6,
			target_type = $7, target_recipient_id = $8, target_department = $9,
			fallback_rule_id = $10, active = $11, updated_at = $12
		WHERE organization_id = $1 AND id = $2`

	tag, err := r.pool.Exec(ctx, q,
		rule.OrganizationID, rule.ID, rule.Name, rule.Priority, rule.LocationID, rawConds,
		rule.Target.Type, rule.Target.RecipientID, rule.Target.Department,
		rule.FallbackRuleID, rule.Active, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update routing rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	const q = `DELETE FROM routing_rules WHERE organization_id = $1 AND id = $2`

	tag, err := r.pool.Exec(ctx, q, orgID, id)
	if err != nil {
		return fmt.Errorf("delete routing rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
