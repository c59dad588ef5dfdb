// Package service implements the compliance gate and do-not-contact management.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/compliance/repository"
	"outreach_backend/internal/compliance/transport"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/phone"
)

// ErrCheckFailed signals that the suppression store could not be consulted.
// Callers must treat this the same as a positive match: no contact goes out
// while the answer is unknown.
var ErrCheckFailed = errors.New("compliance check failed")

// SuppressionError reports a positive do-not-contact match.
type SuppressionError struct {
	MatchedScope transport.Scope
}

func (e *SuppressionError) Error() string {
	return fmt.Sprintf("contact suppressed by do-not-contact record (scope %s)", e.MatchedScope)
}

// Repository is the persistence surface the service needs.
type Repository interface {
	MatchScope(ctx context.Context, orgID uuid.UUID, phone, email string, channel transport.Channel) (transport.Scope, bool, error)
	Create(ctx context.Context, rec *repository.Record) error
	List(ctx context.Context, orgID uuid.UUID) ([]repository.Record, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

type Service struct {
	repo Repository
	log  *logger.Logger
}

func New(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// CheckContact verifies that the contact may be reached on the given channel.
// Returns *SuppressionError on a match and ErrCheckFailed when the store is
// unreachable. Only a nil return means the attempt may proceed.
func (s *Service) CheckContact(ctx context.Context, orgID uuid.UUID, phoneNumber, email string, channel transport.Channel) error {
	normalized := ""
	if phoneNumber != "" {
		n, err := phone.NormalizeE164(phoneNumber)
		if err != nil {
			// An unparseable number can never be dialed safely.
			return fmt.Errorf("%w: %v", ErrCheckFailed, err)
		}
		normalized = n
	}

	scope, matched, err := s.repo.MatchScope(ctx, orgID, normalized, strings.ToLower(email), channel)
	if err != nil {
		s.log.DatabaseError("compliance_match", err)
		return fmt.Errorf("%w: %v", ErrCheckFailed, err)
	}
	if matched {
		return &SuppressionError{MatchedScope: scope}
	}
	return nil
}

// AddRecord registers a suppression entry. Takes effect for every attempt
// checked after the insert commits.
func (s *Service) AddRecord(ctx context.Context, orgID uuid.UUID, req transport.CreateDNCRequest) (*transport.DNCResponse, error) {
	if req.Phone == "" && req.Email == "" {
		return nil, apperr.Validation("at least one of phone or email is required")
	}

	normalized := ""
	if req.Phone != "" {
		n, err := phone.NormalizeE164(req.Phone)
		if err != nil {
			return nil, apperr.Validation("phone number is not valid")
		}
		normalized = n
	}

	rec := &repository.Record{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Phone:          normalized,
		Email:          strings.ToLower(req.Email),
		Scope:          req.Scope,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create do-not-contact record: %w", err)
	}

	resp := toResponse(rec)
	return &resp, nil
}

func (s *Service) ListRecords(ctx context.Context, orgID uuid.UUID) (*transport.DNCListResponse, error) {
	recs, err := s.repo.List(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list do-not-contact records: %w", err)
	}

	out := transport.DNCListResponse{Items: make([]transport.DNCResponse, 0, len(recs))}
	for i := range recs {
		out.Items = append(out.Items, toResponse(&recs[i]))
	}
	return &out, nil
}

func (s *Service) RemoveRecord(ctx context.Context, orgID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("do-not-contact record not found")
		}
		return fmt.Errorf("delete do-not-contact record: %w", err)
	}
	return nil
}

func toResponse(rec *repository.Record) transport.DNCResponse {
	return transport.DNCResponse{
		ID:        rec.ID,
		Phone:     rec.Phone,
		Email:     rec.Email,
		Scope:     rec.Scope,
		CreatedAt: rec.CreatedAt,
	}
}
