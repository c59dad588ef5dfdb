// Package service manages the recipient directory and answers availability
// lookups for the routing engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/directory/domain"
	"outreach_backend/internal/directory/repository"
	"outreach_backend/internal/directory/transport"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/phone"
)

// Repository is the persistence surface the service needs.
type Repository interface {
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Recipient, error)
	BestInDepartment(ctx context.Context, orgID uuid.UUID, department string, locationID *uuid.UUID) (*domain.Recipient, error)
	Create(ctx context.Context, rec *domain.Recipient) error
	Update(ctx context.Context, rec *domain.Recipient) error
	List(ctx context.Context, orgID uuid.UUID) ([]domain.Recipient, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

type Service struct {
	repo Repository
	log  *logger.Logger
	now  func() time.Time
}

func New(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// Person resolves a specific recipient. The second return reports whether
// the recipient exists and can take a handoff; a missing recipient is
// reported as unavailable rather than an error so routing can fall back.
func (s *Service) Person(ctx context.Context, orgID, id uuid.UUID) (*domain.Recipient, bool, error) {
	rec, err := s.repo.GetByID(ctx, orgID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec, rec.Available(), nil
}

// Department resolves the best available recipient in a department queue.
// Returns (nil, nil) when nobody in the department can take the call.
func (s *Service) Department(ctx context.Context, orgID uuid.UUID, department string, locationID *uuid.UUID) (*domain.Recipient, error) {
	rec, err := s.repo.BestInDepartment(ctx, orgID, department, locationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) Create(ctx context.Context, orgID uuid.UUID, req transport.CreateRecipientRequest) (*domain.Recipient, error) {
	normalized, err := phone.NormalizeE164(req.Phone)
	if err != nil {
		return nil, apperr.Validation("phone number is not valid")
	}

	now := s.now().UTC()
	rec := &domain.Recipient{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Kind:           domain.Kind(req.Kind),
		Name:           req.Name,
		Department:     req.Department,
		LocationID:     req.LocationID,
		Phone:          normalized,
		Priority:       req.Priority,
		Active:         true,
		Accepting:      true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Active != nil {
		rec.Active = *req.Active
	}
	if req.Accepting != nil {
		rec.Accepting = *req.Accepting
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create recipient: %w", err)
	}
	return rec, nil
}

func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, req transport.UpdateRecipientRequest) (*domain.Recipient, error) {
	rec, err := s.repo.GetByID(ctx, orgID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("recipient not found")
	}
	if err != nil {
		return nil, err
	}

	normalized, err := phone.NormalizeE164(req.Phone)
	if err != nil {
		return nil, apperr.Validation("phone number is not valid")
	}

	rec.Kind = domain.Kind(req.Kind)
	rec.Name = req.Name
	rec.Department = req.Department
	rec.LocationID = req.LocationID
	rec.Phone = normalized
	rec.Priority = req.Priority
	if req.Active != nil {
		rec.Active = *req.Active
	}
	if req.Accepting != nil {
		rec.Accepting = *req.Accepting
	}
	rec.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("update recipient: %w", err)
	}
	return rec, nil
}

func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]domain.Recipient, error) {
	return s.repo.List(ctx, orgID)
}

func (s *Service) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("recipient not found")
		}
		return err
	}
	return nil
}
