// Package service applies the contact profile: call-window evaluation,
// capacity admission, and retry planning.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/profiles/domain"
	"outreach_backend/internal/profiles/repository"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"
)

// CapacityError reports a declined admission. RetryAfter hints when the
// caller may try again; zero means "when an in-flight call ends".
type CapacityError struct {
	Limit      string // "concurrent" or "hourly"
	RetryAfter time.Duration
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded: %s limit reached", e.Limit)
}

// RetryAfterDuration lets the task scheduler pick a sensible backoff.
func (e *CapacityError) RetryAfterDuration() time.Duration { return e.RetryAfter }

// AttemptPlan is the admission ticket for one attempt.
type AttemptPlan struct {
	Number       int
	Delay        time.Duration
	ScheduledFor time.Time
}

// Repository is the persistence surface the service needs.
type Repository interface {
	Get(ctx context.Context, orgID uuid.UUID) (*domain.ContactProfile, error)
	Upsert(ctx context.Context, p *domain.ContactProfile) error
	CurrentUsage(ctx context.Context, orgID uuid.UUID, now time.Time) (repository.Usage, error)
	LastAttemptSeq(ctx context.Context, orgID, contactID uuid.UUID) (int, error)
}

type Service struct {
	repo Repository
	log  *logger.Logger
	now  func() time.Time
}

func New(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// Profile loads the organization's profile, falling back to the default
// policy when none has been saved. Conservative defaults mean a missing row
// never blocks outreach entirely, it just throttles it.
func (s *Service) Profile(ctx context.Context, orgID uuid.UUID) (*domain.ContactProfile, error) {
	p, err := s.repo.Get(ctx, orgID)
	if errors.Is(err, repository.ErrNotFound) {
		def := domain.DefaultProfile(orgID)
		return &def, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// EvaluateWindow checks whether the given moment (or now, if zero) falls
// inside the organization's calling window.
func (s *Service) EvaluateWindow(ctx context.Context, orgID uuid.UUID, at time.Time) (domain.WindowResult, error) {
	p, err := s.Profile(ctx, orgID)
	if err != nil {
		return domain.WindowResult{}, err
	}
	if at.IsZero() {
		at = s.now()
	}
	return p.EvaluateWindow(at)
}

// CheckCapacity admits or declines a new attempt against both throughput
// limits, read together from one usage snapshot.
func (s *Service) CheckCapacity(ctx context.Context, orgID uuid.UUID) error {
	p, err := s.Profile(ctx, orgID)
	if err != nil {
		return err
	}

	now := s.now()
	usage, err := s.repo.CurrentUsage(ctx, orgID, now)
	if err != nil {
		return err
	}
	if usage.InFlight >= p.MaxConcurrent {
		return &CapacityError{Limit: "concurrent"}
	}
	if usage.LastHour >= p.MaxPerHour {
		// The trailing-hour counter frees a slot when its oldest attempt
		// ages out of the window.
		retryAfter := time.Hour
		if usage.OldestInWindow != nil {
			if until := usage.OldestInWindow.Add(time.Hour).Sub(now); until > 0 {
				retryAfter = until
			}
		}
		return &CapacityError{Limit: "hourly", RetryAfter: retryAfter}
	}
	return nil
}

// PlanAttempt allocates the next attempt number for the contact and computes
// when it should run. Returns domain.ErrMaxAttempts once the budget is spent.
func (s *Service) PlanAttempt(ctx context.Context, orgID, contactID uuid.UUID) (*AttemptPlan, error) {
	p, err := s.Profile(ctx, orgID)
	if err != nil {
		return nil, err
	}

	last, err := s.repo.LastAttemptSeq(ctx, orgID, contactID)
	if err != nil {
		return nil, err
	}

	next := last + 1
	delay, err := p.RetryDelay(next)
	if err != nil {
		return nil, err
	}

	return &AttemptPlan{
		Number:       next,
		Delay:        delay,
		ScheduledFor: s.now().Add(delay),
	}, nil
}

// Save validates and stores the organization's profile.
func (s *Service) Save(ctx context.Context, p *domain.ContactProfile) error {
	if err := p.Validate(); err != nil {
		return apperr.Validation(err.Error())
	}
	p.UpdatedAt = s.now().UTC()
	return s.repo.Upsert(ctx, p)
}
