package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/profiles/domain"
	"outreach_backend/internal/profiles/repository"
	"outreach_backend/platform/logger"
)

type fakeRepo struct {
	profile  *domain.ContactProfile
	usage    repository.Usage
	usageErr error
	lastSeq  int
	saved    *domain.ContactProfile
}

func (f *fakeRepo) Get(_ context.Context, orgID uuid.UUID) (*domain.ContactProfile, error) {
	if f.profile == nil {
		return nil, repository.ErrNotFound
	}
	return f.profile, nil
}

func (f *fakeRepo) Upsert(_ context.Context, p *domain.ContactProfile) error {
	f.saved = p
	return nil
}

func (f *fakeRepo) CurrentUsage(_ context.Context, _ uuid.UUID, _ time.Time) (repository.Usage, error) {
	if f.usageErr != nil {
		return repository.Usage{}, f.usageErr
	}
	return f.usage, nil
}

func (f *fakeRepo) LastAttemptSeq(_ context.Context, _, _ uuid.UUID) (int, error) {
	return f.lastSeq, nil
}

func TestProfileFallsBackToDefault(t *testing.T) {
	svc := New(&fakeRepo{}, logger.New("test"))
	orgID := uuid.New()

	p, err := svc.Profile(context.Background(), orgID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.OrganizationID != orgID {
		t.Fatalf("organization = %s, want %s", p.OrganizationID, orgID)
	}
	if p.MaxConcurrent != 3 || p.MaxPerHour != 10 || p.MaxAttempts != 3 {
		t.Fatalf("unexpected default limits: %+v", p)
	}
}

func TestCheckCapacity(t *testing.T) {
	orgID := uuid.New()

	tests := []struct {
		name      string
		usage     repository.Usage
		wantLimit string
	}{
		{name: "under both limits admits", usage: repository.Usage{InFlight: 2, LastHour: 9}},
		{name: "at concurrent limit declines", usage: repository.Usage{InFlight: 3, LastHour: 0}, wantLimit: "concurrent"},
		{name: "at hourly limit declines", usage: repository.Usage{InFlight: 0, LastHour: 10}, wantLimit: "hourly"},
		{name: "concurrent limit reported before hourly", usage: repository.Usage{InFlight: 3, LastHour: 10}, wantLimit: "concurrent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(&fakeRepo{usage: tt.usage}, logger.New("test"))

			err := svc.CheckCapacity(context.Background(), orgID)
			if tt.wantLimit == "" {
				if err != nil {
					t.Fatalf("expected admission, got %v", err)
				}
				return
			}

			var capErr *CapacityError
			if !errors.As(err, &capErr) {
				t.Fatalf("want CapacityError, got %v", err)
			}
			if capErr.Limit != tt.wantLimit {
				t.Fatalf("limit = %s, want %s", capErr.Limit, tt.wantLimit)
			}
		})
	}
}

func TestCheckCapacityHourlyBackoffHint(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	oldest := now.Add(-20 * time.Minute)

	svc := New(&fakeRepo{usage: repository.Usage{LastHour: 10, OldestInWindow: &oldest}}, logger.New("test"))
	svc.now = func() time.Time { return now }

	err := svc.CheckCapacity(context.Background(), uuid.New())
	var capErr *CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("want CapacityError, got %v", err)
	}
	// The oldest counted attempt ran 20 minutes ago, so the window frees a
	// slot 40 minutes from now.
	if want := 40 * time.Minute; capErr.RetryAfterDuration() != want {
		t.Fatalf("retry after = %v, want %v", capErr.RetryAfterDuration(), want)
	}
}

func TestCheckCapacityHourlyBackoffDefaultsToFullWindow(t *testing.T) {
	svc := New(&fakeRepo{usage: repository.Usage{LastHour: 10}}, logger.New("test"))

	err := svc.CheckCapacity(context.Background(), uuid.New())
	var capErr *CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("want CapacityError, got %v", err)
	}
	if capErr.RetryAfterDuration() != time.Hour {
		t.Fatalf("retry after = %v, want 1h", capErr.RetryAfterDuration())
	}
}

func TestCheckCapacityPropagatesStorageError(t *testing.T) {
	svc := New(&fakeRepo{usageErr: errors.New("connection refused")}, logger.New("test"))

	if err := svc.CheckCapacity(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected storage error to propagate")
	}
}

func TestPlanAttempt(t *testing.T) {
	orgID := uuid.New()
	contactID := uuid.New()
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		lastSeq  int
		wantNum  int
		wantWait time.Duration
		wantErr  error
	}{
		{name: "first attempt carries the first delay", lastSeq: 0, wantNum: 1, wantWait: 30 * time.Minute},
		{name: "second attempt waits the second delay", lastSeq: 1, wantNum: 2, wantWait: 2 * time.Hour},
		{name: "third attempt waits the third delay", lastSeq: 2, wantNum: 3, wantWait: 24 * time.Hour},
		{name: "budget exhausted", lastSeq: 3, wantErr: domain.ErrMaxAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(&fakeRepo{lastSeq: tt.lastSeq}, logger.New("test"))
			svc.now = func() time.Time { return now }

			plan, err := svc.PlanAttempt(context.Background(), orgID, contactID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("plan attempt: %v", err)
			}
			if plan.Number != tt.wantNum {
				t.Fatalf("number = %d, want %d", plan.Number, tt.wantNum)
			}
			if plan.Delay != tt.wantWait {
				t.Fatalf("delay = %v, want %v", plan.Delay, tt.wantWait)
			}
			if want := now.Add(tt.wantWait); !plan.ScheduledFor.Equal(want) {
				t.Fatalf("scheduled for = %v, want %v", plan.ScheduledFor, want)
			}
		})
	}
}

func TestSaveRejectsInvalidProfile(t *testing.T) {
	repo := &fakeRepo{}
	svc := New(repo, logger.New("test"))

	p := domain.DefaultProfile(uuid.New())
	p.WindowStart = 21 * 60
	p.WindowEnd = 8 * 60

	if err := svc.Save(context.Background(), &p); err == nil {
		t.Fatal("expected validation error for overnight window")
	}
	if repo.saved != nil {
		t.Fatal("invalid profile must not be persisted")
	}
}
