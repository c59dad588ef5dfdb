// Package service orchestrates outreach attempts: every trigger runs the
// same ordered gate sequence, and every mutating step is idempotent so a
// redelivered task can never double-dial a contact.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	complianceservice "outreach_backend/internal/compliance/service"
	compliancetransport "outreach_backend/internal/compliance/transport"
	"outreach_backend/internal/events"
	"outreach_backend/internal/pipeline/repository"
	profilesdomain "outreach_backend/internal/profiles/domain"
	profilesservice "outreach_backend/internal/profiles/service"
	"outreach_backend/internal/provider"
	"outreach_backend/internal/scheduler"
	sessionsdomain "outreach_backend/internal/sessions/domain"
	"outreach_backend/platform/logger"
)

// Pipeline step names, recorded in the step ledger.
const (
	stepCreateAttempt    = "create_attempt"
	stepOpenSession      = "open_session"
	stepDispatchProvider = "dispatch_provider"
)

// ComplianceGate is the fail-closed suppression check.
type ComplianceGate interface {
	CheckContact(ctx context.Context, orgID uuid.UUID, phone, email string, channel compliancetransport.Channel) error
}

// Policy answers window, capacity, and retry-budget questions.
type Policy interface {
	Profile(ctx context.Context, orgID uuid.UUID) (*profilesdomain.ContactProfile, error)
	CheckCapacity(ctx context.Context, orgID uuid.UUID) error
	PlanAttempt(ctx context.Context, orgID, contactID uuid.UUID) (*profilesservice.AttemptPlan, error)
}

// SessionOpener creates call sessions for dispatched attempts.
type SessionOpener interface {
	Open(ctx context.Context, orgID, contactID, attemptID uuid.UUID, fromNumber, toNumber string) (*sessionsdomain.Session, error)
	BindProviderRef(ctx context.Context, sessionID uuid.UUID, providerRef string) error
}

// TaskQueue re-enqueues attempts for later execution.
type TaskQueue interface {
	EnqueueContactAttempt(ctx context.Context, p scheduler.ContactAttemptPayload) error
	ScheduleContactAttempt(ctx context.Context, p scheduler.ContactAttemptPayload, runAt time.Time) error
}

// Repository is the persistence surface the pipeline needs.
type Repository interface {
	CreateAttempt(ctx context.Context, a *repository.Attempt) (bool, error)
	GetBySeq(ctx context.Context, orgID, contactID uuid.UUID, seq int) (*repository.Attempt, error)
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Attempt, error)
	PlannedByTrigger(ctx context.Context, orgID, contactID uuid.UUID, triggerID string) (*repository.Attempt, error)
	LinkSession(ctx context.Context, attemptID, sessionID uuid.UUID) error
	MarkCalling(ctx context.Context, attemptID uuid.UUID, at time.Time) error
	UpdateStatus(ctx context.Context, attemptID uuid.UUID, status string) error
	ListByContact(ctx context.Context, orgID, contactID uuid.UUID) ([]repository.Attempt, error)
	StepDone(ctx context.Context, jobKey, step string) (bool, error)
	MarkStepDone(ctx context.Context, jobKey, step string) error
}

type Service struct {
	repo       Repository
	compliance ComplianceGate
	policy     Policy
	sessions   SessionOpener
	dialer     provider.Dialer
	queue      TaskQueue
	bus        events.Bus
	fromNumber string
	log        *logger.Logger
	now        func() time.Time
}

func New(repo Repository, compliance ComplianceGate, policy Policy, sessions SessionOpener, dialer provider.Dialer, queue TaskQueue, bus events.Bus, fromNumber string, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		compliance: compliance,
		policy:     policy,
		sessions:   sessions,
		dialer:     dialer,
		queue:      queue,
		bus:        bus,
		fromNumber: fromNumber,
		log:        log,
		now:        time.Now,
	}
}

var _ scheduler.AttemptExecutor = (*Service)(nil)

// Trigger accepts an outreach trigger and queues its first attempt. The
// trigger ID deduplicates: replays of the same trigger enqueue nothing.
func (s *Service) Trigger(ctx context.Context, p scheduler.ContactAttemptPayload) error {
	return s.queue.EnqueueContactAttempt(ctx, p)
}

// ExecuteAttempt runs the full attempt pipeline for one queued task.
//
// Returning nil consumes the task (done, dropped, or handed off to a future
// task); returning an error asks the queue to retry the same task. The gate
// checks always re-run on retry: state like capacity or a fresh
// do-not-contact record must be re-read each time.
func (s *Service) ExecuteAttempt(ctx context.Context, p scheduler.ContactAttemptPayload) error {
	now := s.now()

	// Gate 1: compliance, fail closed.
	if err := s.compliance.CheckContact(ctx, p.OrganizationID, p.Phone, p.Email, compliancetransport.ChannelCall); err != nil {
		var suppressed *complianceservice.SuppressionError
		if errors.As(err, &suppressed) {
			s.log.ComplianceEvent(p.OrganizationID.String(), p.ContactID.String(), string(compliancetransport.ChannelCall), string(suppressed.MatchedScope))
			s.bus.Publish(ctx, events.ContactBlocked{
				BaseEvent:      events.NewBaseEvent(),
				OrganizationID: p.OrganizationID,
				ContactID:      p.ContactID,
				Channel:        string(compliancetransport.ChannelCall),
				MatchedScope:   string(suppressed.MatchedScope),
			})
			return nil
		}
		// Unknown answer: keep the attempt queued, never dial blind.
		return fmt.Errorf("compliance gate: %w", err)
	}

	profile, err := s.policy.Profile(ctx, p.OrganizationID)
	if err != nil {
		return fmt.Errorf("load contact profile: %w", err)
	}

	// Gate 2: calling window. Outside it the trigger is dropped, not
	// rescheduled: whoever raised it may re-raise it later. The log carries
	// the next opening as a hint for that caller.
	window, err := profile.EvaluateWindow(now)
	if err != nil {
		return fmt.Errorf("evaluate window: %w", err)
	}
	if !window.Allowed {
		opening, err := profile.NextOpening(now)
		if err != nil {
			return fmt.Errorf("find next window opening: %w", err)
		}
		s.log.Info("attempt skipped outside calling window",
			"org_id", p.OrganizationID.String(),
			"contact_id", p.ContactID.String(),
			"reason", window.Reason,
			"next_opening", opening.Format(time.RFC3339),
		)
		return nil
	}

	// Gate 3: capacity. A decline is retryable; the error carries its own
	// backoff hint for the hourly limit.
	if err := s.policy.CheckCapacity(ctx, p.OrganizationID); err != nil {
		return fmt.Errorf("capacity gate: %w", err)
	}

	// A redelivered task whose attempt row already exists must resume that
	// attempt, not plan a new one: its own insert has moved the sequence
	// high-water mark, so re-planning here would schedule attempt N+1 while
	// attempt N is still half-dispatched.
	if existing, err := s.repo.PlannedByTrigger(ctx, p.OrganizationID, p.ContactID, p.TriggerID); err != nil {
		return fmt.Errorf("look up planned attempt: %w", err)
	} else if existing != nil {
		return s.dispatch(ctx, p, existing.Seq, now)
	}

	// Gate 4: retry budget and attempt numbering.
	plan, err := s.policy.PlanAttempt(ctx, p.OrganizationID, p.ContactID)
	if err != nil {
		if errors.Is(err, profilesdomain.ErrMaxAttempts) {
			s.bus.Publish(ctx, events.AttemptsExhausted{
				BaseEvent:      events.NewBaseEvent(),
				OrganizationID: p.OrganizationID,
				ContactID:      p.ContactID,
				MaxAttempts:    profile.MaxAttempts,
			})
			return nil
		}
		return fmt.Errorf("plan attempt: %w", err)
	}

	// The first attempt of a fresh trigger dials now; the retry ladder only
	// paces attempts two and up. A plan for a later attempt that this task
	// was not scheduled for belongs to a future task: hand it off and
	// consume this one.
	if plan.Number > 1 && p.AttemptNumber != plan.Number {
		future := p
		future.AttemptNumber = plan.Number
		if err := s.queue.ScheduleContactAttempt(ctx, future, plan.ScheduledFor); err != nil {
			return err
		}
		s.bus.Publish(ctx, events.AttemptScheduled{
			BaseEvent:      events.NewBaseEvent(),
			OrganizationID: p.OrganizationID,
			ContactID:      p.ContactID,
			AttemptNumber:  plan.Number,
			ScheduledFor:   plan.ScheduledFor.Format(time.RFC3339),
		})
		return nil
	}

	return s.dispatch(ctx, p, plan.Number, now)
}

// dispatch runs the mutating tail of the pipeline: create the attempt row,
// open a session, hand the dial instruction to the provider. Each step is
// guarded so a redelivered task resumes instead of repeating.
func (s *Service) dispatch(ctx context.Context, p scheduler.ContactAttemptPayload, seq int, now time.Time) error {
	jobKey := fmt.Sprintf("%s:%d", p.TriggerID, seq)

	// Step: create_attempt. The (contact_id, seq) constraint is the lock.
	candidate := &repository.Attempt{
		ID:             uuid.New(),
		OrganizationID: p.OrganizationID,
		ContactID:      p.ContactID,
		TriggerID:      p.TriggerID,
		Seq:            seq,
		Status:         repository.StatusPlanned,
		Phone:          p.Phone,
		Email:          p.Email,
		ScheduledFor:   now,
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}
	inserted, err := s.repo.CreateAttempt(ctx, candidate)
	if err != nil {
		return fmt.Errorf("%s: %w", stepCreateAttempt, err)
	}

	attempt, err := s.repo.GetBySeq(ctx, p.OrganizationID, p.ContactID, seq)
	if err != nil {
		return fmt.Errorf("%s: load attempt: %w", stepCreateAttempt, err)
	}
	if !inserted && attempt.TriggerID != p.TriggerID {
		// Another trigger claimed this slot; this task has nothing to do.
		s.log.Info("attempt slot already claimed",
			"contact_id", p.ContactID.String(), "seq", seq, "owner", attempt.TriggerID)
		return nil
	}
	if attempt.Status != repository.StatusPlanned {
		return nil
	}

	// Step: open_session. The session link on the attempt is the guard.
	var sessionID uuid.UUID
	if attempt.SessionID != nil {
		sessionID = *attempt.SessionID
	} else {
		sess, err := s.sessions.Open(ctx, p.OrganizationID, p.ContactID, attempt.ID, s.fromNumber, p.Phone)
		if err != nil {
			return fmt.Errorf("%s: %w", stepOpenSession, err)
		}
		if err := s.repo.LinkSession(ctx, attempt.ID, sess.ID); err != nil {
			return fmt.Errorf("%s: %w", stepOpenSession, err)
		}
		sessionID = sess.ID
	}

	// Step: dispatch_provider. The ledger is the guard: once marked, this
	// contact was dialed and must never be dialed again for this attempt.
	dialed, err := s.repo.StepDone(ctx, jobKey, stepDispatchProvider)
	if err != nil {
		return err
	}
	if dialed {
		// A previous run dialed but crashed before recording the transition.
		// The attempt is still planned here (checked above), so settle the
		// bookkeeping instead of leaving it stranded.
		if err := s.repo.MarkCalling(ctx, attempt.ID, now.UTC()); err != nil {
			return fmt.Errorf("%s: %w", stepDispatchProvider, err)
		}
		return nil
	}

	providerRef, err := s.dialer.Dial(ctx, provider.DialInstruction{
		OrganizationID: p.OrganizationID,
		SessionID:      sessionID,
		ContactID:      p.ContactID,
		FromNumber:     s.fromNumber,
		ToNumber:       p.Phone,
		Context:        p.Context,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", stepDispatchProvider, err)
	}

	// The contact's phone just rang. Mark the ledger before anything else so
	// a crash in the bookkeeping below cannot cause a second dial.
	if err := s.repo.MarkStepDone(ctx, jobKey, stepDispatchProvider); err != nil {
		return fmt.Errorf("%s: %w", stepDispatchProvider, err)
	}
	if err := s.sessions.BindProviderRef(ctx, sessionID, providerRef); err != nil {
		return fmt.Errorf("%s: bind provider ref: %w", stepDispatchProvider, err)
	}
	if err := s.repo.MarkCalling(ctx, attempt.ID, now.UTC()); err != nil {
		return fmt.Errorf("%s: %w", stepDispatchProvider, err)
	}

	s.log.Info("attempt dispatched",
		"org_id", p.OrganizationID.String(),
		"contact_id", p.ContactID.String(),
		"seq", seq,
		"session_id", sessionID.String(),
	)
	return nil
}

// retryableOutcomes are session endings that earn another attempt.
// Voicemail does not: a message was left, the contact was reached.
var retryableOutcomes = map[string]bool{
	string(sessionsdomain.StatusFailed):   true,
	string(sessionsdomain.StatusNoAnswer): true,
	string(sessionsdomain.StatusBusy):     true,
}

// OnSessionFinished settles the attempt's final status and, for retryable
// outcomes, schedules the next attempt per the retry policy.
func (s *Service) OnSessionFinished(ctx context.Context, evt events.SessionFinished) error {
	attempt, err := s.repo.GetByID(ctx, evt.AttemptID)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Warn("session finished for unknown attempt", "attempt_id", evt.AttemptID.String())
		return nil
	}
	if err != nil {
		return err
	}

	status := repository.StatusCompleted
	if retryableOutcomes[evt.Outcome] {
		status = repository.StatusFailed
	}
	if err := s.repo.UpdateStatus(ctx, attempt.ID, status); err != nil {
		return err
	}

	if !retryableOutcomes[evt.Outcome] {
		return nil
	}

	plan, err := s.policy.PlanAttempt(ctx, attempt.OrganizationID, attempt.ContactID)
	if err != nil {
		if errors.Is(err, profilesdomain.ErrMaxAttempts) {
			profile, perr := s.policy.Profile(ctx, attempt.OrganizationID)
			maxAttempts := 0
			if perr == nil {
				maxAttempts = profile.MaxAttempts
			}
			s.bus.Publish(ctx, events.AttemptsExhausted{
				BaseEvent:      events.NewBaseEvent(),
				OrganizationID: attempt.OrganizationID,
				ContactID:      attempt.ContactID,
				MaxAttempts:    maxAttempts,
			})
			return nil
		}
		return err
	}

	next := scheduler.ContactAttemptPayload{
		TriggerID:      attempt.TriggerID,
		OrganizationID: attempt.OrganizationID,
		ContactID:      attempt.ContactID,
		Phone:          attempt.Phone,
		Email:          attempt.Email,
		AttemptNumber:  plan.Number,
	}
	if err := s.queue.ScheduleContactAttempt(ctx, next, plan.ScheduledFor); err != nil {
		return err
	}

	s.bus.Publish(ctx, events.AttemptScheduled{
		BaseEvent:      events.NewBaseEvent(),
		OrganizationID: attempt.OrganizationID,
		ContactID:      attempt.ContactID,
		AttemptNumber:  plan.Number,
		ScheduledFor:   plan.ScheduledFor.Format(time.RFC3339),
	})
	return nil
}

// RegisterHandlers wires the pipeline's event subscriptions.
func (s *Service) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.SessionFinished{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		evt, ok := event.(events.SessionFinished)
		if !ok {
			return nil
		}
		return s.OnSessionFinished(ctx, evt)
	}))
}

// ListAttempts returns a contact's attempt history.
func (s *Service) ListAttempts(ctx context.Context, orgID, contactID uuid.UUID) ([]repository.Attempt, error) {
	return s.repo.ListByContact(ctx, orgID, contactID)
}
