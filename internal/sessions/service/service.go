// Package service drives call sessions through their state machine and
// coordinates live handoffs with the routing engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/events"
	routingdomain "outreach_backend/internal/routing/domain"
	routingservice "outreach_backend/internal/routing/service"
	"outreach_backend/internal/sessions/domain"
	"outreach_backend/internal/sessions/repository"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"
)

// Router resolves where a live call should be handed.
type Router interface {
	Resolve(ctx context.Context, orgID uuid.UUID, locationID *uuid.UUID, rctx *routingdomain.RouteContext) (*routingservice.Decision, error)
}

// RecordingStore serves time-limited download links for call recordings.
type RecordingStore interface {
	PresignedURL(ctx context.Context, key string) (string, error)
}

// Repository is the persistence surface the service needs.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Session, error)
	GetByProviderRef(ctx context.Context, providerRef string) (*domain.Session, error)
	SetProviderRef(ctx context.Context, id uuid.UUID, providerRef string) error
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.Status, at time.Time) error
	SetHandoffRecipient(ctx context.Context, id, recipientID uuid.UUID) error
	MergeMetadata(ctx context.Context, id uuid.UUID, facts map[string]string) error
	AppendTranscript(ctx context.Context, id uuid.UUID, entries []domain.TranscriptEntry) error
	SetRecordingKey(ctx context.Context, id uuid.UUID, key string) error
	ListByContact(ctx context.Context, orgID, contactID uuid.UUID) ([]domain.Session, error)
}

// HandoffPlan is what the live agent needs to execute a transfer.
type HandoffPlan struct {
	Action    routingdomain.TargetType
	Recipient *routingservice.Endpoint
	RuleID    uuid.UUID
	Depth     int
	// Instruction is set for live targets; FallbackMessage for terminal
	// actions the agent announces instead of transferring.
	Instruction     *TransferInstruction
	FallbackMessage string
}

// TransferInstruction tells the agent how to execute a live transfer.
type TransferInstruction struct {
	// BridgeID names the conference the agent and recipient both join.
	BridgeID string
	// RecipientBrief is a one-line summary of the call read to the
	// recipient before the bridge connects.
	RecipientBrief string
	// AgentScript is the line the agent speaks to the contact.
	AgentScript string
}

type Service struct {
	repo       Repository
	router     Router
	recordings RecordingStore
	bus        events.Bus
	log        *logger.Logger
	now        func() time.Time
}

func New(repo Repository, router Router, recordings RecordingStore, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, router: router, recordings: recordings, bus: bus, log: log, now: time.Now}
}

// Open creates a session in the initiated state for a dialed attempt.
func (s *Service) Open(ctx context.Context, orgID, contactID, attemptID uuid.UUID, fromNumber, toNumber string) (*domain.Session, error) {
	now := s.now().UTC()
	sess := &domain.Session{
		ID:             uuid.New(),
		OrganizationID: orgID,
		ContactID:      contactID,
		AttemptID:      attemptID,
		Status:         domain.StatusInitiated,
		FromNumber:     fromNumber,
		ToNumber:       toNumber,
		StartedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return sess, nil
}

// BindProviderRef records the provider's call identifier once dialing starts.
func (s *Service) BindProviderRef(ctx context.Context, sessionID uuid.UUID, providerRef string) error {
	return s.repo.SetProviderRef(ctx, sessionID, providerRef)
}

// ApplyProviderStatus advances the session per a provider callback.
// Replayed callbacks are absorbed: a callback reporting the current status,
// or any callback arriving after the session is terminal, is a no-op.
// A genuinely impossible transition from a live state is a conflict.
func (s *Service) ApplyProviderStatus(ctx context.Context, providerRef string, to domain.Status) error {
	sess, err := s.repo.GetByProviderRef(ctx, providerRef)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("no session for provider reference")
	}
	if err != nil {
		return err
	}

	if sess.Status == to {
		return nil
	}
	if domain.IsTerminal(sess.Status) {
		s.log.Info("ignoring provider callback on terminal session",
			"session_id", sess.ID.String(), "status", string(sess.Status), "reported", string(to))
		return nil
	}
	if !domain.CanTransition(sess.Status, to) {
		return apperr.Conflict(fmt.Sprintf("cannot move session from %s to %s", sess.Status, to))
	}

	if err := s.repo.TransitionStatus(ctx, sess.ID, sess.Status, to, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			// Lost a race with another callback; re-read and treat a replay
			// of the now-current status as success.
			current, rerr := s.repo.GetByProviderRef(ctx, providerRef)
			if rerr == nil && current.Status == to {
				return nil
			}
			return apperr.Conflict("session status changed concurrently")
		}
		return err
	}

	if domain.IsTerminal(to) {
		s.bus.Publish(ctx, events.SessionFinished{
			BaseEvent:      events.NewBaseEvent(),
			OrganizationID: sess.OrganizationID,
			SessionID:      sess.ID,
			ContactID:      sess.ContactID,
			AttemptID:      sess.AttemptID,
			Outcome:        string(to),
		})
	}
	return nil
}

// RequestHandoff resolves where an in-progress call should go and, for live
// targets, moves the session into transferring.
func (s *Service) RequestHandoff(ctx context.Context, orgID, sessionID uuid.UUID, locationID *uuid.UUID, rctx *routingdomain.RouteContext) (*HandoffPlan, error) {
	sess, err := s.repo.GetByID(ctx, orgID, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("session not found")
	}
	if err != nil {
		return nil, err
	}
	if sess.Status != domain.StatusInProgress {
		return nil, apperr.Conflict(fmt.Sprintf("handoff requires an in-progress session, status is %s", sess.Status))
	}

	// Qualification facts gathered during the call are kept on the session,
	// whatever the routing outcome.
	if len(rctx.Facts) > 0 {
		if err := s.repo.MergeMetadata(ctx, sess.ID, rctx.Facts); err != nil {
			return nil, err
		}
	}

	decision, err := s.router.Resolve(ctx, orgID, locationID, rctx)
	if err != nil {
		return nil, err
	}

	plan := &HandoffPlan{
		Action:    decision.Action,
		Recipient: decision.Recipient,
		RuleID:    decision.RuleID,
		Depth:     decision.Depth,
	}

	// Voicemail and callback offers resolve in place; only a live recipient
	// turns into a transfer.
	if decision.Recipient == nil {
		plan.FallbackMessage = routingservice.SpokenLine(decision.Action)
		return plan, nil
	}

	plan.Instruction = &TransferInstruction{
		BridgeID:       fmt.Sprintf("handoff-%s", sess.ID),
		RecipientBrief: buildBrief(sess, rctx),
		AgentScript:    fmt.Sprintf("I'm connecting you with %s now. One moment please.", decision.Recipient.Name),
	}

	if err := s.repo.TransitionStatus(ctx, sess.ID, domain.StatusInProgress, domain.StatusTransferring, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.repo.SetHandoffRecipient(ctx, sess.ID, decision.Recipient.ID); err != nil {
		return nil, err
	}
	return plan, nil
}

// buildBrief condenses what the call has learned so far into one line the
// recipient hears before the bridge connects. Facts are sorted so the same
// call always produces the same brief.
func buildBrief(sess *domain.Session, rctx *routingdomain.RouteContext) string {
	brief := fmt.Sprintf("Outbound call with %s", sess.ToNumber)
	if rctx.Department != "" {
		brief += ", " + rctx.Department
	}
	if rctx.Category != "" {
		brief += ", regarding " + rctx.Category
	}
	if len(rctx.Facts) > 0 {
		keys := make([]string, 0, len(rctx.Facts))
		for k := range rctx.Facts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			brief += fmt.Sprintf(". %s: %s", k, rctx.Facts[k])
		}
	}
	return brief
}

// CompleteHandoff finishes a transfer: success lands the call with the
// recipient, failure returns it to the in-progress conversation.
func (s *Service) CompleteHandoff(ctx context.Context, orgID, sessionID uuid.UUID, success bool) error {
	sess, err := s.repo.GetByID(ctx, orgID, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("session not found")
	}
	if err != nil {
		return err
	}
	if sess.Status != domain.StatusTransferring {
		return apperr.Conflict(fmt.Sprintf("no handoff in progress, status is %s", sess.Status))
	}

	if !success {
		return s.repo.TransitionStatus(ctx, sess.ID, domain.StatusTransferring, domain.StatusInProgress, s.now().UTC())
	}

	if err := s.repo.TransitionStatus(ctx, sess.ID, domain.StatusTransferring, domain.StatusTransferred, s.now().UTC()); err != nil {
		return err
	}

	if sess.HandoffRecipientID != nil {
		s.bus.Publish(ctx, events.SessionTransferred{
			BaseEvent:      events.NewBaseEvent(),
			OrganizationID: orgID,
			SessionID:      sess.ID,
			RecipientID:    *sess.HandoffRecipientID,
		})
	}
	s.bus.Publish(ctx, events.SessionFinished{
		BaseEvent:      events.NewBaseEvent(),
		OrganizationID: orgID,
		SessionID:      sess.ID,
		ContactID:      sess.ContactID,
		AttemptID:      sess.AttemptID,
		Outcome:        string(domain.StatusTransferred),
	})
	return nil
}

// AttachTranscript appends transcript entries. Deliberately permitted on
// terminal sessions: final transcripts arrive after the call ends.
func (s *Service) AttachTranscript(ctx context.Context, providerRef string, entries []domain.TranscriptEntry) error {
	if len(entries) == 0 {
		return nil
	}
	sess, err := s.repo.GetByProviderRef(ctx, providerRef)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("no session for provider reference")
	}
	if err != nil {
		return err
	}
	return s.repo.AppendTranscript(ctx, sess.ID, entries)
}

// AttachRecording records the storage key of the call recording.
func (s *Service) AttachRecording(ctx context.Context, providerRef, key string) error {
	sess, err := s.repo.GetByProviderRef(ctx, providerRef)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("no session for provider reference")
	}
	if err != nil {
		return err
	}
	return s.repo.SetRecordingKey(ctx, sess.ID, key)
}

// RecordingURL returns a time-limited download link for the recording.
func (s *Service) RecordingURL(ctx context.Context, orgID, sessionID uuid.UUID) (string, error) {
	sess, err := s.repo.GetByID(ctx, orgID, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", apperr.NotFound("session not found")
	}
	if err != nil {
		return "", err
	}
	if sess.RecordingKey == "" {
		return "", apperr.NotFound("session has no recording")
	}
	return s.recordings.PresignedURL(ctx, sess.RecordingKey)
}

func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*domain.Session, error) {
	sess, err := s.repo.GetByID(ctx, orgID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("session not found")
	}
	return sess, err
}

func (s *Service) ListByContact(ctx context.Context, orgID, contactID uuid.UUID) ([]domain.Session, error) {
	return s.repo.ListByContact(ctx, orgID, contactID)
}
