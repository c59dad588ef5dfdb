package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
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

// Tuesday 10:00 America/New_York, inside the default calling window.
var insideWindow = time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC)

// Monday 22:00 America/New_York, after the default window closes.
var outsideWindow = time.Date(2026, 3, 3, 3, 0, 0, 0, time.UTC)

type fakeRepo struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*repository.Attempt
	bySeq    map[string]uuid.UUID
	steps    map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		attempts: make(map[uuid.UUID]*repository.Attempt),
		bySeq:    make(map[string]uuid.UUID),
		steps:    make(map[string]bool),
	}
}

func seqKey(orgID, contactID uuid.UUID, seq int) string {
	return fmt.Sprintf("%s:%s:%d", orgID, contactID, seq)
}

func (r *fakeRepo) CreateAttempt(_ context.Context, a *repository.Attempt) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := seqKey(a.OrganizationID, a.ContactID, a.Seq)
	if _, exists := r.bySeq[key]; exists {
		return false, nil
	}
	cp := *a
	r.attempts[a.ID] = &cp
	r.bySeq[key] = a.ID
	return true, nil
}

func (r *fakeRepo) GetBySeq(_ context.Context, orgID, contactID uuid.UUID, seq int) (*repository.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.bySeq[seqKey(orgID, contactID, seq)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r.attempts[id]
	return &cp, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*repository.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) PlannedByTrigger(_ context.Context, orgID, contactID uuid.UUID, triggerID string) (*repository.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *repository.Attempt
	for _, a := range r.attempts {
		if a.OrganizationID == orgID && a.ContactID == contactID && a.TriggerID == triggerID && a.Status == repository.StatusPlanned {
			if found == nil || a.Seq > found.Seq {
				found = a
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (r *fakeRepo) LinkSession(_ context.Context, attemptID, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[attemptID]
	if !ok {
		return repository.ErrNotFound
	}
	if a.SessionID == nil {
		a.SessionID = &sessionID
	}
	return nil
}

func (r *fakeRepo) MarkCalling(_ context.Context, attemptID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[attemptID]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = repository.StatusCalling
	a.ExecutedAt = &at
	return nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, attemptID uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[attemptID]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = status
	return nil
}

func (r *fakeRepo) ListByContact(_ context.Context, orgID, contactID uuid.UUID) ([]repository.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.Attempt
	for _, a := range r.attempts {
		if a.OrganizationID == orgID && a.ContactID == contactID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeRepo) StepDone(_ context.Context, jobKey, step string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.steps[jobKey+"/"+step], nil
}

func (r *fakeRepo) MarkStepDone(_ context.Context, jobKey, step string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[jobKey+"/"+step] = true
	return nil
}

type fakeCompliance struct {
	err error
}

func (f fakeCompliance) CheckContact(context.Context, uuid.UUID, string, string, compliancetransport.Channel) error {
	return f.err
}

type fakePolicy struct {
	profile     profilesdomain.ContactProfile
	capacityErr error
	plan        profilesservice.AttemptPlan
	planErr     error
}

func (f *fakePolicy) Profile(context.Context, uuid.UUID) (*profilesdomain.ContactProfile, error) {
	cp := f.profile
	return &cp, nil
}

func (f *fakePolicy) CheckCapacity(context.Context, uuid.UUID) error {
	return f.capacityErr
}

func (f *fakePolicy) PlanAttempt(context.Context, uuid.UUID, uuid.UUID) (*profilesservice.AttemptPlan, error) {
	if f.planErr != nil {
		return nil, f.planErr
	}
	cp := f.plan
	return &cp, nil
}

type fakeSessions struct {
	mu     sync.Mutex
	opened int
	refs   map[uuid.UUID]string
}

func (f *fakeSessions) Open(_ context.Context, orgID, contactID, attemptID uuid.UUID, fromNumber, toNumber string) (*sessionsdomain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	return &sessionsdomain.Session{
		ID:             uuid.New(),
		OrganizationID: orgID,
		ContactID:      contactID,
		AttemptID:      attemptID,
		Status:         sessionsdomain.StatusInitiated,
	}, nil
}

func (f *fakeSessions) BindProviderRef(_ context.Context, sessionID uuid.UUID, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refs == nil {
		f.refs = make(map[uuid.UUID]string)
	}
	f.refs[sessionID] = ref
	return nil
}

type fakeDialer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeDialer) Dial(_ context.Context, in provider.DialInstruction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.calls++
	return "CA-" + in.SessionID.String()[:8], nil
}

type scheduledTask struct {
	payload scheduler.ContactAttemptPayload
	runAt   time.Time
}

type fakeQueue struct {
	mu        sync.Mutex
	enqueued  []scheduler.ContactAttemptPayload
	scheduled []scheduledTask
}

func (f *fakeQueue) EnqueueContactAttempt(_ context.Context, p scheduler.ContactAttemptPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, p)
	return nil
}

func (f *fakeQueue) ScheduleContactAttempt(_ context.Context, p scheduler.ContactAttemptPayload, runAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, scheduledTask{payload: p, runAt: runAt})
	return nil
}

// recordBus captures published events synchronously so tests can assert on them.
type recordBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *recordBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordBus) Subscribe(string, events.Handler) {}

func (b *recordBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.published))
	for _, e := range b.published {
		out = append(out, e.EventName())
	}
	return out
}

type env struct {
	svc      *Service
	repo     *fakeRepo
	policy   *fakePolicy
	sessions *fakeSessions
	dialer   *fakeDialer
	queue    *fakeQueue
	bus      *recordBus
}

func newEnv(t *testing.T, compliance ComplianceGate) *env {
	t.Helper()
	e := &env{
		repo:     newFakeRepo(),
		policy:   &fakePolicy{profile: profilesdomain.DefaultProfile(uuid.New()), plan: profilesservice.AttemptPlan{Number: 1}},
		sessions: &fakeSessions{},
		dialer:   &fakeDialer{},
		queue:    &fakeQueue{},
		bus:      &recordBus{},
	}
	e.svc = New(e.repo, compliance, e.policy, e.sessions, e.dialer, e.queue, e.bus, "+12025550100", logger.New("test"))
	e.svc.now = func() time.Time { return insideWindow }
	return e
}

func payload() scheduler.ContactAttemptPayload {
	return scheduler.ContactAttemptPayload{
		TriggerID:      "trg-1",
		OrganizationID: uuid.New(),
		ContactID:      uuid.New(),
		Phone:          "+12025550123",
		AttemptNumber:  1,
	}
}

func TestExecuteAttemptDispatches(t *testing.T) {
	e := newEnv(t, fakeCompliance{})
	p := payload()

	if err := e.svc.ExecuteAttempt(context.Background(), p); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if e.dialer.calls != 1 {
		t.Fatalf("dial calls = %d, want 1", e.dialer.calls)
	}
	if e.sessions.opened != 1 {
		t.Fatalf("sessions opened = %d, want 1", e.sessions.opened)
	}
	attempt, err := e.repo.GetBySeq(context.Background(), p.OrganizationID, p.ContactID, 1)
	if err != nil {
		t.Fatalf("attempt not created: %v", err)
	}
	if attempt.Status != repository.StatusCalling {
		t.Errorf("attempt status = %q, want %q", attempt.Status, repository.StatusCalling)
	}
	if attempt.SessionID == nil {
		t.Error("attempt has no session link")
	}
	if attempt.ExecutedAt == nil {
		t.Error("attempt has no executed_at stamp")
	}
	if len(e.sessions.refs) != 1 {
		t.Errorf("provider ref bindings = %d, want 1", len(e.sessions.refs))
	}
}

func TestExecuteAttemptSuppressedContactDrops(t *testing.T) {
	gate := fakeCompliance{err: &complianceservice.SuppressionError{MatchedScope: compliancetransport.ScopeCall}}
	e := newEnv(t, gate)
	p := payload()

	if err := e.svc.ExecuteAttempt(context.Background(), p); err != nil {
		t.Fatalf("suppressed contact should be consumed, got %v", err)
	}

	if e.dialer.calls != 0 {
		t.Fatalf("dialed a suppressed contact")
	}
	if _, err := e.repo.GetBySeq(context.Background(), p.OrganizationID, p.ContactID, 1); !errors.Is(err, repository.ErrNotFound) {
		t.Error("attempt row created for suppressed contact")
	}
	names := e.bus.names()
	if len(names) != 1 || names[0] != "compliance.contact.blocked" {
		t.Errorf("published %v, want [compliance.contact.blocked]", names)
	}
}

func TestExecuteAttemptComplianceFailureRetries(t *testing.T) {
	gate := fakeCompliance{err: fmt.Errorf("%w: store down", complianceservice.ErrCheckFailed)}
	e := newEnv(t, gate)

	err := e.svc.ExecuteAttempt(context.Background(), payload())
	if err == nil {
		t.Fatal("unanswerable compliance check must keep the task queued")
	}
	if e.dialer.calls != 0 {
		t.Fatal("dialed while the compliance check was unanswerable")
	}
}

func TestExecuteAttemptOutsideWindowSkips(t *testing.T) {
	e := newEnv(t, fakeCompliance{})
	e.svc.now = func() time.Time { return outsideWindow }
	p := payload()

	if err := e.svc.ExecuteAttempt(context.Background(), p); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if e.dialer.calls != 0 {
		t.Fatal("dialed outside the calling window")
	}
	if _, err := e.repo.GetBySeq(context.Background(), p.OrganizationID, p.ContactID, 1); !errors.Is(err, repository.ErrNotFound) {
		t.Error("attempt row created outside the window")
	}
	// Dropped, not rescheduled: re-raising the trigger is the caller's job.
	if len(e.queue.scheduled) != 0 || len(e.queue.enqueued) != 0 {
		t.Fatalf("window skip queued work: scheduled=%d enqueued=%d", len(e.queue.scheduled), len(e.queue.enqueued))
	}
}

func TestExecuteAttemptCapacityDeclineRetries(t *testing.T) {
	e := newEnv(t, fakeCompliance{})
	e.policy.capacityErr = &profilesservice.CapacityError{Limit: "hourly", RetryAfter: 10 * time.Minute}

	err := e.svc.ExecuteAttempt(context.Background(), payload())
	var capErr *profilesservice.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("want CapacityError for queue backoff, got %v", err)
	}
	if e.dialer.calls != 0 {
		t.Fatal("dialed over capacity")
	}
}

func TestExecuteAttemptHandsOffDelayedPlan(t *testing.T) {
	e := newEnv(t, fakeCompliance{})
	e.policy.plan = profilesservice.AttemptPlan{
		Number:       2,
		Delay:        30 * time.Minute,
		ScheduledFor: insideWindow.Add(30 * time.Minute),
	}
	p := payload() // AttemptNumber 1, plan says attempt 2 later

	if err := e.svc.ExecuteAttempt(context.Background(), p); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if e.dialer.calls != 0 {
		t.Fatal("dialed an attempt that belongs to a future task")
	}
	if len(e.queue.scheduled) != 1 {
		t.Fatalf("scheduled %d tasks, want 1", len(e.queue.scheduled))
	}
	future := e.queue.scheduled[0]
	if future.payload.AttemptNumber != 2 {
		t.Errorf("future attempt number = %d, want 2", future.payload.AttemptNumber)
	}
	if !future.runAt.Equal(insideWindow.Add(30 * time.Minute)) {
		t.Errorf("future run at %s, want %s", future.runAt, insideWindow.Add(30*time.Minute))
	}
	names := e.bus.names()
	if len(names) != 1 || names[0] != "pipeline.attempt.scheduled" {
		t.Errorf("published %v, want [pipeline.attempt.scheduled]", names)
	}
}

func TestExecuteAttemptFirstAttemptDialsImmediately(t *testing.T) {
	e := newEnv(t, fakeCompliance{})
	// The retry ladder assigns attempt 1 a delay, but a fresh trigger dials
	// now; the ladder only paces attempts two and up.
	e.policy.plan = profilesservice.AttemptPlan{
		Number:       1,
		Delay:        30 * time.Minute,
		ScheduledFor: insideWindow.Add(30 * time.Minute),
	}
	p := payload()
	p.AttemptNumber = 0 // intake does not number the first attempt

	if err := e.svc.ExecuteAttempt(context.Background(), p); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if e.dialer.calls != 1 {
		t.Fatalf("dial calls = %d, want 1", e.dialer.calls)
	}
	if len(e.queue.scheduled) != 0 {
		t.Fatalf("first attempt was deferred: scheduled=%d", len(e.queue.scheduled))
	}
}

func TestExecuteAttemptExhaustedBudget(t *testing.T) {
	e := newEnv(t, fakeCompliance{})
	e.policy.planErr = profilesdomain.ErrMaxAttempts

	if err := e.svc.ExecuteAttempt(context.Background(), payload()); err != nil {
		t.Fatalf("exhausted budget should be consumed, got %v", err)
	}

	if e.dialer.calls != 0 {
		t.Fatal("dialed past the attempt budget")
	}
	names := e.bus.names()
	if len(names) != 1 || names[0] != "pipeline.attempts.exhausted" {
		t.Errorf("published %v, want [pipeline.attempts.exhausted]", names)
	}
}

func TestExecuteAttemptRedeliveryDoesNotRedial(t *testing.T) {
	e := newEnv(t, fakeCompliance{})
	p := payload()

	if err := e.svc.ExecuteAttempt(context.Background(), p); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := e.svc.ExecuteAttempt(context.Background(), p); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if e.dialer.calls != 1 {
		t.Fatalf("dial calls = %d after redelivery, want 1", e.dialer.calls)
	}
	if e.sessions.opened != 1 {
		t.Fatalf("sessions opened = %d after redelivery, want 1", e.sessions.opened)
	}
}

func TestExecuteAttemptResumesAfterDialFailure(t *testing.T) {
	e := newEnv(t, fakeCompliance{})
	e.dialer.err = errors.New("provider 503")
	p := payload()

	if err := e.svc.ExecuteAttempt(context.Background(), p); err == nil {
		t.Fatal("dial failure must be retried")
	}
	if e.sessions.opened != 1 {
		t.Fatalf("sessions opened = %d, want 1", e.sessions.opened)
	}

	// The half-dispatched attempt has moved the sequence high-water mark, so
	// a fresh plan would now point at attempt 2. The retry must resume
	// attempt 1 anyway, reusing the already-open session.
	e.dialer.err = nil
	e.policy.plan = profilesservice.AttemptPlan{
		Number:       2,
		Delay:        30 * time.Minute,
		ScheduledFor: insideWindow.Add(30 * time.Minute),
	}
	if err := e.svc.ExecuteAttempt(context.Background(), p); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if e.dialer.calls != 1 {
		t.Fatalf("dial calls = %d, want 1", e.dialer.calls)
	}
	if e.sessions.opened != 1 {
		t.Fatalf("sessions opened = %d on retry, want 1", e.sessions.opened)
	}
	if len(e.queue.scheduled) != 0 {
		t.Fatalf("retry scheduled a premature next attempt")
	}
	attempt, err := e.repo.GetBySeq(context.Background(), p.OrganizationID, p.ContactID, 1)
	if err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if attempt.Status != repository.StatusCalling {
		t.Errorf("attempt status = %q, want %q", attempt.Status, repository.StatusCalling)
	}
}

func TestExecuteAttemptRedeliveryFinishesBookkeeping(t *testing.T) {
	e := newEnv(t, fakeCompliance{})
	p := payload()

	// A previous run dialed and marked the ledger, then died before recording
	// the status transition. Seed that half-finished state directly.
	sessID := uuid.New()
	attempt := &repository.Attempt{
		ID:             uuid.New(),
		OrganizationID: p.OrganizationID,
		ContactID:      p.ContactID,
		TriggerID:      p.TriggerID,
		Seq:            1,
		Status:         repository.StatusPlanned,
		SessionID:      &sessID,
		Phone:          p.Phone,
		ScheduledFor:   insideWindow,
	}
	if _, err := e.repo.CreateAttempt(context.Background(), attempt); err != nil {
		t.Fatalf("seed attempt: %v", err)
	}
	jobKey := fmt.Sprintf("%s:%d", p.TriggerID, 1)
	if err := e.repo.MarkStepDone(context.Background(), jobKey, stepDispatchProvider); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	if err := e.svc.ExecuteAttempt(context.Background(), p); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if e.dialer.calls != 0 {
		t.Fatalf("redialed a contact whose dispatch already ran: calls = %d", e.dialer.calls)
	}
	if e.sessions.opened != 0 {
		t.Fatalf("sessions opened = %d, want 0", e.sessions.opened)
	}
	updated, err := e.repo.GetByID(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if updated.Status != repository.StatusCalling {
		t.Errorf("attempt status = %q, want %q", updated.Status, repository.StatusCalling)
	}
	if updated.ExecutedAt == nil {
		t.Error("attempt has no executed_at stamp")
	}
}

func TestExecuteAttemptForeignTriggerSlotDrops(t *testing.T) {
	e := newEnv(t, fakeCompliance{})
	p := payload()

	other := p
	other.TriggerID = "trg-0"
	if err := e.svc.ExecuteAttempt(context.Background(), other); err != nil {
		t.Fatalf("first trigger: %v", err)
	}

	if err := e.svc.ExecuteAttempt(context.Background(), p); err != nil {
		t.Fatalf("competing trigger should be consumed, got %v", err)
	}
	if e.dialer.calls != 1 {
		t.Fatalf("dial calls = %d, want 1", e.dialer.calls)
	}
}

func finishedEvent(attempt *repository.Attempt, outcome string) events.SessionFinished {
	return events.SessionFinished{
		BaseEvent:      events.NewBaseEvent(),
		OrganizationID: attempt.OrganizationID,
		SessionID:      uuid.New(),
		ContactID:      attempt.ContactID,
		AttemptID:      attempt.ID,
		Outcome:        outcome,
	}
}

func dispatched(t *testing.T, e *env, p scheduler.ContactAttemptPayload) *repository.Attempt {
	t.Helper()
	if err := e.svc.ExecuteAttempt(context.Background(), p); err != nil {
		t.Fatalf("execute: %v", err)
	}
	attempt, err := e.repo.GetBySeq(context.Background(), p.OrganizationID, p.ContactID, p.AttemptNumber)
	if err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	return attempt
}

func TestOnSessionFinishedSchedulesRetry(t *testing.T) {
	e := newEnv(t, fakeCompliance{})
	p := payload()
	attempt := dispatched(t, e, p)

	e.policy.plan = profilesservice.AttemptPlan{
		Number:       2,
		Delay:        30 * time.Minute,
		ScheduledFor: insideWindow.Add(30 * time.Minute),
	}
	if err := e.svc.OnSessionFinished(context.Background(), finishedEvent(attempt, string(sessionsdomain.StatusNoAnswer))); err != nil {
		t.Fatalf("on finished: %v", err)
	}

	updated, _ := e.repo.GetByID(context.Background(), attempt.ID)
	if updated.Status != repository.StatusFailed {
		t.Errorf("attempt status = %q, want %q", updated.Status, repository.StatusFailed)
	}
	if len(e.queue.scheduled) != 1 {
		t.Fatalf("scheduled %d retries, want 1", len(e.queue.scheduled))
	}
	retry := e.queue.scheduled[0]
	if retry.payload.AttemptNumber != 2 || retry.payload.TriggerID != p.TriggerID {
		t.Errorf("retry payload = %+v", retry.payload)
	}
}

func TestOnSessionFinishedTerminalOutcomes(t *testing.T) {
	tests := []struct {
		outcome    string
		wantStatus string
		wantRetry  bool
	}{
		{string(sessionsdomain.StatusCompleted), repository.StatusCompleted, false},
		{string(sessionsdomain.StatusTransferred), repository.StatusCompleted, false},
		{string(sessionsdomain.StatusVoicemail), repository.StatusCompleted, false},
		{string(sessionsdomain.StatusNoAnswer), repository.StatusFailed, true},
		{string(sessionsdomain.StatusBusy), repository.StatusFailed, true},
		{string(sessionsdomain.StatusFailed), repository.StatusFailed, true},
	}
	for _, tt := range tests {
		t.Run(tt.outcome, func(t *testing.T) {
			e := newEnv(t, fakeCompliance{})
			attempt := dispatched(t, e, payload())
			e.policy.plan = profilesservice.AttemptPlan{
				Number:       2,
				Delay:        30 * time.Minute,
				ScheduledFor: insideWindow.Add(30 * time.Minute),
			}

			if err := e.svc.OnSessionFinished(context.Background(), finishedEvent(attempt, tt.outcome)); err != nil {
				t.Fatalf("on finished: %v", err)
			}

			updated, _ := e.repo.GetByID(context.Background(), attempt.ID)
			if updated.Status != tt.wantStatus {
				t.Errorf("attempt status = %q, want %q", updated.Status, tt.wantStatus)
			}
			gotRetry := len(e.queue.scheduled) == 1
			if gotRetry != tt.wantRetry {
				t.Errorf("retry scheduled = %v, want %v", gotRetry, tt.wantRetry)
			}
		})
	}
}

func TestOnSessionFinishedExhaustionPublishes(t *testing.T) {
	e := newEnv(t, fakeCompliance{})
	attempt := dispatched(t, e, payload())

	e.policy.planErr = profilesdomain.ErrMaxAttempts
	if err := e.svc.OnSessionFinished(context.Background(), finishedEvent(attempt, string(sessionsdomain.StatusNoAnswer))); err != nil {
		t.Fatalf("on finished: %v", err)
	}

	if len(e.queue.scheduled) != 0 {
		t.Fatal("scheduled a retry past the budget")
	}
	found := false
	for _, name := range e.bus.names() {
		if name == "pipeline.attempts.exhausted" {
			found = true
		}
	}
	if !found {
		t.Error("pipeline.attempts.exhausted not published")
	}
}

func TestOnSessionFinishedUnknownAttempt(t *testing.T) {
	e := newEnv(t, fakeCompliance{})
	evt := events.SessionFinished{
		BaseEvent: events.NewBaseEvent(),
		AttemptID: uuid.New(),
		Outcome:   string(sessionsdomain.StatusNoAnswer),
	}
	if err := e.svc.OnSessionFinished(context.Background(), evt); err != nil {
		t.Fatalf("unknown attempt should be ignored, got %v", err)
	}
}
