package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"outreach_backend/internal/routing/domain"
	"outreach_backend/platform/events"
	"outreach_backend/platform/logger"
)

type fakeRuleRepo struct {
	rules []*domain.Rule
}

func (f *fakeRuleRepo) ActiveRules(_ context.Context, orgID uuid.UUID, locationID *uuid.UUID) ([]*domain.Rule, error) {
	var out []*domain.Rule
	for _, r := range f.rules {
		if r.OrganizationID != orgID || !r.Active {
			continue
		}
		if r.LocationID != nil && (locationID == nil || *r.LocationID != *locationID) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRuleRepo) GetByID(_ context.Context, _, id uuid.UUID) (*domain.Rule, error) {
	for _, r := range f.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeRuleRepo) List(_ context.Context, _ uuid.UUID) ([]*domain.Rule, error) {
	return f.rules, nil
}
func (f *fakeRuleRepo) Create(_ context.Context, r *domain.Rule) error {
	f.rules = append(f.rules, r)
	return nil
}
func (f *fakeRuleRepo) Update(_ context.Context, _ *domain.Rule) error { return nil }
func (f *fakeRuleRepo) Delete(_ context.Context, _, _ uuid.UUID) error { return nil }

type fakeDirectory struct {
	people      map[uuid.UUID]*Endpoint // present = available
	departments map[string]*Endpoint
}

func (f *fakeDirectory) Person(_ context.Context, _ uuid.UUID, id uuid.UUID) (*Endpoint, bool, error) {
	ep, ok := f.people[id]
	return ep, ok, nil
}

func (f *fakeDirectory) Department(_ context.Context, _ uuid.UUID, department string, _ *uuid.UUID) (*Endpoint, error) {
	return f.departments[department], nil
}

func newTestService(repo Repository, dir RecipientDirectory) *Service {
	return New(repo, dir, events.NewInMemoryBus(logger.New("test")), logger.New("test"))
}

func rule(orgID uuid.UUID, priority int, target domain.Target, conds ...domain.Predicate) *domain.Rule {
	return &domain.Rule{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           "rule",
		Priority:       priority,
		Conditions:     conds,
		Target:         target,
		Active:         true,
	}
}

func TestResolvePicksHighestPriorityMatch(t *testing.T) {
	orgID := uuid.New()
	salesID := uuid.New()
	serviceID := uuid.New()

	repo := &fakeRuleRepo{rules: []*domain.Rule{
		rule(orgID, 10, domain.Target{Type: domain.TargetPerson, RecipientID: &serviceID},
			domain.EqualsPredicate{Field: "department", Value: "service"}),
		rule(orgID, 50, domain.Target{Type: domain.TargetPerson, RecipientID: &salesID},
			domain.EqualsPredicate{Field: "department", Value: "sales"}),
		rule(orgID, 1, domain.Target{Type: domain.TargetVoicemail}),
	}}
	dir := &fakeDirectory{people: map[uuid.UUID]*Endpoint{
		salesID:   {ID: salesID, Name: "Sales Rep"},
		serviceID: {ID: serviceID, Name: "Service Rep"},
	}}
	svc := newTestService(repo, dir)

	dec, err := svc.Resolve(context.Background(), orgID, nil, &domain.RouteContext{Department: "sales"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if dec.Action != domain.TargetPerson || dec.Recipient.ID != salesID {
		t.Fatalf("routed to %+v, want sales rep", dec)
	}
	if dec.Depth != 0 {
		t.Fatalf("depth = %d, want 0", dec.Depth)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	orgID := uuid.New()
	a, b := uuid.New(), uuid.New()

	// Two rules with identical priority and identical conditions: the ID
	// tiebreak must make one of them win every time.
	repo := &fakeRuleRepo{rules: []*domain.Rule{
		rule(orgID, 5, domain.Target{Type: domain.TargetPerson, RecipientID: &a}),
		rule(orgID, 5, domain.Target{Type: domain.TargetPerson, RecipientID: &b}),
	}}
	dir := &fakeDirectory{people: map[uuid.UUID]*Endpoint{
		a: {ID: a}, b: {ID: b},
	}}
	svc := newTestService(repo, dir)

	first, err := svc.Resolve(context.Background(), orgID, nil, &domain.RouteContext{Department: "sales"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for i := 0; i < 100; i++ {
		dec, err := svc.Resolve(context.Background(), orgID, nil, &domain.RouteContext{Department: "sales"})
		if err != nil {
			t.Fatalf("resolve #%d: %v", i, err)
		}
		if dec.RuleID != first.RuleID {
			t.Fatalf("resolution changed between identical queries: %s then %s", first.RuleID, dec.RuleID)
		}
	}
}

func TestResolveLocationScopedBeatsGlobal(t *testing.T) {
	orgID := uuid.New()
	locID := uuid.New()
	local, global := uuid.New(), uuid.New()

	globalRule := rule(orgID, 100, domain.Target{Type: domain.TargetPerson, RecipientID: &global})
	localRule := rule(orgID, 1, domain.Target{Type: domain.TargetPerson, RecipientID: &local})
	localRule.LocationID = &locID

	repo := &fakeRuleRepo{rules: []*domain.Rule{globalRule, localRule}}
	dir := &fakeDirectory{people: map[uuid.UUID]*Endpoint{
		local: {ID: local}, global: {ID: global},
	}}
	svc := newTestService(repo, dir)

	// With the location set, the low-priority scoped rule still wins.
	dec, err := svc.Resolve(context.Background(), orgID, &locID, &domain.RouteContext{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if dec.Recipient.ID != local {
		t.Fatalf("routed to %s, want location-scoped recipient", dec.Recipient.ID)
	}

	// Without a location the scoped rule does not apply.
	dec, err = svc.Resolve(context.Background(), orgID, nil, &domain.RouteContext{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if dec.Recipient.ID != global {
		t.Fatalf("routed to %s, want global recipient", dec.Recipient.ID)
	}
}

func TestResolveFallbackChain(t *testing.T) {
	orgID := uuid.New()
	personID := uuid.New()

	voicemail := rule(orgID, 1, domain.Target{Type: domain.TargetVoicemail})
	department := rule(orgID, 2, domain.Target{Type: domain.TargetDepartment, Department: "sales"})
	department.FallbackRuleID = &voicemail.ID
	person := rule(orgID, 50, domain.Target{Type: domain.TargetPerson, RecipientID: &personID})
	person.FallbackRuleID = &department.ID

	repo := &fakeRuleRepo{rules: []*domain.Rule{person, department, voicemail}}
	// Person unavailable, department empty: the chain ends in voicemail.
	dir := &fakeDirectory{people: map[uuid.UUID]*Endpoint{}, departments: map[string]*Endpoint{}}
	svc := newTestService(repo, dir)

	dec, err := svc.Resolve(context.Background(), orgID, nil, &domain.RouteContext{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if dec.Action != domain.TargetVoicemail {
		t.Fatalf("action = %s, want voicemail", dec.Action)
	}
	if dec.Depth != 2 {
		t.Fatalf("depth = %d, want 2", dec.Depth)
	}
}

func TestResolveFallbackCycleTerminates(t *testing.T) {
	orgID := uuid.New()
	a, b := uuid.New(), uuid.New()

	ruleA := rule(orgID, 10, domain.Target{Type: domain.TargetPerson, RecipientID: &a})
	ruleB := rule(orgID, 5, domain.Target{Type: domain.TargetPerson, RecipientID: &b})
	ruleA.FallbackRuleID = &ruleB.ID
	ruleB.FallbackRuleID = &ruleA.ID

	repo := &fakeRuleRepo{rules: []*domain.Rule{ruleA, ruleB}}
	dir := &fakeDirectory{people: map[uuid.UUID]*Endpoint{}}
	svc := newTestService(repo, dir)

	_, err := svc.Resolve(context.Background(), orgID, nil, &domain.RouteContext{})
	if !errors.Is(err, ErrNoRecipientAvailable) {
		t.Fatalf("want ErrNoRecipientAvailable from a fallback cycle, got %v", err)
	}
}

func TestResolveFallsThroughToLowerPriorityRule(t *testing.T) {
	orgID := uuid.New()
	repA, repB := uuid.New(), uuid.New()

	specific := rule(orgID, 100, domain.Target{Type: domain.TargetPerson, RecipientID: &repA},
		domain.EqualsPredicate{Field: "department", Value: "new"})
	catchAll := rule(orgID, 10, domain.Target{Type: domain.TargetPerson, RecipientID: &repB})

	repo := &fakeRuleRepo{rules: []*domain.Rule{specific, catchAll}}
	// The specific rule's target is unavailable and it has no fallback;
	// evaluation must keep walking down to the catch-all.
	dir := &fakeDirectory{people: map[uuid.UUID]*Endpoint{repB: {ID: repB, Name: "Rep B"}}}
	svc := newTestService(repo, dir)

	dec, err := svc.Resolve(context.Background(), orgID, nil, &domain.RouteContext{Department: "new"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if dec.Recipient == nil || dec.Recipient.ID != repB {
		t.Fatalf("routed to %+v, want the catch-all's recipient", dec)
	}
	if dec.RuleID != catchAll.ID {
		t.Fatalf("decision rule = %s, want the catch-all rule", dec.RuleID)
	}
}

func TestResolveNoMatchVersusNoAvailability(t *testing.T) {
	orgID := uuid.New()
	personID := uuid.New()

	repo := &fakeRuleRepo{rules: []*domain.Rule{
		rule(orgID, 10, domain.Target{Type: domain.TargetPerson, RecipientID: &personID},
			domain.EqualsPredicate{Field: "department", Value: "sales"}),
	}}
	svc := newTestService(repo, &fakeDirectory{people: map[uuid.UUID]*Endpoint{}})

	// Query misses every rule: a configuration hole.
	_, err := svc.Resolve(context.Background(), orgID, nil, &domain.RouteContext{Department: "service"})
	if !errors.Is(err, ErrNoMatchingRule) {
		t.Fatalf("want ErrNoMatchingRule, got %v", err)
	}

	// Query matches but the only target is unavailable: a staffing condition.
	_, err = svc.Resolve(context.Background(), orgID, nil, &domain.RouteContext{Department: "sales"})
	if !errors.Is(err, ErrNoRecipientAvailable) {
		t.Fatalf("want ErrNoRecipientAvailable, got %v", err)
	}
}

func TestResolveConjunctionRequiresAllConditions(t *testing.T) {
	orgID := uuid.New()
	personID := uuid.New()
	min := 50.0

	repo := &fakeRuleRepo{rules: []*domain.Rule{
		rule(orgID, 10, domain.Target{Type: domain.TargetPerson, RecipientID: &personID},
			domain.EqualsPredicate{Field: "department", Value: "sales"},
			domain.RangePredicate{Field: "score", Min: &min}),
		rule(orgID, 1, domain.Target{Type: domain.TargetVoicemail}),
	}}
	dir := &fakeDirectory{people: map[uuid.UUID]*Endpoint{personID: {ID: personID}}}
	svc := newTestService(repo, dir)

	lowScore := 10.0
	dec, err := svc.Resolve(context.Background(), orgID, nil, &domain.RouteContext{
		Department:  "sales",
		SignalScore: &lowScore,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if dec.Action != domain.TargetVoicemail {
		t.Fatalf("partial condition match must not route to the person, got %s", dec.Action)
	}

	highScore := 80.0
	dec, err = svc.Resolve(context.Background(), orgID, nil, &domain.RouteContext{
		Department:  "sales",
		SignalScore: &highScore,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if dec.Action != domain.TargetPerson {
		t.Fatalf("full conjunction match should route to the person, got %s", dec.Action)
	}
}

func TestResolveDepthCap(t *testing.T) {
	orgID := uuid.New()

	// Only the head rule matches the query; everything below it is
	// reachable through fallbacks alone (fallbacks skip condition checks).
	// Fifteen unavailable person rules sit between the head and the
	// voicemail rule, so the cap stops the walk before reaching it.
	never := domain.EqualsPredicate{Field: "department", Value: "never"}
	var rules []*domain.Rule
	voicemail := rule(orgID, 0, domain.Target{Type: domain.TargetVoicemail}, never)
	next := voicemail.ID
	for i := 0; i < 15; i++ {
		personID := uuid.New()
		r := rule(orgID, 100-i, domain.Target{Type: domain.TargetPerson, RecipientID: &personID}, never)
		fallback := next
		r.FallbackRuleID = &fallback
		next = r.ID
		rules = append(rules, r)
	}
	rules = append(rules, voicemail)
	head := rules[len(rules)-2]
	head.Priority = 1000
	head.Conditions = []domain.Predicate{domain.EqualsPredicate{Field: "department", Value: "sales"}}

	repo := &fakeRuleRepo{rules: rules}
	svc := newTestService(repo, &fakeDirectory{people: map[uuid.UUID]*Endpoint{}})

	_, err := svc.Resolve(context.Background(), orgID, nil, &domain.RouteContext{Department: "sales"})
	if !errors.Is(err, ErrNoRecipientAvailable) {
		t.Fatalf("want ErrNoRecipientAvailable when the chain exceeds the depth cap, got %v", err)
	}
}
