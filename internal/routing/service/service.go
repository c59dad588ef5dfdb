// Package service implements the routing engine: deterministic rule
// evaluation with availability-aware fallback, plus rule management.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/events"
	"outreach_backend/internal/routing/domain"
	"outreach_backend/internal/routing/repository"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"
)

// Fallback chains longer than this are treated as misconfiguration. The
// visited set already breaks cycles; the cap bounds pathological but acyclic
// chains.
const maxFallbackDepth = 10

var (
	// ErrNoMatchingRule means the rule set has a hole: no rule's conditions
	// matched the query. An operator needs to fix the configuration.
	ErrNoMatchingRule = errors.New("no routing rule matched")

	// ErrNoRecipientAvailable means rules matched but every destination in
	// the fallback chain was unavailable. A transient staffing condition,
	// not a configuration error.
	ErrNoRecipientAvailable = errors.New("no recipient available")
)

// Spoken lines for outcomes that end without a live recipient. Agents read
// these to the contact verbatim, so they are full sentences, not codes.
const (
	SpokenNoMatchingRule       = "I'm sorry, I'm not able to transfer you right now. Someone from our team will follow up with you shortly."
	SpokenNoRecipientAvailable = "Everyone who can help is on another call at the moment. Can I take a message, or have someone call you back?"
	SpokenVoicemail            = "I'll connect you to our voicemail so you can leave a message, and we'll get back to you as soon as possible."
	SpokenCallback             = "I can arrange for someone to call you back as soon as they're free. Is the number you're calling from the best one to reach you?"
)

// SpokenLine returns the agent-facing line for a terminal routing action,
// empty for actions that hand the call to a live recipient.
func SpokenLine(action domain.TargetType) string {
	switch action {
	case domain.TargetVoicemail:
		return SpokenVoicemail
	case domain.TargetCallback:
		return SpokenCallback
	default:
		return ""
	}
}

// Endpoint is a resolved handoff destination.
type Endpoint struct {
	ID         uuid.UUID
	Name       string
	Department string
	Phone      string
}

// Decision is the outcome of a routing query.
type Decision struct {
	RuleID    uuid.UUID
	RuleName  string
	Action    domain.TargetType
	Recipient *Endpoint // set for person and department actions
	Depth     int       // fallback hops taken, 0 when the matched rule resolved directly
}

// RecipientDirectory answers availability questions about handoff targets.
type RecipientDirectory interface {
	// Person resolves a specific recipient; the bool reports availability.
	// A missing recipient is unavailable, not an error.
	Person(ctx context.Context, orgID, id uuid.UUID) (*Endpoint, bool, error)
	// Department returns the best available recipient, nil when none.
	Department(ctx context.Context, orgID uuid.UUID, department string, locationID *uuid.UUID) (*Endpoint, error)
}

// Repository is the persistence surface the service needs.
type Repository interface {
	ActiveRules(ctx context.Context, orgID uuid.UUID, locationID *uuid.UUID) ([]*domain.Rule, error)
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Rule, error)
	List(ctx context.Context, orgID uuid.UUID) ([]*domain.Rule, error)
	Create(ctx context.Context, rule *domain.Rule) error
	Update(ctx context.Context, rule *domain.Rule) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

type Service struct {
	repo      Repository
	directory RecipientDirectory
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
}

func New(repo Repository, directory RecipientDirectory, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, directory: directory, bus: bus, log: log, now: time.Now}
}

// Resolve evaluates the rule set against the query context and returns where
// the call should go. Evaluation is deterministic: rules are walked in a
// total order (location-scoped first, then priority descending, then ID).
// Each matching rule is tried in turn, its own target first and then its
// fallback chain; when a whole chain is unavailable evaluation keeps walking
// down to the next matching rule. Only after every matching rule has been
// exhausted does the transient no-recipient outcome come back.
func (s *Service) Resolve(ctx context.Context, orgID uuid.UUID, locationID *uuid.UUID, rctx *domain.RouteContext) (*Decision, error) {
	rules, err := s.repo.ActiveRules(ctx, orgID, locationID)
	if err != nil {
		return nil, fmt.Errorf("load routing rules: %w", err)
	}
	domain.SortRules(rules)

	byID := make(map[uuid.UUID]*domain.Rule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}

	anyMatched := false
	for _, r := range rules {
		if !r.Matches(rctx) {
			continue
		}
		anyMatched = true

		decision, err := s.resolveChain(ctx, orgID, locationID, r, byID)
		if err != nil {
			return nil, err
		}
		if decision != nil {
			return decision, nil
		}
	}

	if !anyMatched {
		s.log.RoutingMisconfigured(orgID.String(), len(rules))
		s.bus.Publish(ctx, events.RoutingMisconfigured{
			BaseEvent:      events.NewBaseEvent(),
			OrganizationID: orgID,
			LocationID:     locationID,
			ActiveRules:    len(rules),
			Department:     rctx.Department,
		})
		return nil, ErrNoMatchingRule
	}
	return nil, ErrNoRecipientAvailable
}

// resolveChain walks one rule's fallback chain until a target can take the
// call. A nil decision means the whole chain was unavailable.
func (s *Service) resolveChain(ctx context.Context, orgID uuid.UUID, locationID *uuid.UUID, matched *domain.Rule, byID map[uuid.UUID]*domain.Rule) (*Decision, error) {
	visited := make(map[uuid.UUID]bool)
	current := matched
	for depth := 0; depth <= maxFallbackDepth; depth++ {
		if visited[current.ID] {
			break
		}
		visited[current.ID] = true

		decision, ok, err := s.resolveTarget(ctx, orgID, locationID, current)
		if err != nil {
			return nil, err
		}
		if ok {
			decision.Depth = depth
			return decision, nil
		}

		if current.FallbackRuleID == nil {
			break
		}
		next, known := byID[*current.FallbackRuleID]
		if !known {
			// Fallback points at a rule that is inactive, deleted, or out of
			// scope for this location. The chain ends here.
			break
		}
		current = next
	}
	return nil, nil
}

// resolveTarget tries the rule's own target. The boolean reports whether
// the target can take the call.
func (s *Service) resolveTarget(ctx context.Context, orgID uuid.UUID, locationID *uuid.UUID, rule *domain.Rule) (*Decision, bool, error) {
	switch rule.Target.Type {
	case domain.TargetPerson:
		ep, available, err := s.directory.Person(ctx, orgID, *rule.Target.RecipientID)
		if err != nil {
			return nil, false, fmt.Errorf("resolve person target: %w", err)
		}
		if !available {
			return nil, false, nil
		}
		return &Decision{RuleID: rule.ID, RuleName: rule.Name, Action: domain.TargetPerson, Recipient: ep}, true, nil

	case domain.TargetDepartment:
		ep, err := s.directory.Department(ctx, orgID, rule.Target.Department, locationID)
		if err != nil {
			return nil, false, fmt.Errorf("resolve department target: %w", err)
		}
		if ep == nil {
			return nil, false, nil
		}
		return &Decision{RuleID: rule.ID, RuleName: rule.Name, Action: domain.TargetDepartment, Recipient: ep}, true, nil

	case domain.TargetVoicemail, domain.TargetCallback:
		// Terminal actions need no live recipient.
		return &Decision{RuleID: rule.ID, RuleName: rule.Name, Action: rule.Target.Type}, true, nil

	default:
		return nil, false, fmt.Errorf("rule %s: unknown target type %q", rule.ID, rule.Target.Type)
	}
}

func (s *Service) CreateRule(ctx context.Context, rule *domain.Rule) error {
	if err := rule.Target.Validate(); err != nil {
		return apperr.Validation(err.Error())
	}
	now := s.now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return s.repo.Create(ctx, rule)
}

func (s *Service) UpdateRule(ctx context.Context, rule *domain.Rule) error {
	if err := rule.Target.Validate(); err != nil {
		return apperr.Validation(err.Error())
	}
	rule.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, rule); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("routing rule not found")
		}
		return err
	}
	return nil
}

func (s *Service) GetRule(ctx context.Context, orgID, id uuid.UUID) (*domain.Rule, error) {
	rule, err := s.repo.GetByID(ctx, orgID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("routing rule not found")
	}
	return rule, err
}

func (s *Service) ListRules(ctx context.Context, orgID uuid.UUID) ([]*domain.Rule, error) {
	return s.repo.List(ctx, orgID)
}

func (s *Service) DeleteRule(ctx context.Context, orgID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("routing rule not found")
		}
		return err
	}
	return nil
}
