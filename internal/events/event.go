// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"outreach_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Compliance Domain Events
// =============================================================================

// ContactBlocked is published when a do-not-contact record suppresses an
// outbound attempt. Consumed by the alerts module and the audit log.
type ContactBlocked struct {
	BaseEvent
	OrganizationID uuid.UUID `json:"organizationId"`
	ContactID      uuid.UUID `json:"contactId"`
	Channel        string    `json:"channel"`
	MatchedScope   string    `json:"matchedScope"`
}

func (e ContactBlocked) EventName() string { return "compliance.contact.blocked" }

// =============================================================================
// Routing Domain Events
// =============================================================================

// RoutingMisconfigured is published when a routing query matches no rule at
// all. Distinct from transient recipient unavailability: it means the
// organization lacks a catch-all rule and needs operator attention.
type RoutingMisconfigured struct {
	BaseEvent
	OrganizationID uuid.UUID  `json:"organizationId"`
	LocationID     *uuid.UUID `json:"locationId,omitempty"`
	ActiveRules    int        `json:"activeRules"`
	Department     string     `json:"department,omitempty"`
}

func (e RoutingMisconfigured) EventName() string { return "routing.rules.no_match" }

// =============================================================================
// Pipeline Domain Events
// =============================================================================

// AttemptScheduled is published when the retry scheduler defers an attempt.
type AttemptScheduled struct {
	BaseEvent
	OrganizationID uuid.UUID `json:"organizationId"`
	ContactID      uuid.UUID `json:"contactId"`
	AttemptNumber  int       `json:"attemptNumber"`
	ScheduledFor   string    `json:"scheduledFor"`
}

func (e AttemptScheduled) EventName() string { return "pipeline.attempt.scheduled" }

// AttemptsExhausted is published when a contact hits the max-attempts ceiling,
// so a non-automated follow-up path can take over.
type AttemptsExhausted struct {
	BaseEvent
	OrganizationID uuid.UUID `json:"organizationId"`
	ContactID      uuid.UUID `json:"contactId"`
	MaxAttempts    int       `json:"maxAttempts"`
}

func (e AttemptsExhausted) EventName() string { return "pipeline.attempts.exhausted" }

// =============================================================================
// Session Domain Events
// =============================================================================

// SessionFinished is published when a call session reaches a terminal
// status. The pipeline listens for it to decide whether a retry is due.
type SessionFinished struct {
	BaseEvent
	OrganizationID uuid.UUID `json:"organizationId"`
	SessionID      uuid.UUID `json:"sessionId"`
	ContactID      uuid.UUID `json:"contactId"`
	AttemptID      uuid.UUID `json:"attemptId"`
	Outcome        string    `json:"outcome"`
}

func (e SessionFinished) EventName() string { return "sessions.session.finished" }

// SessionTransferred is published when a handoff to a human recipient completes.
type SessionTransferred struct {
	BaseEvent
	OrganizationID uuid.UUID `json:"organizationId"`
	SessionID      uuid.UUID `json:"sessionId"`
	RecipientID    uuid.UUID `json:"recipientId"`
}

func (e SessionTransferred) EventName() string { return "sessions.session.transferred" }
