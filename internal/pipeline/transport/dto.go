// Package transport defines request/response DTOs for the pipeline module.
package transport

import (
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/pipeline/repository"
)

// TriggerRequest starts the outreach pipeline for a contact. TriggerID is an
// optional client-supplied idempotency key; replays with the same key are
// absorbed without enqueueing a second run.
type TriggerRequest struct {
	TriggerID string            `json:"triggerId"`
	ContactID uuid.UUID         `json:"contactId" validate:"required"`
	Phone     string            `json:"phone" validate:"required,dialable"`
	Email     string            `json:"email" validate:"omitempty,email"`
	Context   map[string]string `json:"context"`
}

// TriggerResponse acknowledges an accepted trigger.
type TriggerResponse struct {
	TriggerID string `json:"triggerId"`
	Status    string `json:"status"`
}

// AttemptResponse is one row of a contact's attempt history.
type AttemptResponse struct {
	ID           uuid.UUID  `json:"id"`
	ContactID    uuid.UUID  `json:"contactId"`
	TriggerID    string     `json:"triggerId"`
	Seq          int        `json:"seq"`
	Status       string     `json:"status"`
	Phone        string     `json:"phone"`
	SessionID    *uuid.UUID `json:"sessionId,omitempty"`
	ScheduledFor time.Time  `json:"scheduledFor"`
	ExecutedAt   *time.Time `json:"executedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func FromAttempt(a *repository.Attempt) AttemptResponse {
	return AttemptResponse{
		ID:           a.ID,
		ContactID:    a.ContactID,
		TriggerID:    a.TriggerID,
		Seq:          a.Seq,
		Status:       a.Status,
		Phone:        a.Phone,
		SessionID:    a.SessionID,
		ScheduledFor: a.ScheduledFor,
		ExecutedAt:   a.ExecutedAt,
		CreatedAt:    a.CreatedAt,
	}
}

func FromAttempts(attempts []repository.Attempt) []AttemptResponse {
	out := make([]AttemptResponse, 0, len(attempts))
	for i := range attempts {
		out = append(out, FromAttempt(&attempts[i]))
	}
	return out
}
