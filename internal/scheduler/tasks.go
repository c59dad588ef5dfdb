// Package scheduler owns the asynq task definitions, the enqueue client,
// and the worker that executes outreach attempts in the background.
package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TypeContactAttempt is the task type for executing one outreach attempt.
const TypeContactAttempt = "outreach:attempt:execute"

// ContactAttemptPayload carries everything a worker needs to run an
// attempt. TriggerID is the caller's idempotency key: the same trigger
// never produces two first attempts.
type ContactAttemptPayload struct {
	TriggerID      string            `json:"triggerId"`
	OrganizationID uuid.UUID         `json:"organizationId"`
	ContactID      uuid.UUID         `json:"contactId"`
	Phone          string            `json:"phone"`
	Email          string            `json:"email,omitempty"`
	AttemptNumber  int               `json:"attemptNumber,omitempty"` // 0 means "plan the next one"
	Context        map[string]string `json:"context,omitempty"`
}

// NewContactAttemptTask builds the asynq task for an attempt.
func NewContactAttemptTask(p ContactAttemptPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal contact attempt payload: %w", err)
	}
	return asynq.NewTask(TypeContactAttempt, payload), nil
}

// ParseContactAttemptPayload decodes a task back into its payload.
func ParseContactAttemptPayload(t *asynq.Task) (ContactAttemptPayload, error) {
	var p ContactAttemptPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return ContactAttemptPayload{}, fmt.Errorf("unmarshal contact attempt payload: %w", err)
	}
	return p, nil
}
