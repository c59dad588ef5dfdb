// Package transport defines request/response DTOs for the routing module.
package transport

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/routing/domain"
	"outreach_backend/internal/routing/service"
)

// QueryRequest asks where a call with the given context should go.
type QueryRequest struct {
	LocationID  *uuid.UUID        `json:"locationId"`
	Department  string            `json:"department"`
	Channel     string            `json:"channel"`
	SignalScore *float64          `json:"signalScore"`
	Category    string            `json:"category"`
	Facts       map[string]string `json:"facts"`
}

func (r *QueryRequest) ToContext() *domain.RouteContext {
	return &domain.RouteContext{
		Department:  r.Department,
		Channel:     r.Channel,
		SignalScore: r.SignalScore,
		Category:    r.Category,
		Facts:       r.Facts,
	}
}

type RecipientRef struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Department string    `json:"department,omitempty"`
	Phone      string    `json:"phone,omitempty"`
}

type QueryResponse struct {
	RuleID        uuid.UUID     `json:"ruleId"`
	RuleName      string        `json:"ruleName"`
	Action        string        `json:"action"`
	Recipient     *RecipientRef `json:"recipient,omitempty"`
	FallbackDepth int           `json:"fallbackDepth"`
	// FallbackMessage is the line the agent speaks when the action does not
	// reach a live recipient.
	FallbackMessage string `json:"fallbackMessage,omitempty"`
}

func FromDecision(d *service.Decision) QueryResponse {
	resp := QueryResponse{
		RuleID:          d.RuleID,
		RuleName:        d.RuleName,
		Action:          string(d.Action),
		FallbackDepth:   d.Depth,
		FallbackMessage: service.SpokenLine(d.Action),
	}
	if d.Recipient != nil {
		resp.Recipient = &RecipientRef{
			ID:         d.Recipient.ID,
			Name:       d.Recipient.Name,
			Department: d.Recipient.Department,
			Phone:      d.Recipient.Phone,
		}
	}
	return resp
}

// RuleRequest is the operator-facing rule shape. Conditions use the same
// JSON encoding the store uses, validated by the predicate parser.
type RuleRequest struct {
	Name           string          `json:"name" validate:"required,min=1,max=200"`
	Priority       int             `json:"priority" validate:"gte=0,lte=10000"`
	LocationID     *uuid.UUID      `json:"locationId"`
	Conditions     json.RawMessage `json:"conditions"`
	TargetType     string          `json:"targetType" validate:"required,oneof=person department voicemail callback"`
	RecipientID    *uuid.UUID      `json:"recipientId"`
	Department     string          `json:"department"`
	FallbackRuleID *uuid.UUID      `json:"fallbackRuleId"`
	Active         *bool           `json:"active"`
}

type RuleResponse struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Priority       int             `json:"priority"`
	LocationID     *uuid.UUID      `json:"locationId,omitempty"`
	Conditions     json.RawMessage `json:"conditions"`
	TargetType     string          `json:"targetType"`
	RecipientID    *uuid.UUID      `json:"recipientId,omitempty"`
	Department     string          `json:"department,omitempty"`
	FallbackRuleID *uuid.UUID      `json:"fallbackRuleId,omitempty"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type RuleListResponse struct {
	Items []RuleResponse `json:"items"`
}

func FromRule(r *domain.Rule) (RuleResponse, error) {
	conds, err := domain.EncodeConditions(r.Conditions)
	if err != nil {
		return RuleResponse{}, err
	}
	return RuleResponse{
		ID:             r.ID,
		Name:           r.Name,
		Priority:       r.Priority,
		LocationID:     r.LocationID,
		Conditions:     conds,
		TargetType:     string(r.Target.Type),
		RecipientID:    r.Target.RecipientID,
		Department:     r.Target.Department,
		FallbackRuleID: r.FallbackRuleID,
		Active:         r.Active,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}
