// Package transport defines request/response DTOs for call sessions.
package transport

import (
	"time"

	"github.com/google/uuid"

	routingdomain "outreach_backend/internal/routing/domain"
	"outreach_backend/internal/sessions/domain"
	"outreach_backend/internal/sessions/service"
)

type SessionResponse struct {
	ID                 uuid.UUID                `json:"id"`
	ContactID          uuid.UUID                `json:"contactId"`
	AttemptID          uuid.UUID                `json:"attemptId"`
	Status             string                   `json:"status"`
	FromNumber         string                   `json:"fromNumber"`
	ToNumber           string                   `json:"toNumber"`
	HandoffRecipientID *uuid.UUID               `json:"handoffRecipientId,omitempty"`
	Transcript         []domain.TranscriptEntry `json:"transcript,omitempty"`
	Metadata           map[string]string        `json:"metadata,omitempty"`
	HasRecording       bool                     `json:"hasRecording"`
	StartedAt          time.Time                `json:"startedAt"`
	AnsweredAt         *time.Time               `json:"answeredAt,omitempty"`
	EndedAt            *time.Time               `json:"endedAt,omitempty"`
}

func FromDomain(s *domain.Session) SessionResponse {
	return SessionResponse{
		ID:                 s.ID,
		ContactID:          s.ContactID,
		AttemptID:          s.AttemptID,
		Status:             string(s.Status),
		FromNumber:         s.FromNumber,
		ToNumber:           s.ToNumber,
		HandoffRecipientID: s.HandoffRecipientID,
		Transcript:         s.Transcript,
		Metadata:           s.Metadata,
		HasRecording:       s.RecordingKey != "",
		StartedAt:          s.StartedAt,
		AnsweredAt:         s.AnsweredAt,
		EndedAt:            s.EndedAt,
	}
}

type SessionListResponse struct {
	Items []SessionResponse `json:"items"`
}

// HandoffRequest asks the routing engine where a live call should go.
type HandoffRequest struct {
	LocationID  *uuid.UUID        `json:"locationId"`
	Department  string            `json:"department"`
	Channel     string            `json:"channel"`
	SignalScore *float64          `json:"signalScore"`
	Category    string            `json:"category"`
	Facts       map[string]string `json:"facts"`
}

func (r *HandoffRequest) ToContext() *routingdomain.RouteContext {
	return &routingdomain.RouteContext{
		Department:  r.Department,
		Channel:     r.Channel,
		SignalScore: r.SignalScore,
		Category:    r.Category,
		Facts:       r.Facts,
	}
}

type HandoffRecipient struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone,omitempty"`
}

// HandoffInstruction is the transfer payload the agent executes: the bridge
// to join, the brief read to the recipient, and the line spoken to the
// contact.
type HandoffInstruction struct {
	BridgeID       string `json:"bridgeId"`
	RecipientBrief string `json:"recipientBrief"`
	AgentScript    string `json:"agentScript"`
}

type HandoffResponse struct {
	Action          string              `json:"action"`
	Recipient       *HandoffRecipient   `json:"recipient,omitempty"`
	RuleID          uuid.UUID           `json:"ruleId"`
	FallbackDepth   int                 `json:"fallbackDepth"`
	Instruction     *HandoffInstruction `json:"instruction,omitempty"`
	FallbackMessage string              `json:"fallbackMessage,omitempty"`
}

func FromPlan(p *service.HandoffPlan) HandoffResponse {
	resp := HandoffResponse{
		Action:          string(p.Action),
		RuleID:          p.RuleID,
		FallbackDepth:   p.Depth,
		FallbackMessage: p.FallbackMessage,
	}
	if p.Recipient != nil {
		resp.Recipient = &HandoffRecipient{
			ID:    p.Recipient.ID,
			Name:  p.Recipient.Name,
			Phone: p.Recipient.Phone,
		}
	}
	if p.Instruction != nil {
		resp.Instruction = &HandoffInstruction{
			BridgeID:       p.Instruction.BridgeID,
			RecipientBrief: p.Instruction.RecipientBrief,
			AgentScript:    p.Instruction.AgentScript,
		}
	}
	return resp
}

type CompleteHandoffRequest struct {
	Success bool `json:"success"`
}

type RecordingURLResponse struct {
	URL string `json:"url"`
}
