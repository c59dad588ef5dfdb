// Package transport defines request/response DTOs for the compliance module.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// Scope identifies which contact channels a do-not-contact record suppresses.
type Scope string

const (
	ScopeCall  Scope = "call"
	ScopeSMS   Scope = "sms"
	ScopeEmail Scope = "email"
	ScopeAll   Scope = "all"
)

// Channel identifies a single outbound contact channel.
type Channel string

const (
	ChannelCall  Channel = "call"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// CreateDNCRequest registers a new do-not-contact record.
// At least one of phone/email must be set; the service enforces this.
type CreateDNCRequest struct {
	Phone string `json:"phone"`
	Email string `json:"email" validate:"omitempty,email"`
	Scope Scope  `json:"scope" validate:"required,oneof=call sms email all"`
}

// DNCResponse is an operator-facing do-not-contact record.
type DNCResponse struct {
	ID        uuid.UUID `json:"id"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Scope     Scope     `json:"scope"`
	CreatedAt time.Time `json:"createdAt"`
}

// DNCListResponse wraps a list of records.
type DNCListResponse struct {
	Items []DNCResponse `json:"items"`
}
