// Package transport defines request/response DTOs for the recipient directory.
package transport

import (
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/directory/domain"
)

type CreateRecipientRequest struct {
	Kind       string     `json:"kind" validate:"required,oneof=person department"`
	Name       string     `json:"name" validate:"required,min=1,max=200"`
	Department string     `json:"department" validate:"required,min=1,max=100"`
	LocationID *uuid.UUID `json:"locationId"`
	Phone      string     `json:"phone" validate:"required,dialable"`
	Priority   int        `json:"priority" validate:"gte=0,lte=1000"`
	Active     *bool      `json:"active"`
	Accepting  *bool      `json:"accepting"`
}

type UpdateRecipientRequest = CreateRecipientRequest

type RecipientResponse struct {
	ID         uuid.UUID  `json:"id"`
	Kind       string     `json:"kind"`
	Name       string     `json:"name"`
	Department string     `json:"department"`
	LocationID *uuid.UUID `json:"locationId,omitempty"`
	Phone      string     `json:"phone"`
	Priority   int        `json:"priority"`
	Active     bool       `json:"active"`
	Accepting  bool       `json:"accepting"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type RecipientListResponse struct {
	Items []RecipientResponse `json:"items"`
}

func FromDomain(r *domain.Recipient) RecipientResponse {
	return RecipientResponse{
		ID:         r.ID,
		Kind:       string(r.Kind),
		Name:       r.Name,
		Department: r.Department,
		LocationID: r.LocationID,
		Phone:      r.Phone,
		Priority:   r.Priority,
		Active:     r.Active,
		Accepting:  r.Accepting,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
