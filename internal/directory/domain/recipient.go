// Package domain holds the recipient model for handoff targets.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes individual recipients from department queues.
type Kind string

const (
	KindPerson     Kind = "person"
	KindDepartment Kind = "department"
)

// Recipient is a destination a live call can be handed to. Department
// recipients represent a queue; person recipients a named individual.
type Recipient struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Kind           Kind
	Name           string
	Department     string
	LocationID     *uuid.UUID
	Phone          string
	Priority       int
	Active         bool
	Accepting      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Available reports whether the recipient can take a handoff right now.
func (r *Recipient) Available() bool {
	return r.Active && r.Accepting
}
