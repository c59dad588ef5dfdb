package domain

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// TargetType names what a matched rule routes the call to.
type TargetType string

const (
	TargetPerson     TargetType = "person"
	TargetDepartment TargetType = "department"
	TargetVoicemail  TargetType = "voicemail"
	TargetCallback   TargetType = "callback"
)

// Target is a rule's routing destination. RecipientID is set for person
// targets, Department for department targets; voicemail and callback need
// neither.
type Target struct {
	Type        TargetType `json:"type"`
	RecipientID *uuid.UUID `json:"recipientId,omitempty"`
	Department  string     `json:"department,omitempty"`
}

func (t Target) Validate() error {
	switch t.Type {
	case TargetPerson:
		if t.RecipientID == nil {
			return fmt.Errorf("person target requires a recipient id")
		}
	case TargetDepartment:
		if t.Department == "" {
			return fmt.Errorf("department target requires a department")
		}
	case TargetVoicemail, TargetCallback:
	default:
		return fmt.Errorf("unknown target type %q", t.Type)
	}
	return nil
}

// Rule is a routing rule with its conditions already parsed.
type Rule struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Priority       int
	LocationID     *uuid.UUID
	Conditions     []Predicate
	Target         Target
	FallbackRuleID *uuid.UUID
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Matches reports whether every condition holds for the context. A rule
// with no conditions matches everything, which is how catch-alls are built.
func (r *Rule) Matches(ctx *RouteContext) bool {
	for _, p := range r.Conditions {
		if !p.Matches(ctx) {
			return false
		}
	}
	return true
}

// SortRules orders rules for evaluation: location-scoped before global,
// then priority descending, then ID ascending. The ID tiebreak makes the
// order total, so equal inputs always walk the rules the same way.
func SortRules(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		aScoped, bScoped := a.LocationID != nil, b.LocationID != nil
		if aScoped != bScoped {
			return aScoped
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}
