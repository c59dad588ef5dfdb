// Package domain holds the contact-profile model and the pure window and
// retry calculations the attempt pipeline depends on.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ContactProfile bundles the per-organization outreach policy: when calls are
// allowed, how many may run, and how failed attempts are retried.
type ContactProfile struct {
	OrganizationID uuid.UUID
	// AllowedDays uses time.Weekday numbering: 0 is Sunday.
	AllowedDays []time.Weekday
	// WindowStart/WindowEnd are minutes since local midnight, inclusive.
	WindowStart int
	WindowEnd   int
	Timezone    string

	MaxConcurrent int
	MaxPerHour    int

	MaxAttempts  int
	RetryDelays  []time.Duration
	UpdatedAt    time.Time
}

// DefaultProfile is the policy applied when an organization has never saved
// one: weekday business hours in US Eastern time, conservative throughput.
func DefaultProfile(orgID uuid.UUID) ContactProfile {
	return ContactProfile{
		OrganizationID: orgID,
		AllowedDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		WindowStart:   9 * 60,
		WindowEnd:     20 * 60,
		Timezone:      "America/New_York",
		MaxConcurrent: 3,
		MaxPerHour:    10,
		MaxAttempts:   3,
		RetryDelays: []time.Duration{
			30 * time.Minute,
			2 * time.Hour,
			24 * time.Hour,
		},
	}
}

// Validate checks a profile before it is stored. Windows never span
// midnight; a profile that needs evening-into-morning coverage must be
// modeled as two windows on separate days, which this model does not
// support, so such input is rejected outright.
func (p *ContactProfile) Validate() error {
	if len(p.AllowedDays) == 0 {
		return fmt.Errorf("at least one allowed day is required")
	}
	for _, d := range p.AllowedDays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("invalid weekday %d", d)
		}
	}
	if p.WindowStart < 0 || p.WindowStart > 24*60-1 {
		return fmt.Errorf("window start %d out of range", p.WindowStart)
	}
	if p.WindowEnd < 0 || p.WindowEnd > 24*60-1 {
		return fmt.Errorf("window end %d out of range", p.WindowEnd)
	}
	if p.WindowStart > p.WindowEnd {
		return fmt.Errorf("window start must not be after window end")
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", p.Timezone, err)
	}
	if p.MaxConcurrent < 1 {
		return fmt.Errorf("max concurrent must be at least 1")
	}
	if p.MaxPerHour < 1 {
		return fmt.Errorf("max per hour must be at least 1")
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	if len(p.RetryDelays) == 0 {
		return fmt.Errorf("at least one retry delay is required")
	}
	for _, d := range p.RetryDelays {
		if d <= 0 {
			return fmt.Errorf("retry delays must be positive")
		}
	}
	return nil
}
