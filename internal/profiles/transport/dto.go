// Package transport defines request/response DTOs for contact profiles.
package transport

import (
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/profiles/domain"
)

// ProfileRequest is the operator-facing profile shape. Days use 0=Sunday,
// window bounds are minutes since local midnight, delays are in minutes.
type ProfileRequest struct {
	AllowedDays       []int  `json:"allowedDays" validate:"required,min=1,dive,gte=0,lte=6"`
	WindowStart       int    `json:"windowStart" validate:"gte=0,lte=1439"`
	WindowEnd         int    `json:"windowEnd" validate:"gte=0,lte=1439"`
	Timezone          string `json:"timezone" validate:"required"`
	MaxConcurrent     int    `json:"maxConcurrent" validate:"required,gte=1"`
	MaxPerHour        int    `json:"maxPerHour" validate:"required,gte=1"`
	MaxAttempts       int    `json:"maxAttempts" validate:"required,gte=1"`
	RetryDelaysMinute []int  `json:"retryDelaysMinutes" validate:"required,min=1,dive,gte=1"`
}

type ProfileResponse struct {
	OrganizationID    uuid.UUID `json:"organizationId"`
	AllowedDays       []int     `json:"allowedDays"`
	WindowStart       int       `json:"windowStart"`
	WindowEnd         int       `json:"windowEnd"`
	Timezone          string    `json:"timezone"`
	MaxConcurrent     int       `json:"maxConcurrent"`
	MaxPerHour        int       `json:"maxPerHour"`
	MaxAttempts       int       `json:"maxAttempts"`
	RetryDelaysMinute []int     `json:"retryDelaysMinutes"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (r *ProfileRequest) ToDomain(orgID uuid.UUID) *domain.ContactProfile {
	days := make([]time.Weekday, 0, len(r.AllowedDays))
	for _, d := range r.AllowedDays {
		days = append(days, time.Weekday(d))
	}
	delays := make([]time.Duration, 0, len(r.RetryDelaysMinute))
	for _, m := range r.RetryDelaysMinute {
		delays = append(delays, time.Duration(m)*time.Minute)
	}
	return &domain.ContactProfile{
		OrganizationID: orgID,
		AllowedDays:    days,
		WindowStart:    r.WindowStart,
		WindowEnd:      r.WindowEnd,
		Timezone:       r.Timezone,
		MaxConcurrent:  r.MaxConcurrent,
		MaxPerHour:     r.MaxPerHour,
		MaxAttempts:    r.MaxAttempts,
		RetryDelays:    delays,
	}
}

func FromDomain(p *domain.ContactProfile) ProfileResponse {
	days := make([]int, 0, len(p.AllowedDays))
	for _, d := range p.AllowedDays {
		days = append(days, int(d))
	}
	delays := make([]int, 0, len(p.RetryDelays))
	for _, d := range p.RetryDelays {
		delays = append(delays, int(d/time.Minute))
	}
	return ProfileResponse{
		OrganizationID:    p.OrganizationID,
		AllowedDays:       days,
		WindowStart:       p.WindowStart,
		WindowEnd:         p.WindowEnd,
		Timezone:          p.Timezone,
		MaxConcurrent:     p.MaxConcurrent,
		MaxPerHour:        p.MaxPerHour,
		MaxAttempts:       p.MaxAttempts,
		RetryDelaysMinute: delays,
		UpdatedAt:         p.UpdatedAt,
	}
}
