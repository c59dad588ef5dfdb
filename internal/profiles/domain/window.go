package domain

import (
	"fmt"
	"time"
)

// Window denial reasons, surfaced to operators on skipped attempts.
const (
	DeniedDay  = "day"
	DeniedTime = "time"
)

// WindowResult reports whether a moment falls inside the profile's calling
// window. Reason is set only when Allowed is false.
type WindowResult struct {
	Allowed bool
	Reason  string
}

// EvaluateWindow checks t against the profile's allowed days and daily
// window, after converting t into the profile's timezone. Both window
// bounds are inclusive; one minute past the end is already outside.
func (p *ContactProfile) EvaluateWindow(t time.Time) (WindowResult, error) {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return WindowResult{}, fmt.Errorf("load timezone %q: %w", p.Timezone, err)
	}
	local := t.In(loc)

	dayAllowed := false
	for _, d := range p.AllowedDays {
		if local.Weekday() == d {
			dayAllowed = true
			break
		}
	}
	if !dayAllowed {
		return WindowResult{Reason: DeniedDay}, nil
	}

	minute := local.Hour()*60 + local.Minute()
	if minute < p.WindowStart || minute > p.WindowEnd {
		return WindowResult{Reason: DeniedTime}, nil
	}
	return WindowResult{Allowed: true}, nil
}

// NextOpening returns the earliest instant at or after t that falls inside
// the calling window. Used to defer attempts that arrive outside it.
func (p *ContactProfile) NextOpening(t time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", p.Timezone, err)
	}
	local := t.In(loc)

	// A valid profile has at least one allowed day, so eight days always
	// contain an opening.
	for day := 0; day < 8; day++ {
		candidate := local.AddDate(0, 0, day)
		start := time.Date(candidate.Year(), candidate.Month(), candidate.Day(), p.WindowStart/60, p.WindowStart%60, 0, 0, loc)
		end := time.Date(candidate.Year(), candidate.Month(), candidate.Day(), p.WindowEnd/60, p.WindowEnd%60, 0, 0, loc)

		allowed := false
		for _, d := range p.AllowedDays {
			if start.Weekday() == d {
				allowed = true
				break
			}
		}
		if !allowed {
			continue
		}
		if day == 0 && local.After(end) {
			continue
		}
		if day == 0 && local.After(start) {
			return local, nil
		}
		return start, nil
	}
	return time.Time{}, fmt.Errorf("no window opening found within eight days")
}
