package domain

import (
	"errors"
	"time"
)

// ErrMaxAttempts signals that the contact's attempt budget is spent and no
// further retry may be scheduled.
var ErrMaxAttempts = errors.New("maximum attempts reached")

// RetryDelay returns the wait before attempt number next (1-based):
// RetryDelays[next-1], with the last entry repeating when the list is
// shorter than the budget. Whether attempt 1 actually waits is the
// caller's scheduling decision; a freshly raised trigger dials now.
func (p *ContactProfile) RetryDelay(next int) (time.Duration, error) {
	if next < 1 {
		return 0, errors.New("attempt number must be at least 1")
	}
	if next > p.MaxAttempts {
		return 0, ErrMaxAttempts
	}
	if len(p.RetryDelays) == 0 {
		return 0, nil
	}
	idx := next - 1
	if idx >= len(p.RetryDelays) {
		idx = len(p.RetryDelays) - 1
	}
	return p.RetryDelays[idx], nil
}

// NextRetryAt computes the scheduled time for the given attempt number
// relative to now.
func (p *ContactProfile) NextRetryAt(next int, now time.Time) (time.Time, error) {
	delay, err := p.RetryDelay(next)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(delay), nil
}
