package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func mustTime(t *testing.T, value, tz string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(tz)
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	parsed, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return parsed
}

func TestEvaluateWindow(t *testing.T) {
	profile := DefaultProfile(uuid.New())

	tests := []struct {
		name    string
		at      time.Time
		allowed bool
		reason  string
	}{
		{
			name:    "mid-window weekday",
			at:      mustTime(t, "2026-03-04 12:30", "America/New_York"), // Wednesday
			allowed: true,
		},
		{
			name:    "window start is inclusive",
			at:      mustTime(t, "2026-03-04 09:00", "America/New_York"),
			allowed: true,
		},
		{
			name:    "window end is inclusive",
			at:      mustTime(t, "2026-03-04 20:00", "America/New_York"),
			allowed: true,
		},
		{
			name:   "one minute past the end is outside",
			at:     mustTime(t, "2026-03-04 20:01", "America/New_York"),
			reason: DeniedTime,
		},
		{
			name:   "one minute before the start is outside",
			at:     mustTime(t, "2026-03-04 08:59", "America/New_York"),
			reason: DeniedTime,
		},
		{
			name:   "sunday is denied by day before time is considered",
			at:     mustTime(t, "2026-03-01 12:00", "America/New_York"), // Sunday, mid-window hour
			reason: DeniedDay,
		},
		{
			name:   "saturday is denied",
			at:     mustTime(t, "2026-03-07 12:00", "America/New_York"),
			reason: DeniedDay,
		},
		{
			name: "instant is converted to the profile timezone",
			// 01:00 UTC Thursday is 20:00 Wednesday in New York: still inside.
			at:      mustTime(t, "2026-03-05 01:00", "UTC"),
			allowed: true,
		},
		{
			name: "utc evening maps to a denied local time",
			// 02:00 UTC Thursday is 21:00 Wednesday in New York.
			at:     mustTime(t, "2026-03-05 02:00", "UTC"),
			reason: DeniedTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := profile.EvaluateWindow(tt.at)
			if err != nil {
				t.Fatalf("evaluate window: %v", err)
			}
			if res.Allowed != tt.allowed {
				t.Fatalf("allowed = %v, want %v", res.Allowed, tt.allowed)
			}
			if res.Reason != tt.reason {
				t.Fatalf("reason = %q, want %q", res.Reason, tt.reason)
			}
		})
	}
}

func TestNextOpening(t *testing.T) {
	profile := DefaultProfile(uuid.New())

	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			name: "inside the window returns the instant itself",
			from: mustTime(t, "2026-03-04 12:30", "America/New_York"),
			want: mustTime(t, "2026-03-04 12:30", "America/New_York"),
		},
		{
			name: "before the window opens same day",
			from: mustTime(t, "2026-03-04 07:15", "America/New_York"),
			want: mustTime(t, "2026-03-04 09:00", "America/New_York"),
		},
		{
			name: "after close rolls to next allowed day",
			from: mustTime(t, "2026-03-04 21:00", "America/New_York"),
			want: mustTime(t, "2026-03-05 09:00", "America/New_York"),
		},
		{
			name: "friday evening rolls over the weekend",
			from: mustTime(t, "2026-03-06 20:30", "America/New_York"),
			want: mustTime(t, "2026-03-09 09:00", "America/New_York"),
		},
		{
			name: "sunday rolls to monday morning",
			from: mustTime(t, "2026-03-01 12:00", "America/New_York"),
			want: mustTime(t, "2026-03-02 09:00", "America/New_York"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := profile.NextOpening(tt.from)
			if err != nil {
				t.Fatalf("next opening: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("next opening = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateWindowBadTimezone(t *testing.T) {
	profile := DefaultProfile(uuid.New())
	profile.Timezone = "Not/AZone"

	if _, err := profile.EvaluateWindow(time.Now()); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestValidateRejectsOvernightWindow(t *testing.T) {
	profile := DefaultProfile(uuid.New())
	profile.WindowStart = 21 * 60
	profile.WindowEnd = 8 * 60

	if err := profile.Validate(); err == nil {
		t.Fatal("expected overnight window to be rejected")
	}
}
