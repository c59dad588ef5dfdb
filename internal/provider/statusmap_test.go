package provider

import (
	"testing"

	"outreach_backend/internal/sessions/domain"
)

func TestTranslateStatus(t *testing.T) {
	tests := []struct {
		provider string
		want     domain.Status
	}{
		{"queued", domain.StatusInitiated},
		{"ringing", domain.StatusRinging},
		{"answered", domain.StatusAnswered},
		{"in-progress", domain.StatusInProgress},
		{"completed", domain.StatusCompleted},
		{"busy", domain.StatusBusy},
		{"no-answer", domain.StatusNoAnswer},
		{"failed", domain.StatusFailed},
		{"canceled", domain.StatusFailed},
		{"machine", domain.StatusVoicemail},
		{"answering-machine", domain.StatusVoicemail},
		{"voicemail", domain.StatusVoicemail},
	}

	for _, tt := range tests {
		got, err := TranslateStatus(tt.provider)
		if err != nil {
			t.Errorf("TranslateStatus(%q): %v", tt.provider, err)
			continue
		}
		if got != tt.want {
			t.Errorf("TranslateStatus(%q) = %s, want %s", tt.provider, got, tt.want)
		}
	}
}

func TestTranslateStatusUnknown(t *testing.T) {
	if _, err := TranslateStatus("exploded"); err == nil {
		t.Fatal("unknown provider status must be an error, not a guess")
	}
}

func TestTranslateStatusTargetsAreValid(t *testing.T) {
	for providerStatus, sessionStatus := range statusMap {
		if !domain.Valid(sessionStatus) {
			t.Errorf("%q maps to invalid session status %q", providerStatus, sessionStatus)
		}
	}
}
