// Package provider integrates the telephony provider: outbound dial
// instructions, callback authentication, and the translation between
// provider call statuses and the session state machine.
package provider

import (
	"fmt"

	"outreach_backend/internal/sessions/domain"
)

// statusMap translates provider callback statuses into session statuses.
// Providers report "machine" or "answering-machine" when answering-machine
// detection fires; both collapse into voicemail.
var statusMap = map[string]domain.Status{
	"queued":            domain.StatusInitiated,
	"initiated":         domain.StatusInitiated,
	"ringing":           domain.StatusRinging,
	"answered":          domain.StatusAnswered,
	"in-progress":       domain.StatusInProgress,
	"transferring":      domain.StatusTransferring,
	"transferred":       domain.StatusTransferred,
	"completed":         domain.StatusCompleted,
	"busy":              domain.StatusBusy,
	"no-answer":         domain.StatusNoAnswer,
	"failed":            domain.StatusFailed,
	"canceled":          domain.StatusFailed,
	"machine":           domain.StatusVoicemail,
	"answering-machine": domain.StatusVoicemail,
	"voicemail":         domain.StatusVoicemail,
}

// TranslateStatus maps a provider status string onto the session state
// machine. Unknown statuses are an error: silently guessing would corrupt
// session state.
func TranslateStatus(providerStatus string) (domain.Status, error) {
	s, ok := statusMap[providerStatus]
	if !ok {
		return "", fmt.Errorf("unknown provider status %q", providerStatus)
	}
	return s, nil
}
