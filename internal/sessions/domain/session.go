// Package domain holds the call session model and its state machine.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is a call session state.
type Status string

const (
	StatusInitiated    Status = "initiated"
	StatusRinging      Status = "ringing"
	StatusAnswered     Status = "answered"
	StatusInProgress   Status = "in_progress"
	StatusTransferring Status = "transferring"
	StatusTransferred  Status = "transferred"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusNoAnswer     Status = "no_answer"
	StatusBusy         Status = "busy"
	StatusVoicemail    Status = "voicemail"
)

// transitions is the full state machine. Absent keys are terminal states.
var transitions = map[Status][]Status{
	StatusInitiated:    {StatusRinging, StatusFailed, StatusNoAnswer, StatusBusy},
	StatusRinging:      {StatusAnswered, StatusNoAnswer, StatusBusy, StatusVoicemail, StatusFailed},
	StatusAnswered:     {StatusInProgress, StatusFailed},
	StatusInProgress:   {StatusTransferring, StatusCompleted, StatusVoicemail, StatusFailed},
	StatusTransferring: {StatusTransferred, StatusInProgress, StatusFailed},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(s Status) bool {
	_, ok := transitions[s]
	return !ok
}

// Valid reports whether s is a known status.
func Valid(s Status) bool {
	switch s {
	case StatusInitiated, StatusRinging, StatusAnswered, StatusInProgress,
		StatusTransferring, StatusTransferred, StatusCompleted, StatusFailed,
		StatusNoAnswer, StatusBusy, StatusVoicemail:
		return true
	}
	return false
}

// TranscriptEntry is one utterance in the session transcript.
type TranscriptEntry struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Session is one outbound call from dial to terminal outcome.
type Session struct {
	ID                 uuid.UUID
	OrganizationID     uuid.UUID
	ContactID          uuid.UUID
	AttemptID          uuid.UUID
	ProviderRef        string
	Status             Status
	FromNumber         string
	ToNumber           string
	HandoffRecipientID *uuid.UUID
	Transcript         []TranscriptEntry
	// Metadata holds qualification facts gathered mid-call, merged in on
	// each handoff request.
	Metadata     map[string]string
	RecordingKey string
	StartedAt          time.Time
	AnsweredAt         *time.Time
	EndedAt            *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
