package provider

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	sessiondomain "outreach_backend/internal/sessions/domain"
	sessionservice "outreach_backend/internal/sessions/service"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/logger"
)

// statusCallback is the provider's call-progress webhook body.
type statusCallback struct {
	CallRef string `json:"callRef" binding:"required"`
	Status  string `json:"status" binding:"required"`
}

type transcriptEntry struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

type transcriptCallback struct {
	CallRef string            `json:"callRef" binding:"required"`
	Entries []transcriptEntry `json:"entries" binding:"required"`
}

type recordingCallback struct {
	CallRef      string `json:"callRef" binding:"required"`
	RecordingKey string `json:"recordingKey" binding:"required"`
}

// Handler receives provider webhooks and feeds them into the session
// state machine.
type Handler struct {
	sessions *sessionservice.Service
	log      *logger.Logger
}

func NewHandler(sessions *sessionservice.Service, log *logger.Logger) *Handler {
	return &Handler{sessions: sessions, log: log}
}

func (h *Handler) Status(c *gin.Context) {
	var cb statusCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid callback body", nil)
		return
	}

	status, err := TranslateStatus(cb.Status)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if err := h.sessions.ApplyProviderStatus(c.Request.Context(), cb.CallRef, status); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Transcript(c *gin.Context) {
	var cb transcriptCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid callback body", nil)
		return
	}

	entries := make([]sessiondomain.TranscriptEntry, 0, len(cb.Entries))
	for _, e := range cb.Entries {
		entries = append(entries, sessiondomain.TranscriptEntry{Role: e.Role, Text: e.Text, At: e.At})
	}

	if err := h.sessions.AttachTranscript(c.Request.Context(), cb.CallRef, entries); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Recording(c *gin.Context) {
	var cb recordingCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid callback body", nil)
		return
	}

	if err := h.sessions.AttachRecording(c.Request.Context(), cb.CallRef, cb.RecordingKey); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
