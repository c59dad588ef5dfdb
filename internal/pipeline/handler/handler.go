// Package handler exposes the outreach trigger endpoint and attempt history.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"outreach_backend/internal/pipeline/service"
	"outreach_backend/internal/pipeline/transport"
	"outreach_backend/internal/scheduler"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

type Handler struct {
	svc      *service.Service
	validate *validator.Validator
	log      *logger.Logger
}

func New(svc *service.Service, validate *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{svc: svc, validate: validate, log: log}
}

// Trigger accepts an outreach trigger and responds 202: the attempt itself
// runs on the task queue, behind the compliance and window gates.
func (h *Handler) Trigger(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	var req transport.TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	triggerID := req.TriggerID
	if triggerID == "" {
		triggerID = uuid.NewString()
	}

	err := h.svc.Trigger(c.Request.Context(), scheduler.ContactAttemptPayload{
		TriggerID:      triggerID,
		OrganizationID: orgID,
		ContactID:      req.ContactID,
		Phone:          req.Phone,
		Email:          req.Email,
		Context:        req.Context,
	})
	if err != nil {
		h.log.HTTPError(c.Request.Method, c.FullPath(), http.StatusInternalServerError, err, c.ClientIP())
		httpkit.Error(c, http.StatusInternalServerError, "failed to queue attempt", nil)
		return
	}

	httpkit.Accepted(c, transport.TriggerResponse{
		TriggerID: triggerID,
		Status:    "accepted",
	})
}

func (h *Handler) ListAttempts(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	contactID, err := uuid.Parse(c.Param("contactId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid contact id", nil)
		return
	}

	attempts, err := h.svc.ListAttempts(c.Request.Context(), orgID, contactID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.FromAttempts(attempts))
}

func requireOrg(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	orgID := identity.OrganizationID()
	if orgID == nil {
		httpkit.Error(c, http.StatusForbidden, "token carries no organization", nil)
		return uuid.Nil, false
	}
	return *orgID, true
}
