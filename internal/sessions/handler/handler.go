// Package handler exposes call sessions and handoff control over HTTP.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	routingservice "outreach_backend/internal/routing/service"
	"outreach_backend/internal/sessions/service"
	"outreach_backend/internal/sessions/transport"
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

func (h *Handler) Get(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid session id", nil)
		return
	}

	sess, err := h.svc.Get(c.Request.Context(), orgID, id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.FromDomain(sess))
}

func (h *Handler) ListByContact(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	contactID, err := uuid.Parse(c.Param("contactId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid contact id", nil)
		return
	}

	items, err := h.svc.ListByContact(c.Request.Context(), orgID, contactID)
	if err != nil {
		h.log.HTTPError(c.Request.Method, c.Request.URL.Path, http.StatusInternalServerError, err, c.ClientIP())
		httpkit.HandleError(c, err)
		return
	}

	resp := transport.SessionListResponse{Items: make([]transport.SessionResponse, 0, len(items))}
	for i := range items {
		resp.Items = append(resp.Items, transport.FromDomain(&items[i]))
	}
	httpkit.OK(c, resp)
}

// Handoff resolves and begins a transfer for an in-progress call. Routing
// outcomes that cannot place the call are reported as structured codes.
func (h *Handler) Handoff(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid session id", nil)
		return
	}

	var req transport.HandoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	plan, err := h.svc.RequestHandoff(c.Request.Context(), orgID, id, req.LocationID, req.ToContext())
	if errors.Is(err, routingservice.ErrNoMatchingRule) {
		httpkit.JSON(c, http.StatusOK, gin.H{
			"action": "none", "code": "no_matching_rule",
			"fallbackMessage": routingservice.SpokenNoMatchingRule,
		})
		return
	}
	if errors.Is(err, routingservice.ErrNoRecipientAvailable) {
		httpkit.JSON(c, http.StatusOK, gin.H{
			"action": "none", "code": "no_recipient_available",
			"fallbackMessage": routingservice.SpokenNoRecipientAvailable,
		})
		return
	}
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.FromPlan(plan))
}

func (h *Handler) CompleteHandoff(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid session id", nil)
		return
	}

	var req transport.CompleteHandoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	if err := h.svc.CompleteHandoff(c.Request.Context(), orgID, id, req.Success); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) RecordingURL(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid session id", nil)
		return
	}

	url, err := h.svc.RecordingURL(c.Request.Context(), orgID, id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.RecordingURLResponse{URL: url})
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
