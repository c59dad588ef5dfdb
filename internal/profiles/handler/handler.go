// Package handler exposes contact-profile management over HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"outreach_backend/internal/profiles/service"
	"outreach_backend/internal/profiles/transport"
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

	p, err := h.svc.Profile(c.Request.Context(), orgID)
	if err != nil {
		h.log.HTTPError(c.Request.Method, c.Request.URL.Path, http.StatusInternalServerError, err, c.ClientIP())
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.FromDomain(p))
}

func (h *Handler) Put(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	var req transport.ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	p := req.ToDomain(orgID)
	if err := h.svc.Save(c.Request.Context(), p); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.FromDomain(p))
}

// Window answers "may we call right now" for dashboards; an optional ?at
// query (RFC 3339) evaluates a different moment.
func (h *Handler) Window(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	var at time.Time
	if raw := c.Query("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid 'at' timestamp", nil)
			return
		}
		at = parsed
	}

	res, err := h.svc.EvaluateWindow(c.Request.Context(), orgID, at)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"allowed": res.Allowed, "reason": res.Reason})
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
