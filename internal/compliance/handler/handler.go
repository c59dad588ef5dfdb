// Package handler exposes do-not-contact management over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"outreach_backend/internal/compliance/service"
	"outreach_backend/internal/compliance/transport"
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

func (h *Handler) Create(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	var req transport.CreateDNCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	resp, err := h.svc.AddRecord(c.Request.Context(), orgID, req)
	if err != nil {
		h.log.HTTPError(c.Request.Method, c.Request.URL.Path, http.StatusInternalServerError, err, c.ClientIP())
		httpkit.HandleError(c, err)
		return
	}
	httpkit.Created(c, resp)
}

func (h *Handler) List(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	resp, err := h.svc.ListRecords(c.Request.Context(), orgID)
	if err != nil {
		h.log.HTTPError(c.Request.Method, c.Request.URL.Path, http.StatusInternalServerError, err, c.ClientIP())
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Delete(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid record id", nil)
		return
	}

	if err := h.svc.RemoveRecord(c.Request.Context(), orgID, id); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
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
