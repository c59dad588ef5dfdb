// Package handler exposes recipient management over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"outreach_backend/internal/directory/service"
	"outreach_backend/internal/directory/transport"
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

	var req transport.CreateRecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	rec, err := h.svc.Create(c.Request.Context(), orgID, req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.Created(c, transport.FromDomain(rec))
}

func (h *Handler) Update(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid recipient id", nil)
		return
	}

	var req transport.UpdateRecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	rec, err := h.svc.Update(c.Request.Context(), orgID, id, req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.FromDomain(rec))
}

func (h *Handler) List(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	recs, err := h.svc.List(c.Request.Context(), orgID)
	if err != nil {
		h.log.HTTPError(c.Request.Method, c.Request.URL.Path, http.StatusInternalServerError, err, c.ClientIP())
		httpkit.HandleError(c, err)
		return
	}

	resp := transport.RecipientListResponse{Items: make([]transport.RecipientResponse, 0, len(recs))}
	for i := range recs {
		resp.Items = append(resp.Items, transport.FromDomain(&recs[i]))
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
		httpkit.Error(c, http.StatusBadRequest, "invalid recipient id", nil)
		return
	}

	if err := h.svc.Delete(c.Request.Context(), orgID, id); err != nil {
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
