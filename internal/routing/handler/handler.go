// Package handler exposes routing queries and rule management over HTTP.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"outreach_backend/internal/routing/domain"
	"outreach_backend/internal/routing/service"
	"outreach_backend/internal/routing/transport"
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

// Query resolves a routing decision. No-match and no-availability are both
// 200 responses with a distinct code: callers branch on them, they are not
// transport failures.
func (h *Handler) Query(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	var req transport.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	dec, err := h.svc.Resolve(c.Request.Context(), orgID, req.LocationID, req.ToContext())
	if errors.Is(err, service.ErrNoMatchingRule) {
		httpkit.JSON(c, http.StatusOK, gin.H{
			"action": "none", "code": "no_matching_rule",
			"fallbackMessage": service.SpokenNoMatchingRule,
		})
		return
	}
	if errors.Is(err, service.ErrNoRecipientAvailable) {
		httpkit.JSON(c, http.StatusOK, gin.H{
			"action": "none", "code": "no_recipient_available",
			"fallbackMessage": service.SpokenNoRecipientAvailable,
		})
		return
	}
	if err != nil {
		h.log.HTTPError(c.Request.Method, c.Request.URL.Path, http.StatusInternalServerError, err, c.ClientIP())
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.FromDecision(dec))
}

func (h *Handler) Create(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	rule, ok := h.bindRule(c, orgID, uuid.New())
	if !ok {
		return
	}

	if err := h.svc.CreateRule(c.Request.Context(), rule); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	resp, err := transport.FromRule(rule)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.Created(c, resp)
}

func (h *Handler) Update(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid rule id", nil)
		return
	}

	rule, ok := h.bindRule(c, orgID, id)
	if !ok {
		return
	}

	if err := h.svc.UpdateRule(c.Request.Context(), rule); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	resp, err := transport.FromRule(rule)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) List(c *gin.Context) {
	orgID, ok := requireOrg(c)
	if !ok {
		return
	}

	rules, err := h.svc.ListRules(c.Request.Context(), orgID)
	if err != nil {
		h.log.HTTPError(c.Request.Method, c.Request.URL.Path, http.StatusInternalServerError, err, c.ClientIP())
		httpkit.HandleError(c, err)
		return
	}

	resp := transport.RuleListResponse{Items: make([]transport.RuleResponse, 0, len(rules))}
	for _, r := range rules {
		item, err := transport.FromRule(r)
		if err != nil {
			httpkit.HandleError(c, err)
			return
		}
		resp.Items = append(resp.Items, item)
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
		httpkit.Error(c, http.StatusBadRequest, "invalid rule id", nil)
		return
	}

	if err := h.svc.DeleteRule(c.Request.Context(), orgID, id); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// bindRule decodes, validates, and converts a rule request. Condition
// parsing happens here so a malformed rule is rejected at write time.
func (h *Handler) bindRule(c *gin.Context, orgID, id uuid.UUID) (*domain.Rule, bool) {
	var req transport.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return nil, false
	}

	conds, err := domain.ParseConditions(req.Conditions)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid conditions", err.Error())
		return nil, false
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	return &domain.Rule{
		ID:             id,
		OrganizationID: orgID,
		Name:           req.Name,
		Priority:       req.Priority,
		LocationID:     req.LocationID,
		Conditions:     conds,
		Target: domain.Target{
			Type:        domain.TargetType(req.TargetType),
			RecipientID: req.RecipientID,
			Department:  req.Department,
		},
		FallbackRuleID: req.FallbackRuleID,
		Active:         active,
	}, true
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
