package provider

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	httpmod "outreach_backend/internal/http"
	"outreach_backend/internal/provider/repository"
	sessionservice "outreach_backend/internal/sessions/service"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/logger"
)

// Module wires provider callbacks and API-key management. The callback
// endpoints authenticate with API keys instead of operator JWTs: the
// provider is a machine, not a logged-in user.
type Module struct {
	keys    KeyStore
	dialer  Dialer
	handler *Handler
	log     *logger.Logger
}

var _ httpmod.Module = (*Module)(nil)

func NewModule(pool *pgxpool.Pool, dialer Dialer, sessions *sessionservice.Service, log *logger.Logger) *Module {
	return &Module{
		keys:    repository.New(pool),
		dialer:  dialer,
		handler: NewHandler(sessions, log),
		log:     log,
	}
}

func (m *Module) Name() string { return "provider" }

// Dialer exposes the outbound dial port to the pipeline.
func (m *Module) Dialer() Dialer { return m.dialer }

func (m *Module) RegisterRoutes(rc *httpmod.RouterContext) {
	callbacks := rc.V1.Group("/provider/callbacks")
	callbacks.Use(KeyAuth(m.keys, m.log))
	callbacks.POST("/status", m.handler.Status)
	callbacks.POST("/transcript", m.handler.Transcript)
	callbacks.POST("/recording", m.handler.Recording)

	admin := rc.Admin.Group("/provider/keys")
	admin.POST("", m.issueKey)
	admin.DELETE("/:id", m.deleteKey)
}

type issueKeyRequest struct {
	Name string `json:"name" binding:"required"`
}

func (m *Module) issueKey(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	orgID := identity.OrganizationID()
	if orgID == nil {
		httpkit.Error(c, http.StatusForbidden, "token carries no organization", nil)
		return
	}

	var req issueKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	plaintext, err := IssueKey(c.Request.Context(), m.keys, *orgID, req.Name)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	// Shown exactly once; only the hash survives.
	httpkit.Created(c, gin.H{"apiKey": plaintext})
}

func (m *Module) deleteKey(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	orgID := identity.OrganizationID()
	if orgID == nil {
		httpkit.Error(c, http.StatusForbidden, "token carries no organization", nil)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid key id", nil)
		return
	}

	if err := m.keys.Delete(c.Request.Context(), *orgID, id); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
