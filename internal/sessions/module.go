// Package sessions wires the call session lifecycle: state machine
// persistence, handoff coordination with the routing engine, and the
// operator-facing session endpoints. Provider callbacks reach this module
// through the provider package's authenticated webhook handler.
package sessions

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_backend/internal/events"
	"outreach_backend/internal/http"
	routingservice "outreach_backend/internal/routing/service"
	"outreach_backend/internal/sessions/handler"
	"outreach_backend/internal/sessions/repository"
	"outreach_backend/internal/sessions/service"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

type Module struct {
	svc     *service.Service
	handler *handler.Handler
}

var _ http.Module = (*Module)(nil)

func NewModule(pool *pgxpool.Pool, router *routingservice.Service, recordings service.RecordingStore, bus events.Bus, validate *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, router, recordings, bus, log)
	return &Module{
		svc:     svc,
		handler: handler.New(svc, validate, log),
	}
}

func (m *Module) Name() string { return "sessions" }

// Service exposes session control to the pipeline and provider modules.
func (m *Module) Service() *service.Service { return m.svc }

func (m *Module) RegisterRoutes(rc *http.RouterContext) {
	grp := rc.Protected.Group("/sessions")
	grp.GET("/:id", m.handler.Get)
	grp.GET("/:id/recording", m.handler.RecordingURL)
	grp.POST("/:id/handoff", m.handler.Handoff)
	grp.POST("/:id/handoff/complete", m.handler.CompleteHandoff)

	rc.Protected.GET("/contacts/:contactId/sessions", m.handler.ListByContact)
}
