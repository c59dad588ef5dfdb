// Package compliance wires the do-not-contact gate: the suppression store,
// the fail-closed contact check used by the attempt pipeline, and the
// operator-facing record management endpoints.
package compliance

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_backend/internal/compliance/handler"
	"outreach_backend/internal/compliance/repository"
	"outreach_backend/internal/compliance/service"
	"outreach_backend/internal/http"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

type Module struct {
	svc     *service.Service
	handler *handler.Handler
}

var _ http.Module = (*Module)(nil)

func NewModule(pool *pgxpool.Pool, validate *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)
	return &Module{
		svc:     svc,
		handler: handler.New(svc, validate, log),
	}
}

func (m *Module) Name() string { return "compliance" }

// Service exposes the contact check to the pipeline module.
func (m *Module) Service() *service.Service { return m.svc }

func (m *Module) RegisterRoutes(rc *http.RouterContext) {
	grp := rc.Admin.Group("/compliance/dnc")
	grp.POST("", m.handler.Create)
	grp.GET("", m.handler.List)
	grp.DELETE("/:id", m.handler.Delete)
}
