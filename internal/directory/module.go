// Package directory wires the recipient directory: the destinations live
// calls can be handed to and the availability lookups routing depends on.
package directory

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_backend/internal/directory/handler"
	"outreach_backend/internal/directory/repository"
	"outreach_backend/internal/directory/service"
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

func (m *Module) Name() string { return "directory" }

// Service exposes availability lookups to the routing module.
func (m *Module) Service() *service.Service { return m.svc }

func (m *Module) RegisterRoutes(rc *http.RouterContext) {
	rc.Protected.GET("/recipients", m.handler.List)

	admin := rc.Admin.Group("/recipients")
	admin.POST("", m.handler.Create)
	admin.PUT("/:id", m.handler.Update)
	admin.DELETE("/:id", m.handler.Delete)
}
