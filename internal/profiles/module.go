// Package profiles wires the outreach policy layer: per-organization call
// windows, throughput limits, and retry budgets.
package profiles

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_backend/internal/http"
	"outreach_backend/internal/profiles/handler"
	"outreach_backend/internal/profiles/repository"
	"outreach_backend/internal/profiles/service"
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

func (m *Module) Name() string { return "profiles" }

// Service exposes window, capacity, and retry planning to the pipeline.
func (m *Module) Service() *service.Service { return m.svc }

func (m *Module) RegisterRoutes(rc *http.RouterContext) {
	rc.Protected.GET("/profile/window", m.handler.Window)

	admin := rc.Admin.Group("/profile")
	admin.GET("", m.handler.Get)
	admin.PUT("", m.handler.Put)
}
