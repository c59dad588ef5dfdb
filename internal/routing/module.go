// Package routing wires the routing engine: rule storage, the deterministic
// resolver, and the query/management endpoints. The recipient directory is
// consumed through an adapter so this package never imports the directory
// module directly.
package routing

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	directoryservice "outreach_backend/internal/directory/service"
	"outreach_backend/internal/events"
	"outreach_backend/internal/http"
	"outreach_backend/internal/routing/handler"
	"outreach_backend/internal/routing/repository"
	"outreach_backend/internal/routing/service"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

type Module struct {
	svc     *service.Service
	handler *handler.Handler
}

var _ http.Module = (*Module)(nil)

func NewModule(pool *pgxpool.Pool, directory *directoryservice.Service, bus events.Bus, validate *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, &directoryAdapter{directory}, bus, log)
	return &Module{
		svc:     svc,
		handler: handler.New(svc, validate, log),
	}
}

func (m *Module) Name() string { return "routing" }

// Service exposes routing resolution to the sessions module for handoffs.
func (m *Module) Service() *service.Service { return m.svc }

func (m *Module) RegisterRoutes(rc *http.RouterContext) {
	rc.Protected.POST("/routing/query", m.handler.Query)

	admin := rc.Admin.Group("/routing/rules")
	admin.POST("", m.handler.Create)
	admin.GET("", m.handler.List)
	admin.PUT("/:id", m.handler.Update)
	admin.DELETE("/:id", m.handler.Delete)
}

// directoryAdapter maps the directory service onto the resolver's
// RecipientDirectory port.
type directoryAdapter struct {
	svc *directoryservice.Service
}

var _ service.RecipientDirectory = (*directoryAdapter)(nil)

func (a *directoryAdapter) Person(ctx context.Context, orgID, id uuid.UUID) (*service.Endpoint, bool, error) {
	rec, available, err := a.svc.Person(ctx, orgID, id)
	if err != nil || !available {
		return nil, false, err
	}
	return &service.Endpoint{ID: rec.ID, Name: rec.Name, Department: rec.Department, Phone: rec.Phone}, true, nil
}

func (a *directoryAdapter) Department(ctx context.Context, orgID uuid.UUID, department string, locationID *uuid.UUID) (*service.Endpoint, error) {
	rec, err := a.svc.Department(ctx, orgID, department, locationID)
	if err != nil || rec == nil {
		return nil, err
	}
	return &service.Endpoint{ID: rec.ID, Name: rec.Name, Department: rec.Department, Phone: rec.Phone}, nil
}
