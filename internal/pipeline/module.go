// Package pipeline wires the orchestration core: the trigger endpoint, the
// attempt executor that runs behind the task queue, and the retry planner
// that listens for finished sessions.
package pipeline

import (
	"github.com/jackc/pgx/v5/pgxpool"

	complianceservice "outreach_backend/internal/compliance/service"
	"outreach_backend/internal/events"
	"outreach_backend/internal/http"
	"outreach_backend/internal/pipeline/handler"
	"outreach_backend/internal/pipeline/repository"
	"outreach_backend/internal/pipeline/service"
	profilesservice "outreach_backend/internal/profiles/service"
	"outreach_backend/internal/provider"
	sessionsservice "outreach_backend/internal/sessions/service"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

type Module struct {
	svc     *service.Service
	handler *handler.Handler
}

var _ http.Module = (*Module)(nil)

func NewModule(
	pool *pgxpool.Pool,
	compliance *complianceservice.Service,
	profiles *profilesservice.Service,
	sessions *sessionsservice.Service,
	dialer provider.Dialer,
	queue service.TaskQueue,
	bus events.Bus,
	fromNumber string,
	validate *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, compliance, profiles, sessions, dialer, queue, bus, fromNumber, log)
	svc.RegisterHandlers(bus)
	return &Module{
		svc:     svc,
		handler: handler.New(svc, validate, log),
	}
}

func (m *Module) Name() string { return "pipeline" }

// Service exposes the attempt executor for the worker binary.
func (m *Module) Service() *service.Service { return m.svc }

func (m *Module) RegisterRoutes(rc *http.RouterContext) {
	rc.Protected.POST("/triggers", m.handler.Trigger)
	rc.Protected.GET("/contacts/:contactId/attempts", m.handler.ListAttempts)
}
