// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"outreach_backend/internal/events"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds everything the router needs, assembled by cmd/api. The worker
// binary builds the same modules but no App; only the API serves HTTP.
type App struct {
	// Config holds the router configuration (HTTP and JWT settings only).
	Config RouterConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health reports database readiness.
	Health HealthChecker
	// QueueHealth reports task queue readiness. Optional: nil skips the check.
	QueueHealth HealthChecker
	// EventBus is the domain event bus for cross-module communication.
	EventBus events.Bus
	// Modules contains all HTTP-facing feature modules.
	Modules []Module
}
