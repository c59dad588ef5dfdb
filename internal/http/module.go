// Package http wires the HTTP server: it defines the Module interface the
// feature slices (compliance, profiles, routing, sessions, pipeline, ...)
// implement to mount their routes, and builds the shared router around them.
package http

import (
	"outreach_backend/platform/config"

	"github.com/gin-gonic/gin"
)

// Module is a feature slice that registers its own HTTP routes. The router
// only knows the interface, so adding an endpoint never touches router.go.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes on the shared groups.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext carries the route groups and middleware a module can mount
// onto, so RegisterRoutes keeps a single-parameter signature.
type RouterContext struct {
	// Engine is the root Gin engine for modules that need engine-level access.
	Engine *gin.Engine
	// V1 is the /api/v1 route group (unauthenticated).
	V1 *gin.RouterGroup
	// Protected is the authenticated route group under /api/v1. Provider
	// callbacks and trigger intake both live here.
	Protected *gin.RouterGroup
	// Admin is the admin-only route group under /api/v1/admin.
	Admin *gin.RouterGroup
	// Config is the JWT configuration for auth middleware (scoped access).
	Config config.JWTConfig
	// AuthMiddleware provides the authentication middleware.
	AuthMiddleware gin.HandlerFunc
}
