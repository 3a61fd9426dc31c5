// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"crm_automation_backend/internal/events"
	"crm_automation_backend/platform/config"
	"crm_automation_backend/platform/logger"
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

// App holds the fully initialized application dependencies.
// main.go populates it and passes it to the router.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health is pinged by /api/health. Nil means always healthy.
	Health   HealthChecker
	EventBus events.Bus
	Modules  []Module
}
