package http

import (
	"context"

	"crescoflow/platform/config"
	"crescoflow/platform/logger"
)

// RouterConfig is what the router reads from the process config.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs GET /health. A nil checker always reports ok.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is assembled by cmd/api and turned into an engine by router.New.
type App struct {
	Config  RouterConfig
	Logger  *logger.Logger
	Health  HealthChecker
	Modules []Module
}
