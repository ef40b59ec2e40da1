// Package auth provides the operator login module.
package auth

import (
	"crescoflow/internal/auth/handler"
	"crescoflow/internal/auth/service"
	apphttp "crescoflow/internal/http"
	"crescoflow/platform/config"
	"crescoflow/platform/logger"
	"crescoflow/platform/validator"
)

// Module is the auth module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

func NewModule(cfg config.AuthConfig, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(cfg, log.WithComponent("auth"))
	return &Module{handler: handler.New(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "auth"
}

// RegisterRoutes mounts login on the public group, behind the stricter limiter.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	authGroup := ctx.V1.Group("/auth")
	if ctx.AuthRateLimiter != nil {
		authGroup.Use(ctx.AuthRateLimiter.RateLimit())
	}
	m.handler.RegisterRoutes(authGroup)

	ctx.Protected.GET("/auth/me", m.handler.GetMe)
}

var _ apphttp.Module = (*Module)(nil)
