// Package http holds the contract between the router and the feature
// modules mounted under /api/v1.
package http

import (
	"crescoflow/platform/config"
	"crescoflow/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module is a feature slice with its own routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is handed to every module while the engine is assembled.
// Protected already carries the bearer token check; V1 does not.
type RouterContext struct {
	Engine          *gin.Engine
	V1              *gin.RouterGroup
	Protected       *gin.RouterGroup
	Config          config.JWTConfig
	AuthRateLimiter *httpkit.AuthRateLimiter
}
