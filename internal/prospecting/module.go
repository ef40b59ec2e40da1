package prospecting

import (
	apphttp "crescoflow/internal/http"
	"crescoflow/platform/validator"
)

// Module wires the worker loop controls. loop is nil when no research
// model is configured; the routes then report 503.
type Module struct {
	handler *Handler
}

func NewModule(loop *Loop, leads LeadReader, val *validator.Validator) *Module {
	return &Module{handler: NewHandler(loop, leads, val)}
}

func (m *Module) Name() string {
	return "prospecting"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/prospecting")
	group.GET("/status", m.handler.Status)
	group.POST("/discover", m.handler.Discover)
	group.POST("/enrich", m.handler.Enrich)
	group.POST("/stop", m.handler.Stop)
	group.POST("/resume", m.handler.Resume)
}

var _ apphttp.Module = (*Module)(nil)
