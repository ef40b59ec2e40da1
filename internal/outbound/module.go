package outbound

import (
	apphttp "crescoflow/internal/http"
)

// Module exposes the send queues, their capacity and the campaign tools.
type Module struct {
	handler *Handler
}

func NewModule(d HandlerDeps) (*Module, error) {
	if err := RegisterValidations(d.Validator); err != nil {
		return nil, err
	}
	return &Module{handler: NewHandler(d)}, nil
}

func (m *Module) Name() string {
	return "outbound"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/outbound"))
}

// Wait blocks until in-process dispatch runs started over HTTP are done.
func (m *Module) Wait() {
	m.handler.Wait()
}

var _ apphttp.Module = (*Module)(nil)
