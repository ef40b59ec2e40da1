package pipeline

import (
	"context"

	apphttp "crescoflow/internal/http"
	"crescoflow/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Sweeper runs one stage engine pass against the lead store.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepResponse reports how many leads changed stage.
type SweepResponse struct {
	Changed int `json:"changed"`
}

// Module exposes a manual trigger of the stage sweep.
type Module struct {
	sweeper Sweeper
}

func NewModule(sweeper Sweeper) *Module {
	return &Module{sweeper: sweeper}
}

func (m *Module) Name() string {
	return "pipeline"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/pipeline")
	group.POST("/sweep", m.Sweep)
}

// Sweep handles POST /api/v1/pipeline/sweep.
func (m *Module) Sweep(c *gin.Context) {
	n, err := m.sweeper.Sweep(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, SweepResponse{Changed: n})
}

var _ apphttp.Module = (*Module)(nil)
