package templates

import (
	"net/http"

	apphttp "crescoflow/internal/http"
	"crescoflow/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module serves the message template library.
type Module struct {
	library *Library
}

func NewModule(library *Library) *Module {
	return &Module{library: library}
}

func (m *Module) Name() string {
	return "templates"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/templates")
	group.GET("", m.List)
	group.GET("/:name", m.Get)
}

// List handles GET /api/v1/templates.
func (m *Module) List(c *gin.Context) {
	httpkit.OK(c, m.library.All())
}

func (m *Module) Get(c *gin.Context) {
	t, ok := m.library.Get(c.Param("name"))
	if !ok {
		httpkit.Error(c, http.StatusNotFound, "template not found", nil)
		return
	}
	httpkit.OK(c, t)
}

var _ apphttp.Module = (*Module)(nil)
