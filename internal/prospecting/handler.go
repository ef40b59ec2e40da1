package prospecting

import (
	"net/http"

	"crescoflow/internal/leads/domain"
	"crescoflow/platform/apperr"
	"crescoflow/platform/httpkit"
	"crescoflow/platform/validator"

	"github.com/gin-gonic/gin"
)

const msgInvalidRequest = "invalid request"

type DiscoverRequest struct {
	Sector    string   `json:"sector" validate:"required,max=100"`
	Locations []string `json:"locations" validate:"required,min=1,max=50,dive,required,max=100"`
}

type CompanyInput struct {
	CompanyName string `json:"companyName" validate:"required,max=200"`
	Sector      string `json:"sector" validate:"max=100"`
	City        string `json:"city" validate:"max=100"`
	Website     string `json:"website" validate:"max=300"`
}

// EnrichRequest re-researches stored leads, new companies, or both.
type EnrichRequest struct {
	LeadIDs   []string       `json:"leadIds" validate:"max=500,dive,required"`
	Companies []CompanyInput `json:"companies" validate:"max=500,dive"`
}

type PushResponse struct {
	Queued int    `json:"queued"`
	Status Status `json:"status"`
}

// LeadReader resolves stored leads for re-enrichment.
type LeadReader interface {
	Lead(id string) (domain.Lead, bool)
}

// Handler exposes the worker loop controls.
type Handler struct {
	loop  *Loop
	leads LeadReader
	val   *validator.Validator
}

func NewHandler(loop *Loop, leads LeadReader, val *validator.Validator) *Handler {
	return &Handler{loop: loop, leads: leads, val: val}
}

func (h *Handler) available(c *gin.Context) bool {
	if h.loop == nil {
		httpkit.HandleError(c, apperr.Unavailable("prospecting is not configured"))
		return false
	}
	return true
}

// Status handles GET /api/v1/prospecting/status.
func (h *Handler) Status(c *gin.Context) {
	if h.loop == nil {
		httpkit.OK(c, Status{Phase: PhaseStandby})
		return
	}
	httpkit.OK(c, h.loop.Status())
}

// Discover queues one discovery task per location.
func (h *Handler) Discover(c *gin.Context) {
	if !h.available(c) {
		return
	}
	var req DiscoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); httpkit.HandleError(c, err) {
		return
	}

	tasks := make([]DiscoveryTask, len(req.Locations))
	for i, loc := range req.Locations {
		tasks[i] = DiscoveryTask{Sector: req.Sector, Location: loc}
	}
	n := h.loop.PushDiscovery(tasks...)
	httpkit.JSON(c, http.StatusAccepted, PushResponse{Queued: n, Status: h.loop.Status()})
}

// Enrich queues stored leads and new companies for research. Unknown lead
// ids are a 404 so a stale dashboard notices.
func (h *Handler) Enrich(c *gin.Context) {
	if !h.available(c) {
		return
	}
	var req EnrichRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); httpkit.HandleError(c, err) {
		return
	}
	if len(req.LeadIDs) == 0 && len(req.Companies) == 0 {
		httpkit.Error(c, http.StatusBadRequest, "leadIds or companies is required", nil)
		return
	}

	partials := make([]domain.Lead, 0, len(req.LeadIDs)+len(req.Companies))
	for _, id := range req.LeadIDs {
		l, ok := h.leads.Lead(id)
		if !ok {
			httpkit.HandleError(c, apperr.NotFound("lead not found: "+id))
			return
		}
		partials = append(partials, l)
	}
	for _, in := range req.Companies {
		partials = append(partials, domain.Lead{
			CompanyName: in.CompanyName,
			Sector:      in.Sector,
			City:        in.City,
			Website:     in.Website,
			PipelineTag: domain.StageCold,
			Source:      "manual",
		})
	}

	n := h.loop.PushEnrichment(partials...)
	httpkit.JSON(c, http.StatusAccepted, PushResponse{Queued: n, Status: h.loop.Status()})
}

func (h *Handler) Stop(c *gin.Context) {
	if !h.available(c) {
		return
	}
	h.loop.Stop()
	httpkit.OK(c, h.loop.Status())
}

func (h *Handler) Resume(c *gin.Context) {
	if !h.available(c) {
		return
	}
	h.loop.Resume()
	httpkit.OK(c, h.loop.Status())
}
