package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crescoflow/internal/adapters/storage"
	"crescoflow/internal/exports"
	"crescoflow/internal/leads/crmsync"
	"crescoflow/internal/leads/domain"
	"crescoflow/internal/leads/management"
	"crescoflow/internal/leads/scheduling"
	"crescoflow/internal/leads/transport"
	"crescoflow/platform/apperr"
	"crescoflow/platform/httpkit"
	"crescoflow/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"

	maxImportBytes = 10 << 20
)

// ExportPublisher uploads an export and returns its download link.
type ExportPublisher interface {
	Publish(ctx context.Context, leads []domain.Lead) (*storage.PresignedURL, error)
}

type Handler struct {
	mgmt      *management.Service
	sched     *scheduling.Service
	sync      *crmsync.Service
	publisher ExportPublisher
	val       *validator.Validator
	now       func() time.Time
}

// New builds the handler. publisher may be nil when object storage is off.
func New(mgmt *management.Service, sched *scheduling.Service, sync *crmsync.Service, publisher ExportPublisher, val *validator.Validator) *Handler {
	return &Handler{mgmt: mgmt, sched: sched, sync: sync, publisher: publisher, val: val, now: time.Now}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/stats", h.Stats)
	rg.GET("/export", h.Export)
	rg.POST("/export/storage", h.ExportToStorage)
	rg.POST("/import", h.ImportCSV)
	rg.POST("/import/ghl", h.ImportGHL)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id/stage", h.UpdateStage)
	rg.POST("/:id/interactions", h.AddInteraction)
	rg.POST("/:id/appointment", h.BookAppointment)
	rg.POST("/:id/archive", h.Archive)
	rg.POST("/:id/sync", h.Sync)
}

// bind decodes the JSON body into req and validates it. It writes the error
// response and returns false on failure.
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return false
	}
	return true
}

func (h *Handler) List(c *gin.Context) {
	var req transport.ListLeadsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return
	}
	httpkit.OK(c, h.mgmt.List(req))
}

func (h *Handler) GetByID(c *gin.Context) {
	lead, err := h.mgmt.Get(c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if !h.bind(c, &req) {
		return
	}
	lead, err := h.mgmt.Create(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, lead)
}

func (h *Handler) Stats(c *gin.Context) {
	httpkit.OK(c, h.mgmt.Stats())
}

func (h *Handler) Export(c *gin.Context) {
	c.Header("Content-Type", exports.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exports.FileName(h.now())))
	c.Status(http.StatusOK)
	if err := exports.WriteCSV(c.Writer, h.mgmt.Export()); err != nil {
		_ = c.Error(err)
	}
}

func (h *Handler) ExportToStorage(c *gin.Context) {
	if h.publisher == nil {
		httpkit.HandleError(c, apperr.Unavailable("object storage is not configured"))
		return
	}
	link, err := h.publisher.Publish(c.Request.Context(), h.mgmt.Export())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, link)
}

// ImportCSV accepts a multipart upload in field "file" or a raw CSV body.
func (h *Handler) ImportCSV(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)

	var body io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "file is required", nil)
			return
		}
		f, err := fh.Open()
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		defer func() {
			_ = f.Close()
		}()
		body = f
	}

	res, err := h.mgmt.ImportCSV(c.Request.Context(), body)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, res)
}

func (h *Handler) ImportGHL(c *gin.Context) {
	res, err := h.mgmt.ImportFromCRM(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, res)
}

func (h *Handler) UpdateStage(c *gin.Context) {
	var req transport.UpdateStageRequest
	if !h.bind(c, &req) {
		return
	}
	lead, err := h.mgmt.UpdateStage(c.Request.Context(), c.Param("id"), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) AddInteraction(c *gin.Context) {
	var req transport.AddInteractionRequest
	if !h.bind(c, &req) {
		return
	}
	lead, err := h.mgmt.AddInteraction(c.Request.Context(), c.Param("id"), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, lead)
}

func (h *Handler) BookAppointment(c *gin.Context) {
	var req transport.BookAppointmentRequest
	if !h.bind(c, &req) {
		return
	}
	lead, err := h.sched.BookAppointment(c.Request.Context(), c.Param("id"), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) Archive(c *gin.Context) {
	lead, err := h.mgmt.Archive(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) Sync(c *gin.Context) {
	res, err := h.sync.Request(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	status := http.StatusOK
	if res.Queued {
		status = http.StatusAccepted
	}
	httpkit.JSON(c, status, res)
}
