package outbound

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"crescoflow/internal/instantly"
	"crescoflow/internal/leads/domain"
	"crescoflow/platform/apperr"
	"crescoflow/platform/httpkit"
	"crescoflow/platform/logger"
	"crescoflow/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"

	// TagQueueChannel accepts the channels that have a capacity queue.
	TagQueueChannel = "queue_channel"
)

// QueueReader lists the stored queue.
type QueueReader interface {
	Queue() []QueueItem
}

// DispatchQueue hands a dispatch run to the background worker.
type DispatchQueue interface {
	EnqueueDispatch(ctx context.Context, channel domain.Channel) error
}

// InboxChecker polls the sequencer for replies.
type InboxChecker interface {
	Check(ctx context.Context) (instantly.InboxCheckResult, error)
}

type QueueFilter struct {
	Channel string `form:"channel" validate:"omitempty,queue_channel"`
	Status  string `form:"status" validate:"omitempty,oneof=pending sending sent failed skipped"`
	Date    string `form:"date" validate:"omitempty,datetime=2006-01-02"`
}

type QueueResponse struct {
	Items []QueueItem `json:"items"`
	Total int         `json:"total"`
}

type UsageResponse struct {
	Date     string  `json:"date"`
	Channels []Usage `json:"channels"`
}

type StageBody struct {
	Channel string   `json:"channel" validate:"required,queue_channel"`
	LeadIDs []string `json:"leadIds" validate:"max=1000,dive,required"`
	Body    string   `json:"body" validate:"max=2000"`
	Subject string   `json:"subject" validate:"max=200"`
	Preview bool     `json:"preview"`
}

type ChannelRequest struct {
	Channel string `json:"channel" validate:"required,queue_channel"`
}

type DispatchResponse struct {
	Channel domain.Channel `json:"channel"`
	Queued  bool           `json:"queued"`
	Started bool           `json:"started"`
}

type RetryResponse struct {
	Channel domain.Channel `json:"channel"`
	Retried int            `json:"retried"`
}

type CampaignUploadRequest struct {
	CampaignID string   `json:"campaignId" validate:"max=100"`
	LeadIDs    []string `json:"leadIds" validate:"required,min=1,max=1000,dive,required"`
}

// HandlerDeps are the collaborators of the outbound routes. Queue, Campaigns
// and Inbox are nil when Redis or Instantly is not configured.
type HandlerDeps struct {
	Store      QueueReader
	Stager     *Stager
	Dispatcher *Dispatcher
	Queue      DispatchQueue
	Campaigns  *Campaigns
	Inbox      InboxChecker
	Validator  *validator.Validator
	Log        *logger.Logger
}

type Handler struct {
	HandlerDeps
	now func() time.Time

	mu      sync.Mutex
	running map[domain.Channel]bool
	wg      sync.WaitGroup
}

func NewHandler(d HandlerDeps) *Handler {
	return &Handler{HandlerDeps: d, now: time.Now, running: make(map[domain.Channel]bool)}
}

// RegisterValidations adds the queue channel check to val.
func RegisterValidations(val *validator.Validator) error {
	return val.RegisterOneOf(TagQueueChannel, func(s string) bool {
		return Quota(domain.Channel(s)) > 0
	})
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/queue", h.ListQueue)
	rg.GET("/usage", h.Usage)
	rg.POST("/stage", h.Stage)
	rg.POST("/dispatch", h.Dispatch)
	rg.POST("/retry", h.Retry)
	rg.POST("/queue/:id/skip", h.Skip)
	rg.DELETE("/queue/:id", h.Remove)
	rg.POST("/instantly/upload", h.UploadCampaign)
	rg.POST("/instantly/inbox-check", h.InboxCheck)
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.Validator.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return false
	}
	return true
}

// ListQueue returns the queue ordered by day, channel and send order.
func (h *Handler) ListQueue(c *gin.Context) {
	var f QueueFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.Validator.Struct(f); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return
	}

	items := make([]QueueItem, 0)
	for _, it := range h.Store.Queue() {
		if f.Channel != "" && string(it.Channel) != f.Channel {
			continue
		}
		if f.Status != "" && string(it.Status) != f.Status {
			continue
		}
		if f.Date != "" && it.ScheduledDate != f.Date {
			continue
		}
		items = append(items, it)
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.ScheduledDate != b.ScheduledDate {
			return a.ScheduledDate < b.ScheduledDate
		}
		if a.Channel != b.Channel {
			return a.Channel < b.Channel
		}
		return a.Order < b.Order
	})
	httpkit.OK(c, QueueResponse{Items: items, Total: len(items)})
}

// Usage reports the committed load per queue channel for ?date, default today.
func (h *Handler) Usage(c *gin.Context) {
	day := c.Query("date")
	if day == "" {
		day = DayOf(h.now())
	} else if _, err := ParseDay(day, time.Local); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "date must be YYYY-MM-DD", nil)
		return
	}

	queue := h.Store.Queue()
	res := UsageResponse{Date: day}
	for _, ch := range QueueChannels() {
		res.Channels = append(res.Channels, DailyUsage(queue, ch, day))
	}
	httpkit.OK(c, res)
}

func (h *Handler) Stage(c *gin.Context) {
	var req StageBody
	if !h.bind(c, &req) {
		return
	}
	res, err := h.Stager.Stage(c.Request.Context(), StageRequest{
		Channel: domain.Channel(req.Channel),
		LeadIDs: req.LeadIDs,
		Body:    req.Body,
		Subject: req.Subject,
		Preview: req.Preview,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	status := http.StatusCreated
	if req.Preview {
		status = http.StatusOK
	}
	httpkit.JSON(c, status, res)
}

// Dispatch starts sending today's due items of a channel. With a worker
// queue the run is enqueued, otherwise it runs in the background here.
func (h *Handler) Dispatch(c *gin.Context) {
	var req ChannelRequest
	if !h.bind(c, &req) {
		return
	}
	channel := domain.Channel(req.Channel)
	if !h.Dispatcher.HasSender(channel) {
		httpkit.HandleError(c, apperr.Unavailable("no sender configured for "+req.Channel))
		return
	}

	if h.Queue != nil {
		if err := h.Queue.EnqueueDispatch(c.Request.Context(), channel); httpkit.HandleError(c, err) {
			return
		}
		httpkit.JSON(c, http.StatusAccepted, DispatchResponse{Channel: channel, Queued: true})
		return
	}

	if !h.start(channel) {
		httpkit.HandleError(c, apperr.Conflict("dispatch already running for "+req.Channel))
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.finish(channel)
		res, err := h.Dispatcher.Process(ctx, channel)
		if err != nil {
			h.Log.Error("dispatch run failed", "channel", channel, "error", err)
			return
		}
		h.Log.Info("dispatch run finished", "channel", channel, "sent", res.Sent, "failed", res.Failed, "skipped", res.Skipped)
	}()
	httpkit.JSON(c, http.StatusAccepted, DispatchResponse{Channel: channel, Started: true})
}

func (h *Handler) start(channel domain.Channel) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running[channel] {
		return false
	}
	h.running[channel] = true
	return true
}

func (h *Handler) finish(channel domain.Channel) {
	h.mu.Lock()
	delete(h.running, channel)
	h.mu.Unlock()
}

// Wait blocks until background dispatch runs have returned.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) Retry(c *gin.Context) {
	var req ChannelRequest
	if !h.bind(c, &req) {
		return
	}
	n, err := h.Dispatcher.RetryFailed(c.Request.Context(), domain.Channel(req.Channel))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, RetryResponse{Channel: domain.Channel(req.Channel), Retried: n})
}

func (h *Handler) Skip(c *gin.Context) {
	item, err := h.Dispatcher.Skip(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, item)
}

func (h *Handler) Remove(c *gin.Context) {
	if err := h.Dispatcher.Remove(c.Request.Context(), c.Param("id")); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) UploadCampaign(c *gin.Context) {
	if h.Campaigns == nil {
		httpkit.HandleError(c, apperr.Unavailable("instantly is not configured"))
		return
	}
	var req CampaignUploadRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.Campaigns.Upload(c.Request.Context(), req.CampaignID, req.LeadIDs)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, res)
}

func (h *Handler) InboxCheck(c *gin.Context) {
	if h.Inbox == nil {
		httpkit.HandleError(c, apperr.Unavailable("instantly is not configured"))
		return
	}
	res, err := h.Inbox.Check(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, res)
}
