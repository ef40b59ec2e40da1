package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crescoflow/internal/instantly"
	"crescoflow/internal/leads/domain"
	"crescoflow/platform/logger"
	"crescoflow/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatchQueue struct{ channels []domain.Channel }

func (f *fakeDispatchQueue) EnqueueDispatch(_ context.Context, channel domain.Channel) error {
	f.channels = append(f.channels, channel)
	return nil
}

type fakeUploader struct {
	got []domain.Lead
	err error
}

func (f *fakeUploader) UploadLeads(_ context.Context, _ string, leads []domain.Lead) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.got = leads
	return len(leads), nil
}

type fakeInbox struct{}

func (fakeInbox) Check(context.Context) (instantly.InboxCheckResult, error) {
	return instantly.InboxCheckResult{Checked: 4, Replied: 1}, nil
}

type handlerFixture struct {
	engine  *gin.Engine
	handler *Handler
	store   *memStore
	sender  *recordingSender
}

func newHandlerFixture(t *testing.T, store *memStore, mutate func(*HandlerDeps)) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	val := validator.New()
	require.NoError(t, RegisterValidations(val))

	sender := &recordingSender{}
	dispatcher, _ := newTestDispatcher(store, sender)
	deps := HandlerDeps{
		Store:      store,
		Stager:     newTestStager(store),
		Dispatcher: dispatcher,
		Validator:  val,
		Log:        logger.Discard(),
	}
	if mutate != nil {
		mutate(&deps)
	}

	h := NewHandler(deps)
	h.now = func() time.Time { return dispatchNow }
	engine := gin.New()
	h.RegisterRoutes(engine.Group("/api/v1/outbound"))
	return &handlerFixture{engine: engine, handler: h, store: store, sender: sender}
}

func (f *handlerFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestQueueListingAndUsage(t *testing.T) {
	store := seededStore(3, "2025-06-02")
	store.queue[0].Status = StatusSent
	store.queue[1].ScheduledDate = "2025-06-03"
	f := newHandlerFixture(t, store, nil)

	w := f.do(http.MethodGet, "/api/v1/outbound/queue?status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list QueueResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 2, list.Total)
	assert.Equal(t, "item-2", list.Items[0].ID)
	assert.Equal(t, "item-1", list.Items[1].ID)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/outbound/queue?status=lost", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/outbound/queue?channel=sales_call", nil).Code)

	w = f.do(http.MethodGet, "/api/v1/outbound/usage", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var usage UsageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &usage))
	assert.Equal(t, "2025-06-02", usage.Date)
	require.Len(t, usage.Channels, 3)
	assert.Equal(t, Usage{Channel: domain.ChannelColdSMS, Date: "2025-06-02", Quota: SMSDailyQuota, Used: 2, Remaining: SMSDailyQuota - 2, Percentage: float64(2) * 100 / SMSDailyQuota}, usage.Channels[1])

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/outbound/usage?date=02-06-2025", nil).Code)
}

func TestStageRoute(t *testing.T) {
	f := newHandlerFixture(t, &memStore{leads: smsLeads(3)}, nil)

	w := f.do(http.MethodPost, "/api/v1/outbound/stage", StageBody{Channel: "coldsms", Preview: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.store.Queue())

	w = f.do(http.MethodPost, "/api/v1/outbound/stage", StageBody{Channel: "coldsms"})
	require.Equal(t, http.StatusCreated, w.Code)
	var res StageResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res.Items, 3)
	assert.Len(t, f.store.Queue(), 3)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/outbound/stage", StageBody{Channel: "linkedin_dm"}).Code)
}

func TestDispatchRunsInProcessWithoutQueue(t *testing.T) {
	f := newHandlerFixture(t, seededStore(2, "2025-06-02"), nil)

	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodPost, "/api/v1/outbound/dispatch", ChannelRequest{Channel: "coldcall"}).Code)

	w := f.do(http.MethodPost, "/api/v1/outbound/dispatch", ChannelRequest{Channel: "coldsms"})
	require.Equal(t, http.StatusAccepted, w.Code)
	var res DispatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Started)

	f.handler.Wait()
	assert.Len(t, f.sender.sent, 2)
	assert.Equal(t, StatusSent, f.store.item("item-0").Status)
}

func TestDispatchUsesWorkerQueue(t *testing.T) {
	queue := &fakeDispatchQueue{}
	f := newHandlerFixture(t, seededStore(2, "2025-06-02"), func(d *HandlerDeps) { d.Queue = queue })

	w := f.do(http.MethodPost, "/api/v1/outbound/dispatch", ChannelRequest{Channel: "coldsms"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []domain.Channel{domain.ChannelColdSMS}, queue.channels)
	assert.Empty(t, f.sender.sent)
}

func TestSkipRemoveRetry(t *testing.T) {
	store := seededStore(3, "2025-06-02")
	store.queue[2].Status = StatusFailed
	store.queue[2].RetryCount = 1
	f := newHandlerFixture(t, store, nil)

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/outbound/queue/item-0/skip", nil).Code)
	assert.Equal(t, StatusSkipped, store.item("item-0").Status)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/v1/outbound/queue/item-0/skip", nil).Code)

	require.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/v1/outbound/queue/item-1", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/v1/outbound/queue/item-1", nil).Code)

	w := f.do(http.MethodPost, "/api/v1/outbound/retry", ChannelRequest{Channel: "coldsms"})
	require.Equal(t, http.StatusOK, w.Code)
	var res RetryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Retried)
	assert.Equal(t, StatusPending, store.item("item-2").Status)
}

func TestCampaignUpload(t *testing.T) {
	leads := smsLeads(2)
	leads[0].CEO.Email = "jan@company0.be"
	store := &memStore{leads: leads}

	f := newHandlerFixture(t, store, nil)
	body := CampaignUploadRequest{LeadIDs: []string{"lead-000", "lead-001"}}
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodPost, "/api/v1/outbound/instantly/upload", body).Code)

	uploader := &fakeUploader{}
	f = newHandlerFixture(t, store, func(d *HandlerDeps) {
		d.Campaigns = NewCampaigns(uploader, store, logger.Discard())
	})
	w := f.do(http.MethodPost, "/api/v1/outbound/instantly/upload", body)
	require.Equal(t, http.StatusOK, w.Code)
	var res UploadResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, UploadResult{Requested: 2, Uploaded: 1, Skipped: 1}, res)
	require.Len(t, uploader.got, 1)

	lead, _ := store.Lead("lead-000")
	assert.Equal(t, domain.StageSent, lead.PipelineTag)
	assert.Equal(t, domain.ChannelColdEmail, lead.OutboundChannel)
	require.Len(t, lead.Interactions, 1)
	assert.Equal(t, domain.InteractionEmail, lead.Interactions[0].Type)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/v1/outbound/instantly/upload", CampaignUploadRequest{LeadIDs: []string{"nope"}}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/outbound/instantly/upload", CampaignUploadRequest{}).Code)

	uploader.err = errors.New("boom")
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodPost, "/api/v1/outbound/instantly/upload", body).Code)
}

func TestInboxCheckRoute(t *testing.T) {
	f := newHandlerFixture(t, &memStore{}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodPost, "/api/v1/outbound/instantly/inbox-check", nil).Code)

	f = newHandlerFixture(t, &memStore{}, func(d *HandlerDeps) { d.Inbox = fakeInbox{} })
	w := f.do(http.MethodPost, "/api/v1/outbound/instantly/inbox-check", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"checked":4,"replied":1,"errors":0}`, w.Body.String())
}
