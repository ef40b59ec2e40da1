package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"crescoflow/internal/adapters/storage"
	"crescoflow/internal/events"
	apphttp "crescoflow/internal/http"
	"crescoflow/internal/leads/domain"
	"crescoflow/internal/leads/transport"
	"crescoflow/internal/leadstore"
	"crescoflow/platform/logger"
	"crescoflow/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPublisher struct{ exported int }

func (p *stubPublisher) Publish(_ context.Context, leads []domain.Lead) (*storage.PresignedURL, error) {
	p.exported = len(leads)
	return &storage.PresignedURL{URL: "https://minio.local/exports/x.csv"}, nil
}

type stubPusher struct{ pushed []string }

func (p *stubPusher) Push(_ context.Context, lead domain.Lead, _ []string) (string, bool) {
	p.pushed = append(p.pushed, lead.ID)
	return "ghl-" + lead.ID, true
}

type fixture struct {
	engine    *gin.Engine
	store     *leadstore.State
	bus       *events.InMemoryBus
	publisher *stubPublisher
	pusher    *stubPusher
}

func newFixture(t *testing.T, withIntegrations bool) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := leadstore.New(leadstore.NewMemoryRepository(leadstore.Snapshot{Leads: []domain.Lead{
		{ID: "a", CompanyName: "Acme Bouw", City: "Gent", ConfidenceScore: 80, PipelineTag: domain.StageCold},
		{ID: "b", CompanyName: "Bakkerij", City: "Brugge", ConfidenceScore: 30, PipelineTag: domain.StageReplied},
	}}), logger.Discard())
	require.NoError(t, store.Init(context.Background()))

	f := &fixture{store: store, bus: events.NewInMemoryBus(logger.Discard())}
	deps := Deps{Store: store, Bus: f.bus, Validator: validator.New(), Log: logger.Discard()}
	if withIntegrations {
		f.publisher = &stubPublisher{}
		f.pusher = &stubPusher{}
		deps.Publisher = f.publisher
		deps.CRM = f.pusher
	}
	m, err := NewModule(deps)
	require.NoError(t, err)

	f.engine = gin.New()
	v1 := f.engine.Group("/api/v1")
	m.RegisterRoutes(&apphttp.RouterContext{Engine: f.engine, V1: v1, Protected: v1})
	return f
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
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

func TestListAndGet(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(http.MethodGet, "/api/v1/leads?minConfidence=50", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list transport.ListLeadsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "a", list.Items[0].ID)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/leads?stage=bogus", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/leads/a", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/leads/nope", nil).Code)
}

func TestCreateLead(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(http.MethodPost, "/api/v1/leads", map[string]any{"companyName": "Nieuw BV", "ceoEmail": "ceo@nieuw.be"})
	require.Equal(t, http.StatusCreated, w.Code)
	var lead domain.Lead
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lead))
	assert.Equal(t, domain.StageCold, lead.PipelineTag)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/leads", map[string]any{"ceoEmail": "not-an-email"}).Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/v1/leads", map[string]any{"companyName": "ACME bouw"}).Code)
}

func TestStageOverrideAndInteractions(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(http.MethodPatch, "/api/v1/leads/a/stage", map[string]any{"stage": "warm", "reason": "called back"})
	require.Equal(t, http.StatusOK, w.Code)
	a, _ := f.store.Lead("a")
	assert.Equal(t, domain.StageWarm, a.PipelineTag)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPatch, "/api/v1/leads/a/stage", map[string]any{"stage": "lost"}).Code)

	w = f.do(http.MethodPost, "/api/v1/leads/a/interactions", map[string]any{"type": "call", "outcome": "interested"})
	require.Equal(t, http.StatusCreated, w.Code)
	a, _ = f.store.Lead("a")
	require.Len(t, a.Interactions, 1)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/leads/a/interactions", map[string]any{"type": "fax", "outcome": "x"}).Code)
}

func TestAppointmentArchiveAndStats(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(http.MethodPost, "/api/v1/leads/b/appointment", map[string]any{"scheduledDate": "2030-01-02T10:00:00Z"})
	require.Equal(t, http.StatusOK, w.Code)
	b, _ := f.store.Lead("b")
	assert.Equal(t, domain.StageAppointmentBooked, b.PipelineTag)

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/leads/a/archive", nil).Code)

	w = f.do(http.MethodGet, "/api/v1/leads/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st transport.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 1, st.Archived)
	assert.Equal(t, 1, st.ByStage["appointment_booked"])
}

func TestExportDownloadAndStorage(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(http.MethodGet, "/api/v1/leads/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "crescoflow_leads_")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Bedrijfsnaam,"))
	assert.True(t, strings.HasPrefix(lines[1], "Acme Bouw,"))

	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodPost, "/api/v1/leads/export/storage", nil).Code)

	f = newFixture(t, true)
	w = f.do(http.MethodPost, "/api/v1/leads/export/storage", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, f.publisher.exported)
	assert.Contains(t, w.Body.String(), "minio.local")
}

func TestImportMultipart(t *testing.T) {
	f := newFixture(t, false)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "leads.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("companyName,sector,city,website\nDakwerken,Bouw,Leuven,dak.be\nshort,row\n"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var res transport.ImportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, transport.ImportResponse{Inserted: 1, Skipped: 1}, res)
	assert.True(t, f.store.HasCompany("dakwerken"))
}

func TestSyncRouteAndStageSubscriber(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodPost, "/api/v1/leads/a/sync", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodPost, "/api/v1/leads/import/ghl", nil).Code)

	f = newFixture(t, true)
	w := f.do(http.MethodPost, "/api/v1/leads/a/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	a, _ := f.store.Lead("a")
	assert.Equal(t, "ghl-a", a.GHLContactID)

	require.Equal(t, http.StatusOK, f.do(http.MethodPatch, "/api/v1/leads/b/stage", map[string]any{"stage": "hot"}).Code)
	f.bus.Wait()
	assert.Contains(t, f.pusher.pushed, "b")
}
