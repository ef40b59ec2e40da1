package instantly

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"crescoflow/internal/leads/domain"
	"crescoflow/platform/apperr"
	"crescoflow/platform/config"
	"crescoflow/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(&config.Config{InstantlyBaseURL: srv.URL, InstantlyAPIKey: "key", InstantlyCampaignID: "camp-1"}, logger.Discard())
	require.NotNil(t, c)
	return c
}

func TestUploadLeadsFiltersAndSkipsExisting(t *testing.T) {
	var got uploadRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/lead/add", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	n, err := c.UploadLeads(context.Background(), "", []domain.Lead{
		{CompanyName: "Acme", CEOName: "Jan Peeters", CEO: domain.Person{Email: "jan@acme.be"}, Website: "https://www.acme.be"},
		{CompanyName: "Noname", CompanyContact: domain.Contact{Email: "info@noname.be"}},
		{CompanyName: "No email"},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "camp-1", got.CampaignID)
	assert.True(t, got.SkipIfExists)
	require.Len(t, got.Leads, 2)
	assert.Equal(t, "Jan", got.Leads[0].FirstName)
	assert.Equal(t, "acme.be", got.Leads[0].CustomVariables["domain"])
	assert.Equal(t, "Contact", got.Leads[1].FirstName)
}

func TestUploadWithoutEmailsMakesNoCall(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request")
	})
	n, err := c.UploadLeads(context.Background(), "x", []domain.Lead{{CompanyName: "A"}})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLeadStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("email") {
		case "yes@acme.be":
			_, _ = w.Write([]byte(`{"reply_count":2}`))
		case "no@acme.be":
			_, _ = w.Write([]byte(`{"reply_count":0}`))
		case "gone@acme.be":
			http.NotFound(w, r)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	})
	ctx := context.Background()

	state, err := c.LeadStatus(ctx, "yes@acme.be")
	require.NoError(t, err)
	assert.Equal(t, StateReplied, state)

	state, err = c.LeadStatus(ctx, "no@acme.be")
	require.NoError(t, err)
	assert.Equal(t, StateSent, state)

	state, err = c.LeadStatus(ctx, "gone@acme.be")
	require.NoError(t, err)
	assert.Equal(t, StateUnknown, state)

	_, err = c.LeadStatus(ctx, "err@acme.be")
	assert.Error(t, err)
}

type fakeSource map[string]LeadState

func (f fakeSource) LeadStatus(_ context.Context, email string) (LeadState, error) {
	if email == "broken@x.be" {
		return StateUnknown, errors.New("timeout")
	}
	return f[email], nil
}

type fakeSyncer struct {
	tags [][]string
}

func (f *fakeSyncer) Push(_ context.Context, lead domain.Lead, tags []string) (string, bool) {
	f.tags = append(f.tags, tags)
	return "ghl-" + lead.ID, true
}

type memLeads struct {
	mu    sync.Mutex
	leads []domain.Lead
}

func (m *memLeads) Leads() []domain.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Lead(nil), m.leads...)
}

func (m *memLeads) UpdateLead(_ context.Context, id string, fn func(*domain.Lead) error) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.leads {
		if m.leads[i].ID == id {
			l := m.leads[i].Clone()
			if err := fn(&l); err != nil {
				return domain.Lead{}, err
			}
			m.leads[i] = l
			return l, nil
		}
	}
	return domain.Lead{}, apperr.NotFound("lead not found")
}

func TestInboxCheckerMarksReplies(t *testing.T) {
	store := &memLeads{leads: []domain.Lead{
		{ID: "a", PipelineTag: domain.StageSent, CEO: domain.Person{Email: "yes@x.be"}},
		{ID: "b", PipelineTag: domain.StageSent, CEO: domain.Person{Email: "no@x.be"}},
		{ID: "c", PipelineTag: domain.StageCold, CEO: domain.Person{Email: "yes@x.be"}},
		{ID: "d", PipelineTag: domain.StageSent},
		{ID: "e", PipelineTag: domain.StageSent, CEO: domain.Person{Email: "broken@x.be"}},
	}}
	syncer := &fakeSyncer{}
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	checker := NewInboxChecker(fakeSource{"yes@x.be": StateReplied, "no@x.be": StateSent}, syncer, store, nil, logger.Discard())
	checker.now = func() time.Time { return now }

	res, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, InboxCheckResult{Checked: 3, Replied: 1, Errors: 1}, res)

	a := store.leads[0]
	assert.Equal(t, domain.StageReplied, a.PipelineTag)
	assert.True(t, a.ReplyReceived)
	require.NotNil(t, a.ReplyDate)
	assert.True(t, a.ReplyDate.Equal(now))
	require.Len(t, a.Interactions, 1)
	assert.Equal(t, domain.InteractionSystem, a.Interactions[0].Type)
	assert.True(t, a.GHLSynced)
	assert.Equal(t, "ghl-a", a.GHLContactID)
	assert.Equal(t, [][]string{ReplyTags}, syncer.tags)

	assert.Equal(t, domain.StageSent, store.leads[1].PipelineTag)
	assert.Equal(t, domain.StageCold, store.leads[2].PipelineTag)
}
