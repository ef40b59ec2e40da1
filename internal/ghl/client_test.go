package ghl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"crescoflow/internal/leads/domain"
	"crescoflow/platform/config"
	"crescoflow/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(&config.Config{GHLBaseURL: srv.URL, GHLAPIKey: "pit-test", GHLLocationID: "loc-1"}, logger.Discard())
	require.NotNil(t, c)
	return c
}

func TestNewClientDisabledWithoutKey(t *testing.T) {
	assert.Nil(t, NewClient(&config.Config{}, logger.Discard()))
}

func TestPushCreatesContactWithLocation(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/contacts/", r.URL.Path)
		assert.Equal(t, "Bearer pit-test", r.Header.Get("Authorization"))
		assert.Equal(t, apiVersion, r.Header.Get("Version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"contact":{"id":"c-42"}}`))
	})

	lead := domain.Lead{ID: "l1", CompanyName: "Acme", CEOName: "Jan de Vries", ConfidenceScore: 85, PipelineTag: domain.StageCold}
	id, ok := c.Push(context.Background(), lead, []string{"Interesse"})

	require.True(t, ok)
	assert.Equal(t, "c-42", id)
	assert.Equal(t, "loc-1", got["locationId"])
	assert.Equal(t, "Jan", got["firstName"])
	assert.Equal(t, "de Vries", got["lastName"])
	assert.Equal(t, []any{"Interesse", "BLIEC_Score_85", "Status_cold", "ENTERPRISE-CLOUD-SYNCED"}, got["tags"])
	assert.Empty(t, lead.GHLContactID, "lead must not be mutated")
}

func TestPushUpdatesExistingContactWithoutLocation(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/contacts/c-7", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"succeded":true}`))
	})

	id, ok := c.Push(context.Background(), domain.Lead{CompanyName: "Acme", GHLContactID: "c-7"}, nil)

	require.True(t, ok)
	assert.Equal(t, "c-7", id)
	assert.NotContains(t, got, "locationId")
	assert.Equal(t, "Beslisser", got["firstName"])
	assert.Equal(t, "Maker", got["lastName"])
}

func TestPushFailureReturnsFalse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnprocessableEntity)
	})
	id, ok := c.Push(context.Background(), domain.Lead{CompanyName: "Acme"}, nil)
	assert.False(t, ok)
	assert.Empty(t, id)
}

func TestBuildTagsDedupes(t *testing.T) {
	lead := domain.Lead{ConfidenceScore: 50, PipelineTag: domain.StageReplied}
	tags := BuildTags(lead, []string{"Status_replied", "x", "x", " "})
	assert.Equal(t, []string{"Status_replied", "x", "BLIEC_Score_50", "ENTERPRISE-CLOUD-SYNCED"}, tags)
}

func TestBuildContactCustomFields(t *testing.T) {
	body := BuildContact(domain.Lead{
		PainPoints:    []string{"trage site", "geen SEO"},
		GoogleReviews: &domain.Reviews{Score: 4.5, Count: 12},
		WebsiteScore:  3,
	}, nil)

	fields := map[string]string{}
	for _, f := range body.CustomFields {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, "trage site | geen SEO", fields["pijnpunten"])
	assert.Equal(t, "4.5", fields["google_review_score"])
	assert.Equal(t, "12", fields["google_review_count"])
	assert.Equal(t, "3", fields["bliec_website_score"])
	assert.Equal(t, "[]", fields["history_log"])
}

func TestFetchContactsMapsLeads(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "loc-1", r.URL.Query().Get("locationId"))
		_, _ = w.Write([]byte(`{"contacts":[
			{"id":"c1","firstName":"An","lastName":"Peeters","companyName":"Bakkerij An","email":"an@bakkerij.be",
			 "customFields":[{"key":"pijnpunten","value":"a | b"},{"id":"google_review_score","value":"4.2"},{"key":"google_review_count","value":9}]},
			{"id":"c2"}
		]}`))
	})

	leads, err := c.FetchContacts(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, 2)

	assert.Equal(t, "Bakkerij An", leads[0].CompanyName)
	assert.Equal(t, "c1", leads[0].GHLContactID)
	assert.True(t, leads[0].GHLSynced)
	assert.Equal(t, "ghl", leads[0].Source)
	assert.Equal(t, []string{"a", "b"}, leads[0].PainPoints)
	require.NotNil(t, leads[0].GoogleReviews)
	assert.Equal(t, 9, leads[0].GoogleReviews.Count)
	assert.Equal(t, "Bedrijfsnaam Onbekend", leads[1].CompanyName)
}

func TestSendSMS(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conversations/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, c.SendSMS(context.Background(), "c1", "Hoi"))
	assert.Equal(t, map[string]string{"contactId": "c1", "type": "SMS", "message": "Hoi"}, got)
}
