package crmsync

import (
	"context"
	"errors"
	"testing"

	"crescoflow/internal/events"
	"crescoflow/internal/leads/domain"
	"crescoflow/internal/leadstore"
	"crescoflow/platform/apperr"
	"crescoflow/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePusher struct {
	calls int
	fail  bool
}

func (p *fakePusher) Push(_ context.Context, lead domain.Lead, _ []string) (string, bool) {
	p.calls++
	if p.fail {
		return "", false
	}
	if lead.GHLContactID != "" {
		return lead.GHLContactID, true
	}
	return "contact-" + lead.ID, true
}

type fakeQueue struct {
	ids []string
	err error
}

func (q *fakeQueue) EnqueueGHLSync(_ context.Context, id string) error {
	q.ids = append(q.ids, id)
	return q.err
}

func newStore(t *testing.T) *leadstore.State {
	t.Helper()
	s := leadstore.New(leadstore.NewMemoryRepository(leadstore.Snapshot{Leads: []domain.Lead{
		{ID: "a", CompanyName: "Acme"},
		{ID: "b", CompanyName: "Bakkerij", GHLContactID: "existing"},
	}}), logger.Discard())
	require.NoError(t, s.Init(context.Background()))
	return s
}

func TestSyncLeadRecordsContact(t *testing.T) {
	store := newStore(t)
	svc := New(&fakePusher{}, store, nil, logger.Discard())

	require.NoError(t, svc.SyncLead(context.Background(), "a"))
	a, _ := store.Lead("a")
	assert.True(t, a.GHLSynced)
	assert.Equal(t, "contact-a", a.GHLContactID)

	require.NoError(t, svc.SyncLead(context.Background(), "b"))
	b, _ := store.Lead("b")
	assert.Equal(t, "existing", b.GHLContactID)

	assert.True(t, apperr.Is(svc.SyncLead(context.Background(), "missing"), apperr.KindNotFound))
}

func TestSyncLeadFailureLeavesLeadUntouched(t *testing.T) {
	store := newStore(t)
	svc := New(&fakePusher{fail: true}, store, nil, logger.Discard())

	assert.Error(t, svc.SyncLead(context.Background(), "a"))
	a, _ := store.Lead("a")
	assert.False(t, a.GHLSynced)

	_, err := svc.Request(context.Background(), "a")
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
}

func TestRequestPrefersQueue(t *testing.T) {
	store := newStore(t)
	pusher := &fakePusher{}
	q := &fakeQueue{}
	svc := New(pusher, store, q, logger.Discard())

	res, err := svc.Request(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.Equal(t, []string{"a"}, q.ids)
	assert.Zero(t, pusher.calls)

	q.err = errors.New("redis down")
	_, err = svc.Request(context.Background(), "a")
	assert.Error(t, err)
}

func TestRequestInlineAndDisabled(t *testing.T) {
	store := newStore(t)
	svc := New(&fakePusher{}, store, nil, logger.Discard())
	res, err := svc.Request(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, res.Queued)
	assert.Equal(t, "contact-a", res.ContactID)

	disabled := New(nil, store, nil, logger.Discard())
	assert.False(t, disabled.Enabled())
	_, err = disabled.Request(context.Background(), "a")
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
	assert.NoError(t, disabled.HandleStageChanged(context.Background(), events.LeadStageChanged{LeadID: "a"}))
}

func TestHandleStageChangedSyncs(t *testing.T) {
	store := newStore(t)
	pusher := &fakePusher{}
	svc := New(pusher, store, nil, logger.Discard())

	require.NoError(t, svc.HandleStageChanged(context.Background(), events.LeadStageChanged{LeadID: "a", NewStage: "hot"}))
	assert.Equal(t, 1, pusher.calls)
	require.NoError(t, svc.HandleStageChanged(context.Background(), events.LeadEnriched{LeadID: "a"}))
	assert.Equal(t, 1, pusher.calls)
	require.NoError(t, svc.HandleStageChanged(context.Background(), events.LeadStageChanged{LeadID: "gone"}))
}
