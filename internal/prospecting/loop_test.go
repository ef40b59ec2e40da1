package prospecting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"crescoflow/internal/leads/domain"
	"crescoflow/platform/logger"
)

type fakeDiscoverer struct {
	mu      sync.Mutex
	calls   []DiscoveryTask
	results map[string][]domain.Lead
	err     map[string]error
}

func (f *fakeDiscoverer) Discover(_ context.Context, sector, location string) ([]domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, DiscoveryTask{Sector: sector, Location: location})
	if err := f.err[sector]; err != nil {
		return nil, err
	}
	return f.results[sector], nil
}

type fakeEnricher struct {
	mu    sync.Mutex
	calls []string
	panic map[string]bool
	onRun func(name string)
}

func (f *fakeEnricher) Enrich(_ context.Context, partial domain.Lead) domain.Lead {
	f.mu.Lock()
	f.calls = append(f.calls, partial.CompanyName)
	hook := f.onRun
	f.mu.Unlock()
	if hook != nil {
		hook(partial.CompanyName)
	}
	if f.panic[partial.CompanyName] {
		panic("model exploded")
	}
	partial.ConfidenceScore = 70
	return partial
}

type fakeStore struct {
	mu     sync.Mutex
	leads  map[string]domain.Lead
	failOn string
}

func newFakeStore(names ...string) *fakeStore {
	s := &fakeStore{leads: map[string]domain.Lead{}}
	for _, n := range names {
		s.leads[domain.CompanyKey(n)] = domain.Lead{ID: n, CompanyName: n}
	}
	return s
}

func (s *fakeStore) HasCompany(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.leads[domain.CompanyKey(name)]
	return ok
}

func (s *fakeStore) UpsertByCompany(_ context.Context, lead domain.Lead) (domain.Lead, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lead.CompanyName == s.failOn {
		return domain.Lead{}, false, errors.New("disk full")
	}
	key := domain.CompanyKey(lead.CompanyName)
	_, exists := s.leads[key]
	lead.ID = lead.CompanyName
	s.leads[key] = lead
	return lead, !exists, nil
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestLoop(d Discoverer, e Enricher, s Store, rec *sleepRecorder) *Loop {
	return NewLoop(d, e, s, nil, logger.Discard(),
		WithCooldowns(10*time.Second, 12*time.Second),
		WithSleeper(rec.sleep))
}

func partials(names ...string) []domain.Lead {
	out := make([]domain.Lead, len(names))
	for i, n := range names {
		out[i] = domain.Lead{CompanyName: n}
	}
	return out
}

func TestDiscoveryDrainsBeforeEnrichment(t *testing.T) {
	disc := &fakeDiscoverer{results: map[string][]domain.Lead{
		"bakery":  partials("Bakker Jan", "Existing BV", "bakker jan"),
		"plumber": partials("Loodgieter Piet"),
	}}
	enr := &fakeEnricher{}
	store := newFakeStore("existing bv")
	rec := &sleepRecorder{}
	loop := newTestLoop(disc, enr, store, rec)

	loop.PushEnrichment(partials("Queued First")...)
	loop.PushDiscovery(DiscoveryTask{Sector: "bakery", Location: "Gent"}, DiscoveryTask{Sector: "plumber", Location: "Gent"})

	if err := loop.drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if len(disc.calls) != 2 {
		t.Fatalf("expected 2 discovery calls, got %d", len(disc.calls))
	}
	want := []string{"Queued First", "Bakker Jan", "Loodgieter Piet"}
	if fmt.Sprint(enr.calls) != fmt.Sprint(want) {
		t.Fatalf("expected enrichment order %v, got %v", want, enr.calls)
	}
	wantWaits := []time.Duration{10 * time.Second, 10 * time.Second, 12 * time.Second, 12 * time.Second, 12 * time.Second}
	if fmt.Sprint(rec.waits) != fmt.Sprint(wantWaits) {
		t.Fatalf("expected cooldowns %v, got %v", wantWaits, rec.waits)
	}

	st := loop.Status()
	if st.Phase != PhaseStandby || st.DiscoveryQueue != 0 || st.EnrichmentQueue != 0 || st.Processed != 5 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestFailingItemIsDroppedAndLoopContinues(t *testing.T) {
	enr := &fakeEnricher{panic: map[string]bool{"C": true}}
	store := newFakeStore()
	store.failOn = "D"
	rec := &sleepRecorder{}
	loop := newTestLoop(&fakeDiscoverer{}, enr, store, rec)

	loop.PushEnrichment(partials("A", "B", "C", "D", "E")...)
	if err := loop.drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	for _, name := range []string{"A", "B", "E"} {
		if !store.HasCompany(name) {
			t.Fatalf("expected %s stored", name)
		}
	}
	if store.HasCompany("C") || store.HasCompany("D") {
		t.Fatalf("expected failed items not stored")
	}
	if len(rec.waits) != 5 {
		t.Fatalf("expected cooldown after every item, got %d", len(rec.waits))
	}
	if st := loop.Status(); st.Processed != 3 || st.Failed != 2 {
		t.Fatalf("unexpected counts %+v", st)
	}
}

func TestDiscoveryErrorDropsTask(t *testing.T) {
	disc := &fakeDiscoverer{
		err:     map[string]error{"bakery": errors.New("quota exceeded")},
		results: map[string][]domain.Lead{"plumber": partials("Piet")},
	}
	enr := &fakeEnricher{}
	loop := newTestLoop(disc, enr, newFakeStore(), &sleepRecorder{})

	loop.PushDiscovery(DiscoveryTask{"bakery", "Gent"}, DiscoveryTask{"plumber", "Gent"})
	_ = loop.drain(context.Background())

	if len(enr.calls) != 1 || enr.calls[0] != "Piet" {
		t.Fatalf("expected only plumber results enriched, got %v", enr.calls)
	}
	if st := loop.Status(); st.Failed != 1 {
		t.Fatalf("expected one failure, got %+v", st)
	}
}

func TestStopAppliesInFlightItemThenHalts(t *testing.T) {
	enr := &fakeEnricher{}
	store := newFakeStore()
	loop := newTestLoop(&fakeDiscoverer{}, enr, store, &sleepRecorder{})
	enr.onRun = func(name string) {
		if name == "A" {
			loop.Stop()
		}
	}

	loop.PushEnrichment(partials("A", "B")...)
	_ = loop.drain(context.Background())

	if !store.HasCompany("A") {
		t.Fatalf("expected in-flight result applied")
	}
	if store.HasCompany("B") {
		t.Fatalf("expected loop halted before next item")
	}
	st := loop.Status()
	if st.Phase != PhaseStopped || st.EnrichmentQueue != 1 {
		t.Fatalf("unexpected status %+v", st)
	}

	loop.Resume()
	if st := loop.Status(); st.Phase != PhaseStandby {
		t.Fatalf("expected standby after resume, got %s", st.Phase)
	}
}

func TestPushRejectsInvalidInput(t *testing.T) {
	loop := newTestLoop(&fakeDiscoverer{}, &fakeEnricher{}, newFakeStore(), &sleepRecorder{})
	if n := loop.PushEnrichment(domain.Lead{}, domain.Lead{CompanyName: "ok"}); n != 1 {
		t.Fatalf("expected 1 accepted, got %d", n)
	}
	if n := loop.PushDiscovery(DiscoveryTask{Sector: "x"}); n != 0 {
		t.Fatalf("expected incomplete task rejected")
	}
}

func TestRunRearmsOnPush(t *testing.T) {
	enr := &fakeEnricher{}
	store := newFakeStore()
	loop := newTestLoop(&fakeDiscoverer{}, enr, store, &sleepRecorder{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = loop.Run(ctx)
		close(done)
	}()

	loop.PushEnrichment(partials("First")...)
	waitFor(t, func() bool { return store.HasCompany("First") })
	waitFor(t, func() bool { return loop.Status().Phase == PhaseStandby })

	loop.PushEnrichment(partials("Second")...)
	waitFor(t, func() bool { return store.HasCompany("Second") })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not exit on cancel")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}
