// Package prospecting runs the sequential discovery and enrichment worker.
package prospecting

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"crescoflow/internal/events"
	"crescoflow/internal/leads/domain"
	"crescoflow/platform/logger"
	"crescoflow/platform/metrics"
)

const (
	DefaultDiscoveryCooldown  = 10 * time.Second
	DefaultEnrichmentCooldown = 12 * time.Second
)

// Phase is the externally visible state of the loop.
type Phase string

const (
	PhaseStandby     Phase = "standby"
	PhaseDiscovering Phase = "discovering"
	PhaseEnriching   Phase = "enriching"
	PhaseStopped     Phase = "stopped"
)

// DiscoveryTask asks for companies of a sector in a location.
type DiscoveryTask struct {
	Sector   string `json:"sector"`
	Location string `json:"location"`
}

func (t DiscoveryTask) label() string {
	return t.Sector + " @ " + t.Location
}

// Discoverer finds candidate companies.
type Discoverer interface {
	Discover(ctx context.Context, sector, location string) ([]domain.Lead, error)
}

// Enricher completes a partial lead. It returns the input with defaults
// when research fails.
type Enricher interface {
	Enrich(ctx context.Context, partial domain.Lead) domain.Lead
}

// Store is the part of the lead store the loop uses.
type Store interface {
	HasCompany(name string) bool
	UpsertByCompany(ctx context.Context, lead domain.Lead) (domain.Lead, bool, error)
}

// Status is a snapshot of the loop for the dashboard.
type Status struct {
	Phase           Phase  `json:"phase"`
	Current         string `json:"current,omitempty"`
	DiscoveryQueue  int    `json:"discoveryQueue"`
	EnrichmentQueue int    `json:"enrichmentQueue"`
	Processed       int    `json:"processed"`
	Failed          int    `json:"failed"`
}

// Loop drains the discovery queue, then the enrichment queue, one external
// call at a time with a fixed cooldown after every item.
type Loop struct {
	mu         sync.Mutex
	discovery  []DiscoveryTask
	enrichment []domain.Lead
	phase      Phase
	stopped    bool
	current    string
	processed  int
	failed     int
	wake       chan struct{}

	discoverer Discoverer
	enricher   Enricher
	store      Store
	bus        events.Bus
	log        *logger.Logger

	discoveryCooldown  time.Duration
	enrichmentCooldown time.Duration
	sleep              func(ctx context.Context, d time.Duration) error
}

// Option customizes a Loop.
type Option func(*Loop)

// WithCooldowns overrides the pause after discovery and enrichment items.
func WithCooldowns(discovery, enrichment time.Duration) Option {
	return func(l *Loop) {
		l.discoveryCooldown = discovery
		l.enrichmentCooldown = enrichment
	}
}

// WithSleeper replaces the cooldown wait, for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Loop) { l.sleep = sleep }
}

func NewLoop(discoverer Discoverer, enricher Enricher, store Store, bus events.Bus, log *logger.Logger, opts ...Option) *Loop {
	l := &Loop{
		phase:              PhaseStandby,
		wake:               make(chan struct{}, 1),
		discoverer:         discoverer,
		enricher:           enricher,
		store:              store,
		bus:                bus,
		log:                log.WithComponent("prospecting"),
		discoveryCooldown:  DefaultDiscoveryCooldown,
		enrichmentCooldown: DefaultEnrichmentCooldown,
		sleep:              sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run blocks until ctx is done, draining the queues every time work is
// pushed.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("prospecting loop started")
	for {
		select {
		case <-ctx.Done():
			l.log.Info("prospecting loop stopped")
			return nil
		case <-l.wake:
			if err := l.drain(ctx); err != nil {
				return nil
			}
		}
	}
}

// PushDiscovery queues discovery tasks and re-arms the loop.
func (l *Loop) PushDiscovery(tasks ...DiscoveryTask) int {
	l.mu.Lock()
	n := 0
	for _, t := range tasks {
		t.Sector, t.Location = strings.TrimSpace(t.Sector), strings.TrimSpace(t.Location)
		if t.Sector == "" || t.Location == "" {
			continue
		}
		l.discovery = append(l.discovery, t)
		n++
	}
	l.publishDepthLocked()
	l.mu.Unlock()

	if n > 0 {
		l.signal()
	}
	return n
}

// PushEnrichment validates and queues partial leads and re-arms the loop.
// Leads without a company name are rejected.
func (l *Loop) PushEnrichment(leads ...domain.Lead) int {
	l.mu.Lock()
	n := 0
	for _, lead := range leads {
		if domain.Validate(lead) != nil {
			continue
		}
		l.enrichment = append(l.enrichment, lead)
		n++
	}
	l.publishDepthLocked()
	l.mu.Unlock()

	if n > 0 {
		l.signal()
	}
	return n
}

// Stop halts the loop after the item in flight. Queued work is kept.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	if l.current == "" {
		l.phase = PhaseStopped
	}
	l.log.Info("prospecting loop stop requested")
}

// Resume clears a stop. The loop starts again on the next push.
func (l *Loop) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.stopped {
		return
	}
	l.stopped = false
	if l.current == "" {
		l.phase = PhaseStandby
	}
	l.log.Info("prospecting loop resumed")
}

func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		Phase:           l.phase,
		Current:         l.current,
		DiscoveryQueue:  len(l.discovery),
		EnrichmentQueue: len(l.enrichment),
		Processed:       l.processed,
		Failed:          l.failed,
	}
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// drain processes items until both queues are empty, a stop is requested or
// ctx ends. The returned error is ctx's.
func (l *Loop) drain(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.stopped {
			l.phase = PhaseStopped
			l.current = ""
			l.mu.Unlock()
			return nil
		}

		var (
			task      *DiscoveryTask
			partial   *domain.Lead
			cooldown  time.Duration
			queueName string
		)
		switch {
		case len(l.discovery) > 0:
			t := l.discovery[0]
			l.discovery = l.discovery[1:]
			task, cooldown, queueName = &t, l.discoveryCooldown, "discovery"
			l.phase, l.current = PhaseDiscovering, t.label()
		case len(l.enrichment) > 0:
			p := l.enrichment[0]
			l.enrichment = l.enrichment[1:]
			partial, cooldown, queueName = &p, l.enrichmentCooldown, "enrichment"
			l.phase, l.current = PhaseEnriching, p.CompanyName
		default:
			l.phase, l.current = PhaseStandby, ""
			l.mu.Unlock()
			return nil
		}
		l.publishDepthLocked()
		l.mu.Unlock()

		var err error
		if task != nil {
			err = l.discover(ctx, *task)
		} else {
			err = l.enrich(ctx, *partial)
		}
		l.finish(queueName, err)

		if err := l.sleep(ctx, cooldown); err != nil {
			return err
		}
	}
}

func (l *Loop) finish(queue string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = ""
	if err != nil {
		l.failed++
		l.log.Warn("prospecting item dropped", "queue", queue, "error", err)
		metrics.RecordWorkerItem(queue, "failed")
		return
	}
	l.processed++
	metrics.RecordWorkerItem(queue, "ok")
}

func (l *Loop) discover(ctx context.Context, task DiscoveryTask) (err error) {
	defer recoverInto(&err)

	found, err := l.discoverer.Discover(ctx, task.Sector, task.Location)
	if err != nil {
		return fmt.Errorf("discover %s: %w", task.label(), err)
	}

	seen := make(map[string]struct{}, len(found))
	var fresh []domain.Lead
	for _, lead := range found {
		if domain.Validate(lead) != nil {
			continue
		}
		key := domain.CompanyKey(lead.CompanyName)
		if _, dup := seen[key]; dup || l.store.HasCompany(lead.CompanyName) {
			continue
		}
		seen[key] = struct{}{}
		if lead.Sector == "" {
			lead.Sector = task.Sector
		}
		fresh = append(fresh, lead)
	}

	l.mu.Lock()
	l.enrichment = append(l.enrichment, fresh...)
	l.publishDepthLocked()
	l.mu.Unlock()

	l.log.Info("discovery finished", "task", task.label(), "found", len(found), "queued", len(fresh))
	return nil
}

func (l *Loop) enrich(ctx context.Context, partial domain.Lead) (err error) {
	defer recoverInto(&err)

	enriched := l.enricher.Enrich(ctx, partial)
	if enriched.CompanyName == "" {
		enriched.CompanyName = partial.CompanyName
	}
	stored, created, err := l.store.UpsertByCompany(ctx, enriched)
	if err != nil {
		return fmt.Errorf("store %s: %w", partial.CompanyName, err)
	}

	if l.bus != nil {
		l.bus.Publish(ctx, events.LeadEnriched{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      stored.ID,
			CompanyName: stored.CompanyName,
			Created:     created,
		})
	}
	l.log.Info("lead enriched", "lead", stored.ID, "company", stored.CompanyName, "created", created)
	return nil
}

func (l *Loop) publishDepthLocked() {
	metrics.SetWorkerQueueDepth("discovery", len(l.discovery))
	metrics.SetWorkerQueueDepth("enrichment", len(l.enrichment))
}

// recoverInto turns a collaborator panic into an error so one bad item
// cannot end the loop.
func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v", r)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
