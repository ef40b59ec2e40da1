package maintenance

import (
	"context"
	"testing"
	"time"

	"crescoflow/internal/events"
	"crescoflow/internal/leads/domain"
	"crescoflow/internal/leadstore"
	"crescoflow/platform/logger"
)

type captureBus struct{ got []events.LeadStageChanged }

func (b *captureBus) Publish(_ context.Context, e events.Event) {
	b.got = append(b.got, e.(events.LeadStageChanged))
}
func (b *captureBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}
func (b *captureBus) Subscribe(string, events.Handler) {}

func TestSweepAppliesTransitions(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	past := now.Add(-2 * time.Hour)
	old := now.Add(-40 * 24 * time.Hour)

	store := leadstore.New(leadstore.NewMemoryRepository(leadstore.Snapshot{Leads: []domain.Lead{
		{ID: "booked", CompanyName: "A", PipelineTag: domain.StageAppointmentBooked, ScheduledDate: &past, ScrapedAt: old},
		{ID: "dormant", CompanyName: "B", PipelineTag: domain.StageCold, ScrapedAt: old},
		{ID: "fresh", CompanyName: "C", PipelineTag: domain.StageCold, ScrapedAt: now},
		{ID: "archived", CompanyName: "D", PipelineTag: domain.StageCold, ScrapedAt: old, Archived: true},
	}}), logger.Discard())
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	bus := &captureBus{}
	sw := NewSweeper(store, bus, logger.Discard())
	sw.now = func() time.Time { return now }

	n, err := sw.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 changes, got %d", n)
	}

	want := map[string]domain.Stage{
		"booked":   domain.StageNoShow,
		"dormant":  domain.StageReactivation,
		"fresh":    domain.StageCold,
		"archived": domain.StageCold,
	}
	for id, stage := range want {
		if l, _ := store.Lead(id); l.PipelineTag != stage {
			t.Fatalf("%s: expected %s, got %s", id, stage, l.PipelineTag)
		}
	}
	if len(bus.got) != 2 || bus.got[0].Reason == "" {
		t.Fatalf("expected two events with a rule, got %+v", bus.got)
	}

	// booked is now no_show and dormant, but a lead moves at most once per pass.
	n, err = sw.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected the no-show to move on, got %d", n)
	}
	if l, _ := store.Lead("booked"); l.PipelineTag != domain.StageReactivation {
		t.Fatalf("expected reactivation, got %s", l.PipelineTag)
	}
}

func TestSweepHonoursCancelledContext(t *testing.T) {
	sw := NewSweeper(nil, nil, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sw.Sweep(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}
