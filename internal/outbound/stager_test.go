package outbound

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"crescoflow/internal/leads/domain"
	"crescoflow/platform/apperr"
	"crescoflow/platform/logger"
)

type staticTemplates map[domain.Channel]Template

func (s staticTemplates) ForChannel(ch domain.Channel) (Template, bool) {
	t, ok := s[ch]
	return t, ok
}

func newTestStager(store *memStore) *Stager {
	s := NewStager(store, staticTemplates{
		domain.ChannelColdSMS:   {Body: "Hoi {{ceo_name}}"},
		domain.ChannelColdEmail: {Subject: "Voor {{company_name}}", Body: "Beste {{ceo_name}}"},
	}, logger.Discard(), 0)
	s.now = func() time.Time { return asOf }
	return s
}

func TestStagePreviewWritesNothing(t *testing.T) {
	store := &memStore{leads: smsLeads(5)}
	res, err := newTestStager(store).Stage(context.Background(), StageRequest{Channel: domain.ChannelColdSMS, Preview: true})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if len(res.Items) != 5 || !res.Preview {
		t.Fatalf("expected 5 preview items, got %+v", res)
	}
	if res.Usage.Used != 5 {
		t.Fatalf("expected projected usage 5, got %d", res.Usage.Used)
	}
	if len(store.Queue()) != 0 {
		t.Fatalf("expected queue untouched in preview")
	}
}

func TestStageCommitsAndUpdatesLeads(t *testing.T) {
	store := &memStore{leads: smsLeads(3)}
	store.leads[2].ConfidenceScore = 99

	res, err := newTestStager(store).Stage(context.Background(), StageRequest{Channel: domain.ChannelColdSMS})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if len(store.Queue()) != 3 || res.Usage.Used != 3 {
		t.Fatalf("expected 3 queued, got %d (usage %d)", len(store.Queue()), res.Usage.Used)
	}
	if res.Items[0].LeadID != "lead-002" {
		t.Fatalf("expected highest confidence first, got %s", res.Items[0].LeadID)
	}

	lead, _ := store.Lead("lead-000")
	if lead.OutboundChannel != domain.ChannelColdSMS || lead.ScheduledDate == nil || DayOf(*lead.ScheduledDate) != "2025-06-02" {
		t.Fatalf("expected lead scheduled, got %+v", lead)
	}
	if lead.PipelineTag != domain.StageCold {
		t.Fatalf("expected stage untouched until delivery")
	}
}

func TestStageSelectedLeadsWithEmailSubject(t *testing.T) {
	leads := smsLeads(3)
	for i := range leads {
		leads[i].CEO.Email = "ceo@acme.be"
	}
	store := &memStore{leads: leads}

	res, err := newTestStager(store).Stage(context.Background(), StageRequest{
		Channel: domain.ChannelColdEmail,
		LeadIDs: []string{"lead-001"},
	})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Subject != "Voor Company 1" || res.Items[0].Message != "Beste Jan" {
		t.Fatalf("unexpected items %+v", res.Items)
	}
}

func TestStageRejectsUnqueuedChannelAndMissingTemplate(t *testing.T) {
	s := newTestStager(&memStore{})
	if _, err := s.Stage(context.Background(), StageRequest{Channel: domain.ChannelSalesCall}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := s.Stage(context.Background(), StageRequest{Channel: domain.ChannelColdCall}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected missing template, got %v", err)
	}
}

func TestQueueInvariantsHoldAcrossOperations(t *testing.T) {
	store := &memStore{leads: smsLeads(2*SMSDailyQuota + 20)}
	stager := newTestStager(store)
	sender := &recordingSender{fail: map[string]error{}}
	for i := 0; i < 5; i++ {
		sender.fail[fmt.Sprintf("lead-%03d", i)] = errors.New("gateway down")
	}
	sender.fail["lead-005"] = fmt.Errorf("landline: %w", ErrNotContactable)
	d, _ := newTestDispatcher(store, sender)
	ctx := context.Background()

	steps := []struct {
		name string
		run  func() error
	}{
		{"stage", func() error {
			_, err := stager.Stage(ctx, StageRequest{Channel: domain.ChannelColdSMS})
			return err
		}},
		{"dispatch", func() error {
			_, err := d.Process(ctx, domain.ChannelColdSMS)
			return err
		}},
		{"retry", func() error {
			_, err := d.RetryFailed(ctx, domain.ChannelColdSMS)
			return err
		}},
		{"skip", func() error {
			for _, it := range store.Queue() {
				if it.Status == StatusPending && it.ScheduledDate > "2025-06-02" {
					_, err := d.Skip(ctx, it.ID)
					return err
				}
			}
			return nil
		}},
		{"stage again", func() error {
			store.mu.Lock()
			for i := 0; i < 10; i++ {
				store.leads = append(store.leads, domain.Lead{
					ID: fmt.Sprintf("extra-%d", i), PipelineTag: domain.StageCold, ConfidenceScore: 90,
					CEO: domain.Person{Phone: fmt.Sprintf("+3248000%04d", i)},
				})
			}
			store.mu.Unlock()
			_, err := stager.Stage(ctx, StageRequest{Channel: domain.ChannelColdSMS})
			return err
		}},
		{"dispatch again", func() error {
			_, err := d.Process(ctx, domain.ChannelColdSMS)
			return err
		}},
		{"retry again", func() error {
			_, err := d.RetryFailed(ctx, domain.ChannelColdSMS)
			return err
		}},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		checkQueueInvariants(t, step.name, store.Queue())
	}
}

func checkQueueInvariants(t *testing.T, step string, queue []QueueItem) {
	t.Helper()
	type slot struct {
		channel domain.Channel
		key     string
	}
	committed := map[slot]int{}
	items := map[slot]int{}
	for _, it := range queue {
		items[slot{it.Channel, it.LeadID}]++
		if it.Status.Committed() {
			committed[slot{it.Channel, it.ScheduledDate}]++
		}
		if it.Status == StatusSending {
			t.Fatalf("after %s: item %s left sending", step, it.ID)
		}
	}
	for s, n := range committed {
		if n > Quota(s.channel) {
			t.Fatalf("after %s: %s on %s holds %d items over quota %d", step, s.channel, s.key, n, Quota(s.channel))
		}
	}
	for s, n := range items {
		if n > 1 {
			t.Fatalf("after %s: lead %s has %d %s items", step, s.key, n, s.channel)
		}
	}
}
