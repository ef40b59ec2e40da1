package notification

import (
	"context"
	"testing"

	"crescoflow/internal/events"
	"crescoflow/internal/notification/sse"
	"crescoflow/platform/logger"

	"github.com/google/uuid"
)

func TestModuleForwardsPipelineEvents(t *testing.T) {
	bus := events.NewInMemoryBus(logger.Discard())
	m := New(logger.Discard())
	m.RegisterHandlers(bus)
	defer m.Close()

	stream, cancel := m.Hub().Subscribe(uuid.New())
	defer cancel()

	ctx := context.Background()
	bus.Publish(ctx, events.LeadStageChanged{BaseEvent: events.NewBaseEvent(), LeadID: "a", OldStage: "sent", NewStage: "replied"})
	bus.Publish(ctx, events.QueueItemFailed{BaseEvent: events.NewBaseEvent(), LeadID: "b", Channel: "coldsms", Error: "gateway down"})
	bus.Wait()

	got := map[string]string{}
	for range 2 {
		e := <-stream
		got[e.Type] = e.LeadID
	}
	if got[sse.EventLeadStageChanged] != "a" || got[sse.EventQueueItemFailed] != "b" {
		t.Fatalf("unexpected stream events: %v", got)
	}
}

func TestToStreamEventIgnoresUnknownEvents(t *testing.T) {
	if _, ok := toStreamEvent(otherEvent{}); ok {
		t.Fatalf("expected unknown event to be ignored")
	}
}

type otherEvent struct{ events.BaseEvent }

func (otherEvent) EventName() string { return "other" }
