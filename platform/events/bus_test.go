package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"crescoflow/platform/logger"
)

type pinged struct{ BaseEvent }

func (pinged) EventName() string { return "test.pinged" }

func TestPublishRunsEverySubscriber(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	var calls atomic.Int32
	count := HandlerFunc(func(context.Context, Event) error {
		calls.Add(1)
		return nil
	})
	bus.Subscribe("test.pinged", count)
	bus.Subscribe("test.pinged", count)
	bus.Subscribe("test.other", count)

	bus.Publish(context.Background(), pinged{NewBaseEvent()})
	bus.Wait()

	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 handler calls, got %d", got)
	}
}

func TestPublishSyncJoinsErrors(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	boom := errors.New("boom")
	bus.Subscribe("test.pinged", HandlerFunc(func(context.Context, Event) error { return boom }))
	bus.Subscribe("test.pinged", HandlerFunc(func(context.Context, Event) error { return nil }))

	if err := bus.PublishSync(context.Background(), pinged{NewBaseEvent()}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestNewBaseEventIsUnique(t *testing.T) {
	a, b := NewBaseEvent(), NewBaseEvent()
	if a.ID == "" || a.ID == b.ID || a.OccurredAt().IsZero() {
		t.Fatalf("unexpected base events %+v %+v", a, b)
	}
}
