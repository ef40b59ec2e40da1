// Package notification forwards domain events to the operator dashboard.
// It subscribes to the bus so the emitting modules stay unaware of the
// live stream.
package notification

import (
	"context"

	"crescoflow/internal/events"
	apphttp "crescoflow/internal/http"
	"crescoflow/internal/notification/sse"
	"crescoflow/platform/logger"
)

// Module owns the event stream.
type Module struct {
	hub *sse.Service
	log *logger.Logger
}

func New(log *logger.Logger) *Module {
	log = log.WithComponent("notification")
	return &Module{hub: sse.New(log), log: log}
}

// RegisterHandlers subscribes the stream to every pipeline event.
func (m *Module) RegisterHandlers(bus events.Bus) {
	for _, name := range []string{
		events.NameLeadStageChanged,
		events.NameLeadEnriched,
		events.NameLeadReplied,
		events.NameQueueItemSent,
		events.NameQueueItemFailed,
	} {
		bus.Subscribe(name, events.HandlerFunc(m.forward))
	}
}

func (m *Module) forward(_ context.Context, event events.Event) error {
	out, ok := toStreamEvent(event)
	if !ok {
		return nil
	}
	m.hub.Broadcast(out)
	return nil
}

func toStreamEvent(event events.Event) (sse.Event, bool) {
	switch e := event.(type) {
	case events.LeadStageChanged:
		return sse.Event{Type: sse.EventLeadStageChanged, LeadID: e.LeadID, Data: e}, true
	case events.LeadEnriched:
		return sse.Event{Type: sse.EventLeadEnriched, LeadID: e.LeadID, Data: e}, true
	case events.LeadReplied:
		return sse.Event{Type: sse.EventLeadReplied, LeadID: e.LeadID, Data: e}, true
	case events.QueueItemSent:
		return sse.Event{Type: sse.EventQueueItemSent, LeadID: e.LeadID, Data: e}, true
	case events.QueueItemFailed:
		return sse.Event{Type: sse.EventQueueItemFailed, LeadID: e.LeadID, Data: e}, true
	}
	return sse.Event{}, false
}

func (m *Module) Name() string {
	return "notification"
}

// RegisterRoutes mounts the stream. Browsers pass the access token as the
// token query parameter since EventSource cannot set headers.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/events/stream", m.hub.Handler())
}

// Hub exposes the stream for tests and shutdown.
func (m *Module) Hub() *sse.Service {
	return m.hub
}

// Close ends all open streams.
func (m *Module) Close() {
	m.hub.Close()
}

var _ apphttp.Module = (*Module)(nil)
