// Package sse streams pipeline events to connected dashboards.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"crescoflow/platform/httpkit"
	"crescoflow/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Event types pushed to the dashboard.
const (
	EventLeadStageChanged = "lead_stage_changed"
	EventLeadEnriched     = "lead_enriched"
	EventLeadReplied      = "lead_replied"
	EventQueueItemSent    = "queue_item_sent"
	EventQueueItemFailed  = "queue_item_failed"
)

const (
	bufferSize        = 32
	keepAliveInterval = 25 * time.Second
)

// Event is one SSE message.
type Event struct {
	Type   string `json:"type"`
	LeadID string `json:"leadId,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type client struct {
	operator uuid.UUID
	events   chan Event
}

// Service fans events out to every open stream.
type Service struct {
	mu        sync.RWMutex
	clients   map[uuid.UUID]*client
	log       *logger.Logger
	keepAlive time.Duration
}

func New(log *logger.Logger) *Service {
	return &Service{
		clients:   make(map[uuid.UUID]*client),
		log:       log,
		keepAlive: keepAliveInterval,
	}
}

// Subscribe opens a stream for operator. The returned cancel func must be
// called once the reader is done.
func (s *Service) Subscribe(operator uuid.UUID) (<-chan Event, func()) {
	id := uuid.New()
	c := &client{operator: operator, events: make(chan Event, bufferSize)}

	s.mu.Lock()
	s.clients[id] = c
	s.mu.Unlock()

	return c.events, func() { s.remove(id) }
}

func (s *Service) remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[id]; ok {
		delete(s.clients, id)
		close(c.events)
	}
}

// Broadcast delivers event to every stream and returns how many took it.
// Streams whose buffer is full miss the event.
func (s *Service) Broadcast(event Event) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	delivered := 0
	for _, c := range s.clients {
		select {
		case c.events <- event:
			delivered++
		default:
			s.log.Warn("sse buffer full", "operator", c.operator, "event", event.Type)
		}
	}
	return delivered
}

// Clients is the number of open streams.
func (s *Service) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Handler streams events to the authenticated operator until the request ends.
func (s *Service) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := httpkit.MustGetIdentity(c)
		if id == nil {
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		events, cancel := s.Subscribe(id.OperatorID())
		defer cancel()

		c.SSEvent("connected", gin.H{"operatorId": id.OperatorID()})
		c.Writer.Flush()

		ticker := time.NewTicker(s.keepAlive)
		defer ticker.Stop()

		done := c.Request.Context().Done()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.SSEvent("ping", "")
				c.Writer.Flush()
			case event, ok := <-events:
				if !ok {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					continue
				}
				c.SSEvent(event.Type, string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close ends every open stream.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		close(c.events)
		delete(s.clients, id)
	}
}
