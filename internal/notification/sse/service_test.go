package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crescoflow/platform/httpkit"
	"crescoflow/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastReachesEverySubscriber(t *testing.T) {
	s := New(logger.Discard())
	a, cancelA := s.Subscribe(uuid.New())
	b, cancelB := s.Subscribe(uuid.New())
	defer cancelB()

	assert.Equal(t, 2, s.Broadcast(Event{Type: EventLeadReplied, LeadID: "l1"}))
	assert.Equal(t, "l1", (<-a).LeadID)
	assert.Equal(t, "l1", (<-b).LeadID)

	cancelA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, s.Clients())

	cancelA()
	s.Close()
	assert.Equal(t, 0, s.Clients())
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	s := New(logger.Discard())
	_, cancel := s.Subscribe(uuid.New())
	defer cancel()

	for range bufferSize {
		require.Equal(t, 1, s.Broadcast(Event{Type: EventQueueItemSent}))
	}
	assert.Equal(t, 0, s.Broadcast(Event{Type: EventQueueItemSent}))
}

func TestHandlerStreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(logger.Discard())

	engine := gin.New()
	engine.GET("/stream", func(c *gin.Context) {
		c.Set(httpkit.ContextOperatorIDKey, uuid.New())
		c.Set(httpkit.ContextOperatorEmailKey, "ops@crescoflow.be")
	}, s.Handler())
	srv := httptest.NewServer(engine)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	require.Equal(t, "event:connected", readLine(t, reader))
	readLine(t, reader)
	readLine(t, reader)

	require.Eventually(t, func() bool { return s.Clients() == 1 }, time.Second, 10*time.Millisecond)
	s.Broadcast(Event{Type: EventLeadStageChanged, LeadID: "lead-7"})

	assert.Equal(t, "event:"+EventLeadStageChanged, readLine(t, reader))
	data := readLine(t, reader)
	assert.True(t, strings.HasPrefix(data, "data:"))
	assert.Contains(t, data, `"leadId":"lead-7"`)
}

func TestHandlerRejectsAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/stream", New(logger.Discard()).Handler())

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(line, "\n")
}
