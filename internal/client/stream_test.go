// ABOUTME: Tests for server-sent event stream consumption
// ABOUTME: Covers event ordering, terminal events, payload decoding, and close semantics

package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventRecorder collects handler invocations in order.
type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	name string
	data any
}

func (r *eventRecorder) handler(event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{name: event, data: data})
}

func (r *eventRecorder) list() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

// sseHandler writes the given frames verbatim, flushing after each.
func sseHandler(t *testing.T, frames ...string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for _, frame := range frames {
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
	})
}

func TestStream_DeliversEventsInOrder(t *testing.T) {
	handler := sseHandler(t,
		"event: progress\ndata: {\"message\":\"step 1\"}\n\n",
		"event: progress\ndata: {\"message\":\"step 2\"}\n\n",
		"event: result\ndata: {\"value\":42}\n\n",
		"event: complete\ndata: {}\n\n",
	)
	c, _ := newTestClient(t, handler)

	rec := &eventRecorder{}
	s, err := c.openStream(context.Background(), "/stream", nil, rec.handler)
	require.NoError(t, err)
	defer s.Close()

	<-s.Done()
	require.NoError(t, s.Err())

	events := rec.list()
	require.Len(t, events, 4)
	assert.Equal(t, "progress", events[0].name)
	assert.Equal(t, map[string]any{"message": "step 1"}, events[0].data)
	assert.Equal(t, "progress", events[1].name)
	assert.Equal(t, "result", events[2].name)
	assert.Equal(t, map[string]any{"value": float64(42)}, events[2].data)
	assert.Equal(t, "complete", events[3].name)
}

func TestStream_DataOnlyFrameUsesMessageEvent(t *testing.T) {
	handler := sseHandler(t,
		"data: {\"x\":1}\n\n",
		"event: complete\ndata: {}\n\n",
	)
	c, _ := newTestClient(t, handler)

	rec := &eventRecorder{}
	s, err := c.openStream(context.Background(), "/stream", nil, rec.handler)
	require.NoError(t, err)
	defer s.Close()

	<-s.Done()

	events := rec.list()
	require.Len(t, events, 2)
	assert.Equal(t, "message", events[0].name)
	assert.Equal(t, map[string]any{"x": float64(1)}, events[0].data)
}

func TestStream_StopsAfterTerminalEvent(t *testing.T) {
	handler := sseHandler(t,
		"event: complete\ndata: {}\n\n",
		"event: progress\ndata: {\"message\":\"too late\"}\n\n",
	)
	c, _ := newTestClient(t, handler)

	rec := &eventRecorder{}
	s, err := c.openStream(context.Background(), "/stream", nil, rec.handler)
	require.NoError(t, err)
	defer s.Close()

	<-s.Done()
	require.NoError(t, s.Err())

	events := rec.list()
	require.Len(t, events, 1)
	assert.Equal(t, "complete", events[0].name)
}

func TestStream_ErrorEventIsTerminal(t *testing.T) {
	handler := sseHandler(t,
		"event: error\ndata: {\"message\":\"boom\"}\n\n",
	)
	c, _ := newTestClient(t, handler)

	rec := &eventRecorder{}
	s, err := c.openStream(context.Background(), "/stream", nil, rec.handler)
	require.NoError(t, err)
	defer s.Close()

	<-s.Done()
	// The error event is delivered through the handler; the stream itself
	// ended cleanly.
	require.NoError(t, s.Err())

	events := rec.list()
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].name)
	assert.Equal(t, map[string]any{"message": "boom"}, events[0].data)
}

func TestStream_DroppedConnectionSetsError(t *testing.T) {
	// The server ends the response after one progress frame, never sending
	// a terminal event.
	handler := sseHandler(t,
		"event: progress\ndata: {\"message\":\"step 1\"}\n\n",
	)
	c, _ := newTestClient(t, handler)

	rec := &eventRecorder{}
	s, err := c.openStream(context.Background(), "/stream", nil, rec.handler)
	require.NoError(t, err)
	defer s.Close()

	<-s.Done()
	require.ErrorIs(t, s.Err(), ErrStreamDropped)

	events := rec.list()
	require.Len(t, events, 1)
	assert.Equal(t, "progress", events[0].name)
}

func TestStream_MalformedJSONFallsBackToRawString(t *testing.T) {
	handler := sseHandler(t,
		"event: progress\ndata: not json at all\n\n",
		"event: complete\ndata: {}\n\n",
	)
	c, _ := newTestClient(t, handler)

	rec := &eventRecorder{}
	s, err := c.openStream(context.Background(), "/stream", nil, rec.handler)
	require.NoError(t, err)
	defer s.Close()

	<-s.Done()

	events := rec.list()
	require.Len(t, events, 2)
	assert.Equal(t, "not json at all", events[0].data)
}

func TestStream_MultiLineData(t *testing.T) {
	handler := sseHandler(t,
		"event: progress\ndata: line one\ndata: line two\n\n",
		"event: complete\ndata: {}\n\n",
	)
	c, _ := newTestClient(t, handler)

	rec := &eventRecorder{}
	s, err := c.openStream(context.Background(), "/stream", nil, rec.handler)
	require.NoError(t, err)
	defer s.Close()

	<-s.Done()

	events := rec.list()
	require.Len(t, events, 2)
	assert.Equal(t, "line one\nline two", events[0].data)
}

func TestStream_NonOKStatusFailsOpen(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, `{"success":false,"message":"Tool not found"}`)
	})
	c, notify := newTestClient(t, handler)

	rec := &eventRecorder{}
	_, err := c.openStream(context.Background(), "/stream", nil, rec.handler)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, []string{"请求的资源不存在"}, notify.errorList())
	assert.Empty(t, rec.list())
}

func TestStream_CloseIsIdempotent(t *testing.T) {
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	c, _ := newTestClient(t, handler)
	t.Cleanup(func() { close(release) })

	rec := &eventRecorder{}
	s, err := c.openStream(context.Background(), "/stream", nil, rec.handler)
	require.NoError(t, err)

	s.Close()
	s.Close()
	s.Close()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("stream did not finish after Close")
	}

	// A caller-initiated close is not a stream failure.
	assert.NoError(t, s.Err())
}

func TestStream_CloseAfterCompletionIsSafe(t *testing.T) {
	handler := sseHandler(t, "event: complete\ndata: {}\n\n")
	c, _ := newTestClient(t, handler)

	rec := &eventRecorder{}
	s, err := c.openStream(context.Background(), "/stream", nil, rec.handler)
	require.NoError(t, err)

	<-s.Done()
	s.Close()
	s.Close()
	require.Len(t, rec.list(), 1)
}
