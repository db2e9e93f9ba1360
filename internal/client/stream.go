// ABOUTME: Server-sent event consumption for long-running tool executions
// ABOUTME: One connection per call, events delivered in arrival order, idempotent close

package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
)

// ErrStreamDropped reports a connection the server ended before sending a
// terminal event.
var ErrStreamDropped = errors.New("stream ended before completion")

// EventHandler receives each decoded stream event. Payloads that parse as
// JSON arrive decoded; anything else is forwarded as the raw string.
type EventHandler func(event string, data any)

// Terminal stream events.
const (
	eventComplete = "complete"
	eventError    = "error"
)

// Stream is a single server-sent event connection. It delivers events to its
// handler until a terminal event, an error, or Close, whichever comes first.
// There is no reconnect: a dropped stream surfaces through Err.
type Stream struct {
	cancel context.CancelFunc
	body   io.ReadCloser
	once   sync.Once
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
}

// openStream issues a POST expected to answer with text/event-stream and
// starts relaying parsed events to handler.
func (c *Client) openStream(ctx context.Context, path string, body any, handler EventHandler) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamHTTP.Do(req)
	if err != nil {
		cancel()
		return nil, c.transportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		err := c.statusError(resp.StatusCode, readEnvelope(resp.Body))
		resp.Body.Close()
		cancel()
		return nil, err
	}

	s := &Stream{
		cancel: cancel,
		body:   resp.Body,
		done:   make(chan struct{}),
	}
	go s.consume(c, handler)
	return s, nil
}

// Close tears the connection down. Safe to call multiple times and after the
// stream has already completed; only the first call has any effect.
func (s *Stream) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		s.body.Close()
	})
}

// Done is closed once no further handler calls will be made.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Err reports why the stream ended. Nil after a clean completion or Close.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// consume reads SSE frames until a terminal event or read failure.
func (s *Stream) consume(c *Client, handler EventHandler) {
	defer close(s.done)
	defer s.Close()

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	eventType := ""
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		// Blank line marks the end of one event.
		if line == "" {
			if len(dataLines) > 0 {
				name := eventType
				if name == "" {
					name = "message"
				}
				handler(name, decodeEventData(strings.Join(dataLines, "\n")))
				if name == eventComplete || name == eventError {
					return
				}
			}
			eventType = ""
			dataLines = nil
			continue
		}

		if after, ok := strings.CutPrefix(line, "event:"); ok {
			eventType = strings.TrimSpace(after)
			continue
		}
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			dataLines = append(dataLines, strings.TrimPrefix(after, " "))
			continue
		}
		// Comment lines and unknown fields are ignored.
	}

	// The loop only falls through when the connection ended without a
	// terminal event; a terminal event returns above.
	s.mu.Lock()
	defer s.mu.Unlock()
	// EOF or a read failure after a caller-initiated Close is expected.
	if s.closed {
		return
	}
	if err := scanner.Err(); err != nil {
		s.err = err
	} else {
		// The server closed the connection cleanly without a terminal
		// event. Scanner reports that as plain EOF.
		s.err = ErrStreamDropped
	}
	c.logger.Warn("event stream ended", "error", s.err)
}

// decodeEventData attempts a JSON parse, falling back to the raw text so a
// malformed payload degrades gracefully instead of killing the stream.
func decodeEventData(data string) any {
	var v any
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return data
	}
	return v
}
