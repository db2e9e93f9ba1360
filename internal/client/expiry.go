// ABOUTME: One-shot latch for the session-expiry flow
// ABOUTME: Collapses concurrent 401 failures into a single side effect

package client

import (
	"sync"
	"time"
)

// expiryDebounce is how long the latch waits before running the expiry
// handler. A batch of parallel requests failing with 401 all land inside
// this window and produce exactly one notification.
const expiryDebounce = 100 * time.Millisecond

// expiryLatch is a two-state machine: normal and handling. The first 401
// moves it to handling and schedules the handler; further 401s are ignored
// until the handler finishes and the latch returns to normal.
type expiryLatch struct {
	mu       sync.Mutex
	handling bool
	delay    time.Duration
	handler  func()
}

func newExpiryLatch(delay time.Duration, handler func()) *expiryLatch {
	return &expiryLatch{delay: delay, handler: handler}
}

// fire triggers the expiry flow. Idempotent while an episode is in flight.
func (l *expiryLatch) fire() {
	l.mu.Lock()
	if l.handling {
		l.mu.Unlock()
		return
	}
	l.handling = true
	l.mu.Unlock()

	time.AfterFunc(l.delay, func() {
		l.handler()
		l.mu.Lock()
		l.handling = false
		l.mu.Unlock()
	})
}
