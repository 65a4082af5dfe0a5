// Package throttle rate-limits a callback to one invocation per window.
//
// A call outside the window runs immediately (leading edge). Calls inside the
// window are coalesced into a single trailing invocation at the end of the
// window, so the callback observes the latest state. The callback takes no
// arguments: it is expected to read whatever state it needs when it runs.
package throttle

import (
	"sync"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/internal/clock"
)

// Throttle wraps a callback. The zero value is not usable; use New.
type Throttle struct {
	clock clock.Clock
	wait  time.Duration
	fn    func()

	mu       sync.Mutex
	previous time.Time
	hasPrev  bool
	timer    clock.Timer
	stopped  bool
}

// New returns a throttle invoking fn at most once per wait.
func New(c clock.Clock, wait time.Duration, fn func()) *Throttle {
	return &Throttle{clock: c, wait: wait, fn: fn}
}

// Call requests an invocation.
func (t *Throttle) Call() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}

	now := t.clock.Now()
	remaining := time.Duration(0)
	if t.hasPrev {
		remaining = t.wait - now.Sub(t.previous)
	}

	// remaining > wait covers a clock that moved backwards.
	if remaining <= 0 || remaining > t.wait {
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
		t.previous = now
		t.hasPrev = true
		t.mu.Unlock()
		t.fn()
		return
	}

	if t.timer == nil {
		t.timer = t.clock.AfterFunc(remaining, t.trailing)
	}
	t.mu.Unlock()
}

func (t *Throttle) trailing() {
	t.mu.Lock()
	if t.stopped || t.timer == nil {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.previous = t.clock.Now()
	t.hasPrev = true
	t.mu.Unlock()
	t.fn()
}

// Stop cancels any scheduled trailing invocation and ignores later calls.
func (t *Throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
