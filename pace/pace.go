// CLAUDE:SUMMARY Timer primitives: context-aware sleep, debouncer and throttler for bounding repeated layout-triggered work.
// Package pace holds the timing primitives of the tour engine. Every wait is
// a cancelable timer; nothing here polls.
package pace

import (
	"context"
	"sync"
	"time"
)

// Sleeper suspends for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Debouncer runs fn once calls have stopped arriving for Window.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	fn     func()
	timer  *time.Timer
	gen    uint64
}

// NewDebouncer returns a Debouncer. A non-positive window defaults to 300ms.
func NewDebouncer(window time.Duration, fn func()) *Debouncer {
	if window <= 0 {
		window = 300 * time.Millisecond
	}
	return &Debouncer{window: window, fn: fn}
}

// Trigger (re)starts the quiet window.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.window, func() { d.fire(gen) })
}

// fire runs fn unless the timer that scheduled it was replaced or stopped
// while fire waited for the lock.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

// Flush runs a pending call immediately. It is a no-op when nothing is pending.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	pending := d.timer != nil && d.timer.Stop()
	d.timer = nil
	d.gen++
	d.mu.Unlock()
	if pending {
		d.fn()
	}
}

// Stop drops any pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// Throttler runs fn at most once per Window. A call arriving inside the
// window is deferred to its end; further calls in the same window collapse
// into that one trailing run.
type Throttler struct {
	mu       sync.Mutex
	window   time.Duration
	fn       func()
	last     time.Time
	trailing *time.Timer
	gen      uint64
}

// NewThrottler returns a Throttler. A non-positive window defaults to 100ms.
func NewThrottler(window time.Duration, fn func()) *Throttler {
	if window <= 0 {
		window = 100 * time.Millisecond
	}
	return &Throttler{window: window, fn: fn}
}

// Call runs fn now if the window has elapsed and reports whether it did.
func (t *Throttler) Call() bool {
	t.mu.Lock()
	now := time.Now()
	if elapsed := now.Sub(t.last); t.last.IsZero() || elapsed >= t.window {
		t.last = now
		t.mu.Unlock()
		t.fn()
		return true
	}
	if t.trailing == nil {
		wait := t.window - now.Sub(t.last)
		t.gen++
		gen := t.gen
		t.trailing = time.AfterFunc(wait, func() { t.fireTrailing(gen) })
	}
	t.mu.Unlock()
	return false
}

func (t *Throttler) fireTrailing(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.trailing = nil
	t.last = time.Now()
	t.mu.Unlock()
	t.fn()
}

// Stop drops a scheduled trailing call.
func (t *Throttler) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.trailing != nil {
		t.trailing.Stop()
		t.trailing = nil
	}
	t.gen++
}
