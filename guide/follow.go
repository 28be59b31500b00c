package guide

import (
	"context"
	"sync"

	"github.com/hazyhaar/tourguide/pace"
	"github.com/hazyhaar/tourguide/tour"
)

// Follower keeps a prepared step in sync with layout changes such as window
// resizes. Each Notify repositions from the current target at most once per
// throttle window, and a full re-preparation runs once notifications have
// stopped for the debounce window.
type Follower struct {
	e    *Engine
	ctx  context.Context
	def  tour.Definition
	idx  int
	fn   func(*Prepared, error)
	thr  *pace.Throttler
	deb  *pace.Debouncer
	mu   sync.Mutex
	cur  *Prepared
	done bool
}

// Follow starts following p. fn receives each update; it runs on timer
// goroutines and must not block for long.
func (e *Engine) Follow(ctx context.Context, def tour.Definition, p *Prepared, fn func(*Prepared, error)) *Follower {
	f := &Follower{e: e, ctx: ctx, def: def, idx: p.Index, fn: fn, cur: p}
	f.thr = pace.NewThrottler(e.cfg.Tuning.Throttle, f.reposition)
	f.deb = pace.NewDebouncer(e.cfg.Tuning.Debounce, f.reprepare)
	return f
}

// Notify reports a layout change.
func (f *Follower) Notify() {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()
	if done {
		return
	}
	f.thr.Call()
	f.deb.Trigger()
}

// Current returns the latest prepared step.
func (f *Follower) Current() *Prepared {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur
}

// Stop drops pending updates.
func (f *Follower) Stop() {
	f.mu.Lock()
	f.done = true
	f.mu.Unlock()
	f.thr.Stop()
	f.deb.Stop()
}

func (f *Follower) reposition() {
	f.mu.Lock()
	cur := f.cur
	done := f.done
	f.mu.Unlock()
	if done || cur == nil || cur.Target == nil || f.ctx.Err() != nil {
		return
	}

	next := *cur
	if err := f.e.measure(f.ctx, &next); err != nil {
		f.fn(nil, err)
		return
	}
	f.publish(&next)
}

func (f *Follower) reprepare() {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()
	if done || f.ctx.Err() != nil {
		return
	}

	p, err := f.e.PrepareStep(f.ctx, f.def, f.idx)
	if err != nil {
		f.fn(nil, err)
		return
	}
	f.publish(p)
}

func (f *Follower) publish(p *Prepared) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.cur = p
	f.mu.Unlock()
	f.fn(p, nil)
}
