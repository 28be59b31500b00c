// CLAUDE:SUMMARY Execution timing wrapper gated on debug logging, and a performance-timeline observer factory.
// Package perf instruments the tour engine: Measure logs how long a call
// took when debug logging is on, NewObserver follows a host's performance
// timeline, and Metrics exports resolution timings to Prometheus.
package perf

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/tourguide/domhost"
)

// Measure runs fn and logs its duration at debug. Outside development the
// debug level is disabled and nothing is logged. m may be nil.
func Measure[T any](ctx context.Context, logger *slog.Logger, m *Metrics, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	v, err := fn(ctx)
	d := time.Since(start)
	m.observeMeasured(name, d)
	if logger != nil && logger.Enabled(ctx, slog.LevelDebug) {
		logger.Debug("perf: measured", "name", name, "duration", d, "error", err)
	}
	return v, err
}

// Entry types accepted by NewObserver.
const (
	EntryPaint      = "paint"
	EntryNavigation = "navigation"
	EntryMeasure    = "measure"
)

// Observer delivers new performance entries of the selected types to a
// callback each time Collect runs.
type Observer struct {
	src   domhost.PerformanceSource
	types []string
	fn    func([]domhost.PerformanceEntry)

	mu   sync.Mutex
	seen map[entryKey]bool
}

type entryKey struct {
	name, typ string
	start     float64
}

// NewObserver returns an Observer, or nil when host has no performance
// timeline.
func NewObserver(host domhost.Host, entryTypes []string, fn func([]domhost.PerformanceEntry)) *Observer {
	src, ok := host.(domhost.PerformanceSource)
	if !ok || fn == nil {
		return nil
	}
	if len(entryTypes) == 0 {
		entryTypes = []string{EntryPaint, EntryNavigation, EntryMeasure}
	}
	return &Observer{src: src, types: entryTypes, fn: fn, seen: make(map[entryKey]bool)}
}

// Collect reads the timeline and delivers entries not delivered before.
func (o *Observer) Collect(ctx context.Context) error {
	entries, err := o.src.PerformanceEntries(ctx, o.types)
	if err != nil {
		return err
	}

	o.mu.Lock()
	var fresh []domhost.PerformanceEntry
	for _, e := range entries {
		k := entryKey{e.Name, e.EntryType, e.StartTime}
		if o.seen[k] {
			continue
		}
		o.seen[k] = true
		fresh = append(fresh, e)
	}
	o.mu.Unlock()

	if len(fresh) > 0 {
		o.fn(fresh)
	}
	return nil
}
