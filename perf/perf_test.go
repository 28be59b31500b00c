package perf

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hazyhaar/tourguide/domhost"
	"github.com/hazyhaar/tourguide/domhost/htmlhost"
)

func TestMeasure_LogsOnlyWhenDebug(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	prod := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	v, err := Measure(ctx, prod, nil, "lookup", func(context.Context) (int, error) { return 42, nil })
	if v != 42 || err != nil {
		t.Fatalf("Measure: got %d, %v", v, err)
	}
	if buf.Len() != 0 {
		t.Fatalf("production should not log: %q", buf.String())
	}

	dev := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	boom := errors.New("boom")
	_, err = Measure(ctx, dev, nil, "lookup", func(context.Context) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Measure should pass errors through, got %v", err)
	}
	if !strings.Contains(buf.String(), "name=lookup") {
		t.Fatalf("development should log the duration: %q", buf.String())
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics("test")
	m.ObserveResolution("direct", 10*time.Millisecond)
	m.ObserveMiss(time.Second)
	m.ObserveMiss(time.Second)

	if got := testutil.ToFloat64(m.misses); got != 2 {
		t.Fatalf("misses: got %v, want 2", got)
	}
	if n := testutil.CollectAndCount(m.resolution); n != 2 {
		t.Fatalf("resolution series: got %d, want 2", n)
	}

	var nilMetrics *Metrics
	nilMetrics.ObserveResolution("direct", time.Millisecond)
	nilMetrics.ObserveMiss(time.Millisecond)
	if nilMetrics.Registry() != nil {
		t.Fatal("nil metrics should have no registry")
	}
}

type timelineHost struct {
	*htmlhost.Document
	entries []domhost.PerformanceEntry
}

func (h *timelineHost) PerformanceEntries(context.Context, []string) ([]domhost.PerformanceEntry, error) {
	return h.entries, nil
}

func TestNewObserver_UnsupportedHost(t *testing.T) {
	doc := htmlhost.MustParse("<p>x</p>")
	if o := NewObserver(doc, nil, func([]domhost.PerformanceEntry) {}); o != nil {
		t.Fatal("host without a timeline should yield a nil observer")
	}
}

func TestObserver_DeliversOnlyNewEntries(t *testing.T) {
	h := &timelineHost{Document: htmlhost.MustParse("<p>x</p>")}
	h.entries = []domhost.PerformanceEntry{{Name: "first-paint", EntryType: "paint", StartTime: 12}}

	var got [][]domhost.PerformanceEntry
	o := NewObserver(h, []string{EntryPaint}, func(es []domhost.PerformanceEntry) { got = append(got, es) })
	if o == nil {
		t.Fatal("NewObserver: got nil")
	}

	ctx := context.Background()
	o.Collect(ctx)
	o.Collect(ctx)
	h.entries = append(h.entries, domhost.PerformanceEntry{Name: "first-contentful-paint", EntryType: "paint", StartTime: 15})
	o.Collect(ctx)

	if len(got) != 2 || len(got[0]) != 1 || len(got[1]) != 1 {
		t.Fatalf("deliveries: got %v", got)
	}
	if got[1][0].Name != "first-contentful-paint" {
		t.Fatalf("second delivery: got %q", got[1][0].Name)
	}
}
