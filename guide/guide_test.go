package guide

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/tourguide/config"
	"github.com/hazyhaar/tourguide/domhost"
	"github.com/hazyhaar/tourguide/domhost/htmlhost"
	"github.com/hazyhaar/tourguide/recovery"
	"github.com/hazyhaar/tourguide/resolve"
	"github.com/hazyhaar/tourguide/tour"
	"github.com/hazyhaar/tourguide/tourlog"
	"github.com/hazyhaar/tourguide/tourstate"
)

const page = `<body>
<header class="topbar"><input id="search"></header>
<main>
  <div id="welcome"></div>
  <section data-tour="kpi-widgets"></section>
</main>
<div id="tooltip"><p>Hi</p><button id="back">Back</button><button id="next">Next</button></div>
</body>`

type recorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recorder) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.delays)
}

func newDoc(t *testing.T) *htmlhost.Document {
	t.Helper()
	doc := htmlhost.MustParse(page)
	doc.SetLocation("/dashboard")
	doc.SetViewport(1280, 720)
	doc.SetDocumentHeight(4000)
	for sel, r := range map[string]domhost.Rect{
		"header":                    {Top: 0, Left: 0, Width: 1280, Height: 64},
		"#search":                   {Top: 12, Left: 900, Width: 300, Height: 40},
		"main":                      {Top: 200, Left: 0, Width: 1280, Height: 3000},
		"#welcome":                  {Top: 220, Left: 40, Width: 600, Height: 200},
		`[data-tour="kpi-widgets"]`: {Top: 2400, Left: 40, Width: 600, Height: 300},
		"#tooltip":                  {Top: 100, Left: 100, Width: 300, Height: 160},
		"#back":                     {Top: 220, Left: 110, Width: 60, Height: 30},
		"#next":                     {Top: 220, Left: 300, Width: 60, Height: 30},
	} {
		if err := doc.Layout(sel, r); err != nil {
			t.Fatal(err)
		}
	}
	return doc
}

func onboarding() tour.Definition {
	return tour.Definition{
		ID:          "onboarding",
		Name:        "Onboarding",
		Description: "First look at the dashboard",
		Steps: []tour.Step{
			{ID: "welcome", Title: "Welcome", Content: "Hello", Target: "#welcome", Placement: tour.PlacementBottom},
			{ID: "kpis", Title: "KPIs", Content: "Your numbers", Target: `[data-tour="kpi-widgets"]`, Placement: tour.PlacementRight},
			{ID: "search", Title: "Search", Content: "Find anything", Target: "#search", Placement: tour.PlacementBottom},
		},
	}
}

func newEngine(doc *htmlhost.Document, rec *recorder) *Engine {
	return New(doc, Options{Sleep: rec.sleep, Logger: tourlog.Discard()})
}

func TestPrepareStep_BelowFold(t *testing.T) {
	doc := newDoc(t)
	rec := &recorder{}
	e := newEngine(doc, rec)

	p, err := e.PrepareStep(context.Background(), onboarding(), 1)
	if err != nil {
		t.Fatalf("PrepareStep: %v", err)
	}
	if p.Target.Tier != tour.TierDirect {
		t.Fatalf("Tier: got %s, want direct", p.Target.Tier)
	}

	events := doc.ScrollEvents()
	if len(events) != 2 {
		t.Fatalf("scroll events: got %v, want container then element", events)
	}
	if events[0].Y != 200 {
		t.Errorf("container scroll: got %v, want 200", events[0].Y)
	}
	if want := 2400 + 150 - 360.0; events[1].Y != want {
		t.Errorf("center scroll: got %v, want %v", events[1].Y, want)
	}
	if got := rec.all(); !slices.Equal(got, []time.Duration{300 * time.Millisecond, 500 * time.Millisecond}) {
		t.Fatalf("delays: got %v, want [300ms 500ms]", got)
	}

	if p.Rect.Top != 210 {
		t.Errorf("Rect.Top: got %v, want 210", p.Rect.Top)
	}
	if p.Placement != tour.PlacementRight || p.Layout.Mobile {
		t.Errorf("placement %s mobile %v, want right on desktop", p.Placement, p.Layout.Mobile)
	}
	if p.Layout.TooltipWidth != 400 {
		t.Errorf("TooltipWidth: got %v, want 400", p.Layout.TooltipWidth)
	}
	if p.Layout.ZIndex.Overlay != 9998 || p.Layout.ZIndex.Tooltip != 9999 {
		t.Errorf("ZIndex: got %+v", p.Layout.ZIndex)
	}
}

func TestPrepareStep_FullyVisibleDoesNotScroll(t *testing.T) {
	doc := newDoc(t)
	rec := &recorder{}
	e := newEngine(doc, rec)

	if _, err := e.PrepareStep(context.Background(), onboarding(), 2); err != nil {
		t.Fatal(err)
	}
	if len(doc.ScrollEvents()) != 0 || len(rec.all()) != 0 {
		t.Fatalf("events=%v delays=%v, want none", doc.ScrollEvents(), rec.all())
	}
}

func TestPrepareStep_Mobile(t *testing.T) {
	doc := newDoc(t)
	doc.SetViewport(300, 640)
	e := newEngine(doc, &recorder{})

	p, err := e.PrepareStep(context.Background(), onboarding(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Layout.Mobile {
		t.Fatal("Mobile: got false, want true")
	}
	if p.Placement != tour.PlacementBottom {
		t.Errorf("Placement: got %s, want bottom", p.Placement)
	}
	if p.Layout.TooltipWidth != 280 {
		t.Errorf("TooltipWidth: got %v, want 280", p.Layout.TooltipWidth)
	}
}

func TestPrepareStep_Invalid(t *testing.T) {
	e := newEngine(newDoc(t), &recorder{})
	def := onboarding()
	def.Steps[0].Placement = "middle"

	_, err := e.PrepareStep(context.Background(), def, 0)
	if !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("got %v, want ErrInvalidStep", err)
	}
	if _, err := e.PrepareStep(context.Background(), def, 3); !errors.Is(err, ErrStepRange) {
		t.Fatalf("got %v, want ErrStepRange", err)
	}
}

func TestPrepareStep_MissingTargetExhaustsRetries(t *testing.T) {
	doc := newDoc(t)
	rec := &recorder{}
	e := newEngine(doc, rec)
	def := onboarding()
	def.Steps[2].Target = "#nowhere"

	_, err := e.PrepareStep(context.Background(), def, 2)
	var ex *recovery.ExhaustedError
	if !errors.As(err, &ex) || ex.Attempts != 3 {
		t.Fatalf("got %v, want 3 exhausted attempts", err)
	}
	if !errors.Is(err, resolve.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	delays := rec.all()
	if !slices.Contains(delays, 500*time.Millisecond) || !slices.Contains(delays, time.Second) {
		t.Fatalf("delays %v, want linear backoff 500ms then 1s", delays)
	}
	if doc.ScrollEvents()[len(doc.ScrollEvents())-1].Y != 0 {
		t.Fatal("scroll offset not restored")
	}
}

func TestPrepareStep_OptionalSkipped(t *testing.T) {
	e := newEngine(newDoc(t), &recorder{})
	def := onboarding()
	def.Steps[2].Target = "#nowhere"
	def.Steps[2].Optional = true

	p, err := e.PrepareStep(context.Background(), def, 2)
	if err != nil {
		t.Fatalf("PrepareStep: %v", err)
	}
	if !p.Skipped || p.Target != nil {
		t.Fatalf("got %+v, want skipped", p)
	}
}

func TestShouldStart(t *testing.T) {
	ctx := context.Background()
	doc := newDoc(t)
	store := tourstate.NewManager(nil, nil, tourlog.Discard())
	e := New(doc, Options{Store: store, Logger: tourlog.Discard()})
	def := onboarding()

	if !e.ShouldStart(ctx, def) {
		t.Fatal("fresh tour should start")
	}
	def.Pages = []string{"/staffing"}
	if e.ShouldStart(ctx, def) {
		t.Fatal("tour restricted to another page should not start")
	}
	def.Pages = []string{"/dash"}
	if !e.ShouldStart(ctx, def) {
		t.Fatal("page prefix should match")
	}

	e.Complete(ctx, def)
	if e.ShouldStart(ctx, def) {
		t.Fatal("tour shown this session should not start again")
	}
	store.ClearAll(ctx)
	store.SetAvailability(ctx, false)
	if e.ShouldStart(ctx, def) {
		t.Fatal("tours disabled, should not start")
	}
}

func TestPresentDismiss(t *testing.T) {
	ctx := context.Background()
	doc := newDoc(t)
	e := newEngine(doc, &recorder{})
	tip := doc.Find("#tooltip")

	release, err := e.Present(ctx, tip)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Style(tip)["opacity"] != "1" {
		t.Errorf("opacity after present: got %q", doc.Style(tip)["opacity"])
	}
	active, _ := doc.ActiveElement(ctx)
	if active != doc.Find("#back") {
		t.Errorf("focus: got %v, want #back", active)
	}
	doc.Press(ctx, "Tab", false)
	doc.Press(ctx, "Tab", false)
	if active, _ := doc.ActiveElement(ctx); active != doc.Find("#back") {
		t.Errorf("focus after wrap: got %v, want #back", active)
	}

	if err := e.Dismiss(ctx, tip, release); err != nil {
		t.Fatal(err)
	}
	if doc.Listeners() != 0 {
		t.Errorf("listeners after dismiss: got %d, want 0", doc.Listeners())
	}
	if doc.Style(tip)["opacity"] != "0" {
		t.Errorf("opacity after dismiss: got %q", doc.Style(tip)["opacity"])
	}
}

func TestFollow(t *testing.T) {
	ctx := context.Background()
	doc := newDoc(t)
	cfg := config.Default()
	cfg.Tuning.Throttle = 10 * time.Millisecond
	cfg.Tuning.Debounce = 30 * time.Millisecond
	e := New(doc, Options{Config: cfg, Sleep: (&recorder{}).sleep, Logger: tourlog.Discard()})

	p, err := e.PrepareStep(ctx, onboarding(), 2)
	if err != nil {
		t.Fatal(err)
	}
	updates := make(chan *Prepared, 16)
	f := e.Follow(ctx, onboarding(), p, func(p *Prepared, err error) {
		if err != nil {
			t.Errorf("update: %v", err)
			return
		}
		updates <- p
	})
	defer f.Stop()

	doc.SetViewport(300, 640)
	f.Notify()
	select {
	case u := <-updates:
		if !u.Layout.Mobile {
			t.Fatal("leading update should see the narrow viewport")
		}
	default:
		t.Fatal("leading update should run synchronously")
	}
	f.Notify()
	f.Notify()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-updates:
			if u.Target != nil && u.Target.Tier == tour.TierDirect && f.Current() == u {
				return
			}
		case <-deadline:
			t.Fatal("no debounced re-preparation")
		}
	}
}

func TestLayout_JSON(t *testing.T) {
	l := Layout{Margin: 20, TooltipWidth: 400, ZIndex: config.Default().Tuning.ZIndex}
	b, err := json.Marshal(l)
	if err != nil {
		t.Fatal(err)
	}
	want := `"z_index":{"overlay":9998,"tooltip":9999,"dropdown":10000}`
	if !strings.Contains(string(b), want) {
		t.Fatalf("layout json: got %s, want it to contain %s", b, want)
	}
}
