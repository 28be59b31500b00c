package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hazyhaar/tourguide/domhost"
	"github.com/hazyhaar/tourguide/domhost/htmlhost"
	"github.com/hazyhaar/tourguide/tour"
	"github.com/hazyhaar/tourguide/tourlog"
)

const dashboardHTML = `<html><body>
<header class="topbar"></header>
<aside class="nav-rail"></aside>
<main>
  <section data-tour="kpi-widgets"><div class="kpi">12</div></section>
  <div class="recent-activity"></div>
</main>
</body></html>`

type pauses struct {
	n      int
	cancel func()
	stopAt int
}

func (p *pauses) sleep(ctx context.Context, _ time.Duration) error {
	p.n++
	if p.cancel != nil && p.n == p.stopAt {
		p.cancel()
	}
	return ctx.Err()
}

func newResolver(doc *htmlhost.Document, p *pauses) *Resolver {
	if p == nil {
		p = &pauses{}
	}
	return New(doc, Config{Sleep: p.sleep, Logger: tourlog.Discard()})
}

func TestResolve_Direct(t *testing.T) {
	doc := htmlhost.MustParse(dashboardHTML)
	r := newResolver(doc, nil)

	got, err := r.Resolve(context.Background(), `[data-tour="kpi-widgets"]`)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Tier != tour.TierDirect {
		t.Fatalf("Tier: got %s, want direct", got.Tier)
	}
	if got.Node != doc.Find("section") {
		t.Fatalf("Node: got %v", got.Node)
	}
	if len(doc.ScrollEvents()) != 0 {
		t.Fatal("direct match must not scroll")
	}
}

func TestResolve_Semantic(t *testing.T) {
	doc := htmlhost.MustParse(`<main><div class="recent-activity"></div></main>`)
	doc.SetLocation("/dashboard/site-42")
	r := newResolver(doc, nil)

	got, err := r.Resolve(context.Background(), `[data-tour="recent-activity"]`)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Tier != tour.TierSemantic {
		t.Fatalf("Tier: got %s, want semantic", got.Tier)
	}
	if got.Selector != ".recent-activity" {
		t.Fatalf("Selector: got %q", got.Selector)
	}
}

func TestResolve_SemanticOnlyOnKnownPages(t *testing.T) {
	doc := htmlhost.MustParse(`<main><div class="recent-activity"></div></main>`)
	doc.SetLocation("/settings")
	r := newResolver(doc, nil)

	got, err := r.Resolve(context.Background(), `[data-tour="recent-activity"]`)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Tier != tour.TierFallback {
		t.Fatalf("Tier: got %s, want fallback", got.Tier)
	}
}

func TestResolve_FallbackSynonym(t *testing.T) {
	doc := htmlhost.MustParse(`<aside class="rail"></aside><main></main>`)
	r := newResolver(doc, nil)

	got, err := r.Resolve(context.Background(), `[data-tour="sidebar"]`)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Tier != tour.TierFallback || got.Selector != "aside" {
		t.Fatalf("got tier=%s selector=%q, want fallback aside", got.Tier, got.Selector)
	}
}

func TestResolve_RejectsMalformedWithoutSearching(t *testing.T) {
	doc := htmlhost.MustParse(dashboardHTML)
	p := &pauses{}
	r := newResolver(doc, p)

	for _, sel := range []string{"", "   ", "div[[", "#"} {
		_, err := r.Resolve(context.Background(), sel)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Resolve(%q): got %v, want ErrNotFound", sel, err)
		}
	}
	if p.n != 0 || len(doc.ScrollEvents()) != 0 {
		t.Fatal("malformed selectors must not reach any tier")
	}
}

func TestResolve_ScrollSearchFindsLateMount(t *testing.T) {
	doc := htmlhost.MustParse(`<body><main id="content"></main></body>`)
	doc.SetDocumentHeight(3000)
	mounted := false
	doc.OnScroll(func(d *htmlhost.Document, y float64) {
		if y >= 1200 && !mounted {
			mounted = true
			d.Append("#content", `<div data-tour="late-chart"></div>`)
		}
	})
	r := newResolver(doc, nil)

	got, err := r.Resolve(context.Background(), `[data-tour="late-chart"]`)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Tier != tour.TierScrollSearch {
		t.Fatalf("Tier: got %s, want scroll-search", got.Tier)
	}
	vp, _ := doc.Viewport(context.Background())
	if vp.ScrollY != 1200 {
		t.Fatalf("ScrollY: got %v, want 1200 (band 4 left in place)", vp.ScrollY)
	}
}

func TestResolve_ScrollSearchRestoresOffset(t *testing.T) {
	doc := htmlhost.MustParse(`<body><main></main></body>`)
	doc.SetDocumentHeight(3000)
	ctx := context.Background()
	doc.ScrollTo(ctx, 0, 500)
	before := len(doc.ScrollEvents())

	p := &pauses{}
	r := newResolver(doc, p)
	_, err := r.Resolve(ctx, `[data-tour="missing"]`)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve: got %v, want ErrNotFound", err)
	}
	if p.n != 10 {
		t.Fatalf("pauses: got %d, want one per band (10)", p.n)
	}

	events := doc.ScrollEvents()[before:]
	if len(events) < 2 {
		t.Fatalf("events: got %v", events)
	}
	bands, last := events[:len(events)-1], events[len(events)-1]
	for i := 1; i < len(bands); i++ {
		if bands[i].Y <= bands[i-1].Y {
			t.Fatalf("bands not strictly increasing: %v", bands)
		}
	}
	if last.Y != 500 {
		t.Fatalf("restore: got %v, want 500", last.Y)
	}
	vp, _ := doc.Viewport(ctx)
	if vp.ScrollY != 500 {
		t.Fatalf("final ScrollY: got %v, want 500", vp.ScrollY)
	}
}

func TestResolve_CancelledScrollSearchRestores(t *testing.T) {
	doc := htmlhost.MustParse(`<body></body>`)
	doc.SetDocumentHeight(5000)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	doc.ScrollTo(ctx, 0, 250)

	p := &pauses{cancel: cancel, stopAt: 3}
	r := newResolver(doc, p)
	_, err := r.Resolve(ctx, `[data-tour="never"]`)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Resolve: got %v, want context.Canceled", err)
	}
	vp, _ := doc.Viewport(context.Background())
	if vp.ScrollY != 250 {
		t.Fatalf("ScrollY after cancel: got %v, want 250", vp.ScrollY)
	}
}

type failingHost struct {
	*htmlhost.Document
}

func (failingHost) Query(context.Context, string) (domhost.Node, error) {
	return nil, errors.New("target crashed")
}

func TestResolve_HostErrorsAreMisses(t *testing.T) {
	doc := htmlhost.MustParse(`<body></body>`)
	r := New(failingHost{doc}, Config{Sleep: (&pauses{}).sleep, Logger: tourlog.Discard()})
	_, err := r.Resolve(context.Background(), "#anything")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve: got %v, want ErrNotFound", err)
	}
}
