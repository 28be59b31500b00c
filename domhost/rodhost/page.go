package rodhost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"

	"github.com/hazyhaar/tourguide/domhost"
)

// Element is a live element handle.
type Element struct {
	el *rod.Element
}

func (e Element) String() string {
	if e.el == nil || e.el.Object == nil {
		return "<nil>"
	}
	return e.el.Object.Description
}

// Page implements domhost.Host, domhost.Styler and
// domhost.PerformanceSource over one Rod page.
type Page struct {
	page   *rod.Page
	logger *slog.Logger
	seq    atomic.Int64
}

var (
	_ domhost.Host              = (*Page)(nil)
	_ domhost.Styler            = (*Page)(nil)
	_ domhost.PerformanceSource = (*Page)(nil)
)

// NewPage wraps p.
func NewPage(p *rod.Page, logger *slog.Logger) *Page {
	if logger == nil {
		logger = slog.Default()
	}
	return &Page{page: p, logger: logger}
}

// Close closes the tab.
func (p *Page) Close() error { return p.page.Close() }

func unwrap(n domhost.Node) (*rod.Element, error) {
	e, ok := n.(Element)
	if !ok || e.el == nil {
		return nil, fmt.Errorf("rodhost: foreign node %v", n)
	}
	return e.el, nil
}

func wrap(els rod.Elements) []domhost.Node {
	out := make([]domhost.Node, len(els))
	for i, el := range els {
		out[i] = Element{el: el}
	}
	return out
}

// Query never waits: a missing element is (nil, nil).
func (p *Page) Query(ctx context.Context, selector string) (domhost.Node, error) {
	ok, el, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, fmt.Errorf("rodhost: query %q: %w", selector, err)
	}
	if !ok {
		return nil, nil
	}
	return Element{el: el}, nil
}

func (p *Page) QueryAll(ctx context.Context, root domhost.Node, selector string) ([]domhost.Node, error) {
	if root == nil {
		els, err := p.page.Context(ctx).Elements(selector)
		if err != nil {
			return nil, fmt.Errorf("rodhost: query all %q: %w", selector, err)
		}
		return wrap(els), nil
	}
	el, err := unwrap(root)
	if err != nil {
		return nil, err
	}
	els, err := el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("rodhost: query all %q: %w", selector, err)
	}
	return wrap(els), nil
}

// Closest returns the nearest ancestor of n matching selector.
func (p *Page) Closest(ctx context.Context, n domhost.Node, selector string) (domhost.Node, error) {
	el, err := unwrap(n)
	if err != nil {
		return nil, err
	}
	parents, err := el.Context(ctx).Parents(selector)
	if err != nil {
		return nil, fmt.Errorf("rodhost: closest %q: %w", selector, err)
	}
	if len(parents) == 0 {
		return nil, nil
	}
	return Element{el: parents.First()}, nil
}

func (p *Page) Attr(ctx context.Context, n domhost.Node, name string) (string, bool, error) {
	el, err := unwrap(n)
	if err != nil {
		return "", false, err
	}
	v, err := el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, fmt.Errorf("rodhost: attr %s: %w", name, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

const rectJS = `function () {
	const r = this.getBoundingClientRect();
	return {top: r.top, left: r.left, width: r.width, height: r.height};
}`

func (p *Page) Rect(ctx context.Context, n domhost.Node) (domhost.Rect, error) {
	var r domhost.Rect
	el, err := unwrap(n)
	if err != nil {
		return r, err
	}
	res, err := el.Context(ctx).Eval(rectJS)
	if err != nil {
		return r, fmt.Errorf("rodhost: rect: %w", err)
	}
	if err := res.Value.Unmarshal(&r); err != nil {
		return r, fmt.Errorf("rodhost: rect: %w", err)
	}
	return r, nil
}

func (p *Page) Same(_ context.Context, a, b domhost.Node) (bool, error) {
	if a == nil || b == nil {
		return a == nil && b == nil, nil
	}
	ea, err := unwrap(a)
	if err != nil {
		return false, err
	}
	eb, err := unwrap(b)
	if err != nil {
		return false, err
	}
	return ea.Equal(eb)
}

const viewportJS = `() => ({
	width: window.innerWidth,
	height: window.innerHeight,
	scroll_x: window.scrollX,
	scroll_y: window.scrollY,
	document_height: Math.max(document.body ? document.body.scrollHeight : 0, document.documentElement.scrollHeight),
})`

func (p *Page) Viewport(ctx context.Context) (domhost.Viewport, error) {
	var vp domhost.Viewport
	res, err := p.page.Context(ctx).Eval(viewportJS)
	if err != nil {
		return vp, fmt.Errorf("rodhost: viewport: %w", err)
	}
	if err := res.Value.Unmarshal(&vp); err != nil {
		return vp, fmt.Errorf("rodhost: viewport: %w", err)
	}
	return vp, nil
}

func (p *Page) ScrollTo(ctx context.Context, x, y float64) error {
	_, err := p.page.Context(ctx).Eval(`(x, y) => window.scrollTo(x, y)`, x, y)
	if err != nil {
		return fmt.Errorf("rodhost: scroll: %w", err)
	}
	return nil
}

func (p *Page) ScrollIntoView(ctx context.Context, n domhost.Node, align domhost.Align) error {
	el, err := unwrap(n)
	if err != nil {
		return err
	}
	_, err = el.Context(ctx).Eval(`function (block) { this.scrollIntoView({block: block, inline: "nearest"}) }`, string(align))
	if err != nil {
		return fmt.Errorf("rodhost: scroll into view: %w", err)
	}
	return nil
}

func (p *Page) Focus(ctx context.Context, n domhost.Node) error {
	el, err := unwrap(n)
	if err != nil {
		return err
	}
	return el.Context(ctx).Focus()
}

func (p *Page) ActiveElement(ctx context.Context) (domhost.Node, error) {
	el, err := p.page.Context(ctx).Sleeper(rod.NotFoundSleeper).
		ElementByJS(rod.Eval(`() => document.activeElement === document.body ? null : document.activeElement`))
	if err != nil {
		var nf *rod.ElementNotFoundError
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, fmt.Errorf("rodhost: active element: %w", err)
	}
	return Element{el: el}, nil
}

// installKeyJS listens for keydown on the container. Tab is always
// suppressed because the decision is taken asynchronously in Go; other
// keys are forwarded without suppression.
const installKeyJS = `function (binding) {
	const h = (e) => {
		if (e.key === "Tab") e.preventDefault();
		window[binding]({key: e.key, shift: e.shiftKey});
	};
	this.addEventListener("keydown", h);
	window[binding + "_release"] = () => this.removeEventListener("keydown", h);
}`

// OnKeyDown exposes fn to the page and attaches a keydown listener to
// container. The returned release detaches both.
func (p *Page) OnKeyDown(ctx context.Context, container domhost.Node, fn domhost.KeyHandler) (func(), error) {
	el, err := unwrap(container)
	if err != nil {
		return nil, err
	}
	binding := fmt.Sprintf("__tourguideKey%d", p.seq.Add(1))
	handlerCtx := context.WithoutCancel(ctx)

	stop, err := p.page.Expose(binding, func(arg gson.JSON) (any, error) {
		fn(handlerCtx, domhost.KeyEvent{Key: arg.Get("key").Str(), Shift: arg.Get("shift").Bool()})
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("rodhost: expose key handler: %w", err)
	}
	if _, err := el.Context(ctx).Eval(installKeyJS, binding); err != nil {
		stop()
		return nil, fmt.Errorf("rodhost: install key listener: %w", err)
	}

	return func() {
		if _, err := p.page.Eval(`(b) => { const r = window[b + "_release"]; if (r) r(); }`, binding); err != nil {
			p.logger.Debug("rodhost: remove key listener failed", "error", err)
		}
		if err := stop(); err != nil {
			p.logger.Debug("rodhost: unexpose key handler failed", "error", err)
		}
	}, nil
}

func (p *Page) Location(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => window.location.pathname`)
	if err != nil {
		return "", fmt.Errorf("rodhost: location: %w", err)
	}
	return res.Value.Str(), nil
}

func (p *Page) SetStyle(ctx context.Context, n domhost.Node, props map[string]string) error {
	el, err := unwrap(n)
	if err != nil {
		return err
	}
	_, err = el.Context(ctx).Eval(`function (props) {
		for (const [k, v] of Object.entries(props)) this.style.setProperty(k, v);
	}`, props)
	if err != nil {
		return fmt.Errorf("rodhost: set style: %w", err)
	}
	return nil
}

func (p *Page) PerformanceEntries(ctx context.Context, entryTypes []string) ([]domhost.PerformanceEntry, error) {
	res, err := p.page.Context(ctx).Eval(`(types) => types.flatMap((t) =>
		performance.getEntriesByType(t).map((e) => ({
			name: e.name, entryType: e.entryType, startTime: e.startTime, duration: e.duration,
		})))`, entryTypes)
	if err != nil {
		return nil, fmt.Errorf("rodhost: performance entries: %w", err)
	}
	var out []domhost.PerformanceEntry
	if err := res.Value.Unmarshal(&out); err != nil {
		return nil, fmt.Errorf("rodhost: performance entries: %w", err)
	}
	return out, nil
}
