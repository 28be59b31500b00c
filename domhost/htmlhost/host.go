package htmlhost

import (
	"context"
	"fmt"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/hazyhaar/tourguide/domhost"
)

var _ domhost.Host = (*Document)(nil)
var _ domhost.Styler = (*Document)(nil)

func unwrap(n domhost.Node) (*html.Node, error) {
	e, ok := n.(Element)
	if !ok || e.N == nil {
		return nil, fmt.Errorf("htmlhost: foreign node %v", n)
	}
	return e.N, nil
}

func (d *Document) Query(_ context.Context, selector string) (domhost.Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("htmlhost: query %q: %w", selector, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := sel.MatchFirst(d.root); n != nil {
		return Element{N: n}, nil
	}
	return nil, nil
}

func (d *Document) QueryAll(_ context.Context, root domhost.Node, selector string) ([]domhost.Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("htmlhost: query %q: %w", selector, err)
	}
	start := d.root
	if root != nil {
		if start, err = unwrap(root); err != nil {
			return nil, err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domhost.Node
	for _, n := range sel.MatchAll(start) {
		if n == start {
			continue
		}
		out = append(out, Element{N: n})
	}
	return out, nil
}

// Closest returns the nearest ancestor of n (n excluded) matching selector.
func (d *Document) Closest(_ context.Context, n domhost.Node, selector string) (domhost.Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("htmlhost: closest %q: %w", selector, err)
	}
	hn, err := unwrap(n)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for p := hn.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && sel.Match(p) {
			return Element{N: p}, nil
		}
	}
	return nil, nil
}

func (d *Document) Attr(_ context.Context, n domhost.Node, name string) (string, bool, error) {
	hn, err := unwrap(n)
	if err != nil {
		return "", false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := attr(hn, name)
	return v, ok, nil
}

// Rect returns the laid out box relative to the current scroll offset.
// Elements never laid out report an empty box at the origin.
func (d *Document) Rect(_ context.Context, n domhost.Node) (domhost.Rect, error) {
	hn, err := unwrap(n)
	if err != nil {
		return domhost.Rect{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rects[hn]
	if !ok {
		return domhost.Rect{}, nil
	}
	r.Top -= d.vp.ScrollY
	r.Left -= d.vp.ScrollX
	return r, nil
}

func (d *Document) Same(_ context.Context, a, b domhost.Node) (bool, error) {
	an, err := unwrap(a)
	if err != nil {
		return false, err
	}
	bn, err := unwrap(b)
	if err != nil {
		return false, err
	}
	return an == bn, nil
}

func (d *Document) Viewport(context.Context) (domhost.Viewport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	vp := d.vp
	vp.DocumentHeight = d.documentHeightLocked()
	return vp, nil
}

func (d *Document) ScrollTo(_ context.Context, x, y float64) error {
	d.mu.Lock()
	moved := d.scrollLocked(x, y)
	hooks := d.onScroll
	pos := d.vp.ScrollY
	d.mu.Unlock()
	if moved {
		for _, h := range hooks {
			h(d, pos)
		}
	}
	return nil
}

func (d *Document) ScrollIntoView(ctx context.Context, n domhost.Node, align domhost.Align) error {
	hn, err := unwrap(n)
	if err != nil {
		return err
	}
	d.mu.Lock()
	r := d.rects[hn]
	vp := d.vp
	d.mu.Unlock()

	x, y := vp.ScrollX, r.Top
	if align == domhost.AlignCenter {
		y = r.Top + r.Height/2 - vp.Height/2
		if r.Right() > vp.Width {
			x = r.Left + r.Width/2 - vp.Width/2
		}
	}
	return d.ScrollTo(ctx, x, y)
}

func (d *Document) Focus(_ context.Context, n domhost.Node) error {
	hn, err := unwrap(n)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.active = hn
	d.mu.Unlock()
	return nil
}

func (d *Document) ActiveElement(context.Context) (domhost.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil {
		return nil, nil
	}
	return Element{N: d.active}, nil
}

func (d *Document) OnKeyDown(_ context.Context, container domhost.Node, fn domhost.KeyHandler) (func(), error) {
	hn, err := unwrap(container)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners = append(d.listeners, listener{id: id, container: hn, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, l := range d.listeners {
			if l.id == id {
				d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
				return
			}
		}
	}, nil
}

// Listeners reports how many key listeners are installed.
func (d *Document) Listeners() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

func (d *Document) Location(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path, nil
}

func (d *Document) SetStyle(_ context.Context, n domhost.Node, props map[string]string) error {
	hn, err := unwrap(n)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.styles[hn]
	if st == nil {
		st = make(map[string]string, len(props))
		d.styles[hn] = st
	}
	for k, v := range props {
		st[k] = v
	}
	return nil
}

// defaultFocusable is the browser's sequential navigation order, simplified.
var defaultFocusable = cascadia.MustCompile("a[href], button, input, select, textarea, [tabindex]")

// Press dispatches a keydown to listeners whose container holds the focused
// element. An unconsumed Tab moves focus in document order, like a browser.
func (d *Document) Press(ctx context.Context, key string, shift bool) {
	d.mu.Lock()
	var handlers []domhost.KeyHandler
	for _, l := range d.listeners {
		if d.active != nil && contains(l.container, d.active) {
			handlers = append(handlers, l.fn)
		}
	}
	d.mu.Unlock()

	ev := domhost.KeyEvent{Key: key, Shift: shift}
	for _, h := range handlers {
		if h(ctx, ev) {
			return
		}
	}
	if key != "Tab" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	order := defaultFocusable.MatchAll(d.root)
	if len(order) == 0 {
		return
	}
	idx := -1
	for i, n := range order {
		if n == d.active {
			idx = i
			break
		}
	}
	switch {
	case shift && idx <= 0:
		d.active = order[len(order)-1]
	case shift:
		d.active = order[idx-1]
	case idx < 0 || idx == len(order)-1:
		d.active = order[0]
	default:
		d.active = order[idx+1]
	}
}
