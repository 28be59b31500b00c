// CLAUDE:SUMMARY In-memory DOM host: parsed HTML document with an explicit layout model, scroll offset, focus and key listeners.
// Package htmlhost implements domhost.Host over a parsed HTML document.
// Layout is not computed: callers assign rectangles in document coordinates
// with Layout and the host derives viewport-relative boxes from the scroll
// offset. It backs the test suite and static tour checks.
package htmlhost

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/hazyhaar/tourguide/domhost"
)

// Element wraps a parsed element node. Two Elements are equal when they wrap
// the same node.
type Element struct {
	N *html.Node
}

func (e Element) String() string {
	if e.N == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.N.Data)
	for _, a := range e.N.Attr {
		switch a.Key {
		case "id":
			b.WriteString("#" + a.Val)
		case "class":
			for _, c := range strings.Fields(a.Val) {
				b.WriteString("." + c)
			}
		case "data-tour":
			b.WriteString(`[data-tour="` + a.Val + `"]`)
		}
	}
	return b.String()
}

// ScrollEvent records one effective change of the scroll offset.
type ScrollEvent struct {
	X, Y float64
}

type listener struct {
	id        int
	container *html.Node
	fn        domhost.KeyHandler
}

// Document is a mutable in-memory page.
type Document struct {
	mu        sync.Mutex
	root      *html.Node
	path      string
	vp        domhost.Viewport
	rects     map[*html.Node]domhost.Rect
	styles    map[*html.Node]map[string]string
	active    *html.Node
	listeners []listener
	nextID    int
	scrolls   []ScrollEvent
	onScroll  []func(d *Document, y float64)
}

// Parse reads an HTML document. The viewport defaults to 1280x720.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmlhost: parse: %w", err)
	}
	return &Document{
		root:   root,
		path:   "/",
		vp:     domhost.Viewport{Width: 1280, Height: 720},
		rects:  make(map[*html.Node]domhost.Rect),
		styles: make(map[*html.Node]map[string]string),
	}, nil
}

// ParseString is Parse over a string.
func ParseString(src string) (*Document, error) {
	return Parse(strings.NewReader(src))
}

// MustParse panics on parse failure. For tests and fixtures.
func MustParse(src string) *Document {
	d, err := ParseString(src)
	if err != nil {
		panic(err)
	}
	return d
}

// SetLocation sets the URL path reported by Location.
func (d *Document) SetLocation(path string) {
	d.mu.Lock()
	d.path = path
	d.mu.Unlock()
}

// SetViewport sets the visible window size.
func (d *Document) SetViewport(width, height float64) {
	d.mu.Lock()
	d.vp.Width, d.vp.Height = width, height
	d.mu.Unlock()
}

// SetDocumentHeight fixes the scrollable height. When unset it is derived
// from the laid out elements.
func (d *Document) SetDocumentHeight(h float64) {
	d.mu.Lock()
	d.vp.DocumentHeight = h
	d.mu.Unlock()
}

// Layout assigns a document-coordinate box to every element matching selector.
func (d *Document) Layout(selector string, r domhost.Rect) error {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return fmt.Errorf("htmlhost: layout %q: %w", selector, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes := sel.MatchAll(d.root)
	if len(nodes) == 0 {
		return fmt.Errorf("htmlhost: layout %q: no match", selector)
	}
	for _, n := range nodes {
		d.rects[n] = r
	}
	return nil
}

// Find returns the first element matching selector, or a zero Element.
func (d *Document) Find(selector string) Element {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return Element{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return Element{N: sel.MatchFirst(d.root)}
}

// Append parses fragment and appends it to the first element matching
// parentSelector. Used to simulate components mounting late.
func (d *Document) Append(parentSelector, fragment string) error {
	sel, err := cascadia.Compile(parentSelector)
	if err != nil {
		return fmt.Errorf("htmlhost: append: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	parent := sel.MatchFirst(d.root)
	if parent == nil {
		return fmt.Errorf("htmlhost: append: %q not found", parentSelector)
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return fmt.Errorf("htmlhost: append: %w", err)
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	return nil
}

// OnScroll registers a hook run after every effective scroll.
func (d *Document) OnScroll(fn func(d *Document, y float64)) {
	d.mu.Lock()
	d.onScroll = append(d.onScroll, fn)
	d.mu.Unlock()
}

// ScrollEvents returns the effective scroll changes so far.
func (d *Document) ScrollEvents() []ScrollEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ScrollEvent, len(d.scrolls))
	copy(out, d.scrolls)
	return out
}

// Style returns the inline styles set through SetStyle.
func (d *Document) Style(n domhost.Node) map[string]string {
	e, ok := n.(Element)
	if !ok {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.styles[e.N]))
	for k, v := range d.styles[e.N] {
		out[k] = v
	}
	return out
}

func (d *Document) documentHeightLocked() float64 {
	if d.vp.DocumentHeight > 0 {
		return d.vp.DocumentHeight
	}
	h := d.vp.Height
	for _, r := range d.rects {
		if r.Bottom() > h {
			h = r.Bottom()
		}
	}
	return h
}

// scrollLocked applies a clamped scroll and reports whether it moved.
func (d *Document) scrollLocked(x, y float64) bool {
	maxY := d.documentHeightLocked() - d.vp.Height
	if maxY < 0 {
		maxY = 0
	}
	y = clamp(y, 0, maxY)
	if x < 0 {
		x = 0
	}
	if x == d.vp.ScrollX && y == d.vp.ScrollY {
		return false
	}
	d.vp.ScrollX, d.vp.ScrollY = x, y
	d.scrolls = append(d.scrolls, ScrollEvent{X: x, Y: y})
	return true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func contains(ancestor, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}
