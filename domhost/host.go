// CLAUDE:SUMMARY DOM host capability interface: query, scroll, viewport, focus and key handling over any rendering host.
// Package domhost defines the capability set the tour engine needs from a
// rendering host. Implementations live in htmlhost (in-memory document) and
// rodhost (Chrome over CDP).
package domhost

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupported is returned by optional capabilities a host does not provide.
var ErrUnsupported = errors.New("domhost: capability not supported")

// Node is an opaque handle to a live element owned by a Host.
type Node interface {
	fmt.Stringer
}

// Rect is an element's bounding box in viewport coordinates.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Bottom() float64 { return r.Top + r.Height }
func (r Rect) Right() float64  { return r.Left + r.Width }

// Empty reports whether the box has no rendered area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Viewport describes the visible window and the document it scrolls over.
type Viewport struct {
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	ScrollX        float64 `json:"scroll_x"`
	ScrollY        float64 `json:"scroll_y"`
	DocumentHeight float64 `json:"document_height"`
}

// Align is the scroll alignment used by ScrollIntoView.
type Align string

const (
	AlignStart  Align = "start"
	AlignCenter Align = "center"
)

// KeyEvent is a keydown delivered to a KeyHandler.
type KeyEvent struct {
	Key   string
	Shift bool
}

// KeyHandler reacts to a keydown inside a container. It returns true when it
// consumed the event; hosts then suppress their default behaviour.
type KeyHandler func(ctx context.Context, ev KeyEvent) bool

// Host is the DOM capability set. Query methods return (nil, nil) when
// nothing matches and an error only when the selector or host fails.
type Host interface {
	Query(ctx context.Context, selector string) (Node, error)
	QueryAll(ctx context.Context, root Node, selector string) ([]Node, error)
	Closest(ctx context.Context, n Node, selector string) (Node, error)

	Attr(ctx context.Context, n Node, name string) (string, bool, error)
	Rect(ctx context.Context, n Node) (Rect, error)
	Same(ctx context.Context, a, b Node) (bool, error)

	Viewport(ctx context.Context) (Viewport, error)
	ScrollTo(ctx context.Context, x, y float64) error
	ScrollIntoView(ctx context.Context, n Node, align Align) error

	Focus(ctx context.Context, n Node) error
	ActiveElement(ctx context.Context) (Node, error)
	OnKeyDown(ctx context.Context, container Node, fn KeyHandler) (release func(), err error)

	// Location returns the current URL path.
	Location(ctx context.Context) (string, error)
}

// Styler is implemented by hosts that can set inline styles. Animations need it.
type Styler interface {
	SetStyle(ctx context.Context, n Node, props map[string]string) error
}

// PerformanceEntry is one browser performance timeline entry.
type PerformanceEntry struct {
	Name      string  `json:"name"`
	EntryType string  `json:"entryType"`
	StartTime float64 `json:"startTime"`
	Duration  float64 `json:"duration"`
}

// PerformanceSource is implemented by hosts exposing a performance timeline.
type PerformanceSource interface {
	PerformanceEntries(ctx context.Context, entryTypes []string) ([]PerformanceEntry, error)
}
