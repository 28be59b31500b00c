// CLAUDE:SUMMARY Accessibility focus trap: confines Tab/Shift+Tab navigation to a container's focusable descendants.
// Package focustrap confines keyboard focus inside a container such as a
// tour tooltip. Releasing the trap removes the key handler only; restoring
// the previously focused element is the caller's job.
package focustrap

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/tourguide/domhost"
)

// FocusableSelector matches interactive elements before filtering.
const FocusableSelector = `a[href], area[href], button, input, select, textarea, iframe, summary, [tabindex], [contenteditable]`

// Focusables returns the keyboard-reachable descendants of container in
// document order: tab index not negative, not disabled, rendered with a
// non-zero size.
func Focusables(ctx context.Context, host domhost.Host, container domhost.Node) ([]domhost.Node, error) {
	cands, err := host.QueryAll(ctx, container, FocusableSelector)
	if err != nil {
		return nil, fmt.Errorf("focustrap: query: %w", err)
	}

	var out []domhost.Node
	for _, n := range cands {
		ok, err := focusable(ctx, host, n)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func focusable(ctx context.Context, host domhost.Host, n domhost.Node) (bool, error) {
	if _, disabled, err := host.Attr(ctx, n, "disabled"); err != nil || disabled {
		return false, err
	}
	if typ, _, err := host.Attr(ctx, n, "type"); err != nil || strings.EqualFold(typ, "hidden") {
		return false, err
	}
	if ti, ok, err := host.Attr(ctx, n, "tabindex"); err != nil {
		return false, err
	} else if ok {
		if v, convErr := strconv.Atoi(strings.TrimSpace(ti)); convErr == nil && v < 0 {
			return false, nil
		}
	}
	if ce, ok, err := host.Attr(ctx, n, "contenteditable"); err != nil {
		return false, err
	} else if ok && strings.EqualFold(ce, "false") {
		return false, nil
	}
	r, err := host.Rect(ctx, n)
	if err != nil {
		return false, err
	}
	return !r.Empty(), nil
}

// Trap focuses the first focusable element of container and keeps Tab and
// Shift+Tab cycling inside it until release is called. With no focusable
// elements it installs nothing and returns a no-op release.
func Trap(ctx context.Context, host domhost.Host, container domhost.Node) (release func(), err error) {
	nodes, err := Focusables(ctx, host, container)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return func() {}, nil
	}

	if err := host.Focus(ctx, nodes[0]); err != nil {
		return nil, fmt.Errorf("focustrap: focus first: %w", err)
	}

	t := &trap{host: host, nodes: nodes}
	remove, err := host.OnKeyDown(ctx, container, t.onKey)
	if err != nil {
		return nil, fmt.Errorf("focustrap: install handler: %w", err)
	}
	return remove, nil
}

type trap struct {
	host  domhost.Host
	nodes []domhost.Node
}

// onKey handles every Tab inside the container so focus never leaves it.
func (t *trap) onKey(ctx context.Context, ev domhost.KeyEvent) bool {
	if ev.Key != "Tab" {
		return false
	}
	last := len(t.nodes) - 1
	idx := t.indexOfActive(ctx)

	var next int
	switch {
	case ev.Shift && idx <= 0:
		next = last
	case ev.Shift:
		next = idx - 1
	case idx < 0 || idx == last:
		next = 0
	default:
		next = idx + 1
	}
	// Consumed even if Focus fails, so focus stays inside.
	_ = t.host.Focus(ctx, t.nodes[next])
	return true
}

func (t *trap) indexOfActive(ctx context.Context) int {
	active, err := t.host.ActiveElement(ctx)
	if err != nil || active == nil {
		return -1
	}
	for i, n := range t.nodes {
		if same, err := t.host.Same(ctx, active, n); err == nil && same {
			return i
		}
	}
	return -1
}
