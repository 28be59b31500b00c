// CLAUDE:SUMMARY Brings a resolved target into a usable viewport position using a three-state visibility classification.
// Package visibility guarantees a resolved target is scrolled into view.
// Elements are classified from their bounding box against the viewport:
// fully visible elements are left alone, partially visible ones are
// centred, and invisible ones first get their layout container scrolled to
// its start before being centred.
package visibility

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/tourguide/domhost"
	"github.com/hazyhaar/tourguide/pace"
)

// State is the classification of an element against the viewport.
type State int

const (
	NotVisible State = iota
	PartiallyVisible
	FullyVisible
)

func (s State) String() string {
	switch s {
	case FullyVisible:
		return "fully-visible"
	case PartiallyVisible:
		return "partially-visible"
	default:
		return "not-visible"
	}
}

// Classify compares a viewport-relative box against the viewport size.
func Classify(r domhost.Rect, vp domhost.Viewport) State {
	if r.Empty() {
		return NotVisible
	}
	if r.Top >= 0 && r.Left >= 0 && r.Bottom() <= vp.Height && r.Right() <= vp.Width {
		return FullyVisible
	}
	if r.Bottom() > 0 && r.Top < vp.Height && r.Right() > 0 && r.Left < vp.Width {
		return PartiallyVisible
	}
	return NotVisible
}

// DefaultContainers are the landmark selectors tried, in order, as the
// scroll container of an invisible target.
var DefaultContainers = []string{
	"[data-tour-container]",
	"main",
	"[role='main']",
	".main-content",
	".layout-container",
	".container",
}

// Config for an Assurer.
type Config struct {
	// SettleDelay follows the final centring scroll. Default: 500ms.
	SettleDelay time.Duration
	// ContainerSettle follows the container scroll. Default: 300ms.
	ContainerSettle time.Duration
	// Containers overrides DefaultContainers.
	Containers []string
	Sleep      pace.Sleeper
	Logger     *slog.Logger
}

func (c *Config) defaults() {
	if c.SettleDelay <= 0 {
		c.SettleDelay = 500 * time.Millisecond
	}
	if c.ContainerSettle <= 0 {
		c.ContainerSettle = 300 * time.Millisecond
	}
	if len(c.Containers) == 0 {
		c.Containers = DefaultContainers
	}
	if c.Sleep == nil {
		c.Sleep = pace.Sleep
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Assurer scrolls targets into view on one host.
type Assurer struct {
	host domhost.Host
	cfg  Config
}

// New creates an Assurer.
func New(host domhost.Host, cfg Config) *Assurer {
	cfg.defaults()
	return &Assurer{host: host, cfg: cfg}
}

// State classifies n in the current viewport.
func (a *Assurer) State(ctx context.Context, n domhost.Node) (State, error) {
	r, err := a.host.Rect(ctx, n)
	if err != nil {
		return NotVisible, fmt.Errorf("visibility: rect: %w", err)
	}
	vp, err := a.host.Viewport(ctx)
	if err != nil {
		return NotVisible, fmt.Errorf("visibility: viewport: %w", err)
	}
	return Classify(r, vp), nil
}

// EnsureVisible returns once n is judged usable, after any settle delays.
func (a *Assurer) EnsureVisible(ctx context.Context, n domhost.Node) error {
	state, err := a.State(ctx, n)
	if err != nil {
		return err
	}
	log := a.cfg.Logger
	log.Debug("visibility: classified", "node", n.String(), "state", state.String())

	switch state {
	case FullyVisible:
		return nil

	case PartiallyVisible:
		if err := a.host.ScrollIntoView(ctx, n, domhost.AlignCenter); err != nil {
			return fmt.Errorf("visibility: center: %w", err)
		}
		return a.cfg.Sleep(ctx, a.cfg.SettleDelay)

	default:
		if c := a.container(ctx, n); c != nil {
			if err := a.host.ScrollIntoView(ctx, c, domhost.AlignStart); err != nil {
				log.Debug("visibility: container scroll failed", "container", c.String(), "error", err)
			} else if err := a.cfg.Sleep(ctx, a.cfg.ContainerSettle); err != nil {
				return err
			}
		}
		if err := a.host.ScrollIntoView(ctx, n, domhost.AlignCenter); err != nil {
			return fmt.Errorf("visibility: center: %w", err)
		}
		return a.cfg.Sleep(ctx, a.cfg.SettleDelay)
	}
}

// container returns the nearest landmark ancestor of n, trying landmark
// selectors in priority order.
func (a *Assurer) container(ctx context.Context, n domhost.Node) domhost.Node {
	for _, sel := range a.cfg.Containers {
		c, err := a.host.Closest(ctx, n, sel)
		if err != nil {
			a.cfg.Logger.Debug("visibility: container lookup failed", "selector", sel, "error", err)
			continue
		}
		if c != nil {
			return c
		}
	}
	return nil
}
