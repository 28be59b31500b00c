// CLAUDE:SUMMARY Fade and slide transitions applied through host inline styles when a tour step is shown or dismissed.
// Package animate runs the fade and slide transitions used when a step is
// presented or dismissed. Hosts that cannot set styles get no animation.
package animate

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/tourguide/domhost"
	"github.com/hazyhaar/tourguide/pace"
)

// Direction is the edge a slide starts from.
type Direction string

const (
	FromTop    Direction = "top"
	FromBottom Direction = "bottom"
	FromLeft   Direction = "left"
	FromRight  Direction = "right"
)

// Config for an Animator.
type Config struct {
	// Duration of each transition. Default: 200ms.
	Duration time.Duration
	// Easing is the CSS timing function. Default: ease-out.
	Easing string
	// Distance of a slide in pixels. Default: 12.
	Distance float64
	// ReducedMotion applies end states without transitions or waits.
	ReducedMotion bool
	Sleep         pace.Sleeper
}

func (c *Config) defaults() {
	if c.Duration <= 0 {
		c.Duration = 200 * time.Millisecond
	}
	if c.Easing == "" {
		c.Easing = "ease-out"
	}
	if c.Distance <= 0 {
		c.Distance = 12
	}
	if c.Sleep == nil {
		c.Sleep = pace.Sleep
	}
}

// Animator applies transitions on one host.
type Animator struct {
	styler domhost.Styler
	cfg    Config
}

// New returns an Animator. When host cannot set styles every method is a
// no-op.
func New(host domhost.Host, cfg Config) *Animator {
	cfg.defaults()
	s, _ := host.(domhost.Styler)
	return &Animator{styler: s, cfg: cfg}
}

// FadeIn takes n from transparent to opaque.
func (a *Animator) FadeIn(ctx context.Context, n domhost.Node) error {
	return a.run(ctx, n, map[string]string{"opacity": "0"}, map[string]string{"opacity": "1"})
}

// FadeOut takes n from opaque to transparent.
func (a *Animator) FadeOut(ctx context.Context, n domhost.Node) error {
	return a.run(ctx, n, map[string]string{"opacity": "1"}, map[string]string{"opacity": "0"})
}

// SlideIn moves n into place from dir while fading it in.
func (a *Animator) SlideIn(ctx context.Context, n domhost.Node, dir Direction) error {
	return a.run(ctx, n,
		map[string]string{"opacity": "0", "transform": a.offset(dir)},
		map[string]string{"opacity": "1", "transform": "none"})
}

// SlideOut moves n out towards dir while fading it out.
func (a *Animator) SlideOut(ctx context.Context, n domhost.Node, dir Direction) error {
	return a.run(ctx, n,
		map[string]string{"opacity": "1", "transform": "none"},
		map[string]string{"opacity": "0", "transform": a.offset(dir)})
}

func (a *Animator) offset(dir Direction) string {
	d := a.cfg.Distance
	switch dir {
	case FromTop:
		return fmt.Sprintf("translateY(-%gpx)", d)
	case FromLeft:
		return fmt.Sprintf("translateX(-%gpx)", d)
	case FromRight:
		return fmt.Sprintf("translateX(%gpx)", d)
	default:
		return fmt.Sprintf("translateY(%gpx)", d)
	}
}

func (a *Animator) run(ctx context.Context, n domhost.Node, from, to map[string]string) error {
	if a.styler == nil {
		return nil
	}
	if a.cfg.ReducedMotion {
		to["transition"] = "none"
		return a.styler.SetStyle(ctx, n, to)
	}

	from["transition"] = "none"
	if err := a.styler.SetStyle(ctx, n, from); err != nil {
		return fmt.Errorf("animate: start state: %w", err)
	}
	ms := a.cfg.Duration.Milliseconds()
	to["transition"] = fmt.Sprintf("opacity %dms %s, transform %dms %s", ms, a.cfg.Easing, ms, a.cfg.Easing)
	if err := a.styler.SetStyle(ctx, n, to); err != nil {
		return fmt.Errorf("animate: end state: %w", err)
	}
	return a.cfg.Sleep(ctx, a.cfg.Duration)
}
