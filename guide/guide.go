// CLAUDE:SUMMARY Step preparation pipeline: validate, resolve with retry, ensure visible, then report geometry and layout to the renderer.
// Package guide wires the tour engine together for an orchestrator. For
// each step it validates the definition, locates the target with bounded
// retries, scrolls it into view and reports what the renderer needs.
package guide

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/tourguide/animate"
	"github.com/hazyhaar/tourguide/config"
	"github.com/hazyhaar/tourguide/domhost"
	"github.com/hazyhaar/tourguide/focustrap"
	"github.com/hazyhaar/tourguide/pace"
	"github.com/hazyhaar/tourguide/perf"
	"github.com/hazyhaar/tourguide/recovery"
	"github.com/hazyhaar/tourguide/resolve"
	"github.com/hazyhaar/tourguide/tour"
	"github.com/hazyhaar/tourguide/tourlog"
	"github.com/hazyhaar/tourguide/tourstate"
	"github.com/hazyhaar/tourguide/validate"
	"github.com/hazyhaar/tourguide/visibility"
)

var (
	// ErrStepRange is returned for a step index outside the definition.
	ErrStepRange = errors.New("guide: step index out of range")
	// ErrInvalidStep wraps validation errors for the requested step.
	ErrInvalidStep = errors.New("guide: invalid step")
)

// Options for an Engine. Zero values get defaults.
type Options struct {
	Config  *config.Config
	Store   tourstate.Store
	Metrics *perf.Metrics
	Logger  *slog.Logger
	// Sleep replaces every timer the engine waits on.
	Sleep pace.Sleeper
}

// Engine prepares tour steps on one host.
type Engine struct {
	host     domhost.Host
	cfg      *config.Config
	store    tourstate.Store
	metrics  *perf.Metrics
	logger   *slog.Logger
	sleep    pace.Sleeper
	resolver *resolve.Resolver
	assurer  *visibility.Assurer
	anim     *animate.Animator
}

// New builds an Engine over host.
func New(host domhost.Host, opts Options) *Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := tourlog.OrDefault(opts.Logger)
	sleep := opts.Sleep
	if sleep == nil {
		sleep = pace.Sleep
	}
	store := opts.Store
	if store == nil {
		store = tourstate.NewManager(nil, nil, logger)
	}

	t := cfg.Tuning
	e := &Engine{
		host:    host,
		cfg:     cfg,
		store:   store,
		metrics: opts.Metrics,
		logger:  logger,
		sleep:   sleep,
	}
	e.resolver = resolve.New(host, resolve.Config{
		MarkerAttribute: cfg.Resolve.MarkerAttribute,
		Pages:           resolve.MergePages(resolve.DefaultPages(), pages(cfg.Resolve.Pages)),
		ScrollBands:     t.ScrollBands,
		ScrollPause:     t.ScrollPause,
		Sleep:           sleep,
		Metrics:         opts.Metrics,
		Logger:          logger,
	})
	e.assurer = visibility.New(host, visibility.Config{
		SettleDelay:     t.SettleDelay,
		ContainerSettle: t.ContainerSettle,
		Sleep:           sleep,
		Logger:          logger,
	})
	e.anim = animate.New(host, animate.Config{Duration: t.AnimationDuration, Sleep: sleep})
	return e
}

func pages(ms []config.PageMapping) []resolve.Page {
	out := make([]resolve.Page, 0, len(ms))
	for _, m := range ms {
		out = append(out, resolve.Page{Prefix: m.Prefix, Targets: m.Targets})
	}
	return out
}

// ShouldStart reports whether def may start on the current page: tours are
// available, def was not shown in this session and the page matches.
func (e *Engine) ShouldStart(ctx context.Context, def tour.Definition) bool {
	if !e.store.Availability(ctx) {
		return false
	}
	if e.store.WasShown(ctx, def.ID) {
		return false
	}
	if len(def.Pages) == 0 {
		return true
	}
	path, err := e.host.Location(ctx)
	if err != nil {
		e.logger.Debug("guide: location unavailable", "tour", def.ID, "error", err)
		return false
	}
	for _, p := range def.Pages {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Complete records def as shown for this session.
func (e *Engine) Complete(ctx context.Context, def tour.Definition) {
	e.store.MarkShown(ctx, def.ID)
	e.logger.Info("guide: tour completed", "tour", def.ID)
}

// Layout is what the renderer needs besides the target box.
type Layout struct {
	Mobile       bool          `json:"mobile"`
	Margin       float64       `json:"margin"`
	TooltipWidth float64       `json:"tooltip_width"`
	ZIndex       config.ZIndex `json:"z_index"`
}

// Prepared is a step ready to render.
type Prepared struct {
	Index     int            `json:"index"`
	Step      tour.Step      `json:"step"`
	Target    *tour.Target   `json:"-"`
	Rect      domhost.Rect   `json:"rect"`
	Placement tour.Placement `json:"placement"`
	Layout    Layout         `json:"layout"`
	// Skipped is set when an optional step's target could not be found.
	Skipped bool `json:"skipped,omitempty"`
}

// PrepareStep readies step idx of def. A required step whose target cannot
// be found fails with a *recovery.ExhaustedError wrapping resolve.ErrNotFound;
// an optional one is returned with Skipped set.
func (e *Engine) PrepareStep(ctx context.Context, def tour.Definition, idx int) (*Prepared, error) {
	if idx < 0 || idx >= len(def.Steps) {
		return nil, fmt.Errorf("%w: %d of %d", ErrStepRange, idx, len(def.Steps))
	}
	step := def.Steps[idx]
	if errs := validate.Step(step); len(errs) > 0 {
		return nil, fmt.Errorf("%w %d: %w", ErrInvalidStep, idx+1, errs.Err())
	}
	log := e.logger.With("tour", def.ID, "step", step.ID)

	locate := func(ctx context.Context) (*tour.Target, error) {
		return recovery.Retry(ctx, e.cfg.Tuning.SearchRetries, e.cfg.Tuning.SearchDelay,
			func(ctx context.Context) (*tour.Target, error) {
				return perf.Measure(ctx, log, e.metrics, "resolve", func(ctx context.Context) (*tour.Target, error) {
					return e.resolver.Resolve(ctx, step.Target)
				})
			},
			recovery.WithSleeper(e.sleep), recovery.WithLogger(log), recovery.WithName(step.ID))
	}

	var target *tour.Target
	if step.Optional {
		target = recovery.SafeExecute(ctx, log, locate, nil, "guide: optional step target unavailable")
		if target == nil {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return &Prepared{Index: idx, Step: step, Placement: step.Placement, Skipped: true}, nil
		}
	} else {
		var err error
		if target, err = locate(ctx); err != nil {
			return nil, fmt.Errorf("guide: step %d: %w", idx+1, err)
		}
	}

	if err := e.assurer.EnsureVisible(ctx, target.Node); err != nil {
		return nil, fmt.Errorf("guide: step %d: %w", idx+1, err)
	}
	p := &Prepared{Index: idx, Step: step, Target: target}
	if err := e.measure(ctx, p); err != nil {
		return nil, err
	}
	log.Debug("guide: step prepared", "tier", target.Tier, "placement", p.Placement, "mobile", p.Layout.Mobile)
	return p, nil
}

// measure fills geometry and layout for p from the current viewport.
func (e *Engine) measure(ctx context.Context, p *Prepared) error {
	r, err := e.host.Rect(ctx, p.Target.Node)
	if err != nil {
		return fmt.Errorf("guide: rect: %w", err)
	}
	vp, err := e.host.Viewport(ctx)
	if err != nil {
		return fmt.Errorf("guide: viewport: %w", err)
	}
	t := e.cfg.Tuning
	p.Rect = r
	p.Layout = Layout{
		Mobile:       vp.Width < t.MobileBreakpoint,
		Margin:       t.ViewportMargin,
		TooltipWidth: tooltipWidth(vp.Width, t),
		ZIndex:       t.ZIndex,
	}
	p.Placement = placement(p.Step.Placement, p.Layout.Mobile)
	return nil
}

// placement keeps side placements off narrow screens.
func placement(p tour.Placement, mobile bool) tour.Placement {
	if mobile && (p == tour.PlacementLeft || p == tour.PlacementRight) {
		return tour.PlacementBottom
	}
	return p
}

func tooltipWidth(viewport float64, t config.Tuning) float64 {
	w := viewport - 2*t.ViewportMargin
	if w > t.TooltipMaxWidth {
		w = t.TooltipMaxWidth
	}
	if w < t.TooltipMinWidth {
		w = t.TooltipMinWidth
	}
	return w
}

// Present fades the tooltip in and traps focus inside it. The returned
// release removes the trap.
func (e *Engine) Present(ctx context.Context, tooltip domhost.Node) (func(), error) {
	if err := e.anim.FadeIn(ctx, tooltip); err != nil {
		e.logger.Debug("guide: fade in failed", "error", err)
	}
	release, err := focustrap.Trap(ctx, e.host, tooltip)
	if err != nil {
		return nil, fmt.Errorf("guide: focus trap: %w", err)
	}
	return release, nil
}

// Dismiss releases the trap and fades the tooltip out.
func (e *Engine) Dismiss(ctx context.Context, tooltip domhost.Node, release func()) error {
	if release != nil {
		release()
	}
	return e.anim.FadeOut(ctx, tooltip)
}
