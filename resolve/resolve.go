// CLAUDE:SUMMARY Target resolution engine: direct match, semantic page mapping, generated fallbacks, then banded scroll-and-search.
// Package resolve locates the live element for a tour step target. Tiers are
// tried in strict order and each only when the previous found nothing:
//
//  1. direct      the selector verbatim
//  2. semantic    per-page alternates for a logical marker name
//  3. fallback    syntactic variants and well-known widget synonyms
//  4. scroll-search  scroll the document band by band and retry direct
//
// Resolution only ever changes scroll position; it never mutates content.
package resolve

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/tourguide/domhost"
	"github.com/hazyhaar/tourguide/pace"
	"github.com/hazyhaar/tourguide/perf"
	"github.com/hazyhaar/tourguide/tour"
	"github.com/hazyhaar/tourguide/validate"
)

// ErrNotFound is returned when every tier is exhausted, or immediately for
// an empty or malformed selector.
var ErrNotFound = errors.New("resolve: target not found")

// Config for a Resolver.
type Config struct {
	// MarkerAttribute is the logical marker attribute. Default: data-tour.
	MarkerAttribute string
	// Pages is the semantic mapping table. Default: DefaultPages().
	Pages []Page
	// ScrollBands is the number of document bands visited. Default: 10.
	ScrollBands int
	// ScrollPause is the layout pause after each band scroll. Default: 100ms.
	ScrollPause time.Duration
	// Sleep replaces the pause timer.
	Sleep   pace.Sleeper
	Metrics *perf.Metrics
	Logger  *slog.Logger
}

func (c *Config) defaults() {
	if c.MarkerAttribute == "" {
		c.MarkerAttribute = "data-tour"
	}
	if c.Pages == nil {
		c.Pages = DefaultPages()
	}
	if c.ScrollBands <= 0 {
		c.ScrollBands = 10
	}
	if c.ScrollPause <= 0 {
		c.ScrollPause = 100 * time.Millisecond
	}
	if c.Sleep == nil {
		c.Sleep = pace.Sleep
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Resolver finds targets in one host. It holds no per-call state and is
// safe for concurrent use; concurrent scroll-searches may interleave.
type Resolver struct {
	host domhost.Host
	cfg  Config
}

// New creates a Resolver over host.
func New(host domhost.Host, cfg Config) *Resolver {
	cfg.defaults()
	return &Resolver{host: host, cfg: cfg}
}

// Resolve locates the element for selector. It returns ErrNotFound when no
// tier succeeds and the context error when ctx ends mid-search.
func (r *Resolver) Resolve(ctx context.Context, selector string) (*tour.Target, error) {
	log := r.cfg.Logger
	sel := strings.TrimSpace(selector)
	if err := validate.Selector(sel); err != nil {
		log.Debug("resolve: rejected selector", "selector", selector, "error", err)
		return nil, ErrNotFound
	}

	start := time.Now()
	t, err := r.resolve(ctx, sel)
	elapsed := time.Since(start)
	if err != nil {
		r.cfg.Metrics.ObserveMiss(elapsed)
		if errors.Is(err, ErrNotFound) {
			log.Warn("resolve: target not found", "selector", sel, "elapsed", elapsed)
		}
		return nil, err
	}

	r.cfg.Metrics.ObserveResolution(string(t.Tier), elapsed)
	log.Debug("resolve: target found",
		"selector", sel, "tier", t.Tier, "matched", t.Selector, "node", t.Node.String(), "elapsed", elapsed)
	return t, nil
}

func (r *Resolver) resolve(ctx context.Context, sel string) (*tour.Target, error) {
	if n, err := r.query(ctx, sel); err != nil || n != nil {
		return found(n, tour.TierDirect, sel), err
	}

	for _, alt := range r.semanticAlternates(ctx, sel) {
		if n, err := r.query(ctx, alt); err != nil || n != nil {
			return found(n, tour.TierSemantic, alt), err
		}
	}

	for _, alt := range FallbackSelectors(sel, r.cfg.MarkerAttribute) {
		if n, err := r.query(ctx, alt); err != nil || n != nil {
			return found(n, tour.TierFallback, alt), err
		}
	}

	n, err := r.scrollSearch(ctx, sel)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, ErrNotFound
	}
	return found(n, tour.TierScrollSearch, sel), nil
}

func found(n domhost.Node, tier tour.Tier, sel string) *tour.Target {
	if n == nil {
		return nil
	}
	return &tour.Target{Node: n, Tier: tier, Selector: sel}
}

// query runs one lookup. Host failures count as a miss; only context
// errors stop resolution.
func (r *Resolver) query(ctx context.Context, sel string) (domhost.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := r.host.Query(ctx, sel)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.cfg.Logger.Debug("resolve: query failed", "selector", sel, "error", err)
		return nil, nil
	}
	return n, nil
}

func (r *Resolver) semanticAlternates(ctx context.Context, sel string) []string {
	name, ok := MarkerName(sel, r.cfg.MarkerAttribute)
	if !ok {
		return nil
	}
	path, err := r.host.Location(ctx)
	if err != nil {
		r.cfg.Logger.Debug("resolve: location unavailable", "error", err)
		return nil
	}
	return Alternates(r.cfg.Pages, path, name)
}
