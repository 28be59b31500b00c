package resolve

import (
	"context"

	"github.com/hazyhaar/tourguide/domhost"
)

// scrollSearch splits the document height into equal bands, scrolls to
// each in increasing order and retries the direct selector after a pause.
// On exhaustion or cancellation the original offset is restored.
func (r *Resolver) scrollSearch(ctx context.Context, sel string) (domhost.Node, error) {
	log := r.cfg.Logger
	vp, err := r.host.Viewport(ctx)
	if err != nil {
		log.Debug("resolve: viewport unavailable, skipping scroll-search", "error", err)
		return nil, nil
	}

	origX, origY := vp.ScrollX, vp.ScrollY
	restore := func() {
		// The caller's context may be done; restoring must still happen.
		if err := r.host.ScrollTo(context.WithoutCancel(ctx), origX, origY); err != nil {
			log.Warn("resolve: restore scroll failed", "error", err)
		}
	}

	bands := r.cfg.ScrollBands
	band := vp.DocumentHeight / float64(bands)
	for i := 0; i < bands; i++ {
		y := float64(i) * band
		if err := r.host.ScrollTo(ctx, origX, y); err != nil {
			log.Debug("resolve: band scroll failed", "band", i, "error", err)
			continue
		}
		if err := r.cfg.Sleep(ctx, r.cfg.ScrollPause); err != nil {
			restore()
			return nil, err
		}
		n, err := r.query(ctx, sel)
		if err != nil {
			restore()
			return nil, err
		}
		if n != nil {
			log.Debug("resolve: found while scrolling", "selector", sel, "band", i, "offset", y)
			return n, nil
		}
	}

	restore()
	return nil, nil
}
