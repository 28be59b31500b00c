package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/hazyhaar/tourguide/config"
	"github.com/hazyhaar/tourguide/domhost"
	"github.com/hazyhaar/tourguide/domhost/htmlhost"
	"github.com/hazyhaar/tourguide/domhost/rodhost"
	"github.com/hazyhaar/tourguide/guide"
	"github.com/hazyhaar/tourguide/perf"
	"github.com/hazyhaar/tourguide/tour"
	"github.com/hazyhaar/tourguide/tourstate"
	"github.com/hazyhaar/tourguide/validate"
)

type stepReport struct {
	Step      int            `json:"step"`
	ID        string         `json:"id"`
	Tier      tour.Tier      `json:"tier,omitempty"`
	Matched   string         `json:"matched,omitempty"`
	Rect      *domhost.Rect  `json:"rect,omitempty"`
	Placement tour.Placement `json:"placement,omitempty"`
	Skipped   bool           `json:"skipped,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// runCheck walks every step of a tour on a page and reports how each
// target was found.
func runCheck(ctx context.Context, args []string) error {
	var common commonFlags
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	common.register(fs)
	tourPath := fs.String("tour", "", "tour definition (YAML or JSON)")
	pageURL := fs.String("url", "", "page to open in Chrome")
	htmlPath := fs.String("html", "", "static HTML file checked without a browser")
	path := fs.String("path", "/", "location path for -html")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *tourPath == "" || (*pageURL == "") == (*htmlPath == "") {
		return errUsage
	}
	cfg, logger, err := common.load()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(*tourPath)
	if err != nil {
		return err
	}
	def, issues, err := validate.Decode(data)
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return fmt.Errorf("tour %s: %w", *tourPath, issues)
	}

	host, store, closeHost, err := openHost(ctx, cfg, logger, *pageURL, *htmlPath, *path)
	if err != nil {
		return err
	}
	defer closeHost()

	metrics := perf.NewMetrics("tourguide")
	engine := guide.New(host, guide.Options{Config: cfg, Store: store, Metrics: metrics, Logger: logger})
	obs := perf.NewObserver(host, nil, func(entries []domhost.PerformanceEntry) {
		for _, e := range entries {
			logger.Debug("check: performance entry", "type", e.EntryType, "name", e.Name, "start", e.StartTime, "duration", e.Duration)
		}
	})

	enc := json.NewEncoder(os.Stdout)
	failed := 0
	for i := range def.Steps {
		p, err := engine.PrepareStep(ctx, *def, i)
		r := stepReport{Step: i + 1, ID: def.Steps[i].ID}
		switch {
		case err != nil:
			r.Error = err.Error()
			failed++
		case p.Skipped:
			r.Skipped = true
		default:
			r.Tier, r.Matched, r.Rect, r.Placement = p.Target.Tier, p.Target.Selector, &p.Rect, p.Placement
		}
		enc.Encode(r)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if obs != nil {
		if err := obs.Collect(ctx); err != nil {
			logger.Debug("check: performance timeline unavailable", "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d steps unresolved", failed, len(def.Steps))
	}
	return nil
}

// openHost returns the DOM host for the check and the tour state the page
// itself would see.
func openHost(ctx context.Context, cfg *config.Config, logger *slog.Logger, pageURL, htmlPath, path string) (domhost.Host, tourstate.Store, func(), error) {
	if htmlPath != "" {
		f, err := os.Open(htmlPath)
		if err != nil {
			return nil, nil, nil, err
		}
		defer f.Close()
		doc, err := htmlhost.Parse(f)
		if err != nil {
			return nil, nil, nil, err
		}
		doc.SetLocation(path)
		return doc, tourstate.NewManager(nil, nil, logger), func() {}, nil
	}

	b, err := rodhost.Launch(ctx, rodhost.Config{
		RemoteURL:         cfg.Browser.Remote,
		Mode:              rodhost.Mode(cfg.Browser.Stealth),
		Block:             cfg.Browser.Block,
		XvfbDisplay:       cfg.Browser.XvfbDisplay,
		ViewportWidth:     cfg.Browser.ViewportWidth,
		ViewportHeight:    cfg.Browser.ViewportHeight,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		Logger:            logger,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	page, err := b.Open(ctx, pageURL)
	if err != nil {
		b.Close()
		return nil, nil, nil, err
	}
	return page, page.Manager(), func() {
		page.Close()
		b.Close()
	}, nil
}
