package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/tourguide/api"
	"github.com/hazyhaar/tourguide/catalog"
	"github.com/hazyhaar/tourguide/dbopen"
	"github.com/hazyhaar/tourguide/perf"
	"github.com/hazyhaar/tourguide/tourstate"
)

func runServe(ctx context.Context, args []string) error {
	var common commonFlags
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	common.register(fs)
	root := fs.String("root", ".", "directory the catalog patterns are relative to")
	addr := fs.String("addr", "", "listen address (overrides config)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	cfg, logger, err := common.load()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	var sessions tourstate.Sessions = tourstate.NewMemorySessions(logger)
	if cfg.Storage.Path != "" {
		db, err := dbopen.Open(cfg.Storage.Path, dbopen.WithMkdirAll(), dbopen.WithSchema(tourstate.Schema))
		if err != nil {
			return err
		}
		defer db.Close()
		sq, err := tourstate.NewSQLite(ctx, db)
		if err != nil {
			return err
		}
		sessions = sq.Sessions(logger)
		logger.Info("tourguide: sqlite state", "path", cfg.Storage.Path)
	}

	cat := catalog.New(*root, cfg.Catalog.Patterns, logger)
	if err := cat.Load(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pruneSessions(ctx, sessions, cfg.Storage.SessionTTL, logger)
		return nil
	})
	if cfg.Catalog.Watch {
		g.Go(func() error { return cat.Watch(ctx, cfg.Tuning.Debounce, nil) })
	}

	metrics := perf.NewMetrics("tourguide")
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.New(sessions, cat, metrics, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		logger.Info("tourguide: listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// pruneSessions drops sessions idle for longer than ttl.
func pruneSessions(ctx context.Context, sessions tourstate.Sessions, ttl time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(ttl / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.Prune(ctx, time.Now().Add(-ttl))
			if err != nil {
				logger.Warn("tourguide: prune sessions failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("tourguide: pruned sessions", "count", n)
			}
		}
	}
}
