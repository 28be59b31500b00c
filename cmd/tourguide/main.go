// CLAUDE:SUMMARY CLI entry point for tourguide: validate tour files, check a tour against a page, or serve the state API.
// Command tourguide validates, checks and serves guided product tours.
//
// Usage:
//
//	tourguide validate tours/*.yaml                       # structural validation
//	tourguide check -tour t.yaml -url https://app/dash    # run every step in Chrome
//	tourguide check -tour t.yaml -html page.html -path /dashboard
//	tourguide serve -config tourguide.yaml                # state + catalog API
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/tourguide/config"
	"github.com/hazyhaar/tourguide/tourlog"
)

var errUsage = errors.New("usage: tourguide validate|check|serve [flags]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		slog.Error("tourguide: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "validate":
		return runValidate(args[1:])
	case "check":
		return runCheck(ctx, args[1:])
	case "serve":
		return runServe(ctx, args[1:])
	default:
		return errUsage
	}
}

// commonFlags registers the flags every mode shares.
type commonFlags struct {
	configPath string
	logLevel   string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to tourguide.yaml")
	fs.StringVar(&c.logLevel, "log-level", "", "override log level: debug, info, warn, error")
}

// load reads the configuration and builds the process logger, which also
// becomes slog's default.
func (c *commonFlags) load() (*config.Config, *slog.Logger, error) {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(c.configPath); err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	logger := tourlog.New(cfg.Log, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
