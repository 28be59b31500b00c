// CLAUDE:SUMMARY Loads authored tour definitions from glob patterns, validates them, and hot-reloads on file changes.
// Package catalog holds the authored tours served to orchestrators. Files
// are selected with doublestar patterns relative to a root directory and
// validated on load; invalid files are reported and left out.
package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/hazyhaar/tourguide/pace"
	"github.com/hazyhaar/tourguide/tour"
	"github.com/hazyhaar/tourguide/tourlog"
	"github.com/hazyhaar/tourguide/validate"
)

// Problem is a file that could not be loaded.
type Problem struct {
	Path   string          `json:"path"`
	Error  string          `json:"error,omitempty"`
	Issues validate.Errors `json:"issues,omitempty"`
}

// Catalog is a validated set of tours keyed by id.
type Catalog struct {
	root     string
	patterns []string
	logger   *slog.Logger

	mu       sync.RWMutex
	tours    map[string]tour.Definition
	sources  map[string]string
	problems []Problem
}

// New returns an empty catalog over root. Call Load to populate it.
func New(root string, patterns []string, logger *slog.Logger) *Catalog {
	return &Catalog{
		root:     root,
		patterns: patterns,
		logger:   tourlog.OrDefault(logger),
		tours:    make(map[string]tour.Definition),
		sources:  make(map[string]string),
	}
}

// Files lists the files matching the catalog patterns, relative to root.
func (c *Catalog) Files() ([]string, error) {
	fsys := os.DirFS(c.root)
	seen := make(map[string]bool)
	var out []string
	for _, p := range c.patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		ms, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("catalog: pattern %q: %w", p, err)
		}
		for _, m := range ms {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	slices.Sort(out)
	return out, nil
}

// Load rereads every matching file and swaps the catalog contents. A tour
// id defined twice keeps the first file in path order.
func (c *Catalog) Load(ctx context.Context) error {
	files, err := c.Files()
	if err != nil {
		return err
	}

	tours := make(map[string]tour.Definition, len(files))
	sources := make(map[string]string, len(files))
	var problems []Problem
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := fs.ReadFile(os.DirFS(c.root), rel)
		if err != nil {
			problems = append(problems, Problem{Path: rel, Error: err.Error()})
			continue
		}
		def, issues, err := validate.Decode(data)
		if err != nil {
			problems = append(problems, Problem{Path: rel, Error: err.Error()})
			continue
		}
		if len(issues) > 0 {
			problems = append(problems, Problem{Path: rel, Issues: issues})
			continue
		}
		if prev, dup := sources[def.ID]; dup {
			problems = append(problems, Problem{Path: rel, Error: fmt.Sprintf("tour %q already defined in %s", def.ID, prev)})
			continue
		}
		tours[def.ID] = *def
		sources[def.ID] = rel
	}

	c.mu.Lock()
	c.tours, c.sources, c.problems = tours, sources, problems
	c.mu.Unlock()

	for _, p := range problems {
		c.logger.Warn("catalog: file rejected", "path", p.Path, "error", p.Error, "issues", len(p.Issues))
	}
	c.logger.Info("catalog: loaded", "tours", len(tours), "rejected", len(problems))
	return nil
}

// Tours returns every loaded tour ordered by id.
func (c *Catalog) Tours() []tour.Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]tour.Definition, 0, len(c.tours))
	for _, d := range c.tours {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b tour.Definition) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Get returns the tour with id.
func (c *Catalog) Get(id string) (tour.Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.tours[id]
	return d, ok
}

// Problems returns the files rejected by the last Load.
func (c *Catalog) Problems() []Problem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.problems)
}

// Watch reloads the catalog when a matching file changes, once events have
// been quiet for debounce. onReload, if set, runs after each reload. Watch
// blocks until ctx is done.
func (c *Catalog) Watch(ctx context.Context, debounce time.Duration, onReload func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: watcher: %w", err)
	}
	defer w.Close()

	if err := c.addDirs(w, c.root); err != nil {
		return err
	}

	reload := pace.NewDebouncer(debounce, func() {
		if err := c.Load(ctx); err != nil {
			c.logger.Error("catalog: reload failed", "error", err)
			return
		}
		if onReload != nil {
			onReload()
		}
	})
	defer reload.Stop()

	c.logger.Info("catalog: watching", "root", c.root, "patterns", c.patterns)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := c.addDirs(w, ev.Name); err != nil {
						c.logger.Warn("catalog: watch dir failed", "path", ev.Name, "error", err)
					}
					reload.Trigger()
					continue
				}
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if c.matches(ev.Name) {
				c.logger.Debug("catalog: file changed", "path", ev.Name, "op", ev.Op.String())
				reload.Trigger()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Error("catalog: watcher error", "error", err)
		}
	}
}

func (c *Catalog) addDirs(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.Add(path); err != nil {
				return fmt.Errorf("catalog: watch %s: %w", path, err)
			}
		}
		return nil
	})
}

func (c *Catalog) matches(path string) bool {
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range c.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
