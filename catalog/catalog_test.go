package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/tourguide/tourlog"
)

const validTour = `id: %s
name: Dashboard basics
description: Walk through the dashboard
steps:
  - id: kpis
    title: KPIs
    content: Your numbers at a glance
    target: '[data-tour="kpi-widgets"]'
    placement: bottom
`

const brokenTour = `id: broken
name: Broken
description: Second step has no target
steps:
  - id: one
    title: One
    content: First
    target: '#one'
    placement: top
  - id: two
    title: Two
    content: Second
    placement: top
`

func write(t *testing.T, root, rel, body string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func tourYAML(id string) string {
	return fmt.Sprintf(validTour, id)
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	write(t, root, "tours/dashboard.yaml", tourYAML("dashboard"))
	write(t, root, "tours/staffing/intro.yaml", tourYAML("staffing"))
	write(t, root, "tours/broken.yaml", brokenTour)
	write(t, root, "tours/dupe.yaml", tourYAML("dashboard"))
	write(t, root, "tours/notes.txt", "not a tour")
	write(t, root, "other/ignored.yaml", tourYAML("ignored"))

	c := New(root, []string{"tours/**/*.yaml"}, tourlog.Discard())
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	tours := c.Tours()
	if len(tours) != 2 || tours[0].ID != "dashboard" || tours[1].ID != "staffing" {
		t.Fatalf("Tours: got %v", tours)
	}
	if _, ok := c.Get("ignored"); ok {
		t.Fatal("file outside patterns must not load")
	}

	problems := c.Problems()
	if len(problems) != 2 {
		t.Fatalf("Problems: got %+v, want broken and duplicate", problems)
	}
	byPath := map[string]Problem{}
	for _, p := range problems {
		byPath[p.Path] = p
	}
	broken := byPath["tours/broken.yaml"]
	if len(broken.Issues) != 1 || broken.Issues[0].Step != 2 {
		t.Errorf("broken issues: got %+v, want one on step 2", broken.Issues)
	}
	if byPath["tours/dupe.yaml"].Error == "" {
		t.Error("duplicate id should be reported")
	}
}

func TestLoad_BadPattern(t *testing.T) {
	c := New(t.TempDir(), []string{"tours/[*.yaml"}, tourlog.Discard())
	if err := c.Load(context.Background()); err == nil {
		t.Fatal("Load: want error for malformed pattern")
	}
}

func TestWatch(t *testing.T) {
	root := t.TempDir()
	write(t, root, "tours/dashboard.yaml", tourYAML("dashboard"))

	c := New(root, []string{"tours/**/*.yaml"}, tourlog.Discard())
	if err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, 20*time.Millisecond, func() { reloaded <- struct{}{} }) }()

	deadline := time.After(5 * time.Second)
	for {
		write(t, root, "tours/gantt/gantt.yaml", tourYAML("gantt"))
		select {
		case <-reloaded:
		case <-time.After(200 * time.Millisecond):
			continue
		case <-deadline:
			t.Fatal("no reload after writing a tour")
		}
		if _, ok := c.Get("gantt"); ok {
			break
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}
