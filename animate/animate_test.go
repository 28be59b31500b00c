package animate

import (
	"context"
	"testing"
	"time"

	"github.com/hazyhaar/tourguide/domhost"
	"github.com/hazyhaar/tourguide/domhost/htmlhost"
)

type waits struct{ d []time.Duration }

func (w *waits) sleep(_ context.Context, d time.Duration) error {
	w.d = append(w.d, d)
	return nil
}

func TestFadeIn(t *testing.T) {
	doc := htmlhost.MustParse(`<div id="tip"></div>`)
	w := &waits{}
	a := New(doc, Config{Duration: 150 * time.Millisecond, Sleep: w.sleep})
	n := doc.Find("#tip")

	if err := a.FadeIn(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	st := doc.Style(n)
	if st["opacity"] != "1" {
		t.Errorf("opacity: got %q, want 1", st["opacity"])
	}
	if st["transition"] != "opacity 150ms ease-out, transform 150ms ease-out" {
		t.Errorf("transition: got %q", st["transition"])
	}
	if len(w.d) != 1 || w.d[0] != 150*time.Millisecond {
		t.Errorf("waits: got %v", w.d)
	}
}

func TestSlideOut(t *testing.T) {
	doc := htmlhost.MustParse(`<div id="tip"></div>`)
	a := New(doc, Config{Sleep: (&waits{}).sleep})
	n := doc.Find("#tip")

	if err := a.SlideOut(context.Background(), n, FromLeft); err != nil {
		t.Fatal(err)
	}
	st := doc.Style(n)
	if st["opacity"] != "0" || st["transform"] != "translateX(-12px)" {
		t.Fatalf("styles: got %v", st)
	}
}

func TestReducedMotion(t *testing.T) {
	doc := htmlhost.MustParse(`<div id="tip"></div>`)
	w := &waits{}
	a := New(doc, Config{ReducedMotion: true, Sleep: w.sleep})
	n := doc.Find("#tip")

	if err := a.SlideIn(context.Background(), n, FromBottom); err != nil {
		t.Fatal(err)
	}
	st := doc.Style(n)
	if st["transition"] != "none" || st["opacity"] != "1" || st["transform"] != "none" {
		t.Fatalf("styles: got %v", st)
	}
	if len(w.d) != 0 {
		t.Fatalf("reduced motion must not wait, got %v", w.d)
	}
}

type plainHost struct{ domhost.Host }

func TestNoStylerIsNoop(t *testing.T) {
	doc := htmlhost.MustParse(`<div id="tip"></div>`)
	a := New(plainHost{doc}, Config{})
	if err := a.FadeOut(context.Background(), doc.Find("#tip")); err != nil {
		t.Fatalf("FadeOut: %v", err)
	}
	if len(doc.Style(doc.Find("#tip"))) != 0 {
		t.Fatal("styles must be untouched without a styler")
	}
}
