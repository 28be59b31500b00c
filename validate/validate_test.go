package validate

import (
	"strings"
	"testing"

	"github.com/hazyhaar/tourguide/tour"
)

func goodStep(id string) tour.Step {
	return tour.Step{
		ID:        id,
		Title:     "KPI widgets",
		Content:   "Your key project indicators live here.",
		Target:    `[data-tour="kpi-widgets"]`,
		Placement: tour.PlacementBottom,
	}
}

func TestStep_Valid(t *testing.T) {
	if errs := Step(goodStep("kpi")); len(errs) != 0 {
		t.Fatalf("Step: got %v, want no errors", errs)
	}
}

func TestStep_CollectsAllViolations(t *testing.T) {
	s := tour.Step{Target: "div[[", Placement: "diagonal"}
	errs := Step(s)

	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, f := range []string{"id", "title", "content", "target", "placement"} {
		if !fields[f] {
			t.Errorf("missing violation for %q in %v", f, errs)
		}
	}
}

func TestStep_PlacementNotInEnum(t *testing.T) {
	s := goodStep("x")
	s.Placement = "middle"
	errs := Step(s)
	if len(errs) != 1 || errs[0].Field != "placement" {
		t.Fatalf("Step: got %v, want one placement error", errs)
	}
}

func TestStep_BlankTitle(t *testing.T) {
	s := goodStep("x")
	s.Title = "   "
	errs := Step(s)
	if len(errs) != 1 || errs[0].Field != "title" {
		t.Fatalf("Step: got %v, want one title error", errs)
	}
}

func TestTour_MissingTargetOnStepTwo(t *testing.T) {
	s2 := goodStep("b")
	s2.Target = ""
	d := tour.Definition{
		ID:          "dashboard-intro",
		Name:        "Dashboard intro",
		Description: "Walkthrough of the project dashboard",
		Steps:       []tour.Step{goodStep("a"), s2, goodStep("c")},
	}

	errs := Tour(d)
	if len(errs) != 1 {
		t.Fatalf("Tour: got %d errors (%v), want 1", len(errs), errs)
	}
	if errs[0].Step != 2 || errs[0].Field != "target" {
		t.Fatalf("Tour: got %+v, want step 2 target", errs[0])
	}
	if len(errs.ForStep(1)) != 0 || len(errs.ForStep(3)) != 0 {
		t.Fatal("steps 1 and 3 should have no errors")
	}
}

func TestTour_EmptySteps(t *testing.T) {
	d := tour.Definition{ID: "t", Name: "n", Description: "d"}
	errs := Tour(d)
	if len(errs) != 1 || errs[0].Field != "steps" {
		t.Fatalf("Tour: got %v, want one steps error", errs)
	}
	if errs.Err() == nil {
		t.Fatal("Err should be non-nil")
	}
}

func TestTour_DuplicateStepIDs(t *testing.T) {
	d := tour.Definition{
		ID: "t", Name: "n", Description: "d",
		Steps: []tour.Step{goodStep("a"), goodStep("a")},
	}
	errs := Tour(d)
	if len(errs) != 1 || errs[0].Step != 2 || !strings.Contains(errs[0].Message, "duplicates step 1") {
		t.Fatalf("Tour: got %v", errs)
	}
}

func TestSelector(t *testing.T) {
	for _, s := range []string{`[data-tour="kpi"]`, "#sidebar", "nav .menu > a", "button:has(svg)"} {
		if err := Selector(s); err != nil {
			t.Errorf("Selector(%q): %v", s, err)
		}
	}
	for _, s := range []string{"", "   ", "div[[", "#"} {
		if err := Selector(s); err == nil {
			t.Errorf("Selector(%q): want error", s)
		}
	}
}

func TestDecode(t *testing.T) {
	src := `
id: staffing
name: Staffing
description: Staffing table tour
steps:
  - id: table
    title: Staffing table
    content: Crew allocation per site.
    target: "#staffing-table"
    placement: top
  - id: filters
    title: Filters
    content: Narrow by trade.
    target: ".filters"
    placement: sideways
`
	d, errs, err := Decode([]byte(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.ID != "staffing" || len(d.Steps) != 2 {
		t.Fatalf("Decode: got %+v", d)
	}
	if len(errs) != 1 || errs[0].Step != 2 || errs[0].Field != "placement" {
		t.Fatalf("Decode errors: got %v", errs)
	}

	if _, _, err := Decode([]byte("steps: [")); err == nil {
		t.Fatal("Decode: want parse error")
	}
}
