// CLAUDE:SUMMARY Tour data model: steps, definitions, placements, resolution tiers and resolved targets.
// Package tour holds the data model shared by the tour engine: authored
// definitions and the targets the resolver hands back to an orchestrator.
package tour

import "github.com/hazyhaar/tourguide/domhost"

// Placement is where the renderer anchors the tooltip relative to the target.
type Placement string

const (
	PlacementTop    Placement = "top"
	PlacementBottom Placement = "bottom"
	PlacementLeft   Placement = "left"
	PlacementRight  Placement = "right"
	PlacementCenter Placement = "center"
)

// Placements lists the closed set of valid placements.
var Placements = []Placement{PlacementTop, PlacementBottom, PlacementLeft, PlacementRight, PlacementCenter}

// Valid reports whether p is a member of the closed placement set.
func (p Placement) Valid() bool {
	for _, v := range Placements {
		if p == v {
			return true
		}
	}
	return false
}

// Step is one stop in a tour.
type Step struct {
	ID        string    `yaml:"id" json:"id" validate:"required"`
	Title     string    `yaml:"title" json:"title" validate:"required"`
	Content   string    `yaml:"content" json:"content" validate:"required"`
	Target    string    `yaml:"target" json:"target" validate:"required"`
	Placement Placement `yaml:"placement" json:"placement" validate:"required,oneof=top bottom left right center"`

	// Optional steps may be skipped by the orchestrator when their target
	// cannot be resolved.
	Optional bool `yaml:"optional,omitempty" json:"optional,omitempty"`
}

// Definition is an ordered, named sequence of steps.
type Definition struct {
	ID          string `yaml:"id" json:"id" validate:"required"`
	Name        string `yaml:"name" json:"name" validate:"required"`
	Description string `yaml:"description" json:"description" validate:"required"`
	Steps       []Step `yaml:"steps" json:"steps" validate:"required,min=1"`

	// Pages restricts the tour to URL path prefixes. Empty means any page.
	Pages []string `yaml:"pages,omitempty" json:"pages,omitempty"`
}

// Tier identifies the resolution strategy that located a target.
type Tier string

const (
	TierDirect       Tier = "direct"
	TierSemantic     Tier = "semantic"
	TierFallback     Tier = "fallback"
	TierScrollSearch Tier = "scroll-search"
)

// Target is a live element located for a step. It is never persisted and the
// node belongs to the host document, not to the engine.
type Target struct {
	Node     domhost.Node
	Tier     Tier
	Selector string // the concrete selector that matched
}
