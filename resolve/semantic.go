package resolve

import (
	"regexp"
	"sort"
	"strings"
)

// Page maps logical marker names to ordered alternate selectors for URL
// paths starting with Prefix.
type Page struct {
	Prefix  string
	Targets map[string][]string
}

// DefaultPages is the built-in semantic table for the dashboard pages.
func DefaultPages() []Page {
	return []Page{
		{Prefix: "/dashboard", Targets: map[string][]string{
			"kpi-widgets":      {".kpi-widgets", "#kpi-widgets", "[class*='kpi']", "[data-testid*='kpi']", ".dashboard-stats", ".stats-grid"},
			"project-overview": {".project-overview", "#project-overview", "[class*='project-overview']", "[class*='overview']"},
			"charts":           {".charts-section", "#charts", "[class*='chart-container']", "[class*='chart']", "canvas"},
			"recent-activity":  {".recent-activity", "#recent-activity", "[class*='activity']", ".timeline"},
			"safety-metrics":   {".safety-metrics", "[class*='safety']", "[data-testid*='safety']"},
			"budget-summary":   {".budget-summary", "[class*='budget']", "[data-testid*='budget']"},
		}},
		{Prefix: "/staffing", Targets: map[string][]string{
			"staffing-table":   {"#staffing-table", ".staffing-table", "[class*='staffing'] table", ".ant-table", "table"},
			"staffing-filters": {".staffing-filters", "[class*='filter']", "button:has(svg[data-icon='filter'])", "[aria-label*='filter']"},
			"add-staff":        {"button.add-staff", "[data-testid='add-staff']", "button:has(svg[data-icon='plus'])", "[aria-label*='Add']"},
			"crew-summary":     {".crew-summary", "[class*='crew']"},
		}},
		{Prefix: "/spcr", Targets: map[string][]string{
			"spcr-form":     {"#spcr-form", "form.spcr-form", "[class*='spcr'] form", "form"},
			"spcr-submit":   {"#spcr-submit", "form button[type='submit']", ".submit-button"},
			"spcr-history":  {".spcr-history", "[class*='history']"},
			"spcr-priority": {"[name='priority']", ".priority-select", "[class*='priority']"},
		}},
		{Prefix: "/gantt", Targets: map[string][]string{
			"gantt-chart":   {"#gantt", ".gantt-container", "[class*='gantt']"},
			"gantt-toolbar": {".gantt-toolbar", "[class*='gantt'] [role='toolbar']", "[role='toolbar']"},
			"gantt-zoom":    {".gantt-zoom", "button:has(svg[data-icon='zoom-in'])", "[aria-label*='oom']"},
		}},
		{Prefix: "/projects", Targets: map[string][]string{
			"project-list":   {"#project-list", ".project-list", "[class*='project-list']", ".ant-list"},
			"project-search": {".project-search input", "input[type='search']", "input[placeholder*='earch']"},
			"new-project":    {"button.new-project", "[data-testid='new-project']", "button:has(svg[data-icon='plus'])"},
		}},
	}
}

// MergePages overlays extra onto base. Pages with equal prefixes merge name
// by name with extra winning; new prefixes are appended.
func MergePages(base, extra []Page) []Page {
	out := make([]Page, 0, len(base)+len(extra))
	index := make(map[string]int, len(base))
	for _, p := range base {
		cp := Page{Prefix: p.Prefix, Targets: make(map[string][]string, len(p.Targets))}
		for k, v := range p.Targets {
			cp.Targets[k] = v
		}
		index[p.Prefix] = len(out)
		out = append(out, cp)
	}
	for _, p := range extra {
		i, ok := index[p.Prefix]
		if !ok {
			index[p.Prefix] = len(out)
			out = append(out, Page{Prefix: p.Prefix, Targets: make(map[string][]string)})
			i = len(out) - 1
		}
		for k, v := range p.Targets {
			out[i].Targets[k] = v
		}
	}
	return out
}

// Alternates returns the mapped selectors for name on path. When several
// prefixes match, the longest prefix comes first.
func Alternates(pages []Page, path, name string) []string {
	var matched []Page
	for _, p := range pages {
		if p.Prefix != "" && strings.HasPrefix(path, p.Prefix) {
			matched = append(matched, p)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return len(matched[i].Prefix) > len(matched[j].Prefix)
	})

	var out []string
	for _, p := range matched {
		out = append(out, p.Targets[name]...)
	}
	return out
}

var attrSelector = regexp.MustCompile(`^\[\s*([A-Za-z_][\w-]*)\s*([*^$|~]?=)\s*(?:"([^"]*)"|'([^']*)'|([^\]\s"']+))\s*\]$`)

// attrParts splits a single attribute selector into name, operator and value.
func attrParts(sel string) (name, op, value string, ok bool) {
	m := attrSelector.FindStringSubmatch(strings.TrimSpace(sel))
	if m == nil {
		return "", "", "", false
	}
	return m[1], m[2], m[3] + m[4] + m[5], true
}

// MarkerName extracts the logical name from a selector of the form
// [marker="name"].
func MarkerName(sel, marker string) (string, bool) {
	name, op, value, ok := attrParts(sel)
	if !ok || op != "=" || name != marker || value == "" {
		return "", false
	}
	return value, true
}
