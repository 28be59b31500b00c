package resolve

import (
	"regexp"
	"strings"

	"github.com/hazyhaar/tourguide/validate"
)

// synonyms are known alternate selectors for widely used widget names.
var synonyms = map[string][]string{
	"sidebar":       {"#sidebar", ".sidebar", "aside", ".ant-layout-sider", "[role='complementary']"},
	"header":        {"header", "#header", ".header", "[role='banner']", ".ant-layout-header"},
	"navigation":    {"nav", "#navigation", "[role='navigation']", ".navbar", ".nav-menu"},
	"search":        {"input[type='search']", "#search", ".search-input", "[role='search'] input"},
	"notifications": {"#notifications", ".notifications", ".notification-bell", "[aria-label*='otification']"},
	"user-menu":     {"#user-menu", ".user-menu", ".user-avatar", "[aria-label*='ccount']"},
	"main-content":  {"main", "#main-content", ".main-content", "[role='main']"},
	"filters":       {"#filters", ".filters", "[class*='filter']"},
}

var identifier = regexp.MustCompile(`^-?[_a-zA-Z][_a-zA-Z0-9-]*$`)

// FallbackSelectors derives alternate selectors for sel, most specific
// first. The list is built fresh on every call; the original selector and
// syntactically invalid variants are excluded.
func FallbackSelectors(sel, marker string) []string {
	sel = strings.TrimSpace(sel)
	var cands []string
	add := func(s ...string) { cands = append(cands, s...) }

	switch {
	case strings.HasPrefix(sel, "[") && attrSelector.MatchString(sel):
		name, _, value, _ := attrParts(sel)
		add(quoteVariants(name, value)...)
		for _, v := range caseVariants(value) {
			add(quoteVariants(name, v)...)
		}
		add(
			`[`+name+`*="`+value+`"]`,
			`[`+name+`^="`+value+`"]`,
		)
		add(identityForms(value, marker)...)
		if tok := leadingToken(value); tok != "" && tok != value {
			add(`[` + name + `*="` + tok + `"]`)
		}
		add(synonymsFor(value)...)

	case strings.HasPrefix(sel, "#") && identifier.MatchString(sel[1:]):
		id := sel[1:]
		add(`[id="`+id+`"]`, `[id*="`+id+`"]`)
		for _, v := range caseVariants(id) {
			add("#" + v)
		}
		add(identityForms(id, marker)...)
		add(synonymsFor(id)...)

	case strings.HasPrefix(sel, ".") && identifier.MatchString(sel[1:]):
		class := sel[1:]
		add(`[class~="`+class+`"]`, `[class*="`+class+`"]`)
		for _, v := range caseVariants(class) {
			add("." + v)
		}
		add(identityForms(class, marker)...)
		add(synonymsFor(class)...)

	default:
		if lower := strings.ToLower(sel); lower != sel {
			add(lower)
		}
	}

	return clean(sel, cands)
}

func quoteVariants(name, value string) []string {
	out := []string{
		`[` + name + `="` + value + `"]`,
		`[` + name + `='` + value + `']`,
	}
	if identifier.MatchString(value) {
		out = append(out, `[`+name+`=`+value+`]`)
	}
	return out
}

// caseVariants returns lower, upper, snake and kebab spellings that differ
// from v.
func caseVariants(v string) []string {
	var out []string
	for _, c := range []string{
		strings.ToLower(v),
		strings.ToUpper(v),
		strings.ReplaceAll(v, "-", "_"),
		strings.ReplaceAll(v, "_", "-"),
	} {
		if c != v {
			out = append(out, c)
		}
	}
	return out
}

// identityForms treats value as an id, class, marker or test id.
func identityForms(value, marker string) []string {
	out := []string{
		`[data-testid="` + value + `"]`,
		`[data-testid*="` + value + `"]`,
		`[` + marker + `="` + value + `"]`,
	}
	if identifier.MatchString(value) {
		out = append([]string{"#" + value, "." + value}, out...)
	}
	return out
}

func leadingToken(v string) string {
	tok := strings.FieldsFunc(v, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	if len(tok) == 0 || len(tok[0]) < 3 {
		return ""
	}
	return tok[0]
}

func synonymsFor(v string) []string {
	key := strings.ReplaceAll(strings.ToLower(v), "_", "-")
	return synonyms[key]
}

func clean(orig string, cands []string) []string {
	seen := map[string]bool{orig: true}
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		if seen[c] {
			continue
		}
		seen[c] = true
		if validate.Selector(c) != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}
