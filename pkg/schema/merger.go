package schema

import (
	"strings"
	"unicode"
)

// attributePriority ranks extraction attributes for merging. Higher wins.
var attributePriority = map[string]int{
	"content":  6,
	"itemprop": 5,
	"src":      3,
	"href":     2,
	"alt":      1,
	"text":     0,
}

func attributeRank(attr string) int {
	if strings.HasPrefix(attr, "data-") {
		return 4
	}
	if rank, ok := attributePriority[attr]; ok {
		return rank
	}
	return 0
}

// SelectorSpecificity scores a CSS selector: ids count 100, classes and
// attribute filters count 10, bare element tags count 1.
func SelectorSpecificity(selector string) int {
	score := 0
	inTag := false
	for i, r := range selector {
		switch {
		case r == '#':
			score += 100
			inTag = false
		case r == '.' || r == '[':
			score += 10
			inTag = false
		case unicode.IsLetter(r):
			if !inTag && (i == 0 || isCombinator(rune(selector[i-1]))) {
				score++
			}
			inTag = true
		default:
			inTag = false
		}
	}
	return score
}

func isCombinator(r rune) bool {
	return r == ' ' || r == '>' || r == '+' || r == '~' || r == ','
}

// Merge combines schemas into one. Field order follows first appearance;
// when a field occurs in several schemas, each attribute takes the better
// value: the more specific selector (shorter on ties), the
// higher-priority attribute, required/array ORed, and the longer
// description. Alternative selectors are unioned, excluding the winning
// primary.
func Merge(schemas ...Schema) Schema {
	var out Schema
	index := make(map[string]int)

	for _, s := range schemas {
		if out.Name == "" {
			out.Name = s.Name
		}
		for _, f := range s.Fields {
			i, ok := index[f.Name]
			if !ok {
				index[f.Name] = len(out.Fields)
				out.Fields = append(out.Fields, f)
				continue
			}
			out.Fields[i] = mergeField(out.Fields[i], f)
		}
	}
	return out
}

func mergeField(a, b Field) Field {
	merged := a

	merged.Selector = betterSelector(a.Selector, b.Selector)
	if attributeRank(b.Attribute) > attributeRank(a.Attribute) {
		merged.Attribute = b.Attribute
	}
	merged.Required = a.Required || b.Required
	merged.Array = a.Array || b.Array
	if len(b.Description) > len(a.Description) {
		merged.Description = b.Description
	}
	if merged.PriceParsing == nil {
		merged.PriceParsing = b.PriceParsing
	}

	seen := map[string]bool{merged.Selector: true}
	merged.AlternativeSelectors = nil
	for _, sel := range append(append([]string{}, a.AlternativeSelectors...), loserSelector(a.Selector, b.Selector)) {
		if sel != "" && !seen[sel] {
			seen[sel] = true
			merged.AlternativeSelectors = append(merged.AlternativeSelectors, sel)
		}
	}
	for _, sel := range b.AlternativeSelectors {
		if sel != "" && !seen[sel] {
			seen[sel] = true
			merged.AlternativeSelectors = append(merged.AlternativeSelectors, sel)
		}
	}

	return merged
}

func betterSelector(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	sa, sb := SelectorSpecificity(a), SelectorSpecificity(b)
	if sb > sa {
		return b
	}
	if sb == sa && len(b) < len(a) {
		return b
	}
	return a
}

func loserSelector(a, b string) string {
	if betterSelector(a, b) == a {
		return b
	}
	return a
}

// Feedback reports which schema fields extracted successfully on a real
// page and which came back empty.
type Feedback struct {
	SuccessfulFields []string
	FailedFields     []string
}

// postProcessHints maps field names to the post-processing steps worth
// suggesting when direct extraction keeps failing.
var postProcessHints = map[string][]string{
	"price":  {"extract_price"},
	"title":  {"trim_whitespace"},
	"images": {"resolve_relative_urls"},
}

// Enhance adds alternative selectors and post-processing hints for the
// fields that failed, drawing on the built-in catalogue and the domain's
// extra fields. The result has passed the validator.
func Enhance(s Schema, fb Feedback, domain string) Schema {
	failed := make(map[string]bool, len(fb.FailedFields))
	for _, name := range fb.FailedFields {
		failed[name] = true
	}

	catalogue := make(map[string]catalogueEntry)
	for _, entry := range fieldCatalogue {
		catalogue[entry.name] = entry
	}
	for _, entry := range domainCatalogue[domain] {
		catalogue[entry.name] = entry
	}

	out := Schema{Name: s.Name}
	for _, f := range s.Fields {
		if !failed[f.Name] {
			out.Fields = append(out.Fields, f)
			continue
		}

		enhanced := f
		seen := map[string]bool{f.Selector: true}
		for _, sel := range f.AlternativeSelectors {
			seen[sel] = true
		}
		if entry, ok := catalogue[f.Name]; ok {
			for _, ws := range entry.selectors {
				if !seen[ws.selector] {
					seen[ws.selector] = true
					enhanced.AlternativeSelectors = append(enhanced.AlternativeSelectors, ws.selector)
				}
			}
		}
		fallback := DefaultSelector(f.Name)
		if !seen[fallback] {
			enhanced.AlternativeSelectors = append(enhanced.AlternativeSelectors, fallback)
		}
		for _, hint := range postProcessHints[f.Name] {
			if !containsString(enhanced.PostProcess, hint) {
				enhanced.PostProcess = append(enhanced.PostProcess, hint)
			}
		}
		out.Fields = append(out.Fields, enhanced)
	}

	corrected, _ := NewValidator().Correct(out)
	return corrected
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
