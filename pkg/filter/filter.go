// Package filter reduces raw HTML to the fragments relevant for product
// extraction. Filters are composable: a Chain is itself a Filter, so chains
// nest without special cases.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// Filter is the single polymorphic capability of the content-filter algebra:
// reduce an HTML document to a list of string fragments.
type Filter interface {
	Apply(htmlContent string) ([]string, error)
	Name() string
}

// CSSFilter selects subtrees by CSS selector.
type CSSFilter struct {
	selector    string
	matcher     cascadia.Selector
	extractText bool
}

// NewCSS creates a CSS filter. The selector is validated at construction.
func NewCSS(selector string, extractText bool) (*CSSFilter, error) {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid CSS selector %q: %w", selector, err)
	}
	return &CSSFilter{
		selector:    selector,
		matcher:     matcher,
		extractText: extractText,
	}, nil
}

// Apply returns the matched elements as trimmed text or serialised HTML.
func (f *CSSFilter) Apply(htmlContent string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	var out []string
	doc.FindMatcher(f.matcher).Each(func(_ int, sel *goquery.Selection) {
		if f.extractText {
			if text := strings.TrimSpace(sel.Text()); text != "" {
				out = append(out, text)
			}
			return
		}
		if h, err := goquery.OuterHtml(sel); err == nil {
			out = append(out, strings.TrimSpace(h))
		}
	})
	return out, nil
}

func (f *CSSFilter) Name() string { return "css(" + f.selector + ")" }

// XPathFilter selects subtrees by XPath expression. Expressions that the
// XPath engine rejects fall back to a minimal emulation of the axis-free
// //tag[@attr='value'] subset.
type XPathFilter struct {
	expr        string
	compiled    *xpath.Expr
	fallback    cascadia.Selector
	extractText bool
}

// NewXPath creates an XPath filter, validating the expression at
// construction.
func NewXPath(expr string, extractText bool) (*XPathFilter, error) {
	f := &XPathFilter{expr: expr, extractText: extractText}

	compiled, err := xpath.Compile(expr)
	if err == nil {
		f.compiled = compiled
		return f, nil
	}

	if sel, ok := xpathToCSS(expr); ok {
		matcher, cerr := cascadia.Compile(sel)
		if cerr == nil {
			f.fallback = matcher
			return f, nil
		}
	}
	return nil, fmt.Errorf("invalid XPath expression %q: %w", expr, err)
}

// Apply evaluates the expression against the document.
func (f *XPathFilter) Apply(htmlContent string) ([]string, error) {
	doc, err := htmlquery.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	var nodes []*html.Node
	if f.compiled != nil {
		iter := f.compiled.Select(htmlquery.CreateXPathNavigator(doc))
		for iter.MoveNext() {
			nav, ok := iter.Current().(*htmlquery.NodeNavigator)
			if !ok {
				continue
			}
			nodes = append(nodes, nav.Current())
		}
	} else {
		nodes = f.fallback.MatchAll(doc)
	}

	var out []string
	for _, node := range nodes {
		if f.extractText {
			if text := strings.TrimSpace(htmlquery.InnerText(node)); text != "" {
				out = append(out, text)
			}
			continue
		}
		out = append(out, strings.TrimSpace(htmlquery.OutputHTML(node, true)))
	}
	return out, nil
}

func (f *XPathFilter) Name() string { return "xpath(" + f.expr + ")" }

// xpathAttrRe matches the //tag[@attr='value'] shape handled by the
// fallback.
var xpathAttrRe = regexp.MustCompile(`^//(\w+)(?:\[@([\w-]+)='([^']*)'\])?$`)

// xpathToCSS translates the simple //tag[@attr='value'] subset into a CSS
// selector.
func xpathToCSS(expr string) (string, bool) {
	m := xpathAttrRe.FindStringSubmatch(expr)
	if m == nil {
		return "", false
	}
	if m[2] == "" {
		return m[1], true
	}
	if m[2] == "class" {
		return m[1] + "." + strings.Join(strings.Fields(m[3]), "."), true
	}
	if m[2] == "id" {
		return m[1] + "#" + m[3], true
	}
	return fmt.Sprintf(`%s[%s="%s"]`, m[1], m[2], m[3]), true
}

// RegexFilter extracts or rewrites fragments by regular expression.
type RegexFilter struct {
	pattern     string
	re          *regexp.Regexp
	replacement *string
}

// NewRegex creates an extraction regex filter.
func NewRegex(pattern string) (*RegexFilter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}
	return &RegexFilter{pattern: pattern, re: re}, nil
}

// NewRegexReplace creates a substitution regex filter: the output is the
// whole input with every match replaced.
func NewRegexReplace(pattern, replacement string) (*RegexFilter, error) {
	f, err := NewRegex(pattern)
	if err != nil {
		return nil, err
	}
	f.replacement = &replacement
	return f, nil
}

// Apply returns the substituted document, or the group captures of each
// match when no replacement is configured.
func (f *RegexFilter) Apply(htmlContent string) ([]string, error) {
	if f.replacement != nil {
		return []string{f.re.ReplaceAllString(htmlContent, *f.replacement)}, nil
	}

	var out []string
	for _, match := range f.re.FindAllStringSubmatch(htmlContent, -1) {
		switch {
		case len(match) == 1:
			out = append(out, match[0])
		case len(match) == 2:
			out = append(out, match[1])
		default:
			out = append(out, strings.Join(match[1:], " "))
		}
	}
	return out, nil
}

func (f *RegexFilter) Name() string { return "regex(" + f.pattern + ")" }
