package filter

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PruningFilter keeps blocks whose structural importance clears a
// threshold. Importance combines a per-tag prior, text density, and an
// inverse link-density penalty; an optional query adds a keyword bonus.
// Scoring is pure, so output is deterministic for a given input.
type PruningFilter struct {
	query      string
	queryTerms []string
	threshold  float64
}

// tagWeights is the structural prior per element type.
var tagWeights = map[string]float64{
	"h1":         0.9,
	"h2":         0.8,
	"h3":         0.7,
	"p":          0.6,
	"td":         0.5,
	"li":         0.4,
	"dd":         0.4,
	"dt":         0.4,
	"figcaption": 0.4,
	"blockquote": 0.5,
	"h4":         0.5,
	"h5":         0.4,
	"h6":         0.4,
}

// NewPruning creates a structural pruning filter. threshold must be in
// [0, 1].
func NewPruning(query string, threshold float64) (*PruningFilter, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("pruning threshold must be in [0, 1], got %v", threshold)
	}
	return &PruningFilter{
		query:      query,
		queryTerms: tokenize(query),
		threshold:  threshold,
	}, nil
}

// Apply returns the text of every block scoring at or above the threshold,
// in document order.
func (f *PruningFilter) Apply(htmlContent string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer, header, aside").Remove()

	var out []string
	doc.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		if sel.ChildrenFiltered(blockSelector).Length() > 0 {
			return
		}
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		if f.score(sel, text) >= f.threshold {
			out = append(out, text)
		}
	})
	return out, nil
}

// score rates one block in [0, 1].
func (f *PruningFilter) score(sel *goquery.Selection, text string) float64 {
	score := tagWeights[goquery.NodeName(sel)]

	// Longer blocks carry more signal, capped so headings still compete.
	words := len(strings.Fields(text))
	score += minFloat(float64(words)/50, 0.3)

	// Penalise link-dominated blocks (navigation, related-product rails).
	linkLen := 0
	sel.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkLen += len(strings.TrimSpace(a.Text()))
	})
	if len(text) > 0 {
		score -= 0.5 * float64(linkLen) / float64(len(text))
	}

	// Keyword bonus when a query was given.
	if len(f.queryTerms) > 0 {
		lower := strings.ToLower(text)
		hits := 0
		for _, term := range f.queryTerms {
			if strings.Contains(lower, term) {
				hits++
			}
		}
		score += 0.3 * float64(hits) / float64(len(f.queryTerms))
	}

	return clamp01(score)
}

func (f *PruningFilter) Name() string { return "pruning" }

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
