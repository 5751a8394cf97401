package filter

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BM25 parameters; the usual defaults from the literature.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// BM25Filter keeps the text blocks most relevant to a query, ranked by the
// BM25 score of each block against the query terms. Output order follows
// document order, so results are deterministic for a given input.
type BM25Filter struct {
	query     string
	terms     []string
	threshold float64
}

// NewBM25 creates a BM25 relevance filter. threshold is the minimum score a
// block must reach, as a fraction of the best block's score in [0, 1].
func NewBM25(query string, threshold float64) (*BM25Filter, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, fmt.Errorf("BM25 query must contain at least one term")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("BM25 threshold must be in [0, 1], got %v", threshold)
	}
	return &BM25Filter{query: query, terms: terms, threshold: threshold}, nil
}

// Apply scores every text block against the query and returns those at or
// above the threshold.
func (f *BM25Filter) Apply(htmlContent string) ([]string, error) {
	blocks, err := textBlocks(htmlContent)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, nil
	}

	docs := make([][]string, len(blocks))
	totalLen := 0
	for i, block := range blocks {
		docs[i] = tokenize(block)
		totalLen += len(docs[i])
	}
	avgLen := float64(totalLen) / float64(len(docs))
	if avgLen == 0 {
		return nil, nil
	}

	// Document frequency per query term.
	df := make(map[string]int, len(f.terms))
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, tok := range doc {
			seen[tok] = true
		}
		for _, term := range f.terms {
			if seen[term] {
				df[term]++
			}
		}
	}

	n := float64(len(docs))
	scores := make([]float64, len(docs))
	best := 0.0
	for i, doc := range docs {
		tf := make(map[string]int, len(doc))
		for _, tok := range doc {
			tf[tok]++
		}
		var score float64
		for _, term := range f.terms {
			freq := float64(tf[term])
			if freq == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[term])+0.5)/(float64(df[term])+0.5))
			norm := freq * (bm25K1 + 1) /
				(freq + bm25K1*(1-bm25B+bm25B*float64(len(doc))/avgLen))
			score += idf * norm
		}
		scores[i] = score
		if score > best {
			best = score
		}
	}

	if best == 0 {
		return nil, nil
	}

	var out []string
	for i, block := range blocks {
		if scores[i] >= f.threshold*best && scores[i] > 0 {
			out = append(out, block)
		}
	}
	return out, nil
}

func (f *BM25Filter) Name() string { return "bm25(" + f.query + ")" }

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

func tokenize(s string) []string {
	return tokenRe.FindAllString(strings.ToLower(s), -1)
}

// blockSelector lists the elements treated as scoreable text blocks.
const blockSelector = "p, li, h1, h2, h3, h4, h5, h6, td, dd, dt, figcaption, blockquote"

// textBlocks extracts the candidate text fragments of a document in
// document order.
func textBlocks(htmlContent string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	var blocks []string
	doc.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		// Skip containers whose text comes from nested blocks.
		if sel.ChildrenFiltered(blockSelector).Length() > 0 {
			return
		}
		if text := strings.TrimSpace(sel.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		// Degenerate markup: fall back to whole-body text.
		if text := strings.TrimSpace(doc.Find("body").Text()); text != "" {
			blocks = append(blocks, strings.Join(strings.Fields(text), " "))
		}
	}
	return blocks, nil
}
