// Package dedup detects duplicate product records by shared identifiers
// or text similarity, and merges duplicate groups under configurable
// strategies.
package dedup

import (
	"fmt"
	"strings"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/pkg/product"
)

// DefaultThreshold is the similarity score at or above which a pair is
// considered duplicate.
const DefaultThreshold = 0.85

// Similarity weights. Brand and description only count when both
// products carry the field; the sum is renormalised accordingly.
const (
	titleWeight       = 0.5
	brandWeight       = 0.3
	descriptionWeight = 0.2
)

// Deduplicator groups and merges duplicate products.
type Deduplicator struct {
	threshold float64
}

// New creates a deduplicator. The threshold must be in [0, 1].
func New(threshold float64) (*Deduplicator, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("similarity threshold %v out of range [0, 1]", threshold)
	}
	return &Deduplicator{threshold: threshold}, nil
}

// Signature produces the comparable fingerprint of a product: its
// lower-cased identifiers plus normalised brand and title.
func Signature(p *product.ProductData) map[string]string {
	sig := make(map[string]string)
	for name, value := range p.Identifiers() {
		if v := normalize(value); v != "" {
			sig[name] = v
		}
	}
	if v := normalize(p.Brand); v != "" {
		sig["brand"] = v
	}
	if v := normalize(p.Title); v != "" {
		sig["title"] = v
	}
	return sig
}

// IsDuplicateByID reports whether any identifier field is present in
// both products and equal after trimming and lower-casing.
func IsDuplicateByID(a, b *product.ProductData) bool {
	ids := a.Identifiers()
	for name, bv := range b.Identifiers() {
		av := normalize(ids[name])
		if av != "" && av == normalize(bv) {
			return true
		}
	}
	return false
}

// Similarity scores how alike two products are, in [0, 1]. Identical
// products score exactly 1.
func Similarity(a, b *product.ProductData) float64 {
	var score, applied float64

	score += titleWeight * textSimilarity(a.Title, b.Title)
	applied += titleWeight

	if a.Brand != "" && b.Brand != "" {
		score += brandWeight * textSimilarity(a.Brand, b.Brand)
		applied += brandWeight
	}
	if a.Description != "" && b.Description != "" {
		score += descriptionWeight * textSimilarity(a.Description, b.Description)
		applied += descriptionWeight
	}

	if applied == 0 {
		return 0
	}
	return score / applied
}

// IsDuplicate reports whether the pair matches by id or crosses the
// similarity threshold.
func (d *Deduplicator) IsDuplicate(a, b *product.ProductData) bool {
	if IsDuplicateByID(a, b) {
		return true
	}
	return Similarity(a, b) >= d.threshold
}

// FindDuplicates groups duplicates greedily: each unassigned product
// starts a group and absorbs every later product that matches it.
// Singleton groups are discarded.
func (d *Deduplicator) FindDuplicates(products []*product.ProductData) [][]*product.ProductData {
	assigned := make([]bool, len(products))
	var groups [][]*product.ProductData

	for i := 0; i < len(products); i++ {
		if assigned[i] {
			continue
		}
		group := []*product.ProductData{products[i]}
		assigned[i] = true

		for j := i + 1; j < len(products); j++ {
			if assigned[j] {
				continue
			}
			if d.IsDuplicate(products[i], products[j]) {
				group = append(group, products[j])
				assigned[j] = true
			}
		}

		if len(group) > 1 {
			groups = append(groups, group)
		}
	}

	logger.Debug("duplicate scan complete",
		"products", len(products),
		"groups", len(groups))
	return groups
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// textSimilarity is the Sørensen–Dice coefficient over character
// bigrams of the normalised strings.
func textSimilarity(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	if len(a) < 2 || len(b) < 2 {
		return 0
	}

	bigrams := make(map[string]int)
	for i := 0; i < len(a)-1; i++ {
		bigrams[a[i:i+2]]++
	}

	var shared int
	for i := 0; i < len(b)-1; i++ {
		bg := b[i : i+2]
		if bigrams[bg] > 0 {
			bigrams[bg]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(a)-1+len(b)-1)
}
