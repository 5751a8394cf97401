package schema

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hexleaf/prodex/internal/logger"
)

// Domain labels inferred from the source URL. The label only tunes which
// extra catalogue fields are attempted.
const (
	DomainElectronics = "electronics"
	DomainFashion     = "fashion"
	DomainGrocery     = "grocery"
	DomainFurniture   = "furniture"
	DomainGeneral     = "general"
)

var priceShapeRe = regexp.MustCompile(`[$€£¥]|\d+[.,]\d{2}`)

// weightedSelector is a known selector with its preset base score.
type weightedSelector struct {
	selector string
	score    float64
}

// catalogueEntry drives candidate gathering for one product field.
type catalogueEntry struct {
	name      string
	selectors []weightedSelector
	keywords  []string
	pattern   *regexp.Regexp
	classHint string
	attribute string
	array     bool
	required  bool
}

var fieldCatalogue = []catalogueEntry{
	{
		name: "title",
		selectors: []weightedSelector{
			{"h1", 0.6},
			{".product-title", 0.8},
			{"[itemprop='name']", 0.9},
			{".product-name", 0.7},
		},
		classHint: "title",
		required:  true,
	},
	{
		name: "price",
		selectors: []weightedSelector{
			{"[itemprop='price']", 0.9},
			{".price", 0.7},
			{".product-price", 0.8},
			{".current-price", 0.8},
		},
		pattern:   priceShapeRe,
		classHint: "price",
		required:  true,
	},
	{
		name: "description",
		selectors: []weightedSelector{
			{"[itemprop='description']", 0.9},
			{".product-description", 0.8},
			{".description", 0.6},
			{"#description", 0.7},
		},
		classHint: "desc",
	},
	{
		name: "brand",
		selectors: []weightedSelector{
			{"[itemprop='brand']", 0.9},
			{".brand", 0.7},
			{".product-brand", 0.8},
		},
		keywords:  []string{"brand", "manufacturer"},
		classHint: "brand",
	},
	{
		name: "images",
		selectors: []weightedSelector{
			{"[itemprop='image']", 0.9},
			{".product-image img", 0.8},
			{".gallery img", 0.7},
		},
		attribute: "src",
		array:     true,
	},
	{
		name: "sku",
		selectors: []weightedSelector{
			{"[itemprop='sku']", 0.9},
			{".sku", 0.7},
		},
		keywords:  []string{"sku", "item number", "model no"},
		classHint: "sku",
	},
	{
		name: "availability",
		selectors: []weightedSelector{
			{"[itemprop='availability']", 0.9},
			{".availability", 0.7},
			{".stock", 0.6},
		},
		keywords:  []string{"in stock", "out of stock", "available"},
		classHint: "stock",
	},
}

// domainCatalogue adds fields only attempted for matching domains.
var domainCatalogue = map[string][]catalogueEntry{
	DomainElectronics: {
		{
			name: "specifications",
			selectors: []weightedSelector{
				{".specifications", 0.8},
				{".specs", 0.7},
				{".tech-specs", 0.7},
			},
			classHint: "spec",
			array:     true,
		},
		{
			name: "model",
			selectors: []weightedSelector{
				{".model", 0.7},
				{"[itemprop='model']", 0.9},
			},
			keywords: []string{"model"},
		},
	},
	DomainFashion: {
		{
			name: "sizes",
			selectors: []weightedSelector{
				{".sizes", 0.7},
				{".size-options", 0.8},
				{".size-selector", 0.7},
			},
			classHint: "size",
			array:     true,
		},
		{
			name: "colors",
			selectors: []weightedSelector{
				{".colors", 0.7},
				{".color-options", 0.8},
			},
			classHint: "color",
			array:     true,
		},
		{
			name: "material",
			selectors: []weightedSelector{
				{".material", 0.7},
				{"[itemprop='material']", 0.9},
			},
			keywords: []string{"material", "fabric"},
		},
	},
	DomainGrocery: {
		{
			name: "ingredients",
			selectors: []weightedSelector{
				{".ingredients", 0.8},
			},
			keywords: []string{"ingredients"},
		},
		{
			name: "nutrition",
			selectors: []weightedSelector{
				{".nutrition", 0.8},
				{".nutrition-facts", 0.8},
			},
			keywords: []string{"nutrition", "calories"},
			array:    true,
		},
	},
	DomainFurniture: {
		{
			name: "dimensions",
			selectors: []weightedSelector{
				{".dimensions", 0.8},
			},
			keywords: []string{"dimensions", "width", "height", "depth"},
		},
		{
			name: "material",
			selectors: []weightedSelector{
				{".material", 0.7},
			},
			keywords: []string{"material", "wood", "oak", "fabric"},
		},
	},
}

var domainURLHints = map[string][]string{
	DomainElectronics: {"electronic", "tech", "computer", "phone", "gadget"},
	DomainFashion:     {"fashion", "clothing", "apparel", "wear", "shoes"},
	DomainGrocery:     {"grocery", "food", "market", "fresh"},
	DomainFurniture:   {"furniture", "home", "decor", "interior"},
}

// DomainHint classifies a source URL into one of the known domains.
func DomainHint(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Host == "" {
		return DomainGeneral
	}
	haystack := strings.ToLower(u.Host + u.Path)
	for domain, hints := range domainURLHints {
		for _, hint := range hints {
			if strings.Contains(haystack, hint) {
				return domain
			}
		}
	}
	return DomainGeneral
}

// candidate is one scored element for a field.
type candidate struct {
	node     *html.Node
	selector string
	score    float64
}

// Generator builds extraction schemas from page structure heuristics.
type Generator struct {
	validator *Validator
	cache     *Cache
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithCache attaches a schema cache keyed by domain and content hash.
func WithCache(c *Cache) GeneratorOption {
	return func(g *Generator) { g.cache = c }
}

// NewGenerator creates a heuristic schema generator.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{validator: NewValidator()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds a schema for the page. The URL is optional and only
// used for domain hints and cache keying. The returned schema has passed
// the validator.
func (g *Generator) Generate(htmlContent, sourceURL string) (Schema, error) {
	if g.cache != nil {
		if cached, ok := g.cache.Get(sourceURL, htmlContent); ok {
			return cached, nil
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return Schema{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	domain := DomainHint(sourceURL)
	catalogue := fieldCatalogue
	catalogue = append(catalogue[:len(catalogue):len(catalogue)], domainCatalogue[domain]...)

	schema := Schema{Name: "generated"}
	used := make(map[*html.Node]bool)

	for _, entry := range catalogue {
		candidates := g.gather(doc, entry)
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].score > candidates[j].score
		})

		var best *candidate
		var alternatives []string
		for i := range candidates {
			c := &candidates[i]
			if best == nil {
				if used[c.node] {
					continue
				}
				best = c
				used[c.node] = true
				continue
			}
			if c.score >= 0.3 && c.selector != best.selector && len(alternatives) < 2 {
				alternatives = append(alternatives, c.selector)
			}
		}

		if best == nil {
			if entry.required {
				schema.Fields = append(schema.Fields, Field{
					Name:     entry.name,
					Required: true,
				})
			}
			continue
		}

		schema.Fields = append(schema.Fields, Field{
			Name:                 entry.name,
			Selector:             best.selector,
			Attribute:            entry.attribute,
			Required:             entry.required,
			Array:                entry.array,
			AlternativeSelectors: alternatives,
		})
	}

	corrected, corrections := g.validator.Correct(schema)
	logger.Debug("schema generated",
		"url", sourceURL,
		"domain", domain,
		"fields", len(corrected.Fields),
		"corrections", len(corrections),
		"quality", g.validator.QualityScore(corrected))

	if g.cache != nil {
		g.cache.Put(sourceURL, htmlContent, corrected)
	}
	return corrected, nil
}

// gather collects and scores candidate elements for one catalogue entry.
func (g *Generator) gather(doc *goquery.Document, entry catalogueEntry) []candidate {
	var out []candidate
	seen := make(map[*html.Node]bool)

	add := func(sel *goquery.Selection, base float64) {
		sel.Each(func(_ int, s *goquery.Selection) {
			node := s.Get(0)
			if seen[node] {
				return
			}
			seen[node] = true
			if entry.name == "images" && !imageUsable(s) {
				return
			}
			out = append(out, candidate{
				node:     node,
				selector: deriveSelector(s),
				score:    g.score(s, entry, base),
			})
		})
	}

	for _, ws := range entry.selectors {
		add(doc.Find(ws.selector), ws.score)
	}
	if len(entry.keywords) > 0 {
		doc.Find("span, div, p, li, td, dd").Each(func(_ int, s *goquery.Selection) {
			text := strings.ToLower(s.Text())
			for _, kw := range entry.keywords {
				if strings.Contains(text, kw) && len(text) < 200 {
					add(s, 0.4)
					return
				}
			}
		})
	}
	if entry.pattern != nil {
		doc.Find("span, div, p, td").Each(func(_ int, s *goquery.Selection) {
			text := s.Text()
			if len(text) < 60 && entry.pattern.MatchString(text) {
				add(s, 0.4)
			}
		})
	}
	if entry.classHint != "" {
		doc.Find("[class*='" + entry.classHint + "']").Each(func(_ int, s *goquery.Selection) {
			add(s, 0.5)
		})
	}

	return out
}

// score applies the structural bonuses to a candidate's base score.
func (g *Generator) score(s *goquery.Selection, entry catalogueEntry, base float64) float64 {
	score := base

	if goquery.NodeName(s) == "h1" {
		score += 0.2
	}
	if isHidden(s) {
		score -= 0.5
	}
	if id, ok := s.Attr("id"); ok && strings.Contains(strings.ToLower(id), entry.name) {
		score += 0.2
	}
	if class, ok := s.Attr("class"); ok && strings.Contains(strings.ToLower(class), entry.name) {
		score += 0.15
	}
	if entry.pattern != nil && entry.pattern.MatchString(s.Text()) {
		score += 0.2
	}
	if entry.name == "images" {
		class, _ := s.Parent().Attr("class")
		own, _ := s.Attr("class")
		combined := strings.ToLower(class + " " + own)
		if strings.Contains(combined, "product") || strings.Contains(combined, "main") {
			score += 0.2
		}
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// imageUsable filters out icons and spacer images.
func imageUsable(s *goquery.Selection) bool {
	src, _ := s.Attr("src")
	lower := strings.ToLower(src)
	if strings.HasSuffix(lower, ".gif") || strings.HasSuffix(lower, ".svg") {
		return false
	}
	for _, attr := range []string{"width", "height"} {
		if v, ok := s.Attr(attr); ok {
			if n, err := strconv.Atoi(strings.TrimSuffix(v, "px")); err == nil && n < 100 {
				return false
			}
		}
	}
	return true
}

func isHidden(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	style, _ := s.Attr("style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

// deriveSelector builds a stable CSS selector for the element: its id when
// present, otherwise tag plus first class, otherwise a short parent path.
func deriveSelector(s *goquery.Selection) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		return "#" + id
	}

	tag := goquery.NodeName(s)
	if class, ok := s.Attr("class"); ok {
		if first := firstClass(class); first != "" {
			sel := tag + "." + first
			if parent := s.Parent(); parent.Length() > 0 {
				if pc, ok := parent.Attr("class"); ok {
					if pf := firstClass(pc); pf != "" {
						return "." + pf + " " + sel
					}
				}
			}
			return sel
		}
	}

	// No id or class: qualify by the nearest classed ancestor.
	parent := s.Parent()
	for parent.Length() > 0 && goquery.NodeName(parent) != "body" {
		if pc, ok := parent.Attr("class"); ok {
			if pf := firstClass(pc); pf != "" {
				return "." + pf + " " + tag
			}
		}
		parent = parent.Parent()
	}
	return tag
}

func firstClass(class string) string {
	for _, c := range strings.Fields(class) {
		return c
	}
	return ""
}
