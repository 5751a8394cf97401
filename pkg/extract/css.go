package extract

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/pkg/product"
	"github.com/hexleaf/prodex/pkg/schema"
)

// SelectorSpec tells the CSS extractor how to read one field.
type SelectorSpec struct {
	Selector     string
	Attribute    string // "" or "text" reads text content
	Array        bool
	Alternatives []string // tried in order when the primary matches nothing
}

// CSSConfig configures the CSS extractor. The three attribute selectors
// drive name/value pair iteration for specification tables.
type CSSConfig struct {
	Selectors              map[string]SelectorSpec
	AttributesSelector     string
	AttributeNameSelector  string
	AttributeValueSelector string
}

// CSSExtractor reads fields with CSS selectors and funnels them through
// product.Normalize.
type CSSExtractor struct {
	config CSSConfig
}

// NewCSS creates a CSS extractor.
func NewCSS(cfg CSSConfig) *CSSExtractor {
	return &CSSExtractor{config: cfg}
}

// SpecsFromSchema converts a schema's fields to selector specs, carrying
// the alternatives along.
func SpecsFromSchema(s schema.Schema) map[string]SelectorSpec {
	specs := make(map[string]SelectorSpec, len(s.Fields))
	for _, f := range s.Fields {
		if f.Selector == "" {
			continue
		}
		specs[f.Name] = SelectorSpec{
			Selector:     f.Selector,
			Attribute:    f.Attribute,
			Array:        f.Array,
			Alternatives: f.AlternativeSelectors,
		}
	}
	return specs
}

func (e *CSSExtractor) Name() string { return "css" }

// ExtractFromHTML queries each configured selector and normalises the
// collected fields.
func (e *CSSExtractor) ExtractFromHTML(ctx context.Context, htmlContent, sourceURL string) *product.ProductData {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		logger.Warn("css extraction failed to parse HTML", "url", sourceURL, "error", err)
		return product.Failed(sourceURL)
	}

	fields := make(map[string]any)
	for name, spec := range e.config.Selectors {
		if err := ctx.Err(); err != nil {
			return product.Failed(sourceURL)
		}
		if val := e.extractField(doc, name, spec); val != nil {
			fields[name] = val
		}
	}

	if e.config.AttributesSelector != "" {
		if attrs := e.extractAttributePairs(doc); len(attrs) > 0 {
			fields["attributes"] = attrs
		}
	}

	p := product.Normalize(fields, sourceURL)
	if !p.ExtractionSuccess {
		p.Title = product.FailedTitle
	}
	return p
}

// extractField reads one field, falling back through the alternative
// selectors until something matches.
func (e *CSSExtractor) extractField(doc *goquery.Document, name string, spec SelectorSpec) any {
	selectors := append([]string{spec.Selector}, spec.Alternatives...)
	for _, selector := range selectors {
		if selector == "" {
			continue
		}
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		if name == "images" {
			return extractImages(sel, spec.Attribute)
		}
		if spec.Array {
			var values []any
			sel.Each(func(_ int, s *goquery.Selection) {
				if v := readValue(s, spec.Attribute); v != "" {
					values = append(values, v)
				}
			})
			if len(values) > 0 {
				return values
			}
			continue
		}
		if v := readValue(sel.First(), spec.Attribute); v != "" {
			return v
		}
	}
	return nil
}

// extractAttributePairs iterates specification rows and collects
// name/value pairs.
func (e *CSSExtractor) extractAttributePairs(doc *goquery.Document) []any {
	var out []any
	doc.Find(e.config.AttributesSelector).Each(func(_ int, row *goquery.Selection) {
		name := strings.TrimSpace(row.Find(e.config.AttributeNameSelector).First().Text())
		value := strings.TrimSpace(row.Find(e.config.AttributeValueSelector).First().Text())
		if name != "" {
			out = append(out, map[string]any{"name": name, "value": value})
		}
	})
	return out
}

func extractImages(sel *goquery.Selection, attribute string) []any {
	if attribute == "" || attribute == "text" {
		attribute = "src"
	}
	var out []any
	sel.Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr(attribute)
		if !ok || strings.TrimSpace(src) == "" {
			return
		}
		img := map[string]any{"url": strings.TrimSpace(src)}
		if alt, ok := s.Attr("alt"); ok && alt != "" {
			img["alt_text"] = alt
		}
		out = append(out, img)
	})
	return out
}

func readValue(s *goquery.Selection, attribute string) string {
	if attribute == "" || attribute == "text" {
		return strings.TrimSpace(s.Text())
	}
	val, _ := s.Attr(attribute)
	return strings.TrimSpace(val)
}
