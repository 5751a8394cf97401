package extract

import (
	"context"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/pkg/product"
	"github.com/hexleaf/prodex/pkg/schema"
)

// AutoExtractor infers a schema from the page structure and feeds it to
// the CSS extractor. Generated schemas are cached per domain and content
// hash, so repeat pages of the same layout skip inference.
type AutoExtractor struct {
	generator *schema.Generator
}

// NewAuto creates an auto-schema extractor with its own schema cache.
func NewAuto() *AutoExtractor {
	return &AutoExtractor{
		generator: schema.NewGenerator(schema.WithCache(schema.NewCache())),
	}
}

// NewAutoWithGenerator creates an auto-schema extractor around an
// existing generator, sharing its cache.
func NewAutoWithGenerator(g *schema.Generator) *AutoExtractor {
	return &AutoExtractor{generator: g}
}

func (e *AutoExtractor) Name() string { return "auto" }

// ExtractFromHTML generates a schema for the page and extracts with it.
func (e *AutoExtractor) ExtractFromHTML(ctx context.Context, htmlContent, sourceURL string) *product.ProductData {
	s, err := e.generator.Generate(htmlContent, sourceURL)
	if err != nil {
		logger.Warn("schema generation failed", "url", sourceURL, "error", err)
		return product.Failed(sourceURL)
	}

	css := NewCSS(CSSConfig{Selectors: SpecsFromSchema(s)})
	return css.ExtractFromHTML(ctx, htmlContent, sourceURL)
}
