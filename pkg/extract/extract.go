// Package extract turns fetched product pages into ProductData through
// interchangeable strategies: direct CSS or XPath selectors, an
// auto-generated schema, or an LLM, orchestrated by the hybrid extractor.
package extract

import (
	"context"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/pkg/product"
)

// Extractor produces product data from already-fetched HTML. Extractors
// never return errors: failures yield a ProductData with
// ExtractionSuccess false and the failure title.
type Extractor interface {
	Name() string
	ExtractFromHTML(ctx context.Context, htmlContent, sourceURL string) *product.ProductData
}

// Strategy is one entry in the hybrid extractor's ordered list. Priority
// decides which strategy's values win during result merging, not the
// execution order.
type Strategy struct {
	Name     string
	Priority int
	Run      func(ctx context.Context, htmlContent, sourceURL string) *product.ProductData
}

// strategyFor wraps an extractor with a panic guard, so a misbehaving
// strategy degrades to a failed result instead of taking down the run.
func strategyFor(e Extractor, priority int) Strategy {
	return Strategy{
		Name:     e.Name(),
		Priority: priority,
		Run: func(ctx context.Context, htmlContent, sourceURL string) (p *product.ProductData) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("extractor panicked",
						"strategy", e.Name(),
						"url", sourceURL,
						"panic", r)
					p = product.Failed(sourceURL)
				}
			}()
			return e.ExtractFromHTML(ctx, htmlContent, sourceURL)
		},
	}
}
