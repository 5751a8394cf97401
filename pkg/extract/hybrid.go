package extract

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/pkg/fetch"
	"github.com/hexleaf/prodex/pkg/filter"
	"github.com/hexleaf/prodex/pkg/llm"
	"github.com/hexleaf/prodex/pkg/product"
)

// Merge priorities: when strategies disagree, the higher wins.
const (
	priorityAuto  = 4
	priorityLLM   = 3
	priorityCSS   = 2
	priorityXPath = 1
)

// HybridConfig selects which strategies run and how their results
// combine. Strategies execute in the fixed order auto, css, xpath, llm;
// Priority only matters for merging.
type HybridConfig struct {
	UseAutoSchema  bool
	UseFallbackLLM bool
	MergeResults   bool

	CSS       *CSSConfig
	XPath     map[string]XPathSpec
	LLMClient llm.Client
	LLMParams llm.Params

	Filters []*filter.Chain
	ForceJS bool
}

// Hybrid runs multiple extraction strategies over one fetched page and
// returns either the first success or a merged record.
type Hybrid struct {
	fetcher    *fetch.Fetcher
	config     HybridConfig
	strategies []Strategy
}

// NewHybrid creates the orchestrator. At least one strategy must be
// enabled by the config, otherwise every extraction fails.
func NewHybrid(fetcher *fetch.Fetcher, cfg HybridConfig) *Hybrid {
	h := &Hybrid{fetcher: fetcher, config: cfg}

	if cfg.UseAutoSchema {
		h.strategies = append(h.strategies, strategyFor(NewAuto(), priorityAuto))
	}
	if cfg.CSS != nil {
		h.strategies = append(h.strategies, strategyFor(NewCSS(*cfg.CSS), priorityCSS))
	}
	if cfg.XPath != nil {
		h.strategies = append(h.strategies, strategyFor(NewXPath(cfg.XPath), priorityXPath))
	}
	if cfg.LLMClient != nil {
		h.strategies = append(h.strategies, strategyFor(NewLLM(cfg.LLMClient, cfg.LLMParams), priorityLLM))
	}
	return h
}

// AddStrategy appends a custom strategy to the execution list.
func (h *Hybrid) AddStrategy(s Strategy) {
	h.strategies = append(h.strategies, s)
}

// Strategies lists the configured strategy names in execution order.
func (h *Hybrid) Strategies() []string {
	names := make([]string, len(h.strategies))
	for i, s := range h.strategies {
		names[i] = s.Name
	}
	return names
}

type attempt struct {
	strategy Strategy
	result   *product.ProductData
}

// Extract fetches the page once and runs the strategies over the cached
// HTML.
func (h *Hybrid) Extract(ctx context.Context, sourceURL string) *product.ProductData {
	res, err := h.fetcher.Crawl(ctx, sourceURL, fetch.Options{
		Filters: h.config.Filters,
		ForceJS: h.config.ForceJS,
	})
	if err != nil || !res.Success {
		if err != nil {
			logger.Warn("hybrid fetch failed", "url", sourceURL, "error", err)
		}
		return product.Failed(sourceURL)
	}

	return h.ExtractFromHTML(ctx, res.HTML, sourceURL)
}

// ExtractFromHTML runs the strategies over pre-fetched HTML.
func (h *Hybrid) ExtractFromHTML(ctx context.Context, htmlContent, sourceURL string) *product.ProductData {
	var successes []attempt
	for _, s := range h.strategies {
		p := s.Run(ctx, htmlContent, sourceURL)
		if p == nil || !p.ExtractionSuccess {
			logger.Debug("strategy produced no result", "strategy", s.Name, "url", sourceURL)
			continue
		}
		logger.Debug("strategy succeeded",
			"strategy", s.Name,
			"url", sourceURL,
			"fields", p.FilledFieldCount())
		successes = append(successes, attempt{strategy: s, result: p})
		if !h.config.MergeResults {
			break
		}
	}

	if len(successes) == 0 && h.config.UseFallbackLLM && h.config.LLMClient != nil {
		logger.Debug("all strategies failed, trying LLM fallback", "url", sourceURL)
		fb := NewLLM(h.config.LLMClient, h.config.LLMParams, WithFallbackPrompt())
		if p := fb.ExtractFromHTML(ctx, htmlContent, sourceURL); p.ExtractionSuccess {
			successes = append(successes, attempt{
				strategy: Strategy{Name: "llm-fallback", Priority: priorityLLM},
				result:   p,
			})
		}
	}

	switch len(successes) {
	case 0:
		return product.Failed(sourceURL)
	case 1:
		return successes[0].result
	}
	if !h.config.MergeResults {
		return successes[0].result
	}
	return mergeAttempts(successes, sourceURL)
}

// mergeAttempts folds the successful results in priority order.
func mergeAttempts(successes []attempt, sourceURL string) *product.ProductData {
	sort.SliceStable(successes, func(i, j int) bool {
		return successes[i].strategy.Priority > successes[j].strategy.Priority
	})

	merged := successes[0].result.Clone()
	names := []string{successes[0].strategy.Name}

	for _, a := range successes[1:] {
		names = append(names, a.strategy.Name)
		foldInto(merged, a.result)
	}

	merged.Source = sourceURL
	merged.ExtractedAt = time.Now().UTC()
	merged.ExtractionSuccess = true
	merged.RawData = map[string]any{"merged_strategies": strings.Join(names, ",")}
	return merged
}

// foldInto applies the merge rules for one lower-priority result.
func foldInto(merged, next *product.ProductData) {
	// Free text keeps the longer value.
	longer(&merged.Title, next.Title)
	longer(&merged.Description, next.Description)
	longer(&merged.ShortDescription, next.ShortDescription)
	longer(&merged.Brand, next.Brand)
	longer(&merged.Availability, next.Availability)
	longer(&merged.ShippingInfo, next.ShippingInfo)
	longer(&merged.Warranty, next.Warranty)
	longer(&merged.Dimensions, next.Dimensions)
	longer(&merged.Weight, next.Weight)
	longer(&merged.Material, next.Material)
	longer(&merged.Seller, next.Seller)
	longer(&merged.ReleaseDate, next.ReleaseDate)

	// Identifiers fill in when the higher-priority result lacked them.
	fill(&merged.SKU, next.SKU)
	fill(&merged.UPC, next.UPC)
	fill(&merged.EAN, next.EAN)
	fill(&merged.ISBN, next.ISBN)
	fill(&merged.MPN, next.MPN)
	fill(&merged.GTIN, next.GTIN)

	if priceFieldCount(next.Price) > priceFieldCount(merged.Price) {
		merged.Price = next.Price
	}
	if len(merged.Category) == 0 {
		merged.Category = next.Category
	}
	if len(merged.Variants) == 0 {
		merged.Variants = next.Variants
	}
	if len(merged.Reviews) == 0 {
		merged.Reviews = next.Reviews
	}

	merged.Images = unionImages(merged.Images, next.Images)
	merged.Attributes = unionAttributes(merged.Attributes, next.Attributes)
}

func longer(dst *string, candidate string) {
	if len(candidate) > len(*dst) {
		*dst = candidate
	}
}

func fill(dst *string, candidate string) {
	if *dst == "" {
		*dst = candidate
	}
}

// priceFieldCount counts the non-empty sub-fields of a price record.
func priceFieldCount(p product.Price) int {
	count := 0
	if p.CurrentPrice > 0 {
		count++
	}
	if p.Currency != "" {
		count++
	}
	if p.OriginalPrice != nil {
		count++
	}
	if p.DiscountPercentage != nil {
		count++
	}
	if p.DiscountAmount != nil {
		count++
	}
	if p.PricePerUnit != "" {
		count++
	}
	return count
}

func unionImages(a, b []product.Image) []product.Image {
	seen := make(map[string]bool, len(a))
	out := append([]product.Image(nil), a...)
	for _, img := range a {
		seen[img.URL] = true
	}
	for _, img := range b {
		if !seen[img.URL] {
			seen[img.URL] = true
			img.Position = len(out)
			out = append(out, img)
		}
	}
	return out
}

func unionAttributes(a, b []product.Attribute) []product.Attribute {
	seen := make(map[string]bool, len(a))
	out := append([]product.Attribute(nil), a...)
	for _, attr := range a {
		seen[strings.ToLower(attr.Name)] = true
	}
	for _, attr := range b {
		key := strings.ToLower(attr.Name)
		if !seen[key] {
			seen[key] = true
			out = append(out, attr)
		}
	}
	return out
}
