package extract

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hexleaf/prodex/pkg/llm"
	"github.com/hexleaf/prodex/pkg/product"
)

func fixedStrategy(name string, priority int, p *product.ProductData) Strategy {
	return Strategy{
		Name:     name,
		Priority: priority,
		Run: func(context.Context, string, string) *product.ProductData {
			return p
		},
	}
}

func successProduct(title string) *product.ProductData {
	return &product.ProductData{
		Title:             title,
		Price:             product.Price{CurrentPrice: 9.99, Currency: "USD"},
		ExtractionSuccess: true,
		ExtractedAt:       time.Now().UTC(),
	}
}

func TestHybrid_FirstSuccessWithoutMerge(t *testing.T) {
	h := NewHybrid(nil, HybridConfig{})
	h.AddStrategy(fixedStrategy("a", 1, product.Failed(pageURL)))
	h.AddStrategy(fixedStrategy("b", 2, successProduct("From B")))
	h.AddStrategy(fixedStrategy("c", 3, successProduct("From C")))

	p := h.ExtractFromHTML(context.Background(), productPage, pageURL)
	if p.Title != "From B" {
		t.Errorf("title = %q, want first success", p.Title)
	}
}

func TestHybrid_AllFail(t *testing.T) {
	h := NewHybrid(nil, HybridConfig{})
	h.AddStrategy(fixedStrategy("a", 1, product.Failed(pageURL)))

	p := h.ExtractFromHTML(context.Background(), productPage, pageURL)
	if p.ExtractionSuccess || p.Title != product.FailedTitle {
		t.Errorf("expected failure, got %+v", p)
	}
}

func TestHybrid_MergeRules(t *testing.T) {
	auto := successProduct("Alpha Widget")
	auto.Description = "Short."
	auto.Images = []product.Image{{URL: "/img/a.jpg"}}
	auto.Attributes = []product.Attribute{{Name: "Weight", Value: "120g"}}
	auto.Price = product.Price{CurrentPrice: 9.99}

	css := successProduct("Alpha Widget Deluxe Edition")
	css.Description = "A much longer description of the product."
	css.SKU = "AW-100"
	css.Images = []product.Image{{URL: "/img/a.jpg"}, {URL: "/img/b.jpg"}}
	css.Attributes = []product.Attribute{
		{Name: "weight", Value: "121g"},
		{Name: "Colour", Value: "Silver"},
	}
	css.Price = product.Price{CurrentPrice: 9.99, Currency: "USD"}

	h := NewHybrid(nil, HybridConfig{MergeResults: true})
	h.AddStrategy(fixedStrategy("auto", priorityAuto, auto))
	h.AddStrategy(fixedStrategy("css", priorityCSS, css))

	p := h.ExtractFromHTML(context.Background(), productPage, pageURL)
	if !p.ExtractionSuccess {
		t.Fatalf("merge failed: %+v", p)
	}

	// Free text keeps the longer value.
	if p.Title != "Alpha Widget Deluxe Edition" {
		t.Errorf("title = %q", p.Title)
	}
	if !strings.HasPrefix(p.Description, "A much longer") {
		t.Errorf("description = %q", p.Description)
	}
	// Identifiers fill in from lower priority.
	if p.SKU != "AW-100" {
		t.Errorf("sku = %q", p.SKU)
	}
	// Price with more sub-fields wins.
	if p.Price.Currency != "USD" {
		t.Errorf("price = %+v", p.Price)
	}
	// Images union by URL.
	if len(p.Images) != 2 {
		t.Errorf("images = %+v", p.Images)
	}
	// Attributes union by name, case-insensitive; auto's value wins.
	if len(p.Attributes) != 2 {
		t.Fatalf("attributes = %+v", p.Attributes)
	}
	for _, attr := range p.Attributes {
		if strings.EqualFold(attr.Name, "weight") && attr.Value != "120g" {
			t.Errorf("higher-priority attribute overwritten: %+v", attr)
		}
	}
	// Metadata set fresh.
	if p.Source != pageURL {
		t.Errorf("source = %q", p.Source)
	}
	if p.RawData["merged_strategies"] != "auto,css" {
		t.Errorf("raw data = %+v", p.RawData)
	}
}

func TestHybrid_PriorityOrderIndependentOfExecutionOrder(t *testing.T) {
	low := successProduct("Low Priority Title Longer")
	high := successProduct("High")
	high.Brand = "WidgetCo"

	h := NewHybrid(nil, HybridConfig{MergeResults: true})
	// Executed first but merged second.
	h.AddStrategy(fixedStrategy("xpath", priorityXPath, low))
	h.AddStrategy(fixedStrategy("auto", priorityAuto, high))

	p := h.ExtractFromHTML(context.Background(), productPage, pageURL)
	if p.Brand != "WidgetCo" {
		t.Errorf("brand = %q", p.Brand)
	}
	// Longer free text still wins regardless of priority.
	if p.Title != "Low Priority Title Longer" {
		t.Errorf("title = %q", p.Title)
	}
}

func TestHybrid_FallbackLLMRunsAfterTotalFailure(t *testing.T) {
	client := &stubClient{reply: `{"title": "Rescued Widget", "price": {"current_price": 5, "currency": "EUR"}}`}

	h := NewHybrid(nil, HybridConfig{
		UseFallbackLLM: true,
		LLMClient:      client,
		LLMParams:      llm.Params{},
	})
	// Replace the configured llm strategy with a failing one so only the
	// fallback path can succeed.
	h.strategies = []Strategy{fixedStrategy("css", priorityCSS, product.Failed(pageURL))}

	p := h.ExtractFromHTML(context.Background(), productPage, pageURL)
	if !p.ExtractionSuccess || p.Title != "Rescued Widget" {
		t.Fatalf("fallback not used: %+v", p)
	}
	if !strings.Contains(client.last, "already failed") {
		t.Error("fallback prompt variant not used")
	}
}

func TestHybrid_DefaultStrategyOrder(t *testing.T) {
	h := NewHybrid(nil, HybridConfig{
		UseAutoSchema: true,
		CSS:           &CSSConfig{Selectors: map[string]SelectorSpec{"title": {Selector: "h1"}}},
		XPath:         map[string]XPathSpec{"title": {Expression: "//h1"}},
		LLMClient:     &stubClient{reply: "{}"},
	})

	got := strings.Join(h.Strategies(), ",")
	if got != "auto,css,xpath,llm" {
		t.Errorf("strategy order = %s", got)
	}
}
