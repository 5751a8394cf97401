package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/pkg/llm"
	"github.com/hexleaf/prodex/pkg/product"
)

// LLMExtractor sends the page to a language model and parses its JSON
// reply into product data. With no client wired, extraction fails
// cleanly rather than inventing data.
type LLMExtractor struct {
	client   llm.Client
	params   llm.Params
	schema   string // JSON schema text included in the prompt, optional
	fallback bool   // use the fallback prompt instead of the schema-guided one
}

// LLMOption configures an LLMExtractor.
type LLMOption func(*LLMExtractor)

// WithSchemaJSON includes a schema in the extraction prompt.
func WithSchemaJSON(schemaJSON string) LLMOption {
	return func(e *LLMExtractor) { e.schema = schemaJSON }
}

// WithFallbackPrompt switches to the fallback prompt, used after a
// schema-based extraction has already failed.
func WithFallbackPrompt() LLMOption {
	return func(e *LLMExtractor) { e.fallback = true }
}

// NewLLM creates an LLM extractor. A nil client is allowed and produces
// failed extractions.
func NewLLM(client llm.Client, params llm.Params, opts ...LLMOption) *LLMExtractor {
	e := &LLMExtractor{client: client, params: params}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *LLMExtractor) Name() string { return "llm" }

// ExtractFromHTML prompts the model and normalises its JSON reply.
func (e *LLMExtractor) ExtractFromHTML(ctx context.Context, htmlContent, sourceURL string) *product.ProductData {
	if e.client == nil {
		logger.Debug("llm extraction skipped, no provider configured", "url", sourceURL)
		return product.Failed(sourceURL)
	}

	prompt := e.buildPrompt(htmlContent)
	reply, err := e.client.Complete(ctx, prompt, e.params)
	if err != nil {
		logger.Warn("llm extraction failed",
			"url", sourceURL,
			"provider", e.client.Name(),
			"error", err)
		return product.Failed(sourceURL)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(stripFence(reply)), &fields); err != nil {
		logger.Warn("llm reply is not valid JSON",
			"url", sourceURL,
			"provider", e.client.Name(),
			"error", err)
		return product.Failed(sourceURL)
	}

	p := product.Normalize(fields, sourceURL)
	if !p.ExtractionSuccess {
		p.Title = product.FailedTitle
	}
	return p
}

func (e *LLMExtractor) buildPrompt(htmlContent string) string {
	var b strings.Builder
	if e.fallback {
		b.WriteString(llm.FallbackExtractionPrompt)
	} else {
		b.WriteString(llm.ExtractionPrompt)
		if e.schema != "" {
			b.WriteString("\nSchema:\n")
			b.WriteString(e.schema)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nHTML:\n")
	b.WriteString(htmlContent)
	return b.String()
}

// stripFence removes a surrounding markdown code fence from a model
// reply, if present.
func stripFence(reply string) string {
	trimmed := strings.TrimSpace(reply)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
