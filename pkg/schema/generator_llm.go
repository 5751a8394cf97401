package schema

import (
	"context"
	"strings"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/pkg/llm"
)

// GenerateWithLLM asks the model for a schema and blends it with the
// heuristic result. The model's output is never trusted as-is: it is
// parsed, validated, and corrected before merging.
func (g *Generator) GenerateWithLLM(ctx context.Context, client llm.Client, params llm.Params, htmlContent, sourceURL string) (Schema, error) {
	if client == nil {
		return Schema{}, llm.ErrNoClient
	}

	heuristic, err := g.Generate(htmlContent, sourceURL)
	if err != nil {
		return Schema{}, err
	}

	reply, err := client.Complete(ctx, llm.SchemaGenerationPrompt+htmlContent, params)
	if err != nil {
		logger.Warn("LLM schema generation failed, using heuristic schema",
			"provider", client.Name(),
			"error", err)
		return heuristic, nil
	}

	proposed, err := FromJSON([]byte(stripCodeFence(reply)))
	if err != nil {
		logger.Warn("LLM schema reply unparseable, using heuristic schema",
			"provider", client.Name(),
			"error", err)
		return heuristic, nil
	}
	corrected, _ := g.validator.Correct(proposed)

	merged := Merge(heuristic, corrected)
	merged.Name = "generated"
	logger.Debug("LLM schema blended",
		"heuristic_fields", len(heuristic.Fields),
		"llm_fields", len(corrected.Fields),
		"merged_fields", len(merged.Fields))
	return merged, nil
}

// stripCodeFence removes a surrounding markdown code fence from an LLM
// reply, if present.
func stripCodeFence(reply string) string {
	trimmed := strings.TrimSpace(reply)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
