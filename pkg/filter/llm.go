package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/pkg/llm"
)

// LLMFilter delegates fragment selection to an LLM: the instruction plus
// the page content are submitted, and the model's reply is returned as a
// fragment list, one fragment per non-empty line.
type LLMFilter struct {
	instruction string
	client      llm.Client
	params      llm.Params
	ctx         context.Context
}

// NewLLM creates an LLM content filter.
func NewLLM(instruction string, client llm.Client, params llm.Params) (*LLMFilter, error) {
	if client == nil {
		return nil, llm.ErrNoClient
	}
	if strings.TrimSpace(instruction) == "" {
		return nil, fmt.Errorf("LLM filter instruction must not be empty")
	}
	return &LLMFilter{
		instruction: instruction,
		client:      client,
		params:      params,
		ctx:         context.Background(),
	}, nil
}

// WithContext returns a copy bound to ctx for cancellation. The Filter
// interface is context-free because most filters are pure.
func (f *LLMFilter) WithContext(ctx context.Context) *LLMFilter {
	clone := *f
	clone.ctx = ctx
	return &clone
}

// Apply submits the content with the instruction and splits the reply into
// fragments.
func (f *LLMFilter) Apply(htmlContent string) ([]string, error) {
	prompt := "Extract the content fragments described by the instruction from the page below. " +
		"Return one fragment per line, with no numbering or commentary.\n\n" +
		"Instruction: " + f.instruction + "\n\nPage:\n" + htmlContent

	logger.Debug("llm filter starting",
		"provider", f.client.Name(),
		"content_size", len(htmlContent))

	reply, err := f.client.Complete(f.ctx, prompt, f.params)
	if err != nil {
		return nil, fmt.Errorf("LLM filter failed: %w", err)
	}

	var out []string
	for _, line := range strings.Split(reply, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, nil
}

func (f *LLMFilter) Name() string { return "llm" }
