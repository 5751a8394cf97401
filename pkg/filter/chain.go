package filter

import (
	"fmt"
	"strings"
)

// Strategy selects how a chain combines its filters' outputs.
type Strategy string

const (
	// StrategySequence folds the filters: the output fragments of step i
	// become the inputs of step i+1. An empty intermediate result
	// short-circuits to empty.
	StrategySequence Strategy = "sequence"
	// StrategyAll runs every filter on the same input and intersects the
	// outputs (exact string match after trimming).
	StrategyAll Strategy = "all"
	// StrategyAny runs every filter on the same input and unions the
	// outputs.
	StrategyAny Strategy = "any"
)

// Chain composes filters under a strategy. Chain itself implements Filter,
// so chains nest.
type Chain struct {
	filters  []Filter
	strategy Strategy
	name     string
}

// NewChain creates a chain. An empty filter list or an unknown strategy is
// a configuration error.
func NewChain(strategy Strategy, filters ...Filter) (*Chain, error) {
	if len(filters) == 0 {
		return nil, fmt.Errorf("filter chain requires at least one filter")
	}
	switch strategy {
	case StrategySequence, StrategyAll, StrategyAny:
	default:
		return nil, fmt.Errorf("unknown chain strategy %q", strategy)
	}
	return &Chain{filters: filters, strategy: strategy}, nil
}

// Named sets a display name, used by the fetcher as a header line when
// appending chain output to extracted content.
func (c *Chain) Named(name string) *Chain {
	c.name = name
	return c
}

// ChainName returns the display name, if any.
func (c *Chain) ChainName() string { return c.name }

// Strategy returns the chain's combination strategy.
func (c *Chain) Strategy() Strategy { return c.strategy }

// Apply runs the chain on one document.
func (c *Chain) Apply(htmlContent string) ([]string, error) {
	switch c.strategy {
	case StrategySequence:
		return c.applySequence(htmlContent)
	case StrategyAll:
		return c.applyAll(htmlContent)
	default:
		return c.applyAny(htmlContent)
	}
}

// applySequence feeds each stage's output fragments into the next stage.
func (c *Chain) applySequence(htmlContent string) ([]string, error) {
	inputs := []string{htmlContent}
	for _, f := range c.filters {
		var next []string
		for _, input := range inputs {
			frags, err := f.Apply(input)
			if err != nil {
				return nil, fmt.Errorf("chain stage %s: %w", f.Name(), err)
			}
			next = append(next, frags...)
		}
		if len(next) == 0 {
			return nil, nil
		}
		inputs = next
	}
	return inputs, nil
}

// applyAll intersects every filter's output on the same input.
func (c *Chain) applyAll(htmlContent string) ([]string, error) {
	var result map[string]bool
	for _, f := range c.filters {
		frags, err := f.Apply(htmlContent)
		if err != nil {
			return nil, fmt.Errorf("chain stage %s: %w", f.Name(), err)
		}
		set := make(map[string]bool, len(frags))
		for _, frag := range frags {
			set[strings.TrimSpace(frag)] = true
		}
		if result == nil {
			result = set
			continue
		}
		for frag := range result {
			if !set[frag] {
				delete(result, frag)
			}
		}
	}

	out := make([]string, 0, len(result))
	for frag := range result {
		out = append(out, frag)
	}
	return out, nil
}

// applyAny unions every filter's output on the same input, deduplicated.
func (c *Chain) applyAny(htmlContent string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, f := range c.filters {
		frags, err := f.Apply(htmlContent)
		if err != nil {
			return nil, fmt.Errorf("chain stage %s: %w", f.Name(), err)
		}
		for _, frag := range frags {
			trimmed := strings.TrimSpace(frag)
			if trimmed == "" || seen[trimmed] {
				continue
			}
			seen[trimmed] = true
			out = append(out, trimmed)
		}
	}
	return out, nil
}

// Name lists the chained filters.
func (c *Chain) Name() string {
	names := make([]string, len(c.filters))
	for i, f := range c.filters {
		names[i] = f.Name()
	}
	return string(c.strategy) + "(" + strings.Join(names, "->") + ")"
}
