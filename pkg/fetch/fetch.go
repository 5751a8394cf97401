// Package fetch retrieves product pages over HTTP or through a headless
// browser, with rate limiting and retry in front of both paths, and
// optional content filtering applied to the fetched HTML.
package fetch

import (
	"context"
	"fmt"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/internal/ratelimit"
	"github.com/hexleaf/prodex/pkg/filter"
	"github.com/hexleaf/prodex/pkg/retry"
)

// Chrome user agent for better compatibility
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config holds fetcher-wide settings. Per-request overrides live in
// Options.
type Config struct {
	UserAgent         string
	Timeout           time.Duration
	JSEnabled         bool
	RequestsPerMinute int
	Markdown          bool
	Retry             retry.Config
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:         defaultUserAgent,
		Timeout:           30 * time.Second,
		RequestsPerMinute: 60,
		Markdown:          true,
		Retry:             retry.DefaultConfig(),
	}
}

// Options controls a single crawl.
type Options struct {
	ForceJS         bool
	WaitForSelector string        // CSS selector to wait for (JS path)
	WaitForFunction string        // JS expression polled until truthy (JS path)
	SettleDelay     time.Duration // Additional wait after readiness
	Timeout         time.Duration
	Headers         map[string]string
	Filters         []*filter.Chain
}

// CrawlResult is the outcome of one crawl. Fetch failures are reported
// through Success and Error, not a Go error.
type CrawlResult struct {
	Success          bool      `json:"success"`
	HTML             string    `json:"html,omitempty"`
	Markdown         string    `json:"markdown,omitempty"`
	ExtractedContent []string  `json:"extracted_content,omitempty"`
	URL              string    `json:"url"`
	Timestamp        time.Time `json:"timestamp"`
	Error            string    `json:"error,omitempty"`
	Retries          int       `json:"retries"`
}

// Fetcher crawls pages. A single Fetcher serialises its requests through
// one rate limiter; use separate instances for independent budgets.
type Fetcher struct {
	config  Config
	limiter *ratelimit.Limiter
	dynamic *dynamicClient
}

// New creates a fetcher. The browser allocator for the JS path is created
// lazily on first use.
func New(cfg Config) (*Fetcher, error) {
	defaults := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if cfg.Retry.Strategy == "" {
		cfg.Retry = defaults.Retry
	}

	limiter, err := ratelimit.New(cfg.RequestsPerMinute)
	if err != nil {
		return nil, fmt.Errorf("invalid fetcher config: %w", err)
	}
	return &Fetcher{config: cfg, limiter: limiter}, nil
}

// Close releases browser resources, if the JS path was used.
func (f *Fetcher) Close() error {
	if f.dynamic != nil {
		return f.dynamic.Close()
	}
	return nil
}

// Crawl fetches one page. JS rendering is used when the fetcher was
// configured with JSEnabled or the caller passes ForceJS.
func (f *Fetcher) Crawl(ctx context.Context, targetURL string, opts Options) (*CrawlResult, error) {
	result := &CrawlResult{
		URL:       targetURL,
		Timestamp: time.Now().UTC(),
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	useJS := f.config.JSEnabled || opts.ForceJS
	logger.Debug("crawl starting", "url", targetURL, "js", useJS)

	handler := retry.New(f.config.Retry)
	attempt, err := handler.Execute(ctx, func(ctx context.Context) (*retry.Result, error) {
		if useJS {
			return f.fetchDynamic(ctx, targetURL, opts)
		}
		return f.fetchStatic(ctx, targetURL, opts)
	})
	result.Retries = handler.AttemptsUsed() - 1
	if result.Retries < 0 {
		result.Retries = 0
	}

	if err != nil {
		result.Error = err.Error()
		logger.Warn("crawl failed", "url", targetURL, "retries", result.Retries, "error", err)
		return result, nil
	}
	if attempt == nil || !attempt.Success {
		result.Error = "fetch did not produce usable content"
		logger.Warn("crawl exhausted retries", "url", targetURL, "retries", result.Retries)
		return result, nil
	}

	result.Success = true
	result.HTML = attempt.HTML

	if f.config.Markdown {
		md, err := htmltomarkdown.ConvertString(result.HTML)
		if err != nil {
			logger.Warn("markdown conversion failed", "url", targetURL, "error", err)
		} else {
			result.Markdown = md
		}
	}

	if err := f.applyFilters(result, opts.Filters); err != nil {
		// A broken filter is a caller configuration problem, not a fetch
		// failure.
		return result, err
	}

	logger.Debug("crawl complete",
		"url", targetURL,
		"html_size", len(result.HTML),
		"fragments", len(result.ExtractedContent),
		"retries", result.Retries)
	return result, nil
}

// applyFilters runs each chain over the fetched HTML and appends the
// fragments to ExtractedContent. Named chains contribute a header line.
func (f *Fetcher) applyFilters(result *CrawlResult, chains []*filter.Chain) error {
	for _, chain := range chains {
		frags, err := chain.Apply(result.HTML)
		if err != nil {
			return fmt.Errorf("filter chain %s: %w", chain.Name(), err)
		}
		if len(frags) == 0 {
			continue
		}
		if name := chain.ChainName(); name != "" {
			result.ExtractedContent = append(result.ExtractedContent, "["+name+"]")
		}
		result.ExtractedContent = append(result.ExtractedContent, frags...)
	}
	return nil
}

func (f *Fetcher) timeout(opts Options) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	return f.config.Timeout
}
