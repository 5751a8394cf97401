package fetch

import (
	"context"
	"fmt"

	"github.com/gocolly/colly/v2"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/pkg/retry"
)

// fetchStatic issues a plain HTTP request through a fresh colly collector.
func (f *Fetcher) fetchStatic(ctx context.Context, targetURL string, opts Options) (*retry.Result, error) {
	res := &retry.Result{}

	c := colly.NewCollector(
		colly.UserAgent(f.config.UserAgent),
	)
	c.SetRequestTimeout(f.timeout(opts))

	c.OnRequest(func(r *colly.Request) {
		select {
		case <-ctx.Done():
			r.Abort()
		default:
		}
		for k, v := range opts.Headers {
			r.Headers.Set(k, v)
		}
	})

	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		res.StatusCode = r.StatusCode
		res.HTML = string(r.Body)
		res.Success = r.StatusCode >= 200 && r.StatusCode < 300
		logger.Debug("static fetch response",
			"url", targetURL,
			"status", r.StatusCode,
			"body_size", len(r.Body))
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			// HTTP-level failure: record it and let the retry predicate
			// decide whether the status is worth another attempt.
			res.StatusCode = r.StatusCode
			res.HTML = string(r.Body)
			logger.Debug("static fetch http error",
				"url", targetURL,
				"status", r.StatusCode)
			return
		}
		fetchErr = fmt.Errorf("static fetch: %w", err)
		logger.Debug("static fetch error", "url", targetURL, "error", err)
	})

	if err := c.Visit(targetURL); err != nil {
		// Visit reports non-2xx responses as errors too; when OnError
		// already recorded the status, the predicate owns the decision.
		if res.StatusCode == 0 {
			return res, fmt.Errorf("failed to visit URL: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return res, retry.NonRetryable(err)
	}
	if fetchErr != nil {
		return res, fetchErr
	}
	return res, nil
}
