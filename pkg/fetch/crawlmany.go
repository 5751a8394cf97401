package fetch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hexleaf/prodex/internal/logger"
)

// CrawlMany fetches a batch of URLs with bounded concurrency. Results
// are positionally aligned with the input; per-URL fetch failures are
// reported inside the CrawlResult, so a returned error means a
// configuration problem or cancellation.
func (f *Fetcher) CrawlMany(ctx context.Context, urls []string, opts Options, concurrency int) ([]*CrawlResult, error) {
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]*CrawlResult, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, u := range urls {
		g.Go(func() error {
			r, err := f.Crawl(gctx, u, opts)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	var failed int
	for _, r := range results {
		if r != nil && !r.Success {
			failed++
		}
	}
	logger.Debug("batch crawl complete", "total", len(urls), "failed", failed)
	return results, nil
}
