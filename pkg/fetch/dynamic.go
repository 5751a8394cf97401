package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/pkg/retry"
)

// functionPollInterval is how often WaitForFunction expressions are
// re-evaluated.
const functionPollInterval = 100 * time.Millisecond

// loadStatePollBudget caps how long each load state is tried before
// falling through to the next one.
const loadStatePollBudget = 3 * time.Second

// loadStates are tried in order; the first that succeeds within its
// budget settles page readiness.
var loadStates = []struct {
	name string
	expr string
}{
	// No new resource finished within the last 500ms.
	{"networkidle", `(() => {
		const rs = performance.getEntriesByType('resource');
		if (rs.length === 0) return document.readyState !== 'loading';
		const last = rs[rs.length - 1];
		return performance.now() - (last.responseEnd || 0) > 500;
	})()`},
	{"domcontentloaded", `document.readyState === 'interactive' || document.readyState === 'complete'`},
	{"load", `document.readyState === 'complete'`},
}

// dynamicClient owns the browser allocator shared by all JS crawls of one
// Fetcher.
type dynamicClient struct {
	allocCtx context.Context
	cancel   context.CancelFunc
}

var dynamicInitMu sync.Mutex

func (f *Fetcher) dynamicClientLazy() *dynamicClient {
	dynamicInitMu.Lock()
	defer dynamicInitMu.Unlock()
	if f.dynamic != nil {
		return f.dynamic
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(f.config.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	f.dynamic = &dynamicClient{allocCtx: allocCtx, cancel: cancel}
	logger.Debug("browser allocator created", "user_agent", f.config.UserAgent)
	return f.dynamic
}

func (d *dynamicClient) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	return nil
}

// fetchDynamic renders the page in a headless browser. A fresh browser
// context is opened per request and closed on every path.
func (f *Fetcher) fetchDynamic(ctx context.Context, targetURL string, opts Options) (*retry.Result, error) {
	res := &retry.Result{}
	client := f.dynamicClientLazy()

	browserCtx, cancelBrowser := chromedp.NewContext(client.allocCtx)
	defer cancelBrowser()

	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, f.timeout(opts))
	defer cancelTimeout()

	// Propagate caller cancellation into the browser context.
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	logger.Debug("dynamic fetch navigating", "url", targetURL)
	if err := chromedp.Run(timeoutCtx, chromedp.Navigate(targetURL)); err != nil {
		return res, fmt.Errorf("browser navigation failed: %w", err)
	}

	if err := awaitReadiness(timeoutCtx, opts); err != nil {
		return res, fmt.Errorf("page readiness: %w", err)
	}

	var html string
	if err := chromedp.Run(timeoutCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return res, fmt.Errorf("content extraction failed: %w", err)
	}

	res.HTML = html
	res.StatusCode = 200 // chromedp does not expose the status code directly
	res.Success = html != ""
	logger.Debug("dynamic fetch complete", "url", targetURL, "html_size", len(html))
	return res, nil
}

// awaitReadiness applies the readiness conditions in their fixed order:
// load state, selector, polled function, settle delay.
func awaitReadiness(ctx context.Context, opts Options) error {
	if err := awaitLoadState(ctx); err != nil {
		return err
	}

	if opts.WaitForSelector != "" {
		logger.Debug("waiting for selector", "selector", opts.WaitForSelector)
		if err := chromedp.Run(ctx, chromedp.WaitVisible(opts.WaitForSelector)); err != nil {
			return fmt.Errorf("selector %q never appeared: %w", opts.WaitForSelector, err)
		}
	}

	if opts.WaitForFunction != "" {
		logger.Debug("waiting for function", "expression", opts.WaitForFunction)
		if err := pollExpression(ctx, opts.WaitForFunction, 0); err != nil {
			return fmt.Errorf("wait function never became truthy: %w", err)
		}
	}

	if opts.SettleDelay > 0 {
		if err := chromedp.Run(ctx, chromedp.Sleep(opts.SettleDelay)); err != nil {
			return err
		}
	}
	return nil
}

// awaitLoadState tries each load state in order and accepts the first
// that succeeds within its budget. Running out of states is not an
// error: "load" firing late is indistinguishable from a page that never
// settles, and the later conditions still apply.
func awaitLoadState(ctx context.Context) error {
	for _, state := range loadStates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := pollExpression(ctx, state.expr, loadStatePollBudget); err == nil {
			logger.Debug("load state reached", "state", state.name)
			return nil
		}
	}
	logger.Debug("no load state settled, continuing")
	return nil
}

// pollExpression evaluates a JS expression every functionPollInterval
// until it is truthy, the budget runs out, or ctx expires. A zero budget
// polls until ctx expires.
func pollExpression(ctx context.Context, expr string, budget time.Duration) error {
	pollCtx := ctx
	if budget > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	ticker := time.NewTicker(functionPollInterval)
	defer ticker.Stop()

	for {
		var truthy bool
		if err := chromedp.Run(pollCtx, chromedp.Evaluate("!!("+expr+")", &truthy)); err != nil {
			return err
		}
		if truthy {
			return nil
		}
		select {
		case <-pollCtx.Done():
			return pollCtx.Err()
		case <-ticker.C:
		}
	}
}
