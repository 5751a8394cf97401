package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/pkg/dedup"
	"github.com/hexleaf/prodex/pkg/extract"
	"github.com/hexleaf/prodex/pkg/fetch"
	"github.com/hexleaf/prodex/pkg/llm"
	"github.com/hexleaf/prodex/pkg/product"
	"github.com/hexleaf/prodex/pkg/schema"
	"github.com/hexleaf/prodex/pkg/storage"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract product data from URLs",
	Long: `Fetch product pages and extract structured product data.

Without a schema file the auto-schema strategy analyses each page and
generates selectors on the fly. With -s the schema drives the CSS
strategy. An LLM provider (via --provider or API key env vars) adds the
LLM strategy and a last-resort fallback.

Examples:
  # Auto-schema extraction to stdout
  prodex extract -u "https://shop.example.com/p/123"

  # Schema-driven extraction of several pages, deduplicated and stored
  prodex extract -u "https://shop.example.com/p/1" \
      -u "https://shop.example.com/p/2" -s schema.yaml \
      --store-dir ./products --store-name exampleshop`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	flags := extractCmd.Flags()

	// Inputs
	flags.StringSliceP("url", "u", nil, "URL(s) to extract (can be repeated)")
	flags.StringP("schema", "s", "", "path to schema file (JSON or YAML)")

	// Strategy selection
	flags.Bool("auto", true, "enable automatic schema generation strategy")
	flags.Bool("merge", true, "merge results from multiple strategies")
	flags.Bool("llm-fallback", true, "use LLM as fallback when all strategies fail")

	// LLM settings
	flags.StringP("provider", "p", "", "LLM provider: anthropic, openai (auto-detects from env vars)")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.StringP("api-key", "k", "", "API key (or use env var)")
	flags.String("base-url", "", "custom API base URL")

	// Fetch settings
	flags.Bool("js", false, "render pages with a headless browser")
	flags.Duration("timeout", 30*time.Second, "request timeout")
	flags.Int("rate-limit", 60, "max requests per minute")
	flags.IntP("concurrency", "c", 4, "concurrent extractions")

	// Dedup settings
	flags.Float64("dedup-threshold", dedup.DefaultThreshold, "similarity threshold for duplicate detection (0 disables)")
	flags.String("dedup-merge", "combine", "duplicate merge strategy: latest, most_complete, combine")

	// Output settings
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("store-dir", "", "storage directory (disables stdout output of raw JSON)")
	flags.String("store-name", "", "store name used for derived product ids")

	_ = viper.BindPFlag("provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("model", flags.Lookup("model"))
	_ = viper.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = viper.BindPFlag("base_url", flags.Lookup("base-url"))
}

func runExtract(cmd *cobra.Command, args []string) error {
	initLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	urls, _ := cmd.Flags().GetStringSlice("url")
	if len(urls) == 0 {
		return cmd.Help()
	}

	hybrid, fetcher, err := buildHybrid(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = fetcher.Close() }()

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	logger.Info("starting extraction",
		"urls", len(urls),
		"strategies", hybrid.Strategies(),
		"concurrency", concurrency)

	products := extractAll(ctx, hybrid, urls, concurrency)

	succeeded := 0
	for _, p := range products {
		if p.ExtractionSuccess {
			succeeded++
		}
	}
	logger.Info("extraction complete", "extracted", succeeded, "failed", len(products)-succeeded)

	threshold, _ := cmd.Flags().GetFloat64("dedup-threshold")
	mergeStrategy, _ := cmd.Flags().GetString("dedup-merge")
	if threshold > 0 && len(products) > 1 {
		products, err = deduplicate(products, threshold, mergeStrategy)
		if err != nil {
			logger.Error("deduplication failed", "error", err)
			return err
		}
	}

	if storeDir, _ := cmd.Flags().GetString("store-dir"); storeDir != "" {
		storeName, _ := cmd.Flags().GetString("store-name")
		return storeProducts(products, storeDir, storeName)
	}
	return writeProducts(cmd, products)
}

// buildHybrid assembles the fetcher and strategy set from flags.
func buildHybrid(cmd *cobra.Command) (*extract.Hybrid, *fetch.Fetcher, error) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	rateLimit, _ := cmd.Flags().GetInt("rate-limit")
	js, _ := cmd.Flags().GetBool("js")

	fetchCfg := fetch.DefaultConfig()
	fetchCfg.Timeout = timeout
	fetchCfg.RequestsPerMinute = rateLimit
	fetchCfg.JSEnabled = js

	fetcher, err := fetch.New(fetchCfg)
	if err != nil {
		return nil, nil, err
	}

	useAuto, _ := cmd.Flags().GetBool("auto")
	mergeResults, _ := cmd.Flags().GetBool("merge")
	llmFallback, _ := cmd.Flags().GetBool("llm-fallback")

	cfg := extract.HybridConfig{
		UseAutoSchema:  useAuto,
		UseFallbackLLM: llmFallback,
		MergeResults:   mergeResults,
		ForceJS:        js,
	}

	if schemaPath, _ := cmd.Flags().GetString("schema"); schemaPath != "" {
		s, err := schema.FromFile(schemaPath)
		if err != nil {
			logger.Error("failed to load schema", "path", schemaPath, "error", err)
			_ = fetcher.Close()
			return nil, nil, err
		}
		logger.Debug("schema loaded", "name", s.Name, "fields", len(s.Fields))
		cfg.CSS = &extract.CSSConfig{Selectors: extract.SpecsFromSchema(s)}
	}

	client, err := buildLLMClient(viper.GetString("provider"))
	if err != nil {
		_ = fetcher.Close()
		return nil, nil, err
	}
	if client != nil {
		cfg.LLMClient = client
		cfg.LLMParams = llm.Params{Model: viper.GetString("model")}
	} else if llmFallback {
		logger.Debug("no LLM provider configured, fallback disabled")
		cfg.UseFallbackLLM = false
	}

	return extract.NewHybrid(fetcher, cfg), fetcher, nil
}

// extractAll runs the hybrid pipeline over every URL with bounded
// concurrency. Failures come back as failed product records.
func extractAll(ctx context.Context, hybrid *extract.Hybrid, urls []string, concurrency int) []*product.ProductData {
	if concurrency < 1 {
		concurrency = 1
	}

	products := make([]*product.ProductData, len(urls))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, u := range urls {
		g.Go(func() error {
			p := hybrid.Extract(ctx, u)
			mu.Lock()
			products[i] = p
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return products
}

// deduplicate collapses near-duplicate products, keeping input order by
// the first occurrence of each group.
func deduplicate(products []*product.ProductData, threshold float64, strategy string) ([]*product.ProductData, error) {
	d, err := dedup.New(threshold)
	if err != nil {
		return nil, err
	}

	groups := d.FindDuplicates(products)
	if len(groups) == 0 {
		return products, nil
	}

	merged := make(map[*product.ProductData]*product.ProductData)
	drop := make(map[*product.ProductData]bool)
	for _, group := range groups {
		m, err := dedup.Merge(group, dedup.MergeStrategy(strategy))
		if err != nil {
			return nil, err
		}
		merged[group[0]] = m
		for _, p := range group[1:] {
			drop[p] = true
		}
	}

	out := make([]*product.ProductData, 0, len(products))
	for _, p := range products {
		if drop[p] {
			continue
		}
		if m, ok := merged[p]; ok {
			p = m
		}
		out = append(out, p)
	}
	logger.Info("deduplicated", "groups", len(groups), "before", len(products), "after", len(out))
	return out, nil
}

// storeProducts saves successful extractions, merging into existing
// records instead of failing on duplicates.
func storeProducts(products []*product.ProductData, dir, storeName string) error {
	engine, err := storage.New(storage.Config{
		Dir:        dir,
		StoreName:  storeName,
		Versioning: true,
	})
	if err != nil {
		return err
	}

	saved, updated := 0, 0
	for _, p := range products {
		if !p.ExtractionSuccess {
			continue
		}
		if err := p.Validate(); err != nil {
			logger.Warn("storing incomplete product record", "url", p.URL, "error", err)
		}
		id, err := engine.Save(p)
		if errors.Is(err, storage.ErrDuplicateProduct) {
			if err := engine.Update(id, p); err != nil {
				logger.Error("failed to update product", "id", id, "error", err)
				return err
			}
			updated++
			continue
		}
		if err != nil {
			logger.Error("failed to save product", "error", err)
			return err
		}
		saved++
	}
	logger.Info("stored products", "dir", dir, "saved", saved, "updated", updated)
	return nil
}

func writeProducts(cmd *cobra.Command, products []*product.ProductData) error {
	out := os.Stdout
	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			logger.Error("failed to create output file", "path", outPath, "error", err)
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(products); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
