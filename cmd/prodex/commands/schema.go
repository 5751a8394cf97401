package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/pkg/fetch"
	"github.com/hexleaf/prodex/pkg/llm"
	"github.com/hexleaf/prodex/pkg/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Generate and validate extraction schemas",
}

var schemaGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a selector schema from a product page",
	Long: `Analyse a product page and generate a CSS selector schema for it.

The page is fetched (or read from a local file with --input) and scanned
for common product fields. With an LLM provider configured the generated
schema is refined by the model.

Examples:
  prodex schema generate -u "https://shop.example.com/p/123" -o schema.json
  prodex schema generate --input page.html --url "https://shop.example.com/p/123"`,
	RunE: runSchemaGenerate,
}

var schemaValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a schema file and optionally repair it",
	RunE:  runSchemaValidate,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaGenerateCmd)
	schemaCmd.AddCommand(schemaValidateCmd)

	genFlags := schemaGenerateCmd.Flags()
	genFlags.StringP("url", "u", "", "product page URL")
	genFlags.String("input", "", "local HTML file instead of fetching")
	genFlags.StringP("output", "o", "", "output file (default: stdout)")
	genFlags.Bool("js", false, "render the page with a headless browser")
	genFlags.Duration("timeout", 30*time.Second, "request timeout")
	genFlags.StringP("provider", "p", "", "LLM provider for schema refinement: anthropic, openai")
	genFlags.StringP("model", "m", "", "model name (provider-specific)")

	valFlags := schemaValidateCmd.Flags()
	valFlags.StringP("schema", "s", "", "path to schema file (required)")
	valFlags.Bool("fix", false, "apply corrections and rewrite the file")
	_ = schemaValidateCmd.MarkFlagRequired("schema")
}

func runSchemaGenerate(cmd *cobra.Command, args []string) error {
	initLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pageURL, _ := cmd.Flags().GetString("url")
	inputPath, _ := cmd.Flags().GetString("input")
	if pageURL == "" && inputPath == "" {
		return cmd.Help()
	}

	htmlContent, err := loadPage(ctx, cmd, pageURL, inputPath)
	if err != nil {
		return err
	}

	generator := schema.NewGenerator()

	provider, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")

	var s schema.Schema
	client, err := buildLLMClient(firstNonEmpty(provider, viper.GetString("provider")))
	if err != nil {
		return err
	}
	if client != nil {
		params := llm.Params{Model: firstNonEmpty(model, viper.GetString("model"))}
		s, err = generator.GenerateWithLLM(ctx, client, params, htmlContent, pageURL)
	} else {
		s, err = generator.Generate(htmlContent, pageURL)
	}
	if err != nil {
		logger.Error("schema generation failed", "error", err)
		return err
	}

	score := schema.NewValidator().QualityScore(s)
	logger.Info("schema generated",
		"fields", len(s.Fields),
		"quality", fmt.Sprintf("%.2f", score),
		"domain", schema.DomainHint(pageURL))

	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		return s.Save(outPath)
	}
	data, err := s.ToJSON()
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runSchemaValidate(cmd *cobra.Command, args []string) error {
	initLogger()

	schemaPath, _ := cmd.Flags().GetString("schema")
	s, err := schema.FromFile(schemaPath)
	if err != nil {
		logger.Error("failed to load schema", "path", schemaPath, "error", err)
		return err
	}

	validator := schema.NewValidator()
	problems := validator.Validate(s)
	for _, p := range problems {
		logger.Warn("schema problem", "field", p.Field, "message", p.Message)
	}

	fix, _ := cmd.Flags().GetBool("fix")
	if !fix {
		if len(problems) > 0 {
			return fmt.Errorf("schema has %d problem(s)", len(problems))
		}
		logger.Info("schema is valid", "fields", len(s.Fields))
		return nil
	}

	corrected, corrections := validator.Correct(s)
	for _, c := range corrections {
		logger.Info("corrected", "field", c.Field, "action", c.Action, "detail", c.Detail)
	}
	if len(corrections) == 0 {
		logger.Info("nothing to fix", "fields", len(s.Fields))
		return nil
	}
	if err := corrected.Save(schemaPath); err != nil {
		return err
	}
	logger.Info("schema repaired", "path", schemaPath, "quality",
		fmt.Sprintf("%.2f", validator.QualityScore(corrected)))
	return nil
}

// loadPage returns HTML from a local file or by fetching the URL.
func loadPage(ctx context.Context, cmd *cobra.Command, pageURL, inputPath string) (string, error) {
	if inputPath != "" {
		data, err := os.ReadFile(inputPath) //#nosec G304 -- CLI tool reads user-specified input file
		if err != nil {
			logger.Error("failed to read input file", "path", inputPath, "error", err)
			return "", err
		}
		return string(data), nil
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	js, _ := cmd.Flags().GetBool("js")

	cfg := fetch.DefaultConfig()
	cfg.Timeout = timeout
	cfg.JSEnabled = js
	cfg.Markdown = false

	fetcher, err := fetch.New(cfg)
	if err != nil {
		return "", err
	}
	defer func() { _ = fetcher.Close() }()

	res, err := fetcher.Crawl(ctx, pageURL, fetch.Options{ForceJS: js})
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", fmt.Errorf("fetch failed: %s", res.Error)
	}
	return res.HTML, nil
}
