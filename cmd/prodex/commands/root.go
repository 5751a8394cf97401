// Package commands implements the CLI commands for prodex.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/pkg/llm"
)

var rootCmd = &cobra.Command{
	Use:   "prodex",
	Short: "Product data extraction for e-commerce pages",
	Long: `Prodex fetches e-commerce product pages and extracts structured
product data using CSS selectors, XPath, automatic schema generation,
and LLM extraction, with deduplication and JSON file storage.

Examples:
  # Extract a product with an automatically generated schema
  prodex extract -u "https://shop.example.com/p/123"

  # Extract with a hand-written schema and store the result
  prodex extract -u "https://shop.example.com/p/123" -s schema.yaml \
      --store-dir ./products --store-name exampleshop

  # Generate a selector schema from a page
  prodex schema generate -u "https://shop.example.com/p/123" -o schema.json

  # Validate and repair a schema file
  prodex schema validate -s schema.json --fix`,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.prodex.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".prodex")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("PRODEX")
	viper.AutomaticEnv()

	// Also check common API key env vars
	_ = viper.BindEnv("api_key", "ANTHROPIC_API_KEY", "OPENAI_API_KEY")

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func initLogger() {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})
}

// buildLLMClient creates a provider client from flags and env vars,
// wrapped in a circuit breaker. Returns nil (no error) when no provider
// is configured.
func buildLLMClient(provider string) (llm.Client, error) {
	cfg := llm.DefaultConfig()
	cfg.Model = viper.GetString("model")
	cfg.BaseURL = viper.GetString("base_url")

	if provider == "" {
		switch {
		case os.Getenv("ANTHROPIC_API_KEY") != "":
			provider = "anthropic"
		case os.Getenv("OPENAI_API_KEY") != "":
			provider = "openai"
		default:
			return nil, nil
		}
	}

	var (
		client llm.Client
		err    error
	)
	switch provider {
	case "anthropic":
		cfg.APIKey = firstNonEmpty(viper.GetString("api_key"), os.Getenv("ANTHROPIC_API_KEY"))
		client, err = llm.NewAnthropic(cfg)
	case "openai":
		cfg.APIKey = firstNonEmpty(viper.GetString("api_key"), os.Getenv("OPENAI_API_KEY"))
		client, err = llm.NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s (use 'anthropic' or 'openai')", provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("LLM client configured", "provider", client.Name())
	return llm.NewBreaker(client, llm.DefaultBreakerConfig()), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
