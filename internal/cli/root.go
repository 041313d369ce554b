// Package cli implements the chatsim command line
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/testsabirweb/chatsim/internal/config"
	"github.com/testsabirweb/chatsim/pkg/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "chatsim",
	Short: "Simulated chat with an AI participant",
	Long: `chatsim runs a single-user chat session with channels, direct messages
and a bot participant that answers through a local Ollama model.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().String("log-level", "", "override LOG_LEVEL")
	rootCmd.PersistentFlags().String("model", "", "override OLLAMA_MODEL")
}

// setup loads configuration, applies flag overrides and builds a logger
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.Ollama.Model = model
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}
