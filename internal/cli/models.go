package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/testsabirweb/chatsim/pkg/ollama"
)

func init() {
	rootCmd.AddCommand(modelsCmd)
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available on the Ollama server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		models, err := ollama.NewClient(cfg.Ollama.URL).ListModels(ctx)
		if err != nil {
			return fmt.Errorf("failed to list models: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, m := range models {
			marker := " "
			if m.Name == cfg.Ollama.Model {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-32s %8.1f MB  %s\n", marker, m.Name, float64(m.Size)/(1<<20), m.ModifiedAt.Format(time.DateOnly))
		}
		return nil
	},
}
