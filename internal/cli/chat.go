package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/testsabirweb/chatsim/internal/app"
)

func init() {
	chatCmd.Flags().StringP("name", "n", "", "username to join with (required)")
	_ = chatCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Join the chat and talk from the terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		a, err := app.New(cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		name, _ := cmd.Flags().GetString("name")
		if _, err := a.Session.Join(name); err != nil {
			return fmt.Errorf("failed to join: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		r := newREPL(a.Session, a.Catalog.Bot.ID, cmd.OutOrStdout())
		defer r.close()
		return r.run(ctx, cmd.InOrStdin())
	},
}
