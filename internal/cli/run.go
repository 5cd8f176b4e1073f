package cli

import (
	"github.com/spf13/cobra"

	"fishmeout-bot/internal/bot"
	sentryutil "fishmeout-bot/internal/sentry"
)

// runBot is swapped in tests.
var runBot = bot.Run

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the moderation bot",
		Long: `Run the Telegram moderation bot until interrupted.

The bot needs BOT_TOKEN and the Google service account key. It deletes
messages with inappropriate language, answers questions when mentioned or
messaged directly, and records unanswered questions in the learning sheet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			sentryutil.Init(cfg.Sentry.DSN, cfg.Sentry.Environment, Version)
			defer sentryutil.Flush()

			err = runBot(cmd.Context(), cfg)
			sentryutil.CaptureError(err, map[string]string{"command": "run"})
			return err
		},
	}
}
