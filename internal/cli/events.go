package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fishmeout-bot/internal/crypt"
	apperrors "fishmeout-bot/internal/errors"
	"fishmeout-bot/internal/logging"
	"fishmeout-bot/internal/storage"
)

func newEventsCmd(opts *options) *cobra.Command {
	var (
		chatID int64
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent moderation events for a chat",
		Long: `List the messages the bot deleted in a chat, oldest first.

Stored text is decrypted when FISHMEOUT_MASTER_KEY is set to the key the bot
ran with.

Examples:
  fishmeout events --chat -1001234567890
  fishmeout events --chat -1001234567890 --limit 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if err := crypt.Init(cfg.Moderation.MasterKey); err != nil {
				return apperrors.Wrap(err, apperrors.ErrConfig, "invalid master key")
			}
			if err := storage.Init(cfg.Storage.Path); err != nil {
				return apperrors.Wrap(err, apperrors.ErrStorage, "storage init").WithDetails("path", cfg.Storage.Path)
			}
			defer storage.Close()

			events, err := storage.ListEvents(chatID, limit)
			if err != nil {
				return apperrors.Wrap(err, apperrors.ErrStorage, "list events")
			}
			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintf(out, "No moderation events for chat %d.\n", chatID)
				return nil
			}
			for _, ev := range events {
				text := logging.Snippet(ev.Text, 80)
				if ev.Encrypted {
					text = "[encrypted]"
				}
				when := time.Unix(ev.When, 0).Format("2006-01-02 15:04:05")
				fmt.Fprintf(out, "%s  %d (%s)  %s\n", when, ev.UserID, ev.UserName, text)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat", 0, "Telegram chat ID")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of events to show (0 for all)")
	_ = cmd.MarkFlagRequired("chat")
	return cmd
}
