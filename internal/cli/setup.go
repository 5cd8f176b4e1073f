package cli

import (
	"os"

	"github.com/spf13/cobra"

	apperrors "fishmeout-bot/internal/errors"
	"fishmeout-bot/internal/setup"
)

func newSetupCmd(opts *options) *cobra.Command {
	var native bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Install prerequisites and start the bot",
		Long: `Prepare this machine for the bot and start it.

Setup checks for the interpreter and package manager, writes and installs
requirements.txt, requires the Google service account key, asks for
BOT_TOKEN when it is not set and saves it to your shell profile. After you
confirm that the Google documents are shared it launches the bot, and exits
with the bot's exit code.

Examples:
  fishmeout setup            # launch the bot with "python3 bot.py"
  fishmeout setup --native   # launch "fishmeout run" instead`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if native {
				exe, err := os.Executable()
				if err != nil {
					return apperrors.Wrap(err, apperrors.ErrPrecondition, "locate fishmeout executable")
				}
				cfg.Setup.BotCommand = nativeCommand(exe, opts.configPath)
			}
			r := setup.New(cfg)
			r.Stdin = cmd.InOrStdin()
			r.Stdout = cmd.OutOrStdout()
			r.Stderr = cmd.ErrOrStderr()
			return r.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&native, "native", false, `Launch "fishmeout run" instead of the configured bot command`)
	return cmd
}

func nativeCommand(exe, configPath string) []string {
	argv := []string{exe, "run"}
	if configPath != "" {
		argv = append(argv, "--config", configPath)
	}
	return argv
}
