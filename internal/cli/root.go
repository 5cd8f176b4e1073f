// Package cli provides the fishmeout commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fishmeout-bot/internal/config"
	apperrors "fishmeout-bot/internal/errors"
	"fishmeout-bot/internal/logging"
)

// Version information, set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// options holds the persistent flags shared by every command.
type options struct {
	configPath string
	envFile    string
	logLevel   string
}

// load reads the configuration and initializes logging to stderr.
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	l := config.NewLoader()
	l.EnvFile = o.envFile
	cfg, err := l.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	logging.InitWriter(cmd.ErrOrStderr(), cfg.Log.Level)
	return cfg, nil
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "fishmeout",
		Short: "FishMeOut - Telegram moderation and knowledge bot",
		Long: `FishMeOut keeps Telegram group chats civil and answers questions from a
shared Google Docs knowledge base.

Run "fishmeout setup" once to install prerequisites and capture the bot
token, then "fishmeout run" (or the launched bot) handles the chats.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Version = fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
	root.SetVersionTemplate("fishmeout {{.Version}}\n")

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file (default ./"+config.DefaultConfigPath+" when present)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")

	root.AddCommand(
		newSetupCmd(opts),
		newRunCmd(opts),
		newEventsCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, NewRootCmd(), os.Args[1:], os.Stderr)
}

func execute(ctx context.Context, root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		// The bot already reported its own failure.
		var exitErr *apperrors.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprint(stderr, apperrors.Format(err))
		}
	}
	return apperrors.ExitCode(err)
}
