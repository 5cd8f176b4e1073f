// Package setup bootstraps a machine for running the moderation bot: it
// checks prerequisites, installs the bot's dependencies, captures the bot
// token and finally hands over to the bot process.
package setup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"

	"fishmeout-bot/internal/config"
	apperrors "fishmeout-bot/internal/errors"
	"fishmeout-bot/internal/logging"
	"fishmeout-bot/internal/prompt"
)

// TokenEnv is the variable the bot reads its token from.
const TokenEnv = "BOT_TOKEN"

// MinInterpreterVersion is the oldest interpreter that runs the bot without a
// warning.
const MinInterpreterVersion = "v3.8.0"

// ManifestPackages are written to the manifest, one per line, in this order.
var ManifestPackages = []string{
	"python-telegram-bot==13.15",
	"gspread==5.12.0",
	"google-auth==2.23.4",
	"google-api-python-client==2.108.0",
	"google-auth-oauthlib==1.1.0",
}

// Runner executes the setup steps. The function fields default to the real
// implementations and are replaced in tests.
type Runner struct {
	Setup  config.SetupConfig
	Google config.GoogleConfig

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	LookPath    func(file string) (string, error)
	Command     func(ctx context.Context, name string, args ...string) *exec.Cmd
	PromptToken func() (string, error)
	HomeDir     func() (string, error)
}

// New returns a Runner for cfg wired to the process stdio.
func New(cfg *config.Config) *Runner {
	return &Runner{
		Setup:       cfg.Setup,
		Google:      cfg.Google,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		LookPath:    exec.LookPath,
		Command:     exec.CommandContext,
		PromptToken: prompt.Token,
		HomeDir:     os.UserHomeDir,
	}
}

// Run performs every step in order and stops at the first fatal one. After
// the bot has been launched the returned error carries its exit status.
func (r *Runner) Run(ctx context.Context) error {
	heading(r.Stdout, "🐟 Setting up the FishMeOut bot")
	if err := r.CheckExecutables(ctx); err != nil {
		return err
	}
	if err := r.WriteManifest(); err != nil {
		return err
	}
	r.InstallDependencies(ctx)
	if err := r.CheckCredentials(); err != nil {
		return err
	}
	if err := r.EnsureToken(); err != nil {
		return err
	}
	r.PrintSharingInstructions()
	if err := r.WaitForConfirmation(); err != nil {
		return err
	}
	return r.LaunchBot(ctx)
}

// CheckExecutables requires the interpreter and the package manager on PATH.
// An interpreter older than MinInterpreterVersion only produces a warning.
func (r *Runner) CheckExecutables(ctx context.Context) error {
	interp, err := r.LookPath(r.Setup.Interpreter)
	if err != nil {
		return apperrors.MissingExecutable(r.Setup.Interpreter, "the interpreter")
	}
	ok(r.Stdout, "Found %s at %s", r.Setup.Interpreter, interp)
	r.checkInterpreterVersion(ctx)

	pm, err := r.LookPath(r.Setup.PackageManager)
	if err != nil {
		return apperrors.MissingExecutable(r.Setup.PackageManager, "the package manager")
	}
	ok(r.Stdout, "Found %s at %s", r.Setup.PackageManager, pm)
	return nil
}

func (r *Runner) checkInterpreterVersion(ctx context.Context) {
	out, err := r.Command(ctx, r.Setup.Interpreter, "--version").CombinedOutput()
	if err != nil {
		logging.Log.Debug().Err(err).Str("interpreter", r.Setup.Interpreter).Msg("version check failed")
		return
	}
	v := parseVersion(string(out))
	if v == "" {
		logging.Log.Debug().Str("output", logging.Snippet(string(out), 40)).Msg("unrecognized version output")
		return
	}
	if semver.Compare(v, MinInterpreterVersion) < 0 {
		warn(r.Stdout, "%s %s is older than %s; the bot may not run",
			r.Setup.Interpreter, strings.TrimPrefix(v, "v"), strings.TrimPrefix(MinInterpreterVersion, "v"))
	}
}

// parseVersion finds the first dotted number in out, e.g. "Python 3.11.4"
// or "Python 3.13.0rc1", and returns it in canonical semver form.
func parseVersion(out string) string {
	for _, field := range strings.Fields(out) {
		end := 0
		for end < len(field) && (field[end] == '.' || field[end] >= '0' && field[end] <= '9') {
			end++
		}
		num := strings.Trim(field[:end], ".")
		if num == "" {
			continue
		}
		if v := semver.Canonical("v" + num); v != "" {
			return v
		}
	}
	return ""
}

// WriteManifest replaces the manifest with ManifestPackages.
func (r *Runner) WriteManifest() error {
	content := strings.Join(ManifestPackages, "\n") + "\n"
	if err := os.WriteFile(r.Setup.Manifest, []byte(content), 0o644); err != nil {
		return apperrors.Wrap(err, apperrors.ErrPrecondition, "write dependency manifest").
			WithDetails("path", r.Setup.Manifest)
	}
	ok(r.Stdout, "Wrote %s", r.Setup.Manifest)
	return nil
}

// InstallDependencies installs the manifest. A failing installer is reported
// but does not stop setup.
func (r *Runner) InstallDependencies(ctx context.Context) {
	note(r.Stdout, "Installing dependencies with %s...", r.Setup.PackageManager)
	cmd := r.Command(ctx, r.Setup.PackageManager, "install", "-r", r.Setup.Manifest)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = r.Stdin, r.Stdout, r.Stderr
	if err := cmd.Run(); err != nil {
		logging.Log.Warn().Err(err).Str("package_manager", r.Setup.PackageManager).Msg("dependency install failed")
		warn(r.Stdout, "%s install failed: %v", r.Setup.PackageManager, err)
		return
	}
	ok(r.Stdout, "Dependencies installed")
}

// CheckCredentials requires the service account key file.
func (r *Runner) CheckCredentials() error {
	info, err := os.Stat(r.Google.CredentialsFile)
	if err != nil || info.IsDir() {
		return apperrors.MissingCredentials(r.Google.CredentialsFile)
	}
	ok(r.Stdout, "Found %s", r.Google.CredentialsFile)
	return nil
}

// EnsureToken prompts for BOT_TOKEN when it is unset, exports it to this
// process and appends it to the shell profile.
func (r *Runner) EnsureToken() error {
	if os.Getenv(TokenEnv) != "" {
		ok(r.Stdout, "%s is set", TokenEnv)
		return nil
	}
	fmt.Fprintf(r.Stdout, "%s environment variable is not set.\n", TokenEnv)
	token, err := r.PromptToken()
	if err != nil {
		appErr := apperrors.Wrap(err, apperrors.ErrAuth, "could not read the bot token")
		appErr.Suggestion = apperrors.MissingToken().Suggestion
		appErr.Code = 1
		return appErr
	}
	if err := os.Setenv(TokenEnv, token); err != nil {
		return apperrors.Wrap(err, apperrors.ErrConfig, "set "+TokenEnv)
	}

	profile, err := r.shellProfile()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrConfig, "locate shell profile")
	}
	if err := appendExport(profile, TokenEnv, token); err != nil {
		return apperrors.Wrap(err, apperrors.ErrConfig, "save token to shell profile").
			WithDetails("path", profile)
	}
	ok(r.Stdout, "Saved %s to %s", TokenEnv, profile)
	return nil
}

func (r *Runner) shellProfile() (string, error) {
	if r.Setup.ShellProfile != "" {
		return r.Setup.ShellProfile, nil
	}
	home, err := r.HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, profileName(os.Getenv("SHELL"))), nil
}

func profileName(shell string) string {
	if filepath.Base(shell) == "zsh" {
		return ".zshrc"
	}
	return ".bashrc"
}

func appendExport(path, name, value string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("export %s=%s\n", name, shellQuote(value))
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// shellQuote wraps s in single quotes for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// PrintSharingInstructions tells the operator which documents to share with
// the service account.
func (r *Runner) PrintSharingInstructions() {
	email := serviceAccountEmail(r.Google.CredentialsFile)
	if email == "" {
		email = "the service account in " + r.Google.CredentialsFile
	}
	fmt.Fprintln(r.Stdout)
	heading(r.Stdout, "Share the bot's Google documents")
	fmt.Fprintf(r.Stdout, "Give %s edit access to:\n", email)
	fmt.Fprintf(r.Stdout, "  Knowledge base: https://docs.google.com/document/d/%s/edit\n", r.Google.KnowledgeDocID)
	fmt.Fprintf(r.Stdout, "  Learning sheet: https://docs.google.com/spreadsheets/d/%s/edit\n", r.Google.LearningSheetID)
	fmt.Fprintln(r.Stdout)
}

func serviceAccountEmail(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var key struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(data, &key); err != nil {
		logging.Log.Debug().Err(err).Str("path", path).Msg("credentials file is not JSON")
		return ""
	}
	return key.ClientEmail
}

// WaitForConfirmation blocks until the operator presses Enter.
func (r *Runner) WaitForConfirmation() error {
	return prompt.WaitForEnter(r.Stdin, r.Stdout, "Press Enter when you have shared the documents...")
}

// LaunchBot runs the bot command with the process stdio and environment. A
// non-zero exit is returned as *apperrors.ExitError.
func (r *Runner) LaunchBot(ctx context.Context) error {
	argv := r.Setup.BotCommand
	if len(argv) == 0 {
		return apperrors.New(apperrors.ErrConfig, "setup.bot_command is empty")
	}
	heading(r.Stdout, "Starting the bot")
	note(r.Stdout, "$ %s", strings.Join(argv, " "))

	cmd := r.Command(ctx, argv[0], argv[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = r.Stdin, r.Stdout, r.Stderr
	cmd.Env = os.Environ()
	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code <= 0 {
			code = 1
		}
		return &apperrors.ExitError{Command: strings.Join(argv, " "), Code: code}
	}
	appErr := apperrors.Wrap(err, apperrors.ErrPrecondition, "could not start the bot").
		WithDetails("command", strings.Join(argv, " "))
	appErr.Code = 1
	return appErr
}
