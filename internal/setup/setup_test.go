package setup

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"fishmeout-bot/internal/config"
	apperrors "fishmeout-bot/internal/errors"
)

// fakeEnv stands in for the programs setup shells out to. Each known name maps
// to a shell snippet; calls are recorded.
type fakeEnv struct {
	missing map[string]bool
	scripts map[string]string
	calls   []string
}

func (f *fakeEnv) lookPath(file string) (string, error) {
	if f.missing[file] {
		return "", exec.ErrNotFound
	}
	return "/usr/bin/" + file, nil
}

func (f *fakeEnv) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	f.calls = append(f.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	script, ok := f.scripts[name]
	if !ok {
		script = "exit 0"
	}
	return exec.CommandContext(ctx, "sh", "-c", script)
}

func newTestRunner(t *testing.T) (*Runner, *fakeEnv, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("SHELL", "/bin/bash")

	cfg := config.NewConfig()
	env := &fakeEnv{
		missing: map[string]bool{},
		scripts: map[string]string{"python3": `echo "Python 3.11.4"`},
	}
	out := &bytes.Buffer{}
	r := New(cfg)
	r.Stdin = strings.NewReader("\n")
	r.Stdout = out
	r.Stderr = out
	r.LookPath = env.lookPath
	r.Command = env.command
	r.PromptToken = func() (string, error) {
		t.Fatal("unexpected token prompt")
		return "", nil
	}
	r.HomeDir = func() (string, error) { return dir, nil }
	return r, env, out
}

func writeCredentials(t *testing.T, r *Runner) {
	t.Helper()
	key := `{"type":"service_account","client_email":"fish@proj.iam.gserviceaccount.com"}`
	require.NoError(t, os.WriteFile(r.Google.CredentialsFile, []byte(key), 0o600))
}

func TestCheckExecutablesMissing(t *testing.T) {
	for _, name := range []string{"python3", "pip3"} {
		t.Run(name, func(t *testing.T) {
			r, env, _ := newTestRunner(t)
			env.missing[name] = true

			err := r.CheckExecutables(context.Background())
			require.ErrorIs(t, err, apperrors.ErrPrecondition)
			require.Equal(t, 1, apperrors.ExitCode(err))
			require.Contains(t, apperrors.Format(err), name)
		})
	}
}

func TestCheckExecutablesWarnsOnOldInterpreter(t *testing.T) {
	r, env, out := newTestRunner(t)
	env.scripts["python3"] = `echo "Python 3.6.9"`

	require.NoError(t, r.CheckExecutables(context.Background()))
	require.Contains(t, out.String(), "3.6.9 is older than 3.8.0")
}

func TestCheckExecutablesIgnoresUnreadableVersion(t *testing.T) {
	r, env, out := newTestRunner(t)
	env.scripts["python3"] = "exit 2"

	require.NoError(t, r.CheckExecutables(context.Background()))
	require.NotContains(t, out.String(), "older than")
}

func TestParseVersion(t *testing.T) {
	tests := map[string]string{
		"Python 3.11.4\n":  "v3.11.4",
		"Python 3.13.0rc1": "v3.13.0",
		"Python 3.8":       "v3.8.0",
		"python version":   "",
		"":                 "",
	}
	for in, want := range tests {
		if got := parseVersion(in); got != want {
			t.Errorf("parseVersion(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteManifestOverwrites(t *testing.T) {
	r, _, _ := newTestRunner(t)
	require.NoError(t, os.WriteFile(r.Setup.Manifest, []byte("flask==0.1\nrequests\nmore\nlines\nhere\nand\nmore\n"), 0o644))

	for i := 0; i < 2; i++ {
		require.NoError(t, r.WriteManifest())
	}
	data, err := os.ReadFile(r.Setup.Manifest)
	require.NoError(t, err)
	require.Equal(t, "python-telegram-bot==13.15\n"+
		"gspread==5.12.0\n"+
		"google-auth==2.23.4\n"+
		"google-api-python-client==2.108.0\n"+
		"google-auth-oauthlib==1.1.0\n", string(data))
}

func TestInstallDependenciesFailureIsNotFatal(t *testing.T) {
	r, env, out := newTestRunner(t)
	env.scripts["pip3"] = "exit 1"

	r.InstallDependencies(context.Background())
	require.Equal(t, []string{"pip3 install -r requirements.txt"}, env.calls)
	require.Contains(t, out.String(), "pip3 install failed")
}

func TestCheckCredentials(t *testing.T) {
	r, _, _ := newTestRunner(t)

	err := r.CheckCredentials()
	require.ErrorIs(t, err, apperrors.ErrPrecondition)
	require.Equal(t, 1, apperrors.ExitCode(err))
	require.Contains(t, apperrors.Format(err), config.DefaultCredentialsFile)

	writeCredentials(t, r)
	require.NoError(t, r.CheckCredentials())
}

func TestEnsureTokenAlreadySet(t *testing.T) {
	r, _, _ := newTestRunner(t)
	t.Setenv(TokenEnv, "123:abc")

	require.NoError(t, r.EnsureToken())
	_, err := os.Stat(filepath.Join(os.Getenv("HOME"), ".bashrc"))
	require.True(t, os.IsNotExist(err), "profile must not be touched")
}

func TestEnsureTokenPromptsAndPersists(t *testing.T) {
	r, _, _ := newTestRunner(t)
	t.Setenv(TokenEnv, "")
	prompts := 0
	r.PromptToken = func() (string, error) {
		prompts++
		return "123:a'b", nil
	}
	profile := filepath.Join(os.Getenv("HOME"), ".bashrc")
	require.NoError(t, os.WriteFile(profile, []byte("alias ll='ls -l'\n"), 0o644))

	require.NoError(t, r.EnsureToken())
	require.Equal(t, 1, prompts)
	require.Equal(t, "123:a'b", os.Getenv(TokenEnv))

	data, err := os.ReadFile(profile)
	require.NoError(t, err)
	require.Equal(t, "alias ll='ls -l'\nexport BOT_TOKEN='123:a'\\''b'\n", string(data))
}

func TestEnsureTokenPromptFailure(t *testing.T) {
	r, _, _ := newTestRunner(t)
	t.Setenv(TokenEnv, "")
	r.PromptToken = func() (string, error) { return "", errors.New("not a terminal") }

	err := r.EnsureToken()
	require.ErrorIs(t, err, apperrors.ErrAuth)
	require.Equal(t, 1, apperrors.ExitCode(err))
	require.Contains(t, apperrors.Format(err), "export BOT_TOKEN=")
}

func TestProfileName(t *testing.T) {
	require.Equal(t, ".zshrc", profileName("/usr/local/bin/zsh"))
	require.Equal(t, ".bashrc", profileName("/bin/bash"))
	require.Equal(t, ".bashrc", profileName(""))
}

func TestPrintSharingInstructions(t *testing.T) {
	r, _, out := newTestRunner(t)
	r.PrintSharingInstructions()
	require.Contains(t, out.String(), "the service account in "+config.DefaultCredentialsFile)

	out.Reset()
	writeCredentials(t, r)
	r.PrintSharingInstructions()
	require.Contains(t, out.String(), "fish@proj.iam.gserviceaccount.com")
	require.Contains(t, out.String(), "https://docs.google.com/document/d/"+config.DefaultKnowledgeDocID)
	require.Contains(t, out.String(), "https://docs.google.com/spreadsheets/d/"+config.DefaultLearningSheetID)
}

func TestLaunchBotPropagatesExitCode(t *testing.T) {
	r, env, _ := newTestRunner(t)
	env.scripts["python3"] = "exit 3"

	err := r.LaunchBot(context.Background())
	var exitErr *apperrors.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 3, apperrors.ExitCode(err))
	require.Equal(t, "python3 bot.py", exitErr.Command)
}

func TestLaunchBotPassesToken(t *testing.T) {
	r, env, out := newTestRunner(t)
	t.Setenv(TokenEnv, "123:abc")
	env.scripts["python3"] = `echo "token=$BOT_TOKEN"`

	require.NoError(t, r.LaunchBot(context.Background()))
	require.Contains(t, out.String(), "token=123:abc")
}

func TestRunFullSequence(t *testing.T) {
	r, env, out := newTestRunner(t)
	t.Setenv(TokenEnv, "")
	writeCredentials(t, r)
	r.PromptToken = func() (string, error) { return "42:xyz", nil }

	require.NoError(t, r.Run(context.Background()))
	require.Equal(t, []string{
		"python3 --version",
		"pip3 install -r requirements.txt",
		"python3 bot.py",
	}, env.calls)
	require.Equal(t, "42:xyz", os.Getenv(TokenEnv))
	require.Contains(t, out.String(), "Press Enter")
}

func TestRunStopsAtMissingCredentials(t *testing.T) {
	r, env, _ := newTestRunner(t)
	t.Setenv(TokenEnv, "123:abc")

	err := r.Run(context.Background())
	require.ErrorIs(t, err, apperrors.ErrPrecondition)
	require.NotContains(t, env.calls, "python3 bot.py")
	_, statErr := os.Stat("requirements.txt")
	require.NoError(t, statErr, "manifest is written before the credentials check")
}
