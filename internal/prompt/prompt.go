// Package prompt asks the operator for input during setup.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// EnvNonInteractive disables prompting when set to a truthy value.
const EnvNonInteractive = "FISHMEOUT_NON_INTERACTIVE"

// ErrNonInteractive is returned when input is required but stdin is not a
// terminal.
var ErrNonInteractive = errors.New("input required but stdin is not a terminal")

// promptUIRunner is a variable for testing purposes to allow mocking prompt.Run()
var promptUIRunner = func(prompt promptui.Prompt) (string, error) {
	return prompt.Run()
}

var stdinIsTTY = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func isTruthyEnv(key string) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// IsInteractive reports whether prompting is allowed: stdin is a TTY and
// neither FISHMEOUT_NON_INTERACTIVE nor CI is truthy.
func IsInteractive() bool {
	if isTruthyEnv(EnvNonInteractive) || isTruthyEnv("CI") {
		return false
	}
	return stdinIsTTY()
}

func validateToken(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("token must not be empty")
	}
	return nil
}

// Token asks for the Telegram bot token without echoing it.
func Token() (string, error) {
	if !IsInteractive() {
		return "", ErrNonInteractive
	}
	prompt := promptui.Prompt{
		Label:    "Please enter your Telegram bot token",
		Mask:     '*',
		Validate: validateToken,
	}
	token, err := promptUIRunner(prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// WaitForEnter prints msg to w and blocks until a line is read from r.
// EOF counts as confirmation.
func WaitForEnter(r io.Reader, w io.Writer, msg string) error {
	fmt.Fprint(w, msg)
	_, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
