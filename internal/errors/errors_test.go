package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorIsKind(t *testing.T) {
	err := MissingExecutable("pip3", "package manager")
	require.True(t, errors.Is(err, ErrPrecondition))
	require.False(t, errors.Is(err, ErrConfig))

	wrapped := fmt.Errorf("setup: %w", err)
	require.True(t, errors.Is(wrapped, ErrPrecondition))
}

func TestAppErrorUnwrapCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, ErrStorage, "open database")
	require.ErrorIs(t, err, cause)
	require.ErrorIs(t, err, ErrStorage)
	require.Equal(t, "open database: disk full", err.Error())
}

func TestFormatIncludesDetailsAndSuggestion(t *testing.T) {
	out := MissingCredentials("creds.json").Format()
	require.True(t, strings.HasPrefix(out, "Error: credentials file creds.json not found"))
	require.Contains(t, out, "path: creds.json")
	require.Contains(t, out, "Suggestion:")

	plain := Format(errors.New("boom"))
	require.Equal(t, "Error: boom\n", plain)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("x"), 1},
		{"precondition", MissingCredentials("c.json"), 1},
		{"app error without code", New(ErrGoogle, "x"), 1},
		{"child exit", &ExitError{Command: "bot", Code: 3}, 3},
		{"wrapped child exit", fmt.Errorf("launch: %w", &ExitError{Command: "bot", Code: 7}), 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
