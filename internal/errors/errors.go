// Package errors provides error types with actionable suggestions and process
// exit codes for fishmeout.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel error kinds for use with errors.Is().
var (
	// ErrPrecondition indicates a missing executable or file required to proceed.
	ErrPrecondition = errors.New("precondition failed")
	// ErrConfig indicates a configuration error.
	ErrConfig = errors.New("configuration error")
	// ErrAuth indicates missing or invalid credentials.
	ErrAuth = errors.New("authentication error")
	// ErrGoogle indicates a Google Docs or Sheets failure.
	ErrGoogle = errors.New("google api error")
	// ErrTelegram indicates a Telegram Bot API failure.
	ErrTelegram = errors.New("telegram error")
	// ErrStorage indicates a local database failure.
	ErrStorage = errors.New("storage error")
)

// AppError is the base error type. It wraps an underlying cause and carries
// the context needed to print a useful diagnostic.
type AppError struct {
	// Kind is the category of error (e.g., ErrPrecondition).
	Kind error
	// Message is the human-readable error message.
	Message string
	// Suggestion provides actionable advice for resolving the error.
	Suggestion string
	// Cause is the underlying error.
	Cause error
	// Details provides additional context such as a path or command.
	Details map[string]string
	// Code is the process exit code. Zero means 1.
	Code int
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return e.Kind
}

// Is reports whether the error's kind matches target.
func (e *AppError) Is(target error) bool {
	return e.Kind != nil && errors.Is(e.Kind, target)
}

// Format returns the diagnostic printed to the operator.
func (e *AppError) Format() string {
	var sb strings.Builder

	sb.WriteString("Error: ")
	sb.WriteString(e.Error())
	sb.WriteString("\n")

	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("\nDetails:\n")
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, e.Details[k]))
		}
	}

	if e.Suggestion != "" {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(e.Suggestion)
		sb.WriteString("\n")
	}

	return sb.String()
}

// WithDetails adds a detail entry to the error.
func (e *AppError) WithDetails(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets the suggestion.
func (e *AppError) WithSuggestion(s string) *AppError {
	e.Suggestion = s
	return e
}

// New creates a new AppError with the given kind and message.
func New(kind error, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, kind error, message string) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: err}
}

// ExitError reports that a child process exited with a non-zero status.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.Code)
}

// ExitCode maps err to a process exit code: 0 for nil, the child's status for
// ExitError, the configured code for AppError and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}
	return 1
}

// Format renders err for the operator, using AppError.Format when available.
func Format(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Format()
	}
	return "Error: " + err.Error() + "\n"
}
