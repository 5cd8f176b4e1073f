package errors

import "fmt"

// Constructors for the bootstrap and startup failures.

// MissingExecutable reports that a required program is not on PATH.
func MissingExecutable(name, role string) *AppError {
	return &AppError{
		Kind:    ErrPrecondition,
		Message: fmt.Sprintf("%s (%s) is not installed or not on PATH", role, name),
		Details: map[string]string{
			"executable": name,
		},
		Suggestion: fmt.Sprintf("Install %s and make sure `%s` resolves from your shell.", role, name),
		Code:       1,
	}
}

// MissingCredentials reports that the service account key file is absent.
func MissingCredentials(path string) *AppError {
	return &AppError{
		Kind:    ErrPrecondition,
		Message: fmt.Sprintf("credentials file %s not found", path),
		Details: map[string]string{
			"path": path,
		},
		Suggestion: `Download the JSON key of the Google service account and save it
  next to the bot as ` + path + `.`,
		Code: 1,
	}
}

// MissingToken reports that BOT_TOKEN is unset or still the placeholder.
func MissingToken() *AppError {
	return &AppError{
		Kind:       ErrAuth,
		Message:    "BOT_TOKEN environment variable is required",
		Suggestion: "Please set it with: export BOT_TOKEN='your_bot_token_here'",
		Code:       1,
	}
}
