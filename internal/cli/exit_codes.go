package cli

import (
	clierrors "github.com/breezy-release/breezy/internal/errors"
)

// Exit codes for the breezy CLI
// These codes let workflows tell a misconfiguration from a failed API call
const (
	// ExitSuccess indicates successful command execution
	ExitSuccess = 0

	// ExitRuntimeFailure indicates a failure while talking to GitHub or resolving the version
	ExitRuntimeFailure = 1

	// ExitInvalidArguments indicates invalid command arguments or inputs
	ExitInvalidArguments = 3

	// ExitConfigError indicates a missing or invalid configuration or prerequisite
	ExitConfigError = 4
)

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	cliErr := clierrors.AsCLIError(err)
	if cliErr == nil {
		return ExitRuntimeFailure
	}

	switch cliErr.Category {
	case clierrors.Argument:
		return ExitInvalidArguments
	case clierrors.Configuration, clierrors.Prerequisite:
		return ExitConfigError
	default:
		return ExitRuntimeFailure
	}
}
