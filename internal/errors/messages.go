package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// Common error messages for the breezy CLI.
// These templates keep remediation consistent between sync, preview and config check.

// MissingSetting creates an error for a required run setting that was not supplied.
func MissingSetting(field string) *CLIError {
	switch field {
	case "branch":
		return NewArgumentErrorWithUsage(
			"target branch is required",
			"breezy sync --branch <branch>",
			"Set the 'branch' input of the action (INPUT_BRANCH)",
			"Or pass --branch, or run inside a checkout so the current branch can be detected",
		)
	case "token":
		return NewPrerequisiteError(
			"GitHub token is required",
			"Set the 'github-token' input of the action",
			"Or export GITHUB_TOKEN or BREEZY_TOKEN",
		)
	case "repository":
		return NewPrerequisiteError(
			"repository is required",
			"Export GITHUB_REPOSITORY=owner/repo",
			"Or pass --repository owner/repo, or run inside a clone with an 'origin' remote",
		)
	default:
		return NewArgumentError(
			fmt.Sprintf("%s is required", field),
			"Run 'breezy sync --help' to see the accepted flags and inputs",
		)
	}
}

// InvalidSetting creates an error for a run setting with a malformed value.
func InvalidSetting(field, message string) *CLIError {
	remediation := []string{"Run 'breezy sync --help' to see the accepted flags and inputs"}
	if field == "repository" {
		remediation = []string{"Use the owner/repo form, e.g. octo-org/widgets"}
	}
	return NewArgumentError(fmt.Sprintf("invalid %s: %s", field, message), remediation...)
}

// ConfigFileNotFound creates an error for an explicitly requested config file that does not exist.
func ConfigFileNotFound(path string) *CLIError {
	return NewConfigError(
		fmt.Sprintf("config file not found: %s", path),
		"Check the path given to --config or the 'config' input",
		"Omit it to fall back to ~/.github/breezy.yml or .github/breezy.yml",
	)
}

// ConfigInvalid creates an error for a release config that could not be parsed.
// path may be empty when cause already names the file.
func ConfigInvalid(path string, cause error) *CLIError {
	message := fmt.Sprintf("invalid release config: %v", cause)
	if path != "" {
		message = fmt.Sprintf("invalid release config %s: %v", path, cause)
	}
	e := NewConfigError(
		message,
		"Every category needs exactly one of: title, h1, h2, h3",
		"Run 'breezy config check' to validate the file",
	)
	e.Cause = cause
	return e
}

// NoLanguages creates an error when neither the input nor the release config names a language.
func NoLanguages() *CLIError {
	return NewConfigError(
		"no language configured for version detection",
		"Set the 'language' input (e.g. rust, node, python)",
		"Or add 'language:' to .github/breezy.yml",
	)
}

// UnsupportedLanguage creates an error for a language without a version lookup.
func UnsupportedLanguage(language string, supported []string) *CLIError {
	return NewConfigError(
		fmt.Sprintf("unsupported language %q", language),
		fmt.Sprintf("Use one of: %s", strings.Join(supported, ", ")),
	)
}

// VersionNotFound creates an error when no manifest yielded a version.
func VersionNotFound(languages, dir string, cause error) *CLIError {
	e := NewPrerequisiteError(
		fmt.Sprintf("no version found for %s in %s", languages, dir),
		"Check that the manifest for the configured language exists and has a version field",
		"Run the action after actions/checkout so manifests are present",
	)
	e.Cause = cause
	return e
}

// GitHubRequestFailed creates an error for a failed GitHub API call.
// status is the HTTP status code, or 0 when no response was received.
func GitHubRequestFailed(status int, cause error) *CLIError {
	var remediation []string
	switch status {
	case http.StatusUnauthorized:
		remediation = []string{"Check that the GitHub token is valid and not expired"}
	case http.StatusForbidden:
		remediation = []string{
			"Grant the workflow 'contents: write' permission",
			"Or wait for the API rate limit to reset",
		}
	case http.StatusNotFound:
		remediation = []string{"Check the repository name and that the token can access it"}
	case 0:
		remediation = []string{"Check network connectivity and the GitHub API URL"}
	}
	e := NewRuntimeError(fmt.Sprintf("GitHub API request failed: %v", cause), remediation...)
	e.Cause = cause
	return e
}
