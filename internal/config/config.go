// Package config provides configuration for breezy.
//
// Two layers live here. The release config (breezy.yml) describes changelog
// categories, label exclusions and templates; it is parsed by Parse and located
// through an ordered list of Candidates. Run settings (branch, token, tag prefix,
// repository) are loaded with koanf in priority order: CLI flags > action inputs
// (INPUT_*) > BREEZY_* environment > GitHub environment (GITHUB_*) > GitHub event
// payload > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com"

// Settings holds everything a single run needs besides the release config.
type Settings struct {
	// Branch is the branch whose draft release is maintained.
	Branch string `koanf:"branch" validate:"required"`
	// Language lists version archetypes, e.g. "rust, node". May be empty when
	// the release config names a language.
	Language  string `koanf:"language"`
	TagPrefix string `koanf:"tag_prefix"`
	Token     string `koanf:"token" validate:"required"`
	// Repository is "owner/repo".
	Repository string `koanf:"repository" validate:"required"`
	// Config is an explicit release config path.
	Config    string `koanf:"config"`
	APIURL    string `koanf:"api_url" validate:"required,url"`
	Workspace string `koanf:"workspace"`
	DryRun    bool   `koanf:"dry_run"`
}

// Owner returns the repository owner.
func (s *Settings) Owner() string {
	owner, _, _ := SplitRepository(s.Repository)
	return owner
}

// Repo returns the repository name.
func (s *Settings) Repo() string {
	_, repo, _ := SplitRepository(s.Repository)
	return repo
}

// LoadOptions configures how settings are loaded
type LoadOptions struct {
	// Overrides are applied last, typically from CLI flags. Empty strings are ignored.
	Overrides map[string]any
	// SkipValidation returns the merged settings without checking required fields.
	SkipValidation bool
}

// inputKeys maps normalized action input names to settings keys.
var inputKeys = map[string]string{
	"branch":       "branch",
	"language":     "language",
	"tag_prefix":   "tag_prefix",
	"github_token": "token",
	"token":        "token",
	"repository":   "repository",
	"config":       "config",
	"dry_run":      "dry_run",
}

// keepEmpty lists settings where an explicitly empty value replaces the
// default instead of being treated as unset.
var keepEmpty = map[string]bool{
	"tag_prefix": true,
}

// githubKeys maps GITHUB_* variables to settings keys.
var githubKeys = map[string]string{
	"GITHUB_TOKEN":      "token",
	"GITHUB_REPOSITORY": "repository",
	"GITHUB_API_URL":    "api_url",
	"GITHUB_WORKSPACE":  "workspace",
}

// LoadSettings merges all settings layers and validates the result.
func LoadSettings(opts LoadOptions) (*Settings, error) {
	k := koanf.New(".")

	loadDefaults(k)

	if err := loadEventPayload(k, os.Getenv("GITHUB_EVENT_PATH")); err != nil {
		return nil, err
	}

	if err := loadEnvironment(k); err != nil {
		return nil, err
	}

	for key, value := range opts.Overrides {
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" && !keepEmpty[key] {
			continue
		}
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("applying %s override: %w", key, err)
		}
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	trimSettings(&s)

	if !opts.SkipValidation {
		if err := ValidateSettings(&s, "settings"); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

func loadDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"tag_prefix": "v",
		"api_url":    DefaultAPIURL,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}
}

// loadEventPayload takes the repository name from the workflow event when
// GITHUB_REPOSITORY is not available. A missing payload is not an error.
func loadEventPayload(k *koanf.Koanf, path string) error {
	if path == "" || !fileExists(path) {
		return nil
	}
	ev := koanf.New(".")
	if err := ev.Load(file.Provider(path), json.Parser()); err != nil {
		return fmt.Errorf("failed to load event payload %s: %w", path, err)
	}
	if name := ev.String("repository.full_name"); name != "" {
		k.Set("repository", name)
	}
	return nil
}

func loadEnvironment(k *koanf.Koanf) error {
	if err := k.Load(env.ProviderWithValue("GITHUB_", ".", githubTransform), nil); err != nil {
		return fmt.Errorf("failed to load GitHub environment: %w", err)
	}
	if err := k.Load(env.ProviderWithValue("BREEZY_", ".", prefixedTransform("BREEZY_")), nil); err != nil {
		return fmt.Errorf("failed to load environment config: %w", err)
	}
	if err := k.Load(env.ProviderWithValue("INPUT_", ".", prefixedTransform("INPUT_")), nil); err != nil {
		return fmt.Errorf("failed to load action inputs: %w", err)
	}
	return nil
}

func githubTransform(key, value string) (string, interface{}) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	return githubKeys[key], value
}

// prefixedTransform converts INPUT_TAG-PREFIX and INPUT_TAG_PREFIX alike to
// tag_prefix. Unknown variables are skipped, as are empty ones unless the
// setting is in keepEmpty.
func prefixedTransform(prefix string) func(string, string) (string, interface{}) {
	return func(key, value string) (string, interface{}) {
		name := strings.ToLower(strings.TrimPrefix(key, prefix))
		name = strings.NewReplacer("-", "_", " ", "_").Replace(name)
		setting := inputKeys[name]
		if strings.TrimSpace(value) == "" && !keepEmpty[setting] {
			return "", nil
		}
		return setting, value
	}
}

func trimSettings(s *Settings) {
	s.Branch = strings.TrimSpace(s.Branch)
	s.Language = strings.TrimSpace(s.Language)
	s.TagPrefix = strings.TrimSpace(s.TagPrefix)
	s.Token = strings.TrimSpace(s.Token)
	s.Repository = strings.TrimSpace(s.Repository)
	s.Config = strings.TrimSpace(s.Config)
	s.APIURL = strings.TrimRight(strings.TrimSpace(s.APIURL), "/")
}

// SplitRepository splits "owner/repo".
func SplitRepository(repository string) (owner, repo string, err error) {
	owner, repo, found := strings.Cut(repository, "/")
	if !found || owner == "" || repo == "" {
		return "", "", errors.New("invalid repository value; expected owner/repo")
	}
	return owner, repo, nil
}
