package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigFileName is the release config file looked up under .github/.
const ConfigFileName = "breezy.yml"

// ErrConfigNotFound is returned when an explicitly requested config file does not exist.
var ErrConfigNotFound = errors.New("config file not found")

// Candidate is one place a release config may live. Candidates are tried in
// order and the first existing file wins.
type Candidate struct {
	// Source names the candidate for messages ("explicit", "home", "repository").
	Source string
	// Path resolves the candidate's file path. An empty path skips the candidate.
	Path func() (string, error)
	// Required makes a missing file an error instead of falling through.
	Required bool
}

// Resolved describes where the release config was loaded from.
type Resolved struct {
	Source string
	Path   string
}

// HomeConfigPath returns <home>/.github/breezy.yml.
func HomeConfigPath(home string) string {
	return filepath.Join(home, ".github", ConfigFileName)
}

// RepoConfigPath returns <root>/.github/breezy.yml.
func RepoConfigPath(root string) string {
	return filepath.Join(root, ".github", ConfigFileName)
}

// ExpandPath resolves an explicit config path: "~" and "~/" expand to home,
// absolute paths are kept and everything else is relative to cwd.
func ExpandPath(input, home, cwd string) (string, error) {
	if input == "~" || strings.HasPrefix(input, "~/") {
		if home == "" {
			return "", errors.New("HOME is not set")
		}
		if input == "~" {
			return home, nil
		}
		return filepath.Join(home, input[2:]), nil
	}
	if filepath.IsAbs(input) {
		return input, nil
	}
	return filepath.Join(cwd, input), nil
}

// DefaultCandidates builds the standard lookup order: the explicit path when
// one is given, then the home directory, then the repository root.
func DefaultCandidates(explicit, home, repoRoot, cwd string) []Candidate {
	var candidates []Candidate
	if strings.TrimSpace(explicit) != "" {
		candidates = append(candidates, Candidate{
			Source:   "explicit",
			Required: true,
			Path: func() (string, error) {
				return ExpandPath(strings.TrimSpace(explicit), home, cwd)
			},
		})
		// An explicit path short-circuits the fallbacks.
		return candidates
	}
	if home != "" {
		candidates = append(candidates, Candidate{
			Source: "home",
			Path:   func() (string, error) { return HomeConfigPath(home), nil },
		})
	}
	if repoRoot != "" {
		candidates = append(candidates, Candidate{
			Source: "repository",
			Path:   func() (string, error) { return RepoConfigPath(repoRoot), nil },
		})
	}
	return candidates
}

// LoadRelease walks the candidates and parses the first config that exists.
// It returns a nil config when none is found, which disables categorization.
func LoadRelease(candidates []Candidate) (*ReleaseConfig, *Resolved, error) {
	for _, c := range candidates {
		path, err := c.Path()
		if err != nil {
			return nil, nil, fmt.Errorf("resolving %s config path: %w", c.Source, err)
		}
		if path == "" {
			continue
		}

		if !fileExists(path) {
			if c.Required {
				return nil, nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
			}
			continue
		}

		cfg, err := LoadFile(path)
		if err != nil {
			return nil, nil, err
		}
		return cfg, &Resolved{Source: c.Source, Path: path}, nil
	}
	return nil, nil, nil
}

// fileExists returns true if a regular file exists at path
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
