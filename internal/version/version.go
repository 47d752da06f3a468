// Package version resolves a project's release version from its manifest files.
//
// Each supported language maps to one or more manifest lookups. Resolve tries
// the requested languages in order and returns the first version found,
// validated and normalised as semantic version text.
package version

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNoVersion is returned when none of the requested manifests yields a version.
	ErrNoVersion = errors.New("no version found")

	// ErrNoLanguages is returned when Resolve is called without any language.
	ErrNoLanguages = errors.New("no language configured")
)

// UnknownLanguageError reports a language with no manifest lookup.
type UnknownLanguageError struct {
	Language string
}

func (e *UnknownLanguageError) Error() string {
	return fmt.Sprintf("unsupported language %q (supported: %s)", e.Language, strings.Join(Supported(), ", "))
}

// Resolution is a version found in a manifest.
type Resolution struct {
	Language string
	// Manifest is the file the version was read from, relative to the project dir.
	Manifest string
	Version  string
}

// lookup reads a version from one manifest. An empty string with a nil error
// means the manifest exists but does not carry a version.
type lookup struct {
	file string
	read func(data []byte) (string, error)
}

var lookups = map[string][]lookup{
	"rust":    {{file: "Cargo.toml", read: readCargo}},
	"node":    {{file: "package.json", read: readJSONVersion}},
	"python":  {{file: "pyproject.toml", read: readPyproject}},
	"php":     {{file: "composer.json", read: readJSONVersion}},
	"dart":    {{file: "pubspec.yaml", read: readPubspec}},
	"generic": {{file: "VERSION", read: readPlain}},
}

var aliases = map[string]string{
	"javascript": "node",
	"typescript": "node",
	"flutter":    "dart",
	"version":    "generic",
}

// Supported lists the canonical language names.
func Supported() []string {
	return []string{"dart", "generic", "node", "php", "python", "rust"}
}

// ParseLanguages splits a language list on commas and whitespace, lower-cases
// each entry and drops blanks and duplicates while keeping first-seen order.
func ParseLanguages(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})

	seen := make(map[string]bool, len(fields))
	langs := make([]string, 0, len(fields))
	for _, f := range fields {
		lang := strings.ToLower(f)
		if seen[lang] {
			continue
		}
		seen[lang] = true
		langs = append(langs, lang)
	}
	return langs
}

// canonical maps aliases onto their lookup language.
func canonical(lang string) (string, bool) {
	if a, ok := aliases[lang]; ok {
		lang = a
	}
	_, ok := lookups[lang]
	return lang, ok
}

// Resolve returns the first version found for languages, tried in order,
// reading manifests relative to dir. Every language is checked for support
// before any file is read.
func Resolve(dir string, languages []string) (*Resolution, error) {
	if len(languages) == 0 {
		return nil, ErrNoLanguages
	}

	canon := make([]string, len(languages))
	for i, lang := range languages {
		c, ok := canonical(lang)
		if !ok {
			return nil, &UnknownLanguageError{Language: lang}
		}
		canon[i] = c
	}

	for i, lang := range canon {
		for _, l := range lookups[lang] {
			path := filepath.Join(dir, l.file)
			data, err := os.ReadFile(path)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", l.file, err)
			}

			raw, err := l.read(data)
			if err != nil {
				return nil, fmt.Errorf("parsing %s: %w", l.file, err)
			}
			if raw == "" {
				continue
			}

			normalised, err := Normalize(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", l.file, err)
			}
			return &Resolution{Language: languages[i], Manifest: l.file, Version: normalised}, nil
		}
	}

	return nil, fmt.Errorf("%w for %s in %s", ErrNoVersion, strings.Join(languages, ", "), dir)
}

// Normalize validates raw as a semantic version and returns its canonical
// form without a leading "v".
func Normalize(raw string) (string, error) {
	v, err := semver.NewVersion(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid version %q: %w", raw, err)
	}
	return v.String(), nil
}

func readCargo(data []byte) (string, error) {
	var manifest struct {
		Package struct {
			Version any `toml:"version"`
		} `toml:"package"`
		Workspace struct {
			Package struct {
				Version string `toml:"version"`
			} `toml:"package"`
		} `toml:"workspace"`
	}
	if _, err := toml.Decode(string(data), &manifest); err != nil {
		return "", err
	}
	// version.workspace = true inherits from [workspace.package].
	if v, ok := manifest.Package.Version.(string); ok && v != "" {
		return v, nil
	}
	return manifest.Workspace.Package.Version, nil
}

func readPyproject(data []byte) (string, error) {
	var manifest struct {
		Project struct {
			Version string `toml:"version"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Version string `toml:"version"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if _, err := toml.Decode(string(data), &manifest); err != nil {
		return "", err
	}
	if manifest.Project.Version != "" {
		return manifest.Project.Version, nil
	}
	return manifest.Tool.Poetry.Version, nil
}

func readJSONVersion(data []byte) (string, error) {
	var manifest struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return "", err
	}
	return manifest.Version, nil
}

func readPubspec(data []byte) (string, error) {
	var manifest struct {
		Version string `yaml:"version"`
	}
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return "", err
	}
	return manifest.Version, nil
}

func readPlain(data []byte) (string, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(string(data)), "\n")
	return strings.TrimSpace(line), nil
}
