package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/v2"
)

const (
	// TitlePlaceholder is replaced with the pull request title in change templates.
	TitlePlaceholder = "$TITLE"
	// NumberPlaceholder is replaced with the pull request number in change templates.
	NumberPlaceholder = "$NUMBER"
	// DefaultChangeTemplate renders each pull request as its bare title.
	DefaultChangeTemplate = TitlePlaceholder
	// DefaultHeadingLevel is the level implied by a category's "title" field.
	DefaultHeadingLevel = 2
)

// ErrCategoryHeading is returned when a category declares zero or several of
// title, h1, h2 and h3.
var ErrCategoryHeading = errors.New("ambiguous or missing category heading")

// ReleaseCategory is one changelog section. Labels are lower-cased, trimmed
// and kept in declaration order.
type ReleaseCategory struct {
	Title        string
	HeadingLevel int
	Labels       []string
}

// Matches reports whether any of the given normalized labels belongs to the category.
func (c ReleaseCategory) Matches(labels []string) bool {
	for _, want := range c.Labels {
		for _, have := range labels {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Heading renders the markdown heading line for the category.
func (c ReleaseCategory) Heading() string {
	return strings.Repeat("#", c.HeadingLevel) + " " + c.Title
}

// ReleaseConfig is the validated, normalized form of a breezy.yml document.
type ReleaseConfig struct {
	// Language is a hint for the version resolver.
	Language     string
	TagTemplate  string
	NameTemplate string
	Categories   []ReleaseCategory
	// ExcludeLabels drops any pull request carrying one of these labels.
	ExcludeLabels  []string
	ChangeTemplate string
	// Template overrides the whole body; $CHANGES receives the rendered sections.
	Template string
}

// Categorized reports whether pull requests should be grouped into sections.
func (c *ReleaseConfig) Categorized() bool {
	return c != nil && len(c.Categories) > 0
}

// Excludes reports whether any of the normalized labels is excluded.
func (c *ReleaseConfig) Excludes(labels []string) bool {
	if c == nil {
		return false
	}
	for _, excluded := range c.ExcludeLabels {
		for _, label := range labels {
			if excluded == label {
				return true
			}
		}
	}
	return false
}

// rawConfig mirrors the document shape. Heading fields are pointers so that
// an absent key can be told apart from an empty one.
type rawConfig struct {
	Language       *string       `koanf:"language"`
	TagTemplate    *string       `koanf:"tag-template"`
	NameTemplate   *string       `koanf:"name-template"`
	Categories     []rawCategory `koanf:"categories"`
	ExcludeLabels  []string      `koanf:"exclude-labels"`
	ChangeTemplate *string       `koanf:"change-template"`
	Template       *string       `koanf:"template"`
}

type rawCategory struct {
	Title  *string  `koanf:"title"`
	H1     *string  `koanf:"h1"`
	H2     *string  `koanf:"h2"`
	H3     *string  `koanf:"h3"`
	Labels []string `koanf:"labels"`
	Label  *string  `koanf:"label"`
}

// bytesProvider feeds an in-memory document to koanf.
type bytesProvider []byte

func (b bytesProvider) ReadBytes() ([]byte, error) {
	return b, nil
}

func (b bytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("bytesProvider does not support Read")
}

// Parse turns a breezy.yml document into a ReleaseConfig. It never touches the
// filesystem. Any category error fails the whole document.
func Parse(data []byte) (*ReleaseConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return fromRaw(rawConfig{})
	}

	k := koanf.New(".")
	if err := k.Load(bytesProvider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("invalid config YAML: %w", err)
	}

	var raw rawConfig
	if err := k.Unmarshal("", &raw); err != nil {
		return nil, fmt.Errorf("invalid config YAML: %w", err)
	}

	return fromRaw(raw)
}

// LoadFile reads, syntax-checks and parses the config at path.
func LoadFile(path string) (*ReleaseConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := ValidateYAMLSyntaxFromBytes(data, path); err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func fromRaw(raw rawConfig) (*ReleaseConfig, error) {
	categories := make([]ReleaseCategory, 0, len(raw.Categories))
	for i, rc := range raw.Categories {
		title, level, err := resolveHeading(rc)
		if err != nil {
			return nil, fmt.Errorf("categories[%d]: %w", i, err)
		}

		labels := append([]string{}, rc.Labels...)
		if rc.Label != nil {
			labels = append(labels, *rc.Label)
		}

		categories = append(categories, ReleaseCategory{
			Title:        title,
			HeadingLevel: level,
			Labels:       NormalizeLabels(labels),
		})
	}

	changeTemplate := strings.TrimSpace(deref(raw.ChangeTemplate))
	if changeTemplate == "" {
		changeTemplate = DefaultChangeTemplate
	}

	return &ReleaseConfig{
		Language:       strings.ToLower(strings.TrimSpace(deref(raw.Language))),
		TagTemplate:    strings.TrimSpace(deref(raw.TagTemplate)),
		NameTemplate:   strings.TrimSpace(deref(raw.NameTemplate)),
		Categories:     categories,
		ExcludeLabels:  NormalizeLabels(raw.ExcludeLabels),
		ChangeTemplate: changeTemplate,
		Template:       strings.TrimSpace(deref(raw.Template)),
	}, nil
}

// resolveHeading collapses the four alternative heading fields into one
// (title, level) pair.
func resolveHeading(rc rawCategory) (string, int, error) {
	candidates := []struct {
		value *string
		level int
	}{
		{rc.Title, DefaultHeadingLevel},
		{rc.H1, 1},
		{rc.H2, 2},
		{rc.H3, 3},
	}

	var (
		title string
		level int
		found int
	)
	for _, c := range candidates {
		if c.value == nil {
			continue
		}
		found++
		title, level = strings.TrimSpace(*c.value), c.level
	}

	switch {
	case found == 0:
		return "", 0, fmt.Errorf("%w: category must include one of: title, h1, h2, h3", ErrCategoryHeading)
	case found > 1:
		return "", 0, fmt.Errorf("%w: category must include only one of: title, h1, h2, h3", ErrCategoryHeading)
	case title == "":
		return "", 0, fmt.Errorf("%w: category heading must not be blank", ErrCategoryHeading)
	}
	return title, level, nil
}

// NormalizeLabels trims and lower-cases labels, dropping empty ones.
func NormalizeLabels(labels []string) []string {
	normalized := make([]string, 0, len(labels))
	for _, label := range labels {
		label = strings.ToLower(strings.TrimSpace(label))
		if label != "" {
			normalized = append(normalized, label)
		}
	}
	return normalized
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
