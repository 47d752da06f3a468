package changelog

import (
	"sort"
	"strconv"
	"strings"

	"github.com/breezy-release/breezy/internal/config"
)

// SortAndDedup orders pull requests by merge time, oldest first, and keeps
// only the first occurrence of each number. Missing merge times sort first.
// The input slice is not modified.
func SortAndDedup(pullRequests []PullRequest) []PullRequest {
	ordered := make([]PullRequest, len(pullRequests))
	copy(ordered, pullRequests)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].MergedAt, ordered[j].MergedAt
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})

	seen := make(map[int]bool, len(ordered))
	unique := ordered[:0]
	for _, pr := range ordered {
		if seen[pr.Number] {
			continue
		}
		seen[pr.Number] = true
		unique = append(unique, pr)
	}
	return unique
}

// Compose groups pull requests into sections. Without categories every pull
// request lands in one unheaded section. With categories each pull request goes
// to the first category sharing a label, excluded labels drop it entirely, and
// the rest fall into a trailing unheaded bucket. Empty sections are omitted.
func Compose(marker string, cfg *config.ReleaseConfig, pullRequests []PullRequest) Notes {
	notes := Notes{Marker: marker}
	ordered := SortAndDedup(pullRequests)
	tmpl := changeTemplate(cfg)

	if !cfg.Categorized() {
		lines := make([]string, 0, len(ordered))
		for _, pr := range ordered {
			lines = append(lines, FormatChange(tmpl, pr))
		}
		if len(lines) > 0 {
			notes.Sections = []Section{{Lines: lines}}
		}
		return notes
	}

	buckets := make([][]string, len(cfg.Categories))
	var other []string
	for _, pr := range ordered {
		labels := config.NormalizeLabels(pr.Labels)
		if cfg.Excludes(labels) {
			continue
		}
		line := FormatChange(tmpl, pr)
		placed := false
		for i, category := range cfg.Categories {
			if category.Matches(labels) {
				buckets[i] = append(buckets[i], line)
				placed = true
				break
			}
		}
		if !placed {
			other = append(other, line)
		}
	}

	for i, category := range cfg.Categories {
		if len(buckets[i]) == 0 {
			continue
		}
		notes.Sections = append(notes.Sections, Section{
			Title: category.Title,
			Level: category.HeadingLevel,
			Lines: buckets[i],
		})
	}
	if len(other) > 0 {
		notes.Sections = append(notes.Sections, Section{Lines: other})
	}
	return notes
}

// FormatChange expands $TITLE and $NUMBER in a single pass, so placeholder
// text inside a title is left alone.
func FormatChange(tmpl string, pr PullRequest) string {
	return strings.NewReplacer(
		config.TitlePlaceholder, pr.Title,
		config.NumberPlaceholder, strconv.Itoa(pr.Number),
	).Replace(tmpl)
}

func changeTemplate(cfg *config.ReleaseConfig) string {
	if cfg == nil || strings.TrimSpace(cfg.ChangeTemplate) == "" {
		return config.DefaultChangeTemplate
	}
	return cfg.ChangeTemplate
}
