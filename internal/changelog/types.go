package changelog

import (
	"strings"
	"time"
)

// PullRequest is a merged pull request as seen by the builder.
type PullRequest struct {
	Number int
	Title  string
	// MergedAt is nil only for unmerged pull requests, which callers filter out.
	MergedAt *time.Time
	Labels   []string
}

// Notes is the structured form of a release body.
type Notes struct {
	Marker   string
	Sections []Section
}

// Section is a group of rendered change lines. A zero Level renders without
// a heading; it is used for uncategorized output and the trailing bucket.
type Section struct {
	Title string
	Level int
	Lines []string
}

// IsEmpty returns true if no section has any line.
func (n Notes) IsEmpty() bool {
	return n.Count() == 0
}

// Count returns the total number of change lines across all sections.
func (n Notes) Count() int {
	total := 0
	for _, s := range n.Sections {
		total += len(s.Lines)
	}
	return total
}

// Heading renders the markdown heading, or "" for an unheaded section.
func (s Section) Heading() string {
	if s.Level <= 0 {
		return ""
	}
	return strings.Repeat("#", s.Level) + " " + s.Title
}
