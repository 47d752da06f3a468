package changelog

import (
	"fmt"
	"io"
	"strings"

	"github.com/breezy-release/breezy/internal/config"
)

// ChangesPlaceholder receives the rendered sections in a body template.
const ChangesPlaceholder = "$CHANGES"

// RenderMarkdown writes the release body: the marker line, then a blank line
// and the sections when there is at least one change. Sections are separated
// by a blank line. No trailing newline is written.
//
// The function is idempotent - given the same input, it produces identical output.
func RenderMarkdown(n Notes, w io.Writer) error {
	if _, err := io.WriteString(w, n.Marker); err != nil {
		return fmt.Errorf("writing marker: %w", err)
	}

	changes := RenderChanges(n)
	if changes == "" {
		return nil
	}

	if _, err := io.WriteString(w, "\n\n"+changes); err != nil {
		return fmt.Errorf("writing changes: %w", err)
	}
	return nil
}

// RenderChanges renders the sections without the marker.
func RenderChanges(n Notes) string {
	blocks := make([]string, 0, len(n.Sections))
	for _, s := range n.Sections {
		if len(s.Lines) == 0 {
			continue
		}
		blocks = append(blocks, renderSection(s))
	}
	return strings.Join(blocks, "\n\n")
}

func renderSection(s Section) string {
	lines := make([]string, 0, len(s.Lines)+1)
	if heading := s.Heading(); heading != "" {
		lines = append(lines, heading)
	}
	lines = append(lines, s.Lines...)
	return strings.Join(lines, "\n")
}

// Build renders the release body for marker, an optional config and the
// merged pull requests. With no surviving changes the result is exactly marker.
func Build(marker string, cfg *config.ReleaseConfig, pullRequests []PullRequest) string {
	var b strings.Builder
	// strings.Builder never returns a write error.
	_ = RenderMarkdown(Compose(marker, cfg, pullRequests), &b)
	return b.String()
}

// Body is Build with the config's full-body template applied. The marker stays
// the first line; the template follows after a blank line with $CHANGES
// replaced by the rendered sections. With no surviving changes the template
// is skipped and the result is exactly marker, as with Build.
func Body(marker string, cfg *config.ReleaseConfig, pullRequests []PullRequest) string {
	if cfg == nil || cfg.Template == "" {
		return Build(marker, cfg, pullRequests)
	}

	changes := RenderChanges(Compose(marker, cfg, pullRequests))
	if changes == "" {
		return marker
	}
	body := strings.TrimSpace(strings.ReplaceAll(cfg.Template, ChangesPlaceholder, changes))
	if body == "" {
		return marker
	}
	return marker + "\n\n" + body
}
