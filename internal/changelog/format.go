package changelog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// OtherTitle labels the unheaded section in terminal previews.
const OtherTitle = "Other"

// SectionStyle defines the color and icon for a preview section.
type SectionStyle struct {
	Color *color.Color
	Icon  string
}

var (
	headedStyle   = SectionStyle{Color: color.New(color.FgCyan), Icon: "●"}
	unheadedStyle = SectionStyle{Color: color.New(color.FgHiBlack), Icon: "○"}
)

// FormatOptions controls the terminal output formatting.
type FormatOptions struct {
	Plain    bool // Disable colors and icons
	MaxWidth int  // Maximum line width (0 = auto-detect)
}

// FormatTerminal writes a human-oriented preview of the notes. It is not the
// release body; use RenderMarkdown for that.
func FormatTerminal(n Notes, w io.Writer, opts FormatOptions) error {
	width := resolveWidth(opts.MaxWidth)

	if err := writeMarker(n.Marker, w, opts); err != nil {
		return fmt.Errorf("writing marker: %w", err)
	}

	if n.IsEmpty() {
		_, err := fmt.Fprintln(w, "\n  (no changes)")
		return err
	}

	for _, s := range n.Sections {
		if len(s.Lines) == 0 {
			continue
		}
		if err := writeSection(s, w, opts, width); err != nil {
			return fmt.Errorf("formatting section %q: %w", s.Title, err)
		}
	}

	_, err := fmt.Fprintf(w, "\n%d change(s)\n", n.Count())
	return err
}

func writeMarker(marker string, w io.Writer, opts FormatOptions) error {
	if opts.Plain {
		_, err := fmt.Fprintln(w, marker)
		return err
	}
	faint := color.New(color.Faint).SprintFunc()
	_, err := fmt.Fprintln(w, faint(marker))
	return err
}

// writeSection writes a single section with its entries.
func writeSection(s Section, w io.Writer, opts FormatOptions, width int) error {
	style := headedStyle
	title := s.Title
	if s.Level <= 0 {
		style = unheadedStyle
		title = OtherTitle
	}

	if err := writeSectionHeader(s, title, style, w, opts); err != nil {
		return err
	}

	for _, line := range s.Lines {
		if err := writeEntry(line, w, opts, width); err != nil {
			return err
		}
	}
	return nil
}

func writeSectionHeader(s Section, title string, style SectionStyle, w io.Writer, opts FormatOptions) error {
	if opts.Plain {
		heading := s.Heading()
		if heading == "" {
			heading = title
		}
		_, err := fmt.Fprintf(w, "\n%s\n", heading)
		return err
	}

	bold := color.New(color.Bold).SprintFunc()
	_, err := fmt.Fprintf(w, "\n%s %s\n", style.Color.Sprint(style.Icon), bold(title))
	return err
}

// writeEntry writes a single change line with optional wrapping.
func writeEntry(text string, w io.Writer, opts FormatOptions, width int) error {
	prefix := "  - "

	if opts.Plain {
		_, err := fmt.Fprintf(w, "%s%s\n", prefix, text)
		return err
	}

	wrapped := wrapText(text, width-len(prefix), "    ")
	_, err := fmt.Fprintf(w, "%s%s\n", prefix, wrapped)
	return err
}

// resolveWidth determines the terminal width to use.
func resolveWidth(maxWidth int) int {
	if maxWidth > 0 {
		return maxWidth
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// wrapText wraps text to fit within maxWidth terminal cells, using indent for
// continuation lines. Lines only break between runes.
func wrapText(text string, maxWidth int, indent string) string {
	if maxWidth <= 0 || runewidth.StringWidth(text) <= maxWidth {
		return text
	}

	var lines []string
	remaining := []rune(text)

	for runewidth.StringWidth(string(remaining)) > maxWidth {
		fit, width := 0, 0
		for fit < len(remaining) {
			w := runewidth.RuneWidth(remaining[fit])
			if width+w > maxWidth {
				break
			}
			width += w
			fit++
		}
		if fit == 0 {
			// a single rune wider than maxWidth
			fit = 1
		}

		// Break at the last space within the fitting prefix
		breakPoint := fit
		for i := fit - 1; i > 0; i-- {
			if remaining[i] == ' ' {
				breakPoint = i
				break
			}
		}

		lines = append(lines, string(remaining[:breakPoint]))
		remaining = []rune(strings.TrimLeft(string(remaining[breakPoint:]), " "))
	}

	if len(remaining) > 0 {
		lines = append(lines, string(remaining))
	}

	return strings.Join(lines, "\n"+indent)
}
