package errors

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	// color.NoColor is honoured at call time, so these degrade to plain text
	// when output is not a terminal or NO_COLOR is set.
	errorLabel  = color.New(color.FgRed, color.Bold).SprintFunc()
	errorMsg    = color.New(color.FgRed).SprintFunc()
	fixLabel    = color.New(color.FgGreen, color.Bold).SprintFunc()
	usageLabel  = color.New(color.FgCyan, color.Bold).SprintFunc()
	usageText   = color.New(color.FgCyan).SprintFunc()
	bullet      = color.New(color.FgGreen).SprintFunc()
	categoryFmt = color.New(color.FgYellow).SprintFunc()
)

// FormatError formats a CLIError for display in the terminal.
func FormatError(err *CLIError) string {
	if err == nil {
		return ""
	}
	return formatError(err, true)
}

// FormatErrorPlain formats a CLIError without colors.
func FormatErrorPlain(err *CLIError) string {
	if err == nil {
		return ""
	}
	return formatError(err, false)
}

// paint applies fn only when colors are requested.
func paint(useColors bool, fn func(a ...any) string, s string) string {
	if !useColors {
		return s
	}
	return fn(s)
}

func formatError(err *CLIError, useColors bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s [%s]: %s\n",
		paint(useColors, errorLabel, "Error"),
		paint(useColors, categoryFmt, err.Category.String()),
		paint(useColors, errorMsg, err.Message),
	)

	if err.Usage != "" {
		fmt.Fprintf(&sb, "\n%s%s\n",
			paint(useColors, usageLabel, "Usage: "),
			paint(useColors, usageText, err.Usage),
		)
	}

	if len(err.Remediation) > 0 {
		fmt.Fprintf(&sb, "\n%s\n", paint(useColors, fixLabel, "To fix this:"))
		for _, step := range err.Remediation {
			fmt.Fprintf(&sb, "  %s %s\n", paint(useColors, bullet, "•"), step)
		}
	}

	return sb.String()
}

// FprintError prints a formatted CLIError to the given writer.
func FprintError(w io.Writer, err *CLIError) {
	if err == nil {
		return
	}
	fmt.Fprint(w, FormatError(err))
}

// FprintAny prints err to w, formatting it as a CLIError when its chain has
// one and as a Runtime error otherwise.
func FprintAny(w io.Writer, err error) {
	if err == nil {
		return
	}
	cliErr := AsCLIError(err)
	if cliErr == nil {
		cliErr = Wrap(err, Runtime)
	}
	FprintError(w, cliErr)
}
