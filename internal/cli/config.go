package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/breezy-release/breezy/internal/config"
	clierrors "github.com/breezy-release/breezy/internal/errors"
	"github.com/breezy-release/breezy/internal/git"
)

func newConfigCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the release config",
		Long: `Inspect breezy's release config (breezy.yml).

The release config is resolved in this order:
  1. The path given with --config or the 'config' action input (must exist)
  2. ~/.github/breezy.yml
  3. .github/breezy.yml in the repository root
Without any of them, all changes are listed in one unheaded section.`,
		GroupID: GroupConfiguration,
	}
	cmd.AddCommand(newConfigCheckCmd(global))
	return cmd
}

func newConfigCheckCmd(global *globalOptions) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate the release config and summarise it",
		Example: `  # Validate whichever config a run would use
  breezy config check

  # Validate a specific file
  breezy config check .github/breezy.yml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			explicit := global.configPath
			if len(args) == 1 {
				explicit = args[0]
			}

			workdir, err := os.Getwd()
			if err != nil {
				return clierrors.Wrap(err, clierrors.Runtime)
			}

			cfg, resolved, err := resolveRelease(explicit, git.RootOrDir(workdir), workdir)
			if err != nil {
				return err
			}
			writeConfigSummary(cmd.OutOrStdout(), cfg, resolved, plain)
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Plain output without colors")
	return cmd
}

// writeConfigSummary prints what a run would do with cfg.
func writeConfigSummary(w io.Writer, cfg *config.ReleaseConfig, resolved *config.Resolved, plain bool) {
	ok := "✓"
	label := func(s string) string { return s }
	if !plain {
		ok = color.GreenString(ok)
		bold := color.New(color.Bold)
		label = func(s string) string { return bold.Sprint(s) }
	}

	if cfg == nil {
		fmt.Fprintln(w, "No release config found; all changes are listed in one unheaded section.")
		return
	}

	orDefault := func(s, def string) string {
		if s == "" {
			return def
		}
		return s
	}

	fmt.Fprintf(w, "%s %s (%s)\n", label("Config:         "), resolved.Path, resolved.Source)
	fmt.Fprintf(w, "%s %s\n", label("Language:       "), orDefault(cfg.Language, "(from input)"))
	fmt.Fprintf(w, "%s %s\n", label("Tag template:   "), orDefault(cfg.TagTemplate, "(default)"))
	fmt.Fprintf(w, "%s %s\n", label("Name template:  "), orDefault(cfg.NameTemplate, "(default)"))
	fmt.Fprintf(w, "%s %s\n", label("Change template:"), cfg.ChangeTemplate)
	bodyTemplate := "(none)"
	if cfg.Template != "" {
		bodyTemplate = "set"
	}
	fmt.Fprintf(w, "%s %s\n", label("Body template:  "), bodyTemplate)

	if cfg.Categorized() {
		fmt.Fprintf(w, "%s\n", label("Categories:"))
		for _, c := range cfg.Categories {
			labels := "(no labels)"
			if len(c.Labels) > 0 {
				labels = strings.Join(c.Labels, ", ")
			}
			fmt.Fprintf(w, "  %s  <- %s\n", c.Heading(), labels)
		}
	} else {
		fmt.Fprintf(w, "%s %s\n", label("Categories:     "), "(none)")
	}
	if len(cfg.ExcludeLabels) > 0 {
		fmt.Fprintf(w, "%s %s\n", label("Excluded labels:"), strings.Join(cfg.ExcludeLabels, ", "))
	}

	fmt.Fprintf(w, "\n%s config is valid\n", ok)
}
