// Package cli wires breezy's cobra commands: sync (the default action),
// preview, config check, doctor and version.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/breezy-release/breezy/internal/drafter"
	clierrors "github.com/breezy-release/breezy/internal/errors"
	"github.com/breezy-release/breezy/internal/git"
	"github.com/breezy-release/breezy/internal/github"
)

// Command groups shown in help output.
const (
	GroupReleases      = "releases"
	GroupConfiguration = "configuration"
	GroupInfo          = "info"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	debug      bool
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	sync := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "breezy",
		Short: "Keep one draft GitHub release per branch up to date",
		Long: `breezy maintains a single draft release for a branch.

Each run finds the draft tagged with the branch marker, deletes any duplicates,
collects the pull requests merged since the branch's last published release and
rewrites the draft's tag, title and notes. Without a subcommand it runs 'sync'.

Release notes are shaped by .github/breezy.yml (categories, excluded labels and
templates). See https://github.com/breezy-release/breezy for details.`,
		Example: `  # Reconcile the draft release for main
  breezy sync --branch main --language rust

  # Show what the draft would contain without writing anything
  breezy preview --branch main

  # Validate the release config
  breezy config check .github/breezy.yml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			installDebugLoggers(cmd.ErrOrStderr(), opts.debug)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, sync)
		},
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return clierrors.NewArgumentErrorWithUsage(err.Error(), c.UseLine(),
			fmt.Sprintf("Run '%s --help' to see the accepted flags", c.CommandPath()))
	})

	cmd.AddGroup(
		&cobra.Group{ID: GroupReleases, Title: "Release Commands:"},
		&cobra.Group{ID: GroupConfiguration, Title: "Configuration:"},
		&cobra.Group{ID: GroupInfo, Title: "Information:"},
	)

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Release config path (default: ~/.github/breezy.yml, then .github/breezy.yml)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Print debug output to stderr")
	sync.bind(cmd)

	cmd.AddCommand(
		newSyncCmd(opts),
		newPreviewCmd(opts),
		newConfigCmd(opts),
		newDoctorCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// installDebugLoggers points every package's debug hook at w, or disables them.
func installDebugLoggers(w io.Writer, enabled bool) {
	var logger func(format string, args ...any)
	if enabled {
		logger = func(format string, args ...any) {
			fmt.Fprintf(w, "[debug] "+format+"\n", args...)
		}
	}
	git.SetDebugLogger(logger)
	github.SetDebugLogger(logger)
	drafter.SetDebugLogger(logger)
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
// Errors are printed to stderr; use ExitCode to map them to a process status.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		clierrors.FprintAny(rootCmd.ErrOrStderr(), err)
	}
	return err
}
