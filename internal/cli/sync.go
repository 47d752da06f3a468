package cli

import (
	"github.com/spf13/cobra"
)

func newSyncCmd(global *globalOptions) *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Create or update the branch's draft release",
		Long: `Reconcile the draft release for a branch.

The newest draft carrying the branch marker is kept and every other marked
draft is deleted. Pull requests merged into the branch since its latest
published release are rendered into the notes, and the draft is updated (or
created when none exists) with tag <prefix><version> and title
"<tag> (<branch>)".

Settings are read from action inputs (INPUT_*), BREEZY_* and GITHUB_*
environment variables and these flags, flags taking precedence.`,
		Example: `  # In a workflow step (inputs come from INPUT_* variables)
  breezy sync

  # Locally, against the checked-out branch
  GITHUB_TOKEN=... breezy sync --language node

  # See what would change
  breezy sync --branch main --language rust --dry-run`,
		Args:    cobra.NoArgs,
		GroupID: GroupReleases,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, global, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}
