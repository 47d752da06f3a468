package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	clierrors "github.com/breezy-release/breezy/internal/errors"
	"github.com/breezy-release/breezy/internal/git"
	"github.com/breezy-release/breezy/internal/health"
)

func newDoctorCmd(global *globalOptions) *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that a sync would have everything it needs",
		Long: `Run every prerequisite check a sync depends on and report them all.

Settings, the release config and the version manifest are checked locally.
When the branch, repository and token are all known, the GitHub API is asked
for the repository's releases as well. Nothing is written.`,
		Example: `  # Check the current checkout
  breezy doctor

  # Check what a workflow for another branch would see
  breezy doctor --branch release/2.x --language node`,
		Args:    cobra.NoArgs,
		GroupID: GroupConfiguration,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, global, opts)
		},
	}
	opts.bindTarget(cmd)
	return cmd
}

func runDoctor(cmd *cobra.Command, global *globalOptions, o *syncOptions) error {
	s, workdir, err := loadSettings(cmd, global, o)
	if err != nil {
		return err
	}

	report := health.NewReport()
	report.Add(health.CheckGitClone(workdir))

	settingsReport := health.NewReport()
	settingsReport.Add(health.CheckSettings(s)...)
	report.Add(settingsReport.Checks...)

	cfg, resolved, cfgErr := resolveRelease(s.Config, git.RootOrDir(workdir), workdir)
	report.Add(health.CheckReleaseConfig(cfg, resolved, cfgErr))
	report.Add(health.CheckVersion(workdir, languagesFor(s, cfg)))

	if settingsReport.Passed {
		client, err := newClient(s)
		if err != nil {
			report.Add(health.CheckResult{Name: "GitHub API", Message: err.Error()})
		} else {
			report.Add(health.CheckGitHub(cmd.Context(), client, s.Branch))
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), health.FormatReport(report))
	if !report.Passed {
		return clierrors.NewPrerequisiteError("some checks failed",
			"Fix the items marked ✗ and run 'breezy doctor' again")
	}
	return nil
}
