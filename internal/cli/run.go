package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/breezy-release/breezy/internal/build"
	"github.com/breezy-release/breezy/internal/config"
	"github.com/breezy-release/breezy/internal/drafter"
	clierrors "github.com/breezy-release/breezy/internal/errors"
	"github.com/breezy-release/breezy/internal/git"
	"github.com/breezy-release/breezy/internal/github"
	"github.com/breezy-release/breezy/internal/progress"
	"github.com/breezy-release/breezy/internal/version"
)

// syncOptions are the run-setting flags shared by the root, sync and preview commands.
type syncOptions struct {
	branch     string
	language   string
	tagPrefix  string
	repository string
	apiURL     string
	dryRun     bool
}

func (o *syncOptions) bind(cmd *cobra.Command) {
	o.bindTarget(cmd)
	f := cmd.Flags()
	f.StringVar(&o.tagPrefix, "tag-prefix", "", "Tag prefix (default \"v\"; an empty value tags the bare version)")
	f.BoolVar(&o.dryRun, "dry-run", false, "Compute the draft without writing to GitHub")
}

// bindTarget binds the flags that say which branch, repository and manifests
// a command looks at.
func (o *syncOptions) bindTarget(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.branch, "branch", "b", "", "Target branch (default: INPUT_BRANCH, then the checked-out branch)")
	f.StringVarP(&o.language, "language", "l", "", "Version sources to try in order, e.g. \"rust, node\"")
	f.StringVar(&o.repository, "repository", "", "Repository as owner/repo (default: GITHUB_REPOSITORY, then the origin remote)")
	f.StringVar(&o.apiURL, "api-url", "", "GitHub API base URL (default: GITHUB_API_URL or https://api.github.com)")
}

// overrides returns the flags the user actually set, keyed by settings key.
func (o *syncOptions) overrides(cmd *cobra.Command, global *globalOptions) map[string]any {
	out := map[string]any{}
	set := func(flag, key string, value any) {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			out[key] = value
		}
	}
	set("branch", "branch", o.branch)
	set("language", "language", o.language)
	set("tag-prefix", "tag_prefix", o.tagPrefix)
	set("repository", "repository", o.repository)
	set("api-url", "api_url", o.apiURL)
	set("dry-run", "dry_run", o.dryRun)
	if global != nil && global.configPath != "" {
		out["config"] = global.configPath
	}
	return out
}

// runContext is everything resolved before talking to GitHub.
type runContext struct {
	settings  *config.Settings
	workdir   string
	repoRoot  string
	release   *config.ReleaseConfig
	resolved  *config.Resolved
	languages []string
}

// prepare loads settings, fills gaps from the local clone, validates them and
// resolves the release config.
func prepare(cmd *cobra.Command, global *globalOptions, o *syncOptions) (*runContext, error) {
	s, workdir, err := loadSettings(cmd, global, o)
	if err != nil {
		return nil, err
	}

	if err := config.ValidateSettings(s, "settings"); err != nil {
		return nil, settingsError(err)
	}

	rc := &runContext{
		settings: s,
		workdir:  workdir,
		repoRoot: git.RootOrDir(workdir),
	}
	if err := rc.loadRelease(); err != nil {
		return nil, err
	}

	rc.languages = languagesFor(s, rc.release)
	if len(rc.languages) == 0 {
		return nil, clierrors.NoLanguages()
	}
	return rc, nil
}

// loadSettings merges every settings layer without validating and fills the
// branch and repository from the local clone. It also returns the directory
// manifests are read from.
func loadSettings(cmd *cobra.Command, global *globalOptions, o *syncOptions) (*config.Settings, string, error) {
	s, err := config.LoadSettings(config.LoadOptions{
		Overrides:      o.overrides(cmd, global),
		SkipValidation: true,
	})
	if err != nil {
		return nil, "", clierrors.Wrap(err, clierrors.Configuration)
	}

	workdir := s.Workspace
	if workdir == "" {
		if workdir, err = os.Getwd(); err != nil {
			return nil, "", clierrors.Wrap(err, clierrors.Runtime)
		}
	}
	fillFromGit(s, workdir)
	return s, workdir, nil
}

// languagesFor prefers the language setting over the release config's hint.
func languagesFor(s *config.Settings, cfg *config.ReleaseConfig) []string {
	langs := s.Language
	if strings.TrimSpace(langs) == "" && cfg != nil {
		langs = cfg.Language
	}
	return version.ParseLanguages(langs)
}

// loadRelease resolves and parses the release config into rc.
func (rc *runContext) loadRelease() error {
	cfg, resolved, err := resolveRelease(rc.settings.Config, rc.repoRoot, rc.workdir)
	if err != nil {
		return err
	}
	rc.release = cfg
	rc.resolved = resolved
	return nil
}

// resolveRelease walks the default candidates and maps failures to CLI errors.
func resolveRelease(explicit, repoRoot, workdir string) (*config.ReleaseConfig, *config.Resolved, error) {
	home, _ := os.UserHomeDir()
	candidates := config.DefaultCandidates(explicit, home, repoRoot, workdir)

	cfg, resolved, err := config.LoadRelease(candidates)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			path, _ := config.ExpandPath(explicit, home, workdir)
			return nil, nil, clierrors.ConfigFileNotFound(path)
		}
		return nil, nil, clierrors.ConfigInvalid(explicit, err)
	}
	return cfg, resolved, nil
}

// fillFromGit defaults branch and repository from the clone at dir.
func fillFromGit(s *config.Settings, dir string) {
	if s.Branch == "" {
		if branch, err := git.CurrentBranch(dir); err == nil {
			s.Branch = branch
		}
	}
	if s.Repository == "" {
		if slug, err := git.RemoteRepository(dir, ""); err == nil {
			s.Repository = slug
		}
	}
}

// settingsError maps a settings ValidationError to a CLIError.
func settingsError(err error) error {
	var ve *config.ValidationError
	if !errors.As(err, &ve) {
		return clierrors.Wrap(err, clierrors.Configuration)
	}
	if ve.Message == "is required" {
		return clierrors.MissingSetting(ve.Field)
	}
	return clierrors.InvalidSetting(ve.Field, ve.Message)
}

// newClient builds the GitHub client for rc.
func (rc *runContext) newClient() (*github.Client, error) {
	return newClient(rc.settings)
}

func newClient(s *config.Settings) (*github.Client, error) {
	c, err := github.NewClient(github.Options{
		Token:     s.Token,
		Owner:     s.Owner(),
		Repo:      s.Repo(),
		BaseURL:   s.APIURL,
		UserAgent: build.UserAgent(),
	})
	if err != nil {
		return nil, clierrors.Wrap(err, clierrors.Prerequisite)
	}
	return c, nil
}

// drafterOptions builds the run options for rc.
func (rc *runContext) drafterOptions(cmd *cobra.Command, dryRun bool) drafter.Options {
	opts := drafter.Options{
		Branch:         rc.settings.Branch,
		TagPrefix:      rc.settings.TagPrefix,
		Config:         rc.release,
		ResolveVersion: rc.resolveVersion,
		DryRun:         dryRun,
		Out:            cmd.OutOrStdout(),
	}
	if caps := progress.DetectTerminalCapabilities(); caps.IsTTY {
		opts.Phases = progress.NewReporter(cmd.OutOrStdout(), caps)
	}
	return opts
}

func (rc *runContext) resolveVersion(context.Context) (string, error) {
	res, err := version.Resolve(rc.workdir, rc.languages)
	if err != nil {
		var unknown *version.UnknownLanguageError
		switch {
		case errors.As(err, &unknown):
			return "", clierrors.UnsupportedLanguage(unknown.Language, version.Supported())
		case errors.Is(err, version.ErrNoVersion):
			return "", clierrors.VersionNotFound(strings.Join(rc.languages, ", "), rc.workdir, err)
		default:
			return "", clierrors.Wrap(err, clierrors.Prerequisite)
		}
	}
	return res.Version, nil
}

// runError maps errors from a drafter run to CLI errors.
func runError(err error) error {
	if err == nil || clierrors.IsCLIError(err) {
		return err
	}
	var apiErr *github.APIError
	if errors.As(err, &apiErr) {
		return clierrors.GitHubRequestFailed(apiErr.StatusCode, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return clierrors.GitHubRequestFailed(0, err)
	}
	if errors.Is(err, context.Canceled) {
		return clierrors.NewRuntimeError("interrupted")
	}
	return err
}

// runSync performs a full reconciliation.
func runSync(cmd *cobra.Command, global *globalOptions, o *syncOptions) error {
	rc, err := prepare(cmd, global, o)
	if err != nil {
		return err
	}
	client, err := rc.newClient()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rc.resolved != nil {
		fmt.Fprintf(out, "Using release config %s\n", rc.resolved.Path)
	}

	res, err := drafter.Run(cmd.Context(), client, rc.drafterOptions(cmd, rc.settings.DryRun))
	if err != nil {
		return runError(err)
	}

	if res.DryRun {
		fmt.Fprintf(out, "\nTag:   %s\nTitle: %s\n\n%s\n", res.Tag, res.Title, res.Body)
	}
	return nil
}
