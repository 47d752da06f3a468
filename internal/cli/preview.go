package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/breezy-release/breezy/internal/changelog"
	"github.com/breezy-release/breezy/internal/config"
	"github.com/breezy-release/breezy/internal/drafter"
	"github.com/breezy-release/breezy/internal/github"
	"github.com/breezy-release/breezy/internal/release"
)

type previewOptions struct {
	syncOptions
	plain    bool
	markdown bool
	watch    bool
}

func newPreviewCmd(global *globalOptions) *cobra.Command {
	opts := &previewOptions{}

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the draft release breezy would write",
		Long: `Compute the draft release for a branch without writing to GitHub.

Releases and pull requests are read from the API exactly as 'sync' does, but
no release is created, updated or deleted. With --watch the release config
file is watched and the preview is re-rendered on every save, reusing the
data already fetched from GitHub.`,
		Example: `  # Styled preview
  breezy preview --branch main --language rust

  # The exact body that would be written
  breezy preview --markdown

  # Iterate on .github/breezy.yml
  breezy preview --watch`,
		Args:    cobra.NoArgs,
		GroupID: GroupReleases,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd, global, opts)
		},
	}
	opts.bind(cmd)
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain output without colors")
	cmd.Flags().BoolVar(&opts.markdown, "markdown", false, "Print the raw release body")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Re-render when the release config changes")
	cmd.MarkFlagsMutuallyExclusive("plain", "markdown")
	return cmd
}

func runPreview(cmd *cobra.Command, global *globalOptions, opts *previewOptions) error {
	rc, err := prepare(cmd, global, &opts.syncOptions)
	if err != nil {
		return err
	}
	client, err := rc.newClient()
	if err != nil {
		return err
	}

	api := newCachingAPI(client)
	out := cmd.OutOrStdout()

	render := func() error {
		runOpts := rc.drafterOptions(cmd, true)
		runOpts.Out = io.Discard
		res, err := drafter.Run(cmd.Context(), api, runOpts)
		if err != nil {
			return runError(err)
		}
		return writePreview(out, res, opts)
	}

	if err := render(); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}

	path := config.RepoConfigPath(rc.repoRoot)
	if rc.resolved != nil {
		path = rc.resolved.Path
	}
	watcher, err := config.NewWatcher(path, config.DefaultWatchDebounce)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nWatching %s (Ctrl+C to stop)\n", watcher.Path())

	return watcher.Run(cmd.Context(), func() {
		fmt.Fprintf(out, "\n--- %s changed at %s ---\n", watcher.Path(), time.Now().Format(time.TimeOnly))
		cfg, err := config.LoadFile(watcher.Path())
		if err != nil {
			fmt.Fprintf(out, "%s %v\n", color.RedString("invalid config:"), err)
			return
		}
		rc.release = cfg
		if err := render(); err != nil {
			fmt.Fprintf(out, "%s %v\n", color.RedString("preview failed:"), err)
		}
	})
}

// writePreview prints the header and notes for one preview run.
func writePreview(w io.Writer, res *drafter.Result, opts *previewOptions) error {
	if opts.markdown {
		_, err := fmt.Fprintln(w, res.Body)
		return err
	}

	bold := color.New(color.Bold)
	label := func(s string) string {
		if opts.plain {
			return s
		}
		return bold.Sprint(s)
	}

	action := "create a new draft"
	if res.Action == drafter.ActionUpdated {
		action = fmt.Sprintf("update draft %d", res.ReleaseID)
	}
	baseline := "none (all merged pull requests)"
	if res.Baseline != nil {
		baseline = fmt.Sprintf("%s at %s", res.Baseline.TagName, res.Baseline.EffectiveTime().Format(time.RFC3339))
	}

	fmt.Fprintf(w, "%s %s\n", label("Tag:     "), res.Tag)
	fmt.Fprintf(w, "%s %s\n", label("Title:   "), res.Title)
	fmt.Fprintf(w, "%s %s\n", label("Action:  "), action)
	fmt.Fprintf(w, "%s %s\n\n", label("Since:   "), baseline)

	return changelog.FormatTerminal(res.Notes, w, changelog.FormatOptions{Plain: opts.plain})
}

// errReadOnly is returned by write calls on a cachingAPI.
var errReadOnly = errors.New("preview never writes releases")

// cachingAPI remembers GitHub reads so watch mode re-renders without new
// requests. Writes are refused.
type cachingAPI struct {
	api drafter.ReleaseAPI

	mu       sync.Mutex
	releases []release.ReleaseInfo
	listed   bool
	pulls    map[string][]changelog.PullRequest
}

func newCachingAPI(api drafter.ReleaseAPI) *cachingAPI {
	return &cachingAPI{api: api, pulls: map[string][]changelog.PullRequest{}}
}

func (c *cachingAPI) ListReleases(ctx context.Context) ([]release.ReleaseInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listed {
		return c.releases, nil
	}
	r, err := c.api.ListReleases(ctx)
	if err != nil {
		return nil, err
	}
	c.releases, c.listed = r, true
	return r, nil
}

func (c *cachingAPI) ListMergedPullRequests(ctx context.Context, branch string, since *time.Time) ([]changelog.PullRequest, error) {
	key := branch
	if since != nil {
		key += "@" + since.UTC().Format(time.RFC3339Nano)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prs, ok := c.pulls[key]; ok {
		return prs, nil
	}
	prs, err := c.api.ListMergedPullRequests(ctx, branch, since)
	if err != nil {
		return nil, err
	}
	c.pulls[key] = prs
	return prs, nil
}

func (c *cachingAPI) CreateRelease(context.Context, github.Draft) (int64, error) {
	return 0, errReadOnly
}

func (c *cachingAPI) UpdateRelease(context.Context, int64, github.Draft) error {
	return errReadOnly
}

func (c *cachingAPI) DeleteRelease(context.Context, int64) error {
	return errReadOnly
}
