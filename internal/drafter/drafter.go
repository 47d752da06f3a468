// Package drafter runs one reconciliation of a branch's draft release: it
// picks the canonical draft, removes duplicates, gathers the pull requests
// merged since the last published release and writes the rendered notes back.
package drafter

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/breezy-release/breezy/internal/changelog"
	"github.com/breezy-release/breezy/internal/config"
	"github.com/breezy-release/breezy/internal/github"
	"github.com/breezy-release/breezy/internal/release"
)

// DefaultDeleteParallelism bounds concurrent deletions of extra drafts.
const DefaultDeleteParallelism = 4

// debugLogger is a function that logs debug messages when debug mode is enabled.
// By default, it's a no-op. Set it via SetDebugLogger to enable debug output.
var debugLogger func(format string, args ...any)

// SetDebugLogger configures the debug logger for reconciliation runs.
// Pass nil to disable debug logging.
func SetDebugLogger(logger func(format string, args ...any)) {
	debugLogger = logger
}

func logDebug(format string, args ...any) {
	if debugLogger != nil {
		debugLogger(format, args...)
	}
}

// ReleaseAPI is the subset of the GitHub client a run needs.
type ReleaseAPI interface {
	ListReleases(ctx context.Context) ([]release.ReleaseInfo, error)
	CreateRelease(ctx context.Context, d github.Draft) (int64, error)
	UpdateRelease(ctx context.Context, id int64, d github.Draft) error
	DeleteRelease(ctx context.Context, id int64) error
	ListMergedPullRequests(ctx context.Context, branch string, since *time.Time) ([]changelog.PullRequest, error)
}

// Phases is notified around the network-bound steps of a run.
// *progress.Reporter satisfies it.
type Phases interface {
	Track(message string, fn func() error) error
}

// Action is what a run did (or would do) to the primary draft.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Options configures a run.
type Options struct {
	Branch    string
	TagPrefix string
	// Config may be nil, meaning the uncategorized default layout.
	Config *config.ReleaseConfig
	// ResolveVersion returns the version used for the tag and title.
	ResolveVersion func(ctx context.Context) (string, error)
	// DryRun computes everything but performs no writes.
	DryRun bool
	// Out receives one status line per write. Defaults to io.Discard.
	Out io.Writer
	// Phases is optional.
	Phases Phases
	// DeleteParallelism defaults to DefaultDeleteParallelism.
	DeleteParallelism int
}

// Result describes a completed run.
type Result struct {
	Action    Action
	ReleaseID int64
	// Deleted lists the extra drafts removed, newest first.
	Deleted []int64
	Tag     string
	Title   string
	Body    string
	// Notes is the composed changelog behind Body.
	Notes changelog.Notes
	// Baseline is nil when the branch has no published release yet.
	Baseline     *release.ReleaseInfo
	PullRequests int
	DryRun       bool
}

// Run performs one reconciliation for opts.Branch.
func Run(ctx context.Context, api ReleaseAPI, opts Options) (*Result, error) {
	if opts.Branch == "" {
		return nil, fmt.Errorf("branch is required")
	}
	if opts.ResolveVersion == nil {
		return nil, fmt.Errorf("version resolver is required")
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.DeleteParallelism <= 0 {
		opts.DeleteParallelism = DefaultDeleteParallelism
	}

	var (
		version  string
		releases []release.ReleaseInfo
	)
	err := track(opts.Phases, "Resolving version and listing releases", func() error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			v, err := opts.ResolveVersion(gctx)
			if err != nil {
				return err
			}
			version = v
			return nil
		})
		g.Go(func() error {
			r, err := api.ListReleases(gctx)
			if err != nil {
				return err
			}
			releases = r
			return nil
		})
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}
	logDebug("[drafter] version %s, %d releases", version, len(releases))

	marker := release.Marker(opts.Branch)
	selection := release.SelectDraft(releases, marker)
	logDebug("[drafter] primary=%d (found=%v) extras=%v", selection.Primary, selection.HasPrimary, selection.Extras)

	result := &Result{DryRun: opts.DryRun}

	deleted, err := deleteExtras(ctx, api, selection.Extras, opts)
	result.Deleted = deleted
	if err != nil {
		return result, err
	}

	var since *time.Time
	if baseline, ok := release.SelectBaseline(releases, opts.Branch); ok {
		result.Baseline = &baseline
		t := baseline.EffectiveTime()
		since = &t
		logDebug("[drafter] baseline %s at %s", baseline.TagName, t.Format(time.RFC3339))
	}

	var pullRequests []changelog.PullRequest
	err = track(opts.Phases, "Collecting merged pull requests", func() error {
		prs, err := api.ListMergedPullRequests(ctx, opts.Branch, since)
		pullRequests = prs
		return err
	})
	if err != nil {
		return result, err
	}
	result.PullRequests = len(pullRequests)

	naming := release.Naming{
		Prefix:  opts.TagPrefix,
		Version: version,
		Branch:  opts.Branch,
	}
	if opts.Config != nil {
		naming.TagTemplate = opts.Config.TagTemplate
		naming.NameTemplate = opts.Config.NameTemplate
	}
	result.Tag = naming.Tag()
	result.Title = naming.Title()
	result.Body = changelog.Body(marker, opts.Config, pullRequests)
	result.Notes = changelog.Compose(marker, opts.Config, pullRequests)

	draft := github.Draft{
		TagName: result.Tag,
		Name:    result.Title,
		Body:    result.Body,
		Target:  opts.Branch,
		Draft:   true,
	}

	if selection.HasPrimary {
		result.Action = ActionUpdated
		result.ReleaseID = selection.Primary
		if opts.DryRun {
			fmt.Fprintf(opts.Out, "Would update draft release %d for %s\n", selection.Primary, opts.Branch)
			return result, nil
		}
		err = track(opts.Phases, "Updating draft release", func() error {
			return api.UpdateRelease(ctx, selection.Primary, draft)
		})
		if err != nil {
			return result, err
		}
		fmt.Fprintf(opts.Out, "Updated draft release %d for %s\n", selection.Primary, opts.Branch)
		return result, nil
	}

	result.Action = ActionCreated
	if opts.DryRun {
		fmt.Fprintf(opts.Out, "Would create draft release for %s\n", opts.Branch)
		return result, nil
	}
	err = track(opts.Phases, "Creating draft release", func() error {
		id, err := api.CreateRelease(ctx, draft)
		result.ReleaseID = id
		return err
	})
	if err != nil {
		return result, err
	}
	fmt.Fprintf(opts.Out, "Created draft release for %s\n", opts.Branch)
	return result, nil
}

// deleteExtras removes every id in extras with bounded parallelism. Status
// lines are written in extras order once all deletions have finished; the
// returned slice holds the ids that were actually deleted.
func deleteExtras(ctx context.Context, api ReleaseAPI, extras []int64, opts Options) ([]int64, error) {
	if len(extras) == 0 {
		return []int64{}, nil
	}

	if opts.DryRun {
		for _, id := range extras {
			fmt.Fprintf(opts.Out, "Would delete extra draft release %d for %s\n", id, opts.Branch)
		}
		return []int64{}, nil
	}

	done := make([]bool, len(extras))
	err := track(opts.Phases, fmt.Sprintf("Deleting %d extra draft(s)", len(extras)), func() error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.DeleteParallelism)
		for i, id := range extras {
			g.Go(func() error {
				if err := api.DeleteRelease(gctx, id); err != nil {
					return err
				}
				done[i] = true
				return nil
			})
		}
		return g.Wait()
	})

	deleted := make([]int64, 0, len(extras))
	for i, id := range extras {
		if !done[i] {
			continue
		}
		deleted = append(deleted, id)
		fmt.Fprintf(opts.Out, "Deleted extra draft release %d for %s\n", id, opts.Branch)
	}
	return deleted, err
}

func track(p Phases, message string, fn func() error) error {
	if p == nil {
		return fn()
	}
	return p.Track(message, fn)
}
