package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v66/github"

	"github.com/breezy-release/breezy/internal/release"
)

// Draft is the payload used to create or update a draft release.
type Draft struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	Body    string `json:"body"`
	Target  string `json:"target_commitish"`
	Draft   bool   `json:"draft"`
}

func (d Draft) toRelease() *gh.RepositoryRelease {
	return &gh.RepositoryRelease{
		TagName:         gh.String(d.TagName),
		Name:            gh.String(d.Name),
		Body:            gh.String(d.Body),
		TargetCommitish: gh.String(d.Target),
		Draft:           gh.Bool(d.Draft),
	}
}

func toInfo(r *gh.RepositoryRelease) release.ReleaseInfo {
	info := release.ReleaseInfo{
		ID:           r.GetID(),
		TagName:      r.GetTagName(),
		Name:         r.GetName(),
		Draft:        r.GetDraft(),
		Body:         r.GetBody(),
		CreatedAt:    r.GetCreatedAt().Time,
		TargetBranch: r.GetTargetCommitish(),
	}
	if r.PublishedAt != nil {
		published := r.PublishedAt.Time
		info.PublishedAt = &published
	}
	return info
}

// ListReleases returns every release of the repository, drafts included,
// following the Link header until there is no next page.
func (c *Client) ListReleases(ctx context.Context) ([]release.ReleaseInfo, error) {
	var all []release.ReleaseInfo
	opts := &gh.ListOptions{PerPage: c.perPage}
	for {
		batch, resp, err := c.gh.Repositories.ListReleases(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing releases: %w", apiError(err))
		}
		for _, r := range batch {
			all = append(all, toInfo(r))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	logDebug("[github] listed %d releases", len(all))
	return all, nil
}

// CreateRelease creates a release and returns its id.
func (c *Client) CreateRelease(ctx context.Context, d Draft) (int64, error) {
	created, _, err := c.gh.Repositories.CreateRelease(ctx, c.owner, c.repo, d.toRelease())
	if err != nil {
		return 0, fmt.Errorf("creating release %s: %w", d.TagName, apiError(err))
	}
	return created.GetID(), nil
}

// UpdateRelease replaces the tag, name, body and target of release id.
func (c *Client) UpdateRelease(ctx context.Context, id int64, d Draft) error {
	if _, _, err := c.gh.Repositories.EditRelease(ctx, c.owner, c.repo, id, d.toRelease()); err != nil {
		return fmt.Errorf("updating release %d: %w", id, apiError(err))
	}
	return nil
}

// DeleteRelease deletes release id.
func (c *Client) DeleteRelease(ctx context.Context, id int64) error {
	if _, err := c.gh.Repositories.DeleteRelease(ctx, c.owner, c.repo, id); err != nil {
		return fmt.Errorf("deleting release %d: %w", id, apiError(err))
	}
	return nil
}
