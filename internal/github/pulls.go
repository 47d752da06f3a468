package github

import (
	"context"
	"fmt"
	"time"

	gh "github.com/google/go-github/v66/github"

	"github.com/breezy-release/breezy/internal/changelog"
)

// ListMergedPullRequests returns the pull requests merged into branch after
// since. A nil since returns every merged pull request for the branch.
//
// Results are requested newest-updated first, so paging stops at the first
// page whose oldest entry was last updated before since: a pull request
// merged after since cannot have been updated before it.
func (c *Client) ListMergedPullRequests(ctx context.Context, branch string, since *time.Time) ([]changelog.PullRequest, error) {
	opts := &gh.PullRequestListOptions{
		State:       "closed",
		Base:        branch,
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: c.perPage},
	}

	var merged []changelog.PullRequest
	for {
		batch, resp, err := c.gh.PullRequests.List(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing pull requests for %s: %w", branch, apiError(err))
		}

		exhausted := false
		for _, p := range batch {
			if since != nil && p.GetUpdatedAt().Before(*since) {
				exhausted = true
			}
			if p.MergedAt == nil {
				continue
			}
			if since != nil && !p.MergedAt.After(*since) {
				continue
			}
			merged = append(merged, toPullRequest(p))
		}

		if exhausted || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	logDebug("[github] %d pull requests merged into %s", len(merged), branch)
	return merged, nil
}

func toPullRequest(p *gh.PullRequest) changelog.PullRequest {
	labels := make([]string, 0, len(p.Labels))
	for _, l := range p.Labels {
		labels = append(labels, l.GetName())
	}
	mergedAt := p.MergedAt.Time
	return changelog.PullRequest{
		Number:   p.GetNumber(),
		Title:    p.GetTitle(),
		MergedAt: &mergedAt,
		Labels:   labels,
	}
}
