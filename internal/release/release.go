// Package release decides which existing GitHub releases a branch owns.
//
// A draft belongs to a branch if and only if its body contains the branch
// marker. SelectDraft picks the draft to update and the duplicates to delete;
// SelectBaseline picks the latest published release used as the lower bound
// for merged pull requests. Both are pure functions of a releases snapshot.
package release

import (
	"sort"
	"strings"
	"time"
)

// ReleaseInfo is the subset of a hosted release that reconciliation reads.
type ReleaseInfo struct {
	ID           int64
	TagName      string
	Name         string
	Draft        bool
	Body         string
	CreatedAt    time.Time
	PublishedAt  *time.Time
	TargetBranch string
}

// EffectiveTime is PublishedAt when set, else CreatedAt.
func (r ReleaseInfo) EffectiveTime() time.Time {
	if r.PublishedAt != nil {
		return *r.PublishedAt
	}
	return r.CreatedAt
}

// DraftSelection is the outcome of SelectDraft. Primary is only meaningful
// when HasPrimary is true; Extras never contains Primary.
type DraftSelection struct {
	Primary    int64
	HasPrimary bool
	Extras     []int64
}

// Marker returns the hidden ownership token for a branch. The branch is
// embedded verbatim, so names containing "-->" produce a broken marker.
func Marker(branch string) string {
	return "<!-- breezy:branch=" + branch + " -->"
}

// SelectDraft finds the drafts owned by marker. The newest by CreatedAt is the
// primary; every other match is an extra to delete. Ties keep input order.
func SelectDraft(releases []ReleaseInfo, marker string) DraftSelection {
	var drafts []ReleaseInfo
	for _, r := range releases {
		if r.Draft && strings.Contains(r.Body, marker) {
			drafts = append(drafts, r)
		}
	}

	if len(drafts) == 0 {
		return DraftSelection{Extras: []int64{}}
	}

	sort.SliceStable(drafts, func(i, j int) bool {
		return drafts[i].CreatedAt.After(drafts[j].CreatedAt)
	})

	primary := drafts[0].ID
	seen := map[int64]bool{primary: true}
	extras := make([]int64, 0, len(drafts)-1)
	for _, r := range drafts[1:] {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		extras = append(extras, r.ID)
	}

	return DraftSelection{
		Primary:    primary,
		HasPrimary: true,
		Extras:     extras,
	}
}

// SelectBaseline returns the most recent published release targeting branch
// exactly, ordered by EffectiveTime. The boolean is false when none exists.
func SelectBaseline(releases []ReleaseInfo, branch string) (ReleaseInfo, bool) {
	var (
		best  ReleaseInfo
		found bool
	)
	for _, r := range releases {
		if r.Draft || r.TargetBranch != branch {
			continue
		}
		// Strictly after keeps the earliest input on ties, like a stable sort.
		if !found || r.EffectiveTime().After(best.EffectiveTime()) {
			best, found = r, true
		}
	}
	return best, found
}
