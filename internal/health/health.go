// Package health provides the checks behind 'breezy doctor'. Each check
// inspects one prerequisite of a sync (settings, release config, version
// manifest, API access) and reports it without stopping at the first failure.
package health

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/breezy-release/breezy/internal/config"
	"github.com/breezy-release/breezy/internal/git"
	"github.com/breezy-release/breezy/internal/release"
	"github.com/breezy-release/breezy/internal/version"
)

// CheckResult represents the result of a single health check
type CheckResult struct {
	Name    string
	Passed  bool
	Message string
	// Advisory results are shown but never fail the report.
	Advisory bool
}

// HealthReport contains all health check results
type HealthReport struct {
	Checks []CheckResult
	Passed bool
}

// NewReport returns an empty, passing report.
func NewReport() *HealthReport {
	return &HealthReport{Checks: make([]CheckResult, 0), Passed: true}
}

// Add records checks, failing the report on any non-advisory failure.
func (r *HealthReport) Add(checks ...CheckResult) {
	for _, c := range checks {
		r.Checks = append(r.Checks, c)
		if !c.Passed && !c.Advisory {
			r.Passed = false
		}
	}
}

// CheckGitClone reports whether dir is inside a git clone. Breezy only needs
// one to infer the branch and repository, so the result is advisory.
func CheckGitClone(dir string) CheckResult {
	root, err := git.RepositoryRoot(dir)
	if err != nil {
		return CheckResult{
			Name:     "Git clone",
			Passed:   false,
			Advisory: true,
			Message:  "not inside a git clone; branch and repository must be given explicitly",
		}
	}
	return CheckResult{Name: "Git clone", Passed: true, Message: root}
}

// CheckSettings validates the run settings one field at a time.
func CheckSettings(s *config.Settings) []CheckResult {
	results := make([]CheckResult, 0, 3)

	if s.Branch == "" {
		results = append(results, CheckResult{Name: "Branch", Message: "not set (INPUT_BRANCH or --branch)"})
	} else {
		results = append(results, CheckResult{Name: "Branch", Passed: true, Message: s.Branch})
	}

	if _, _, err := config.SplitRepository(s.Repository); err != nil {
		msg := "not set (GITHUB_REPOSITORY or --repository)"
		if s.Repository != "" {
			msg = fmt.Sprintf("%q is not owner/repo", s.Repository)
		}
		results = append(results, CheckResult{Name: "Repository", Message: msg})
	} else {
		results = append(results, CheckResult{Name: "Repository", Passed: true, Message: s.Repository})
	}

	if s.Token == "" {
		results = append(results, CheckResult{Name: "GitHub token", Message: "not set (GITHUB_TOKEN or the github-token input)"})
	} else {
		results = append(results, CheckResult{Name: "GitHub token", Passed: true, Message: "present"})
	}

	return results
}

// CheckReleaseConfig reports the outcome of resolving the release config.
func CheckReleaseConfig(cfg *config.ReleaseConfig, resolved *config.Resolved, err error) CheckResult {
	switch {
	case err != nil:
		return CheckResult{Name: "Release config", Message: err.Error()}
	case cfg == nil:
		return CheckResult{Name: "Release config", Passed: true, Message: "none; all changes go in one unheaded section"}
	}

	detail := "uncategorized"
	if cfg.Categorized() {
		detail = fmt.Sprintf("%d categories", len(cfg.Categories))
	}
	return CheckResult{
		Name:    "Release config",
		Passed:  true,
		Message: fmt.Sprintf("%s (%s, %s)", resolved.Path, resolved.Source, detail),
	}
}

// CheckVersion resolves the version the next draft would carry.
func CheckVersion(dir string, languages []string) CheckResult {
	if len(languages) == 0 {
		return CheckResult{Name: "Version", Message: "no language configured (INPUT_LANGUAGE, --language or 'language:' in breezy.yml)"}
	}

	res, err := version.Resolve(dir, languages)
	if err != nil {
		var unknown *version.UnknownLanguageError
		if errors.As(err, &unknown) {
			return CheckResult{
				Name:    "Version",
				Message: fmt.Sprintf("unsupported language %q (supported: %s)", unknown.Language, strings.Join(version.Supported(), ", ")),
			}
		}
		return CheckResult{Name: "Version", Message: err.Error()}
	}
	return CheckResult{
		Name:    "Version",
		Passed:  true,
		Message: fmt.Sprintf("%s from %s (%s)", res.Version, res.Manifest, res.Language),
	}
}

// ReleaseLister is the read access CheckGitHub needs.
type ReleaseLister interface {
	ListReleases(ctx context.Context) ([]release.ReleaseInfo, error)
}

// CheckGitHub lists the repository's releases and counts the drafts owned by branch.
func CheckGitHub(ctx context.Context, api ReleaseLister, branch string) CheckResult {
	releases, err := api.ListReleases(ctx)
	if err != nil {
		return CheckResult{Name: "GitHub API", Message: err.Error()}
	}

	selection := release.SelectDraft(releases, release.Marker(branch))
	owned := len(selection.Extras)
	if selection.HasPrimary {
		owned++
	}
	msg := fmt.Sprintf("%d releases, %d draft(s) owned by %s", len(releases), owned, branch)
	if owned > 1 {
		msg += "; the next sync deletes the extras"
	}
	return CheckResult{Name: "GitHub API", Passed: true, Message: msg}
}

// FormatReport formats the health report for console output
func FormatReport(report *HealthReport) string {
	var sb strings.Builder
	for _, check := range report.Checks {
		symbol := "✓"
		switch {
		case !check.Passed && check.Advisory:
			symbol = "○"
		case !check.Passed:
			symbol = "✗"
		}
		fmt.Fprintf(&sb, "%s %s: %s\n", symbol, check.Name, check.Message)
	}
	return sb.String()
}
