// Package cli tests the sync, preview and config commands end to end against
// a fake GitHub API.
// Related: internal/cli/run.go, internal/cli/preview.go, internal/cli/config.go
// Tags: cli, sync, preview, config, integration

package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breezy-release/breezy/internal/changelog"
	"github.com/breezy-release/breezy/internal/config"
	clierrors "github.com/breezy-release/breezy/internal/errors"
	"github.com/breezy-release/breezy/internal/github"
	"github.com/breezy-release/breezy/internal/release"
	"github.com/breezy-release/breezy/internal/testutil"
)

const testMarker = "<!-- breezy:branch=main -->"

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func dayPtr(d int) *time.Time {
	t := day(d)
	return &t
}

func newFakeGitHub(t *testing.T) *testutil.GitHubServer {
	t.Helper()
	return testutil.NewGitHubServer(t, "octo", "widgets")
}

func updated(t *testing.T, f *testutil.GitHubServer, id int64) github.Draft {
	t.Helper()
	d, ok := f.Updated(id)
	require.True(t, ok, "release %d was not updated", id)
	return d
}

// setupWorkspace points every settings source at srv and a temp workspace
// holding VERSION and, when given, .github/breezy.yml.
func setupWorkspace(t *testing.T, srv *testutil.GitHubServer, releaseConfig string) string {
	t.Helper()

	for _, key := range []string{
		"GITHUB_EVENT_PATH", "INPUT_TAG-PREFIX", "INPUT_TAG_PREFIX", "INPUT_CONFIG",
		"INPUT_DRY-RUN", "INPUT_DRY_RUN", "INPUT_GITHUB-TOKEN", "INPUT_GITHUB_TOKEN",
		"BREEZY_BRANCH", "BREEZY_TOKEN", "BREEZY_REPOSITORY", "BREEZY_LANGUAGE",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "VERSION"), []byte("1.2.3\n"), 0o644))
	if releaseConfig != "" {
		require.NoError(t, os.MkdirAll(filepath.Join(workspace, ".github"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(workspace, ".github", "breezy.yml"), []byte(releaseConfig), 0o644))
	}

	t.Setenv("HOME", t.TempDir())
	t.Setenv("GITHUB_WORKSPACE", workspace)
	t.Setenv("GITHUB_API_URL", srv.URL)
	t.Setenv("GITHUB_TOKEN", "test-token")
	t.Setenv("GITHUB_REPOSITORY", "octo/widgets")
	t.Setenv("INPUT_BRANCH", "main")
	t.Setenv("INPUT_LANGUAGE", "generic")
	return workspace
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	if args == nil {
		// cobra falls back to os.Args when no args are set
		args = []string{}
	}
	cmd := newRootCmd()
	cmd.SetArgs(args)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// standardFixture serves two marked drafts, a published release on main at
// day 3 and three closed pull requests, one of them unmerged.
func standardFixture(f *testutil.GitHubServer) {
	f.SetReleases(
		testutil.FakeRelease{ID: 1, Tag: "v1.2.2", Draft: true, Body: testMarker, CreatedAt: day(1)},
		testutil.FakeRelease{ID: 2, Tag: "v1.2.3", Draft: true, Body: testMarker + "\n\nold", CreatedAt: day(5)},
		testutil.FakeRelease{ID: 9, Tag: "v1.2.1", Target: "main", CreatedAt: day(2), PublishedAt: dayPtr(3)},
	)
	f.SetPulls(
		testutil.FakePull{Number: 11, Title: "Fix crash", MergedAt: dayPtr(6), UpdatedAt: day(6), Labels: []string{"bug"}},
		testutil.FakePull{Number: 10, Title: "Add export", MergedAt: dayPtr(4), UpdatedAt: day(4), Labels: []string{"Feature"}},
		testutil.FakePull{Number: 12, Title: "Closed unmerged", UpdatedAt: day(7)},
	)
}

func TestSync_UpdatesDraftAndDeletesExtras(t *testing.T) {
	f := newFakeGitHub(t)
	standardFixture(f)
	setupWorkspace(t, f, "")

	out, err := execute(t, "sync")
	require.NoError(t, err)

	assert.Equal(t, "Deleted extra draft release 1 for main\n"+
		"Updated draft release 2 for main\n", out)
	assert.Equal(t, []string{
		"DELETE /repos/octo/widgets/releases/1",
		"PATCH /repos/octo/widgets/releases/2",
	}, f.Writes())
	assert.Equal(t, github.Draft{
		TagName: "v1.2.3",
		Name:    "v1.2.3 (main)",
		Body:    testMarker + "\n\nAdd export\nFix crash",
		Target:  "main",
		Draft:   true,
	}, updated(t, f, 2))
}

func TestSync_RootCommandRunsSync(t *testing.T) {
	f := newFakeGitHub(t)
	setupWorkspace(t, f, "")

	out, err := execute(t)
	require.NoError(t, err)

	assert.Equal(t, "Created draft release for main\n", out)
	created := f.Created()
	require.Len(t, created, 1)
	assert.Equal(t, testMarker, created[0].Body)
	assert.Equal(t, "v1.2.3", created[0].TagName)
}

func TestSync_EmptyTagPrefix(t *testing.T) {
	tests := map[string]struct {
		env  map[string]string
		args []string
	}{
		"empty action input": {
			env:  map[string]string{"INPUT_TAG-PREFIX": ""},
			args: []string{"sync"},
		},
		"empty flag": {
			env:  map[string]string{"INPUT_TAG-PREFIX": "release-"},
			args: []string{"sync", "--tag-prefix", ""},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFakeGitHub(t)
			setupWorkspace(t, f, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := execute(t, tt.args...)
			require.NoError(t, err)

			created := f.Created()
			require.Len(t, created, 1)
			assert.Equal(t, "1.2.3", created[0].TagName)
			assert.Equal(t, "1.2.3 (main)", created[0].Name)
		})
	}
}

func TestSync_CategorizedConfig(t *testing.T) {
	f := newFakeGitHub(t)
	standardFixture(f)
	workspace := setupWorkspace(t, f, `
change-template: "- $TITLE (#$NUMBER)"
categories:
  - title: Features
    label: feature
  - title: Fixes
    labels: [bug]
`)

	out, err := execute(t, "sync", "--tag-prefix", "release-")
	require.NoError(t, err)

	assert.Equal(t, "Using release config "+filepath.Join(workspace, ".github", "breezy.yml")+"\n"+
		"Deleted extra draft release 1 for main\n"+
		"Updated draft release 2 for main\n", out)
	draft := updated(t, f, 2)
	assert.Equal(t, "release-1.2.3", draft.TagName)
	assert.Equal(t, testMarker+"\n\n"+
		"## Features\n- Add export (#10)\n\n"+
		"## Fixes\n- Fix crash (#11)", draft.Body)
}

func TestSync_DryRunWritesNothing(t *testing.T) {
	f := newFakeGitHub(t)
	standardFixture(f)
	setupWorkspace(t, f, "")

	out, err := execute(t, "sync", "--dry-run")
	require.NoError(t, err)

	assert.Empty(t, f.Writes())
	assert.Contains(t, out, "Would delete extra draft release 1 for main\n")
	assert.Contains(t, out, "Would update draft release 2 for main\n")
	assert.Contains(t, out, "Tag:   v1.2.3\n")
	assert.Contains(t, out, "Title: v1.2.3 (main)\n")
	assert.Contains(t, out, testMarker+"\n\nAdd export\nFix crash\n")
}

func TestSync_Errors(t *testing.T) {
	tests := map[string]struct {
		setup    func(t *testing.T, f *testutil.GitHubServer)
		args     []string
		wantCode int
		wantMsg  string
	}{
		"missing token": {
			setup:    func(t *testing.T, f *testutil.GitHubServer) { t.Setenv("GITHUB_TOKEN", "") },
			wantCode: ExitConfigError,
			wantMsg:  "token",
		},
		"unknown language": {
			setup:    func(t *testing.T, f *testutil.GitHubServer) { t.Setenv("INPUT_LANGUAGE", "cobol") },
			wantCode: ExitConfigError,
			wantMsg:  "cobol",
		},
		"missing version manifest": {
			setup:    func(t *testing.T, f *testutil.GitHubServer) { t.Setenv("INPUT_LANGUAGE", "rust") },
			wantCode: ExitConfigError,
		},
		"explicit config missing": {
			args:     []string{"--config", "nope.yml"},
			wantCode: ExitConfigError,
			wantMsg:  "nope.yml",
		},
		"bad credentials": {
			setup:    func(t *testing.T, f *testutil.GitHubServer) { f.FailWith(http.StatusUnauthorized) },
			wantCode: ExitRuntimeFailure,
			wantMsg:  "401",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFakeGitHub(t)
			setupWorkspace(t, f, "")
			if tt.setup != nil {
				tt.setup(t, f)
			}

			_, err := execute(t, append([]string{"sync"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, ExitCode(err))
			if tt.wantMsg != "" {
				assert.Contains(t, clierrors.FormatErrorPlain(clierrors.AsCLIError(err)), tt.wantMsg)
			}
			assert.Empty(t, f.Writes())
		})
	}
}

func TestPreview_Markdown(t *testing.T) {
	f := newFakeGitHub(t)
	standardFixture(f)
	setupWorkspace(t, f, "")

	out, err := execute(t, "preview", "--markdown")
	require.NoError(t, err)

	assert.Equal(t, testMarker+"\n\nAdd export\nFix crash\n", out)
	assert.Empty(t, f.Writes())
}

func TestPreview_Plain(t *testing.T) {
	f := newFakeGitHub(t)
	standardFixture(f)
	setupWorkspace(t, f, "")

	out, err := execute(t, "preview", "--plain")
	require.NoError(t, err)

	assert.Contains(t, out, "Tag:      v1.2.3\n")
	assert.Contains(t, out, "Title:    v1.2.3 (main)\n")
	assert.Contains(t, out, "Action:   update draft 2\n")
	assert.Contains(t, out, "Since:    v1.2.1 at 2024-01-03T00:00:00Z\n")
	assert.Contains(t, out, "Add export")
	assert.Contains(t, out, "Fix crash")
	assert.Empty(t, f.Writes())
}

func TestConfigCheck(t *testing.T) {
	// Not parallel: every command run installs the package debug loggers
	dir := t.TempDir()
	path := filepath.Join(dir, "breezy.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
language: rust
exclude-labels: [skip-changelog]
categories:
  - title: Features
    labels: [feature, enhancement]
  - title: Misc
`), 0o644))

	out, err := execute(t, "config", "check", "--plain", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Config:          "+path+" (explicit)\n")
	assert.Contains(t, out, "Language:        rust\n")
	assert.Contains(t, out, "  ## Features  <- feature, enhancement\n")
	assert.Contains(t, out, "  ## Misc  <- (no labels)\n")
	assert.Contains(t, out, "Excluded labels: skip-changelog\n")
	assert.Contains(t, out, "✓ config is valid\n")
}

func TestConfigCheck_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "breezy.yml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - title: \"  \"\n"), 0o644))

	_, err := execute(t, "config", "check", path)
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, ExitCode(err))
}

func settingsErrorFor(t *testing.T, field, message string) error {
	t.Helper()
	return fmt.Errorf("loading settings: %w", &config.ValidationError{
		FilePath: "settings",
		Field:    field,
		Message:  message,
	})
}

func TestSettingsError(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err      error
		wantCode int
	}{
		"required branch": {
			err:      settingsErrorFor(t, "branch", "is required"),
			wantCode: ExitInvalidArguments,
		},
		"required token": {
			err:      settingsErrorFor(t, "token", "is required"),
			wantCode: ExitConfigError,
		},
		"invalid url": {
			err:      settingsErrorFor(t, "api_url", "must be a valid URL"),
			wantCode: ExitInvalidArguments,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantCode, ExitCode(settingsError(tt.err)))
		})
	}
}

func TestRunError(t *testing.T) {
	t.Parallel()

	apiErr := &github.APIError{Method: "GET", Path: "/x", StatusCode: 404, Message: "Not Found"}
	mapped := runError(apiErr)
	require.True(t, clierrors.IsCLIError(mapped))
	assert.Equal(t, ExitRuntimeFailure, ExitCode(mapped))

	assert.Nil(t, runError(nil))
	assert.Contains(t, runError(context.Canceled).Error(), "interrupted")

	cliErr := clierrors.NoLanguages()
	assert.Same(t, cliErr, runError(cliErr))
}

type countingAPI struct {
	releaseCalls int
	pullCalls    int
}

func (c *countingAPI) ListReleases(context.Context) ([]release.ReleaseInfo, error) {
	c.releaseCalls++
	return []release.ReleaseInfo{{ID: 1}}, nil
}

func (c *countingAPI) ListMergedPullRequests(context.Context, string, *time.Time) ([]changelog.PullRequest, error) {
	c.pullCalls++
	return []changelog.PullRequest{{Number: 1}}, nil
}

func (c *countingAPI) CreateRelease(context.Context, github.Draft) (int64, error) { return 1, nil }
func (c *countingAPI) UpdateRelease(context.Context, int64, github.Draft) error     { return nil }
func (c *countingAPI) DeleteRelease(context.Context, int64) error                   { return nil }

func TestCachingAPI(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner := &countingAPI{}
	api := newCachingAPI(inner)

	for range 3 {
		_, err := api.ListReleases(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, inner.releaseCalls)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, _ = api.ListMergedPullRequests(ctx, "main", nil)
	_, _ = api.ListMergedPullRequests(ctx, "main", nil)
	_, _ = api.ListMergedPullRequests(ctx, "main", &since)
	_, _ = api.ListMergedPullRequests(ctx, "dev", &since)
	assert.Equal(t, 3, inner.pullCalls)

	_, err := api.CreateRelease(ctx, github.Draft{})
	assert.ErrorIs(t, err, errReadOnly)
	assert.ErrorIs(t, api.UpdateRelease(ctx, 1, github.Draft{}), errReadOnly)
	assert.ErrorIs(t, api.DeleteRelease(ctx, 1), errReadOnly)
}

func TestDoctor_AllChecksPass(t *testing.T) {
	f := newFakeGitHub(t)
	standardFixture(f)
	setupWorkspace(t, f, "categories:\n  - title: Features\n    label: feature\n")

	out, err := execute(t, "doctor")
	require.NoError(t, err)

	assert.Contains(t, out, "○ Git clone:")
	assert.Contains(t, out, "✓ Branch: main\n")
	assert.Contains(t, out, "✓ Repository: octo/widgets\n")
	assert.Contains(t, out, "✓ GitHub token: present\n")
	assert.Contains(t, out, "(repository, 1 categories)\n")
	assert.Contains(t, out, "✓ Version: 1.2.3 from VERSION (generic)\n")
	assert.Contains(t, out, "✓ GitHub API: 3 releases, 2 draft(s) owned by main; the next sync deletes the extras\n")
	assert.NotContains(t, out, "test-token")
	assert.Empty(t, f.Writes())
}

func TestDoctor_ReportsEveryFailure(t *testing.T) {
	f := newFakeGitHub(t)
	setupWorkspace(t, f, "")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("INPUT_LANGUAGE", "cobol")

	out, err := execute(t, "doctor")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, ExitCode(err))

	assert.Contains(t, out, "✗ GitHub token:")
	assert.Contains(t, out, `✗ Version: unsupported language "cobol"`)
	assert.NotContains(t, out, "GitHub API", "API is not queried without a token")
}
