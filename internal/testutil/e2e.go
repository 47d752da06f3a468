// Package testutil provides test utilities and helpers for breezy tests:
// a fake GitHub API and an isolated environment for running the built binary.
package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var (
	// breezyBinaryPath caches the built breezy binary path.
	breezyBinaryPath string
	breezyBuildOnce  sync.Once
	breezyBuildErr   error
)

// E2EEnv provides an isolated environment for E2E testing.
// The binary runs with a private HOME and workspace and sees none of the
// caller's GITHUB_*, INPUT_* or BREEZY_* variables unless a test sets them.
type E2EEnv struct {
	t         *testing.T
	tempDir   string
	workspace string
	vars      map[string]string
}

// CommandResult captures the result of running a breezy command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// NewE2EEnv builds breezy (once per test binary) and creates a fresh
// workspace for it.
func NewE2EEnv(t *testing.T) *E2EEnv {
	t.Helper()

	breezyBuildOnce.Do(func() {
		breezyBinaryPath, breezyBuildErr = buildBreezy()
	})
	if breezyBuildErr != nil {
		t.Fatalf("building breezy: %v", breezyBuildErr)
	}

	tempDir := t.TempDir()
	env := &E2EEnv{
		t:         t,
		tempDir:   tempDir,
		workspace: filepath.Join(tempDir, "workspace"),
		vars:      map[string]string{},
	}
	if err := os.MkdirAll(env.workspace, 0o755); err != nil {
		t.Fatalf("creating workspace: %v", err)
	}
	return env
}

func buildBreezy() (string, error) {
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("determining current file location")
	}
	repoRoot := filepath.Join(filepath.Dir(currentFile), "..", "..")

	tmpDir, err := os.MkdirTemp("", "breezy-build-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir for build: %w", err)
	}

	binaryPath := filepath.Join(tmpDir, "breezy")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/breezy")
	cmd.Dir = repoRoot
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("go build: %w\nOutput: %s", err, output)
	}
	return binaryPath, nil
}

// Workspace returns the directory breezy runs in.
func (e *E2EEnv) Workspace() string {
	return e.workspace
}

// Setenv sets a variable for every later Run.
func (e *E2EEnv) Setenv(key, value string) {
	e.vars[key] = value
}

// UseGitHub points the binary at a fake API for owner/repo with a dummy token.
func (e *E2EEnv) UseGitHub(server *GitHubServer, repository string) {
	e.Setenv("GITHUB_API_URL", server.URL)
	e.Setenv("GITHUB_TOKEN", "e2e-token")
	if repository != "" {
		e.Setenv("GITHUB_REPOSITORY", repository)
	}
}

// WriteFile writes a workspace-relative file, creating parent directories.
func (e *E2EEnv) WriteFile(rel, content string) string {
	e.t.Helper()

	path := filepath.Join(e.workspace, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		e.t.Fatalf("creating %s: %v", filepath.Dir(rel), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		e.t.Fatalf("writing %s: %v", rel, err)
	}
	return path
}

// InitGitRepo turns the workspace into a clone on branch with an origin
// remote, so breezy can detect both from git.
func (e *E2EEnv) InitGitRepo(branch, originURL string) {
	e.t.Helper()

	repo, err := gogit.PlainInit(e.workspace, false)
	if err != nil {
		e.t.Fatalf("git init: %v", err)
	}
	e.WriteFile("README.md", "# e2e\n")

	wt, err := repo.Worktree()
	if err != nil {
		e.t.Fatalf("worktree: %v", err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		e.t.Fatalf("git add: %v", err)
	}
	sig := &object.Signature{Name: "Test", Email: "test@test.com", When: time.Now()}
	if _, err := wt.Commit("Initial commit", &gogit.CommitOptions{Author: sig}); err != nil {
		e.t.Fatalf("git commit: %v", err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: true,
		Keep:   true,
	}); err != nil {
		e.t.Fatalf("git checkout -b %s: %v", branch, err)
	}
	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{originURL}}); err != nil {
		e.t.Fatalf("git remote add origin: %v", err)
	}
}

// Run executes breezy in the workspace.
func (e *E2EEnv) Run(args ...string) CommandResult {
	e.t.Helper()

	start := time.Now()
	cmd := exec.Command(breezyBinaryPath, args...)
	cmd.Dir = e.workspace
	cmd.Env = e.buildIsolatedEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = 1
		}
	}
	return result
}

func (e *E2EEnv) buildIsolatedEnv() []string {
	env := []string{
		"HOME=" + e.tempDir,
		"NO_COLOR=1",
	}

	safeVars := []string{"PATH", "LANG", "LC_ALL", "TMPDIR", "TMP", "TEMP"}
	for _, key := range safeVars {
		if val, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+val)
		}
	}

	for key, val := range e.vars {
		env = append(env, key+"="+val)
	}
	return env
}
