// Package git provides local repository lookups for breezy: the repository
// root used for release config resolution, the checked-out branch used as a
// default target branch, and the owner/repo pair parsed from a remote URL.
// All operations go through go-git; the git CLI is never invoked.
package git

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
)

// DefaultRemote is the remote consulted by RemoteRepository when none is given.
const DefaultRemote = "origin"

// ErrNoRemote is returned when the requested remote is not configured.
var ErrNoRemote = errors.New("remote not configured")

// debugLogger is a function that logs debug messages when debug mode is enabled.
// By default, it's a no-op. Set it via SetDebugLogger to enable debug output.
var debugLogger func(format string, args ...any)

// SetDebugLogger configures the debug logger for git operations.
// Pass nil to disable debug logging. The logger function should format
// and output the message (similar to log.Printf signature).
func SetDebugLogger(logger func(format string, args ...any)) {
	debugLogger = logger
}

// logDebug logs a debug message if the debug logger is set.
func logDebug(format string, args ...any) {
	if debugLogger != nil {
		debugLogger(format, args...)
	}
}

// openRepo opens a git repository at the specified path or current working directory.
// DetectDotGit lets a subdirectory resolve to the enclosing repository.
func openRepo(path string) (*git.Repository, error) {
	if path == "" {
		var err error
		path, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting current directory: %w", err)
		}
	}

	logDebug("[git] opening repository at %s", path)

	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}
	return repo, nil
}

// IsRepository reports whether path is inside a git repository.
func IsRepository(path string) bool {
	_, err := openRepo(path)
	logDebug("[git] IsRepository(%s): %v", path, err == nil)
	return err == nil
}

// RepositoryRoot returns the worktree root of the repository containing path.
func RepositoryRoot(path string) (string, error) {
	repo, err := openRepo(path)
	if err != nil {
		return "", err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}

	root := worktree.Filesystem.Root()
	logDebug("[git] RepositoryRoot: %s", root)
	return root, nil
}

// RootOrDir returns the repository root containing dir, or dir itself when
// dir is not inside a repository.
func RootOrDir(dir string) string {
	root, err := RepositoryRoot(dir)
	if err != nil {
		logDebug("[git] no repository at %s, using directory as root", dir)
		return dir
	}
	return root
}

// CurrentBranch returns the checked-out branch name.
// Returns an empty string in detached HEAD state.
func CurrentBranch(path string) (string, error) {
	repo, err := openRepo(path)
	if err != nil {
		return "", err
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("getting HEAD reference: %w", err)
	}

	if !head.Name().IsBranch() {
		logDebug("[git] CurrentBranch: detached HEAD state")
		return "", nil
	}

	branch := head.Name().Short()
	logDebug("[git] CurrentBranch: %s", branch)
	return branch, nil
}

// RemoteRepository returns "owner/repo" for the first URL of the named remote.
// An empty remote means DefaultRemote.
func RemoteRepository(path, remote string) (string, error) {
	if remote == "" {
		remote = DefaultRemote
	}

	repo, err := openRepo(path)
	if err != nil {
		return "", err
	}

	r, err := repo.Remote(remote)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNoRemote, remote)
		}
		return "", fmt.Errorf("reading remote %s: %w", remote, err)
	}

	urls := r.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("%w: %s has no URL", ErrNoRemote, remote)
	}

	slug, err := ParseRemoteURL(urls[0])
	if err != nil {
		return "", err
	}
	logDebug("[git] RemoteRepository(%s): %s", remote, slug)
	return slug, nil
}

// ParseRemoteURL extracts "owner/repo" from an HTTPS, SSH or SCP-style remote URL.
//
//   - https://github.com/owner/repo.git
//   - ssh://git@github.com/owner/repo
//   - git@github.com:owner/repo.git
func ParseRemoteURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")

	var path string
	switch {
	case strings.Contains(s, "://"):
		_, rest, _ := strings.Cut(s, "://")
		_, p, ok := strings.Cut(rest, "/")
		if !ok {
			return "", fmt.Errorf("remote URL %q has no path", raw)
		}
		path = p
	case isSCPLike(s):
		_, p, _ := strings.Cut(s, ":")
		path = p
	default:
		return "", fmt.Errorf("unrecognised remote URL %q", raw)
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", fmt.Errorf("remote URL %q does not name owner/repo", raw)
	}
	return parts[len(parts)-2] + "/" + parts[len(parts)-1], nil
}

// isSCPLike matches "user@host:path" and "host:path" without a scheme.
func isSCPLike(s string) bool {
	colon := strings.Index(s, ":")
	if colon <= 0 {
		return false
	}
	slash := strings.Index(s, "/")
	return slash < 0 || colon < slash
}
