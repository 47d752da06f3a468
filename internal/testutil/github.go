package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/breezy-release/breezy/internal/github"
)

// FakeRelease is a release served by GitHubServer.
type FakeRelease struct {
	ID          int64
	Tag         string
	Draft       bool
	Body        string
	Target      string
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// FakePull is a closed pull request served by GitHubServer. A nil MergedAt
// means the pull request was closed without merging.
type FakePull struct {
	Number    int
	Title     string
	MergedAt  *time.Time
	UpdatedAt time.Time
	Labels    []string
}

// GitHubServer fakes the release and pull request endpoints of one repository.
// Everything fits on the first page; later pages are empty.
type GitHubServer struct {
	URL string

	owner string
	repo  string

	mu       sync.Mutex
	releases []FakeRelease
	pulls    []FakePull
	status   int
	nextID   int64
	calls    []string
	patched  map[int64]github.Draft
	created  []github.Draft
}

// NewGitHubServer starts a fake API for owner/repo that is closed when the
// test ends.
func NewGitHubServer(t *testing.T, owner, repo string) *GitHubServer {
	t.Helper()

	s := &GitHubServer{
		owner:   owner,
		repo:    repo,
		nextID:  1000,
		patched: map[int64]github.Draft{},
	}

	prefix := "/repos/" + owner + "/" + repo
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+prefix+"/releases", s.listReleases)
	mux.HandleFunc("POST "+prefix+"/releases", s.createRelease)
	mux.HandleFunc("PATCH "+prefix+"/releases/{id}", s.updateRelease)
	mux.HandleFunc("DELETE "+prefix+"/releases/{id}", s.deleteRelease)
	mux.HandleFunc("GET "+prefix+"/pulls", s.listPulls)

	srv := httptest.NewServer(s.recording(mux))
	t.Cleanup(srv.Close)
	s.URL = srv.URL
	return s
}

// SetReleases replaces the served releases.
func (s *GitHubServer) SetReleases(releases ...FakeRelease) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases = releases
}

// SetPulls replaces the served pull requests.
func (s *GitHubServer) SetPulls(pulls ...FakePull) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pulls = pulls
}

// FailWith makes every request answer with status and a GitHub-style message.
func (s *GitHubServer) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Writes returns "METHOD path" for every non-GET request, in arrival order.
func (s *GitHubServer) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		if !strings.HasPrefix(c, http.MethodGet+" ") {
			out = append(out, c)
		}
	}
	return out
}

// Updated returns the payload of the last PATCH for release id.
func (s *GitHubServer) Updated(id int64) (github.Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.patched[id]
	return d, ok
}

// Created returns the payloads of every POST.
func (s *GitHubServer) Created() []github.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]github.Draft(nil), s.created...)
}

func (s *GitHubServer) recording(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, r.Method+" "+r.URL.Path)
		status := s.status
		s.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *GitHubServer) listReleases(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []map[string]any{}
	if firstPage(r) {
		for _, rel := range s.releases {
			item := map[string]any{
				"id":               rel.ID,
				"tag_name":         rel.Tag,
				"name":             rel.Tag,
				"draft":            rel.Draft,
				"body":             rel.Body,
				"target_commitish": rel.Target,
				"created_at":       rel.CreatedAt,
				"published_at":     rel.PublishedAt,
			}
			out = append(out, item)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *GitHubServer) listPulls(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []map[string]any{}
	if firstPage(r) {
		for _, pr := range s.pulls {
			labels := []map[string]string{}
			for _, l := range pr.Labels {
				labels = append(labels, map[string]string{"name": l})
			}
			out = append(out, map[string]any{
				"number":     pr.Number,
				"title":      pr.Title,
				"merged_at":  pr.MergedAt,
				"updated_at": pr.UpdatedAt,
				"labels":     labels,
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *GitHubServer) createRelease(w http.ResponseWriter, r *http.Request) {
	var d github.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.created = append(s.created, d)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "tag_name": d.TagName, "draft": d.Draft})
}

func (s *GitHubServer) updateRelease(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	var d github.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	s.mu.Lock()
	s.patched[id] = d
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "tag_name": d.TagName, "draft": d.Draft})
}

func (s *GitHubServer) deleteRelease(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func firstPage(r *http.Request) bool {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	return err != nil || page <= 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
