package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, perPage int) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{
		Token:   "tok",
		Owner:   "octo",
		Repo:    "widgets",
		BaseURL: srv.URL + "/",
		PerPage: perPage,
	})
	require.NoError(t, err)
	return c
}

// nextLink points the client at page of the current request's endpoint.
func nextLink(w http.ResponseWriter, r *http.Request, page int) {
	u := *r.URL
	u.Scheme = "http"
	u.Host = r.Host
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, u.String()))
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		opts    Options
		wantErr bool
	}{
		"valid":         {opts: Options{Token: "t", Owner: "o", Repo: "r"}},
		"missing token": {opts: Options{Token: " ", Owner: "o", Repo: "r"}, wantErr: true},
		"missing owner": {opts: Options{Token: "t", Repo: "r"}, wantErr: true},
		"missing repo":  {opts: Options{Token: "t", Owner: "o"}, wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c, err := NewClient(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://api.github.com/", c.BaseURL())
			assert.Equal(t, DefaultPerPage, c.perPage)
		})
	}
}

func TestNewClient_BaseURL(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		baseURL string
		want    string
	}{
		"github.com":     {want: "https://api.github.com/"},
		"enterprise":     {baseURL: "https://ghe.example.com/api/v3", want: "https://ghe.example.com/api/v3/"},
		"trailing slash": {baseURL: "http://127.0.0.1:8080/", want: "http://127.0.0.1:8080/"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c, err := NewClient(Options{Token: "t", Owner: "o", Repo: "r", BaseURL: tt.baseURL})
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.BaseURL())
		})
	}
}

func TestListReleases_Paginates(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		pages []string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/widgets/releases", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "breezy", r.Header.Get("User-Agent"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))

		page := r.URL.Query().Get("page")
		mu.Lock()
		pages = append(pages, page)
		mu.Unlock()
		switch page {
		case "":
			nextLink(w, r, 2)
			writeJSON(t, w, http.StatusOK, []map[string]any{
				{"id": 1, "tag_name": "v1", "name": "v1 (main)", "draft": true, "body": "a",
					"created_at": "2024-01-01T00:00:00Z", "target_commitish": "main"},
				{"id": 2, "tag_name": "v0", "name": nil, "draft": false, "body": nil,
					"created_at": "2023-12-01T00:00:00Z", "published_at": "2023-12-02T00:00:00Z", "target_commitish": "main"},
			})
		default:
			writeJSON(t, w, http.StatusOK, []map[string]any{
				{"id": 3, "tag_name": "v2", "draft": true, "created_at": "2024-02-01T00:00:00Z", "target_commitish": "dev"},
			})
		}
	})

	c := newTestClient(t, handler, 2)
	got, err := c.ListReleases(context.Background())
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, []string{"", "2"}, pages)
	mu.Unlock()
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].ID)
	assert.True(t, got[0].Draft)
	assert.Equal(t, "a", got[0].Body)
	assert.Equal(t, "main", got[0].TargetBranch)
	assert.Empty(t, got[1].Name)
	assert.Empty(t, got[1].Body)
	require.NotNil(t, got[1].PublishedAt)
	assert.Equal(t, time.Date(2023, 12, 2, 0, 0, 0, 0, time.UTC), *got[1].PublishedAt)
	assert.Equal(t, "dev", got[2].TargetBranch)
}

func TestCreateUpdateDeleteRelease(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls []string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch r.Method {
		case http.MethodPost:
			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			var d Draft
			assert.NoError(t, json.Unmarshal(body, &d))
			assert.Equal(t, Draft{TagName: "v1.0.0", Name: "v1.0.0 (main)", Body: "b", Target: "main", Draft: true}, d)
			writeJSON(t, w, http.StatusCreated, map[string]any{"id": 42})
		case http.MethodPatch:
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			writeJSON(t, w, http.StatusOK, map[string]any{"id": 42})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})

	c := newTestClient(t, handler, 0)
	ctx := context.Background()
	d := Draft{TagName: "v1.0.0", Name: "v1.0.0 (main)", Body: "b", Target: "main", Draft: true}

	id, err := c.CreateRelease(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	require.NoError(t, c.UpdateRelease(ctx, 42, d))
	require.NoError(t, c.DeleteRelease(ctx, 7))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"POST /repos/octo/widgets/releases",
		"PATCH /repos/octo/widgets/releases/42",
		"DELETE /repos/octo/widgets/releases/7",
	}, calls)
}

func TestAPIError(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		status      int
		body        string
		wantMessage string
	}{
		"github message": {status: http.StatusNotFound, body: `{"message":"Not Found"}`, wantMessage: "Not Found"},
		"plain body":     {status: http.StatusBadGateway, body: "upstream down\n"},
		"empty body":     {status: http.StatusUnauthorized},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			c := newTestClient(t, handler, 0)

			err := c.DeleteRelease(context.Background(), 1)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, http.MethodDelete, apiErr.Method)
			assert.Equal(t, "/repos/octo/widgets/releases/1", apiErr.Path)
			assert.Contains(t, err.Error(), strconv.Itoa(tt.status))
		})
	}
}

func TestListMergedPullRequests(t *testing.T) {
	t.Parallel()

	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ts := func(day int) string {
		return time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	}
	before := "2024-02-01T00:00:00Z"

	var (
		mu        sync.Mutex
		requested []string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/repos/octo/widgets/pulls", r.URL.Path)
		assert.Equal(t, "closed", q.Get("state"))
		assert.Equal(t, "main", q.Get("base"))
		assert.Equal(t, "updated", q.Get("sort"))
		assert.Equal(t, "desc", q.Get("direction"))
		mu.Lock()
		requested = append(requested, q.Get("page"))
		mu.Unlock()

		switch q.Get("page") {
		case "":
			nextLink(w, r, 2)
			writeJSON(t, w, http.StatusOK, []map[string]any{
				{"number": 5, "title": "Add widget", "merged_at": ts(10), "updated_at": ts(11),
					"labels": []map[string]any{{"name": "feature"}}},
				{"number": 6, "title": "Closed unmerged", "merged_at": nil, "updated_at": ts(9)},
			})
		case "2":
			nextLink(w, r, 3)
			writeJSON(t, w, http.StatusOK, []map[string]any{
				{"number": 4, "title": "Fix widget", "merged_at": ts(2), "updated_at": ts(3)},
				{"number": 1, "title": "Old", "merged_at": before, "updated_at": before},
			})
		default:
			t.Errorf("unexpected page %s", q.Get("page"))
			writeJSON(t, w, http.StatusOK, []map[string]any{})
		}
	})

	c := newTestClient(t, handler, 2)
	got, err := c.ListMergedPullRequests(context.Background(), "main", &since)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", "2"}, requested, "paging stops once entries predate since")
	require.Len(t, got, 2)
	assert.Equal(t, 5, got[0].Number)
	assert.Equal(t, []string{"feature"}, got[0].Labels)
	assert.Equal(t, 4, got[1].Number)
	assert.Empty(t, got[1].Labels)
}

func TestListMergedPullRequests_NoBaseline(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, []map[string]any{
			{"number": 1, "title": "First", "merged_at": "2020-01-01T00:00:00Z", "updated_at": "2020-01-01T00:00:00Z"},
			{"number": 2, "title": "Never merged", "updated_at": "2020-01-02T00:00:00Z"},
		})
	})

	c := newTestClient(t, handler, 0)
	got, err := c.ListMergedPullRequests(context.Background(), "main", nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "First", got[0].Title)
}

func TestSetDebugLogger(t *testing.T) {
	var (
		mu    sync.Mutex
		lines []string
	)
	SetDebugLogger(func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, fmt.Sprintf(format, args...))
	})
	defer SetDebugLogger(nil)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, []map[string]any{})
	})
	c := newTestClient(t, handler, 0)
	_, err := c.ListReleases(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "GET")
}
