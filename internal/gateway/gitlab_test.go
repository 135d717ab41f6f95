package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/naka-gawa/recent-activity/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// setupTestGitLab creates a GitLabGateway that communicates with a mock HTTP server.
func setupTestGitLab(t *testing.T, handler http.Handler, branch string) (*GitLabGateway, *httptest.Server) {
	server := httptest.NewServer(handler)
	client, err := gitlab.NewClient("test-token", gitlab.WithBaseURL(server.URL), gitlab.WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return newGitLabGateway(client, branch, log.New(io.Discard, "", 0)), server
}

func TestGitLabGateway_ListRecentEvents(t *testing.T) {
	projectLookups := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/users/octo/events", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id": 3, "project_id": 42, "action_name": "pushed to", "author_username": "octo", "created_at": "2026-10-03T00:00:00Z"},
			{"id": 2, "project_id": 42, "action_name": "opened", "target_type": "MergeRequest", "author_username": "octo"},
			{"id": 1, "project_id": 0, "action_name": "joined", "author_username": "octo"},
			{"id": 0, "project_id": 7, "action_name": "starred", "author_username": "octo"}
		]`)
	})
	mux.HandleFunc("/api/v4/projects/42", func(w http.ResponseWriter, r *http.Request) {
		projectLookups++
		fmt.Fprint(w, `{"id": 42, "path_with_namespace": "grp/alpha", "default_branch": "main"}`)
	})
	mux.HandleFunc("/api/v4/projects/7", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "404 Project Not Found"}`)
	})
	gateway, server := setupTestGitLab(t, mux, "")
	defer server.Close()

	events, err := gateway.ListRecentEvents(context.Background(), "octo")

	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "PushEvent", events[0].Kind)
	assert.Equal(t, "grp/alpha", events[0].Repository)
	assert.Equal(t, "octo", events[0].Actor)
	assert.False(t, events[0].CreatedAt.IsZero())
	assert.Equal(t, "PullRequestEvent", events[1].Kind)
	assert.Equal(t, "grp/alpha", events[1].Repository)
	assert.Equal(t, "MemberEvent", events[2].Kind)
	assert.Equal(t, "", events[2].Repository)
	assert.Equal(t, "starred", events[3].Kind)
	assert.Equal(t, "", events[3].Repository)
	assert.Equal(t, 1, projectLookups, "project paths are cached")

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, "pushed to", payload["action_name"])
}

func TestGitLabGateway_ListRecentEventsStaysInRecentWindow(t *testing.T) {
	requests := 0
	gateway, server := setupTestGitLab(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/api/v4/users/octo/events", r.URL.Path)
		assert.Equal(t, "2026-07-17", r.URL.Query().Get("after"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		// Every page claims a successor.
		w.Header().Set("X-Next-Page", strconv.Itoa(requests+1))
		fmt.Fprintf(w, `[{"id": %d, "project_id": 0, "action_name": "pushed to"}]`, requests)
	}), "")
	defer server.Close()
	gateway.now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }

	events, err := gateway.ListRecentEvents(context.Background(), "octo")

	require.NoError(t, err)
	assert.Equal(t, maxEventPages, requests)
	assert.Len(t, events, maxEventPages)
}

func TestGitLabGateway_ListRecentEventsError(t *testing.T) {
	gateway, server := setupTestGitLab(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "403 Forbidden"}`)
	}), "")
	defer server.Close()

	_, err := gateway.ListRecentEvents(context.Background(), "octo")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list gitlab contribution events")
}

func TestGitLabKind(t *testing.T) {
	testCases := []struct {
		action, targetType, expected string
	}{
		{"pushed to", "", "PushEvent"},
		{"pushed new", "", "PushEvent"},
		{"opened", "MergeRequest", "PullRequestEvent"},
		{"accepted", "MergeRequest", "PullRequestEvent"},
		{"approved", "MergeRequest", "PullRequestReviewEvent"},
		{"closed", "Issue", "IssuesEvent"},
		{"commented on", "DiffNote", "IssueCommentEvent"},
		{"updated", "WikiPage::Meta", "GollumEvent"},
		{"created", "", "CreateEvent"},
		{"deleted", "", "DeleteEvent"},
		{"left", "", "MemberEvent"},
		{"starred", "", "starred"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, gitlabKind(tc.action, tc.targetType), "%s/%s", tc.action, tc.targetType)
	}
}

func TestGitLabGateway_ReadUpdate(t *testing.T) {
	var updated map[string]string
	updateStatus := http.StatusOK
	updateBody := `{"file_path": "README.md", "branch": "main"}`

	// Project paths are escaped into a single segment, so route on the decoded path.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v4/projects/grp/profile":
			fmt.Fprint(w, `{"id": 5, "path_with_namespace": "grp/profile", "default_branch": "main"}`)
		case "/api/v4/projects/grp/profile/repository/files/README.md":
			if r.Method == http.MethodGet {
				assert.Equal(t, "main", r.URL.Query().Get("ref"))
				fmt.Fprint(w, `{"file_path": "README.md", "encoding": "base64", "content": "aGVsbG8K", "last_commit_id": "c0ffee"}`)
				return
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&updated))
			w.WriteHeader(updateStatus)
			fmt.Fprint(w, updateBody)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	gateway, server := setupTestGitLab(t, handler, "")
	defer server.Close()
	ctx := context.Background()

	content, err := gateway.Read(ctx, "grp/profile", "README.md")
	require.NoError(t, err)
	assert.Equal(t, &domain.Content{Body: "hello\n", Version: "c0ffee"}, content)

	update := domain.ContentUpdate{
		Body:      "bye\n",
		Version:   "c0ffee",
		Committer: domain.Committer{Name: "bot", Email: "bot@example.com"},
		Message:   "chore: update README with recent activity",
	}
	require.NoError(t, gateway.Update(ctx, "grp/profile", "README.md", update))
	assert.Equal(t, "main", updated["branch"])
	assert.Equal(t, "bye\n", updated["content"])
	assert.Equal(t, "c0ffee", updated["last_commit_id"])
	assert.Equal(t, "bot", updated["author_name"])
	assert.Equal(t, "bot@example.com", updated["author_email"])
	assert.Equal(t, "chore: update README with recent activity", updated["commit_message"])

	updateStatus = http.StatusBadRequest
	updateBody = `{"message": "You are attempting to update a file that has changed since you started editing it."}`
	err = gateway.Update(ctx, "grp/profile", "README.md", update)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPublishConflict))

	updateBody = `{"message": "branch is protected"}`
	err = gateway.Update(ctx, "grp/profile", "README.md", update)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrPublishConflict))
}

func TestGitLabGateway_ReadMissing(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/projects/grp/profile/repository/files/README.md", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "404 File Not Found"}`)
	})
	gateway, server := setupTestGitLab(t, handler, "main")
	defer server.Close()

	_, err := gateway.Read(context.Background(), "grp/profile", "README.md")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTargetFile))
}
