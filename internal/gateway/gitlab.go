package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/naka-gawa/recent-activity/internal/domain"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLabOptions configures a GitLabGateway.
type GitLabOptions struct {
	Token string
	// APIURL selects a self-managed instance; empty means gitlab.com.
	APIURL string
	// Branch to read from and commit to; empty means the project's default branch.
	Branch string
}

// GitLabGateway is the GitLab implementation of ActivitySource and ContentStore.
// Contribution events are mapped onto the same event kinds the GitHub events API uses.
type GitLabGateway struct {
	client *gitlab.Client
	branch string
	logger *log.Logger
	now    func() time.Time

	// Per-run caches.
	projectPaths map[int64]string
	branches     map[string]string
}

// NewGitLabGateway is a constructor that creates a new instance of GitLabGateway.
func NewGitLabGateway(opts GitLabOptions, logger *log.Logger) (*GitLabGateway, error) {
	var clientOpts []gitlab.ClientOptionFunc
	if opts.APIURL != "" {
		clientOpts = append(clientOpts, gitlab.WithBaseURL(opts.APIURL))
	}
	client, err := gitlab.NewClient(opts.Token, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}
	return newGitLabGateway(client, opts.Branch, logger), nil
}

func newGitLabGateway(client *gitlab.Client, branch string, logger *log.Logger) *GitLabGateway {
	return &GitLabGateway{
		client:       client,
		branch:       branch,
		logger:       logger,
		now:          time.Now,
		projectPaths: make(map[int64]string),
		branches:     make(map[string]string),
	}
}

// ListRecentEvents returns the contribution events of account from the last recentWindowDays,
// newest first, reading at most maxEventPages pages.
func (g *GitLabGateway) ListRecentEvents(ctx context.Context, account string) ([]domain.RawEvent, error) {
	g.logger.Println("Fetching contribution events from GitLab...")
	after := gitlab.ISOTime(g.now().AddDate(0, 0, -recentWindowDays))
	opts := &gitlab.ListContributionEventsOptions{
		ListOptions: gitlab.ListOptions{
			Page:    1,
			PerPage: eventsPerPage,
		},
		After: &after,
	}
	var events []domain.RawEvent
	for pages := 1; ; pages++ {
		page, resp, err := g.client.Users.ListUserContributionEvents(account, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list gitlab contribution events: %w", err)
		}
		for _, e := range page {
			raw, err := g.toRawEvent(ctx, e)
			if err != nil {
				return nil, err
			}
			events = append(events, raw)
		}
		if resp.NextPage == 0 || pages >= maxEventPages {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Println("  Fetching next page of events...")
	}
	g.logger.Printf("Completed fetching %d events.", len(events))
	return events, nil
}

func (g *GitLabGateway) toRawEvent(ctx context.Context, e *gitlab.ContributionEvent) (domain.RawEvent, error) {
	repo, err := g.projectPath(ctx, int64(e.ProjectID))
	if err != nil {
		return domain.RawEvent{}, err
	}
	raw := domain.RawEvent{
		ID:         strconv.FormatInt(int64(e.ID), 10),
		Kind:       gitlabKind(e.ActionName, e.TargetType),
		Actor:      e.AuthorUsername,
		Repository: repo,
	}
	if e.CreatedAt != nil {
		raw.CreatedAt = *e.CreatedAt
	}
	if payload, err := json.Marshal(e); err == nil {
		raw.Payload = payload
	}
	return raw, nil
}

// projectPath resolves a project ID to its full path. Events without a project resolve to "".
func (g *GitLabGateway) projectPath(ctx context.Context, id int64) (string, error) {
	if id == 0 {
		return "", nil
	}
	if path, ok := g.projectPaths[id]; ok {
		return path, nil
	}
	project, resp, err := g.client.Projects.GetProject(id, nil, gitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			// Deleted or no longer visible; the event has no usable repository.
			g.projectPaths[id] = ""
			return "", nil
		}
		return "", fmt.Errorf("failed to get gitlab project %d: %w", id, err)
	}
	g.projectPaths[id] = project.PathWithNamespace
	return project.PathWithNamespace, nil
}

// gitlabKind maps a contribution event onto a platform event kind. Unmapped actions are returned
// as-is so that classification rejects them.
func gitlabKind(action, targetType string) string {
	switch {
	case strings.HasPrefix(action, "pushed"):
		return string(domain.PushEvent)
	case action == "approved":
		return string(domain.PullRequestReviewEvent)
	case targetType == "MergeRequest":
		return string(domain.PullRequestEvent)
	case targetType == "Issue":
		return string(domain.IssuesEvent)
	case targetType == "Note" || targetType == "DiffNote" || targetType == "DiscussionNote":
		return string(domain.IssueCommentEvent)
	case strings.HasPrefix(targetType, "WikiPage"):
		return string(domain.GollumEvent)
	case action == "created":
		return string(domain.CreateEvent)
	case action == "deleted":
		return string(domain.DeleteEvent)
	case action == "joined" || action == "left":
		return string(domain.MemberEvent)
	}
	return action
}

func (g *GitLabGateway) resolveBranch(ctx context.Context, repo string) (string, error) {
	if g.branch != "" {
		return g.branch, nil
	}
	if branch, ok := g.branches[repo]; ok {
		return branch, nil
	}
	project, resp, err := g.client.Projects.GetProject(repo, nil, gitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", errors.Mark(errors.Newf("project %s not found", repo), domain.ErrTargetFile)
		}
		return "", fmt.Errorf("failed to get gitlab project %s: %w", repo, err)
	}
	g.branches[repo] = project.DefaultBranch
	return project.DefaultBranch, nil
}

// Read returns the file at path; the version token is the last commit that touched it.
func (g *GitLabGateway) Read(ctx context.Context, repo, path string) (*domain.Content, error) {
	branch, err := g.resolveBranch(ctx, repo)
	if err != nil {
		return nil, err
	}
	g.logger.Printf("Reading %s:%s from %s...", branch, path, repo)

	file, resp, err := g.client.RepositoryFiles.GetFile(repo, path, &gitlab.GetFileOptions{Ref: gitlab.Ptr(branch)}, gitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, errors.Mark(errors.Newf("%s not found in %s at %s", path, repo, branch), domain.ErrTargetFile)
		}
		return nil, fmt.Errorf("failed to get gitlab file: %w", err)
	}

	body := file.Content
	if file.Encoding == "base64" {
		b, err := base64.StdEncoding.DecodeString(file.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		body = string(b)
	}
	return &domain.Content{Body: body, Version: file.LastCommitID}, nil
}

// Update commits the new body, conditioned on update.Version being the file's last commit.
func (g *GitLabGateway) Update(ctx context.Context, repo, path string, update domain.ContentUpdate) error {
	branch, err := g.resolveBranch(ctx, repo)
	if err != nil {
		return err
	}
	opts := &gitlab.UpdateFileOptions{
		Branch:        gitlab.Ptr(branch),
		Content:       gitlab.Ptr(update.Body),
		CommitMessage: gitlab.Ptr(update.Message),
		LastCommitID:  gitlab.Ptr(update.Version),
	}
	if update.Committer.Name != "" {
		opts.AuthorName = gitlab.Ptr(update.Committer.Name)
	}
	if update.Committer.Email != "" {
		opts.AuthorEmail = gitlab.Ptr(update.Committer.Email)
	}

	g.logger.Printf("Updating %s in %s...", path, repo)
	_, resp, err := g.client.RepositoryFiles.UpdateFile(repo, path, opts, gitlab.WithContext(ctx))
	if err != nil {
		if isGitLabConflict(resp, err) {
			return errors.Mark(errors.Wrapf(err, "%s in %s changed after %s", path, repo, update.Version), domain.ErrPublishConflict)
		}
		return fmt.Errorf("failed to update gitlab file: %w", err)
	}
	g.logger.Println("Completed updating file.")
	return nil
}

// isGitLabConflict recognises a stale last_commit_id. GitLab reports it as 400 rather than 409.
func isGitLabConflict(resp *gitlab.Response, err error) bool {
	if resp == nil {
		return false
	}
	switch resp.StatusCode {
	case http.StatusConflict:
		return true
	case http.StatusBadRequest:
		return strings.Contains(err.Error(), "has changed since")
	}
	return false
}
