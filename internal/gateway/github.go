package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/go-github/v84/github"
	"github.com/naka-gawa/recent-activity/internal/domain"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
)

// GitHubOptions configures a GitHubGateway.
type GitHubOptions struct {
	// Token is optional for reading public events and required for updates.
	Token string
	// APIURL selects a GitHub Enterprise Server REST endpoint; empty means github.com.
	APIURL string
	// Branch to read from and commit to; empty means the repository's default branch.
	Branch string
}

// GitHubGateway is the GitHub implementation of ActivitySource and ContentStore.
// Events and updates go through the REST API; file reads use GraphQL, which returns the text
// and the blob SHA used as version token in one round trip.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	branch        string
	logger        *log.Logger
}

// blobQuery fetches a file's text and blob SHA at a ref.
type blobQuery struct {
	Repository struct {
		Object struct {
			Blob struct {
				Text        githubv4.String
				Oid         githubv4.GitObjectID
				IsTruncated githubv4.Boolean
			} `graphql:"... on Blob"`
		} `graphql:"object(expression: $expression)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(opts GitHubOptions, logger *log.Logger) (*GitHubGateway, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	var transport http.RoundTripper = rateLimitWaiter
	if opts.Token != "" {
		transport = &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
		}
	}
	httpClient := &http.Client{Transport: transport}

	restClient := github.NewClient(httpClient)
	graphqlClient := githubv4.NewClient(httpClient)
	if opts.APIURL != "" {
		restClient, err = restClient.WithEnterpriseURLs(opts.APIURL, opts.APIURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", opts.APIURL, err)
		}
		graphqlClient = githubv4.NewEnterpriseClient(graphqlURL(opts.APIURL), httpClient)
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		branch:        opts.Branch,
		logger:        logger,
	}, nil
}

// graphqlURL derives the GraphQL endpoint from a REST endpoint:
// https://ghe.example.com/api/v3 -> https://ghe.example.com/api/graphql,
// https://api.github.com -> https://api.github.com/graphql.
func graphqlURL(apiURL string) string {
	base := strings.TrimSuffix(apiURL, "/")
	if strings.HasSuffix(base, "/api/v3") {
		return strings.TrimSuffix(base, "/v3") + "/graphql"
	}
	return base + "/graphql"
}

// ListRecentEvents returns the public events performed by account, newest first.
// It follows the API's pagination for at most maxEventPages pages.
func (g *GitHubGateway) ListRecentEvents(ctx context.Context, account string) ([]domain.RawEvent, error) {
	g.logger.Println("Fetching public events using REST API...")
	opts := &github.ListOptions{PerPage: eventsPerPage}
	var events []domain.RawEvent
	for pages := 1; ; pages++ {
		page, resp, err := g.restClient.Activity.ListEventsPerformedByUser(ctx, account, true, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list events with REST API: %w", err)
		}
		for _, e := range page {
			events = append(events, toRawEvent(e))
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

func toRawEvent(e *github.Event) domain.RawEvent {
	raw := domain.RawEvent{
		ID:         e.GetID(),
		Kind:       e.GetType(),
		Actor:      e.GetActor().GetLogin(),
		Repository: e.GetRepo().GetName(),
		CreatedAt:  e.GetCreatedAt().Time,
	}
	if e.RawPayload != nil {
		raw.Payload = *e.RawPayload
	}
	return raw
}

// Read returns the file at path and its blob SHA.
func (g *GitHubGateway) Read(ctx context.Context, repo, path string) (*domain.Content, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	ref := g.branch
	if ref == "" {
		ref = "HEAD"
	}
	g.logger.Printf("Reading %s:%s from %s using GraphQL API...", ref, path, repo)

	variables := map[string]interface{}{
		"owner":      githubv4.String(owner),
		"name":       githubv4.String(name),
		"expression": githubv4.String(ref + ":" + path),
	}
	var q blobQuery
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return nil, fmt.Errorf("failed to execute GraphQL query for file content: %w", err)
	}

	blob := q.Repository.Object.Blob
	if blob.Oid == "" {
		return nil, errors.Mark(errors.Newf("%s not found in %s at %s", path, repo, ref), domain.ErrTargetFile)
	}
	if blob.IsTruncated {
		return nil, errors.Mark(errors.Newf("%s in %s is too large to read", path, repo), domain.ErrTargetFile)
	}
	return &domain.Content{Body: string(blob.Text), Version: string(blob.Oid)}, nil
}

// Update commits the new body, conditioned on update.Version being the current blob SHA.
func (g *GitHubGateway) Update(ctx context.Context, repo, path string, update domain.ContentUpdate) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(update.Message),
		Content: []byte(update.Body),
		SHA:     github.Ptr(update.Version),
	}
	if update.Committer.Name != "" && update.Committer.Email != "" {
		opts.Committer = &github.CommitAuthor{
			Name:  github.Ptr(update.Committer.Name),
			Email: github.Ptr(update.Committer.Email),
		}
	}
	if g.branch != "" {
		opts.Branch = github.Ptr(g.branch)
	}

	g.logger.Printf("Updating %s in %s using REST API...", path, repo)
	_, resp, err := g.restClient.Repositories.UpdateFile(ctx, owner, name, path, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return errors.Mark(errors.Wrapf(err, "%s in %s is no longer at %s", path, repo, update.Version), domain.ErrPublishConflict)
		}
		return fmt.Errorf("failed to update file with REST API: %w", err)
	}
	g.logger.Println("Completed updating file.")
	return nil
}

func splitRepo(repo string) (string, string, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return "", "", domain.ConfigurationErrorf("repository %q is not of the form owner/name", repo)
	}
	return owner, name, nil
}
