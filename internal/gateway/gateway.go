// Package gateway provides access to the hosting platforms and the local filesystem,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"

	"github.com/naka-gawa/recent-activity/internal/domain"
)

// Event fetching stays within the platform's recent window. GitHub serves at most 300 public
// events (3 pages of 100); GitLab contributions are also cut off by age.
const (
	eventsPerPage    = 100
	maxEventPages    = 3
	recentWindowDays = 90
)

// ActivitySource lists an account's recent public activity, newest first.
type ActivitySource interface {
	ListRecentEvents(ctx context.Context, account string) ([]domain.RawEvent, error)
}

// ContentStore reads and conditionally updates a text file in a repository.
// Update must fail with an error marked domain.ErrPublishConflict when the version in the
// update no longer matches the stored file.
type ContentStore interface {
	Read(ctx context.Context, repo, path string) (*domain.Content, error)
	Update(ctx context.Context, repo, path string, update domain.ContentUpdate) error
}
