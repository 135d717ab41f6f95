// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"log"

	"github.com/cockroachdb/errors"
	"github.com/naka-gawa/recent-activity/internal/domain"
	"github.com/naka-gawa/recent-activity/internal/gateway"
)

// Input holds everything a single update run needs.
type Input struct {
	Account  string
	Repo     string
	Path     string
	Host     string
	MaxLines int
	Rules    domain.Rules

	Committer domain.Committer
	Message   string

	// DryRun stops after splicing; nothing is published.
	DryRun bool
	// SkipUnknownKinds downgrades ErrInvalidEventKind to a logged skip.
	SkipUnknownKinds bool
}

// Result is the outcome of an update run.
type Result struct {
	Digest domain.Digest
	Lines  []string
	// Body is the spliced text. Changed reports whether it differs from the text it was spliced into.
	Body      string
	Changed   bool
	Published bool
}

// Updater is the use case for refreshing the activity section of a file.
// It orchestrates fetching, collating, splicing and publishing.
type Updater struct {
	source    gateway.ActivitySource
	target    gateway.ContentStore
	publisher gateway.ContentStore
	logger    *log.Logger
}

// NewUpdater creates a new Updater. target is the local copy of the file, validated before any
// network call; publisher receives the update and may be nil for dry runs.
func NewUpdater(source gateway.ActivitySource, target, publisher gateway.ContentStore, logger *log.Logger) *Updater {
	return &Updater{
		source:    source,
		target:    target,
		publisher: publisher,
		logger:    logger,
	}
}

// Run performs one update: validate the target, fetch, classify, collate, splice and publish.
func (u *Updater) Run(ctx context.Context, in Input) (*Result, error) {
	if err := u.validate(in); err != nil {
		return nil, err
	}

	local, err := u.target.Read(ctx, "", in.Path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to read %s", in.Path), domain.ErrTargetFile)
	}
	if err := ValidateMarkers(local.Body, in.Rules.Markers); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "invalid target file %s", in.Path), domain.ErrTargetFile)
	}

	u.logger.Printf("Usecase: Fetching recent events for %s...", in.Account)
	raws, err := u.source.ListRecentEvents(ctx, in.Account)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to list events for %s", in.Account), domain.ErrSourceUnavailable)
	}
	u.logger.Printf("Usecase: Received %d events.", len(raws))

	events, err := u.classifyAll(raws, in)
	if err != nil {
		return nil, err
	}

	digest := Collate(events, in.Rules.Wanted, in.MaxLines)
	result := &Result{
		Digest: digest,
		Lines:  digest.Lines(in.Host),
	}
	u.logger.Printf("Usecase: Collated %d events into %d digest entries.", len(events), digest.Len())

	if in.DryRun {
		result.Body, err = Splice(local.Body, in.Rules.Markers, result.Lines)
		if err != nil {
			return nil, errors.Mark(err, domain.ErrTargetFile)
		}
		result.Changed = result.Body != local.Body
		u.logger.Println("Usecase: Dry run, skipping publish.")
		return result, nil
	}

	if err := u.publish(ctx, in, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (u *Updater) validate(in Input) error {
	if in.Account == "" {
		return domain.ConfigurationErrorf("account name is required")
	}
	if in.MaxLines <= 0 {
		return domain.ConfigurationErrorf("max lines must be positive, got %d", in.MaxLines)
	}
	if !in.DryRun {
		if in.Repo == "" {
			return domain.ConfigurationErrorf("repository to publish to is required")
		}
		if u.publisher == nil {
			return domain.ConfigurationErrorf("no content store configured for publishing")
		}
	}
	return nil
}

func (u *Updater) classifyAll(raws []domain.RawEvent, in Input) ([]domain.Event, error) {
	events := make([]domain.Event, 0, len(raws))
	for _, raw := range raws {
		event, skip, err := Classify(raw, in.Rules)
		if err != nil {
			if in.SkipUnknownKinds && errors.Is(err, domain.ErrInvalidEventKind) {
				u.logger.Printf("  Warning: skipping event: %v", err)
				continue
			}
			return nil, err
		}
		if skip != SkipNone {
			u.logger.Printf("  Skipping %s event %s on %q: %s", raw.Kind, raw.ID, raw.Repository, skip)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (u *Updater) publish(ctx context.Context, in Input, result *Result) error {
	current, err := u.publisher.Read(ctx, in.Repo, in.Path)
	if err != nil {
		if errors.Is(err, domain.ErrTargetFile) {
			return errors.Wrapf(err, "failed to read %s from %s", in.Path, in.Repo)
		}
		return errors.Mark(errors.Wrapf(err, "failed to read %s from %s", in.Path, in.Repo), domain.ErrPublishFailure)
	}

	result.Body, err = Splice(current.Body, in.Rules.Markers, result.Lines)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "invalid target file %s in %s", in.Path, in.Repo), domain.ErrTargetFile)
	}
	result.Changed = result.Body != current.Body
	if !result.Changed {
		u.logger.Println("Usecase: Activity section is up to date, nothing to publish.")
		return nil
	}

	u.logger.Printf("Usecase: Publishing %s to %s...", in.Path, in.Repo)
	err = u.publisher.Update(ctx, in.Repo, in.Path, domain.ContentUpdate{
		Body:      result.Body,
		Version:   current.Version,
		Committer: in.Committer,
		Message:   in.Message,
	})
	if err != nil {
		if errors.Is(err, domain.ErrPublishConflict) {
			return errors.Wrapf(err, "%s in %s changed since it was read", in.Path, in.Repo)
		}
		return errors.Mark(errors.Wrapf(err, "failed to update %s in %s", in.Path, in.Repo), domain.ErrPublishFailure)
	}
	result.Published = true
	u.logger.Println("Usecase: Publish complete.")
	return nil
}
