package usecase

import (
	"github.com/cockroachdb/errors"
	"github.com/naka-gawa/recent-activity/internal/domain"
)

// SkipReason explains why Classify excluded an event.
type SkipReason string

const (
	SkipNone       SkipReason = ""
	SkipNotWanted  SkipReason = "kind not wanted"
	SkipNoRepo     SkipReason = "no repository"
	SkipIgnoreRepo SkipReason = "repository ignored"
)

// Classify validates raw against the allow-list and decides whether it belongs in the digest.
// A kind outside the allow-list is an ErrInvalidEventKind error. Events that are merely
// unwanted, have no repository, or target an ignored repository are skipped with a reason.
func Classify(raw domain.RawEvent, rules domain.Rules) (domain.Event, SkipReason, error) {
	if !rules.IsAllowed(raw.Kind) {
		return domain.Event{}, SkipNone, errors.Mark(
			errors.Newf("event %s has kind %q which is not on the allow-list", raw.ID, raw.Kind),
			domain.ErrInvalidEventKind,
		)
	}

	event := domain.Event{
		Kind:       domain.EventKind(raw.Kind),
		Actor:      raw.Actor,
		Repository: raw.Repository,
		Timestamp:  raw.CreatedAt,
		Payload:    raw.Payload,
	}

	if _, ok := rules.Wanted[event.Kind]; !ok {
		return event, SkipNotWanted, nil
	}
	if event.Repository == "" {
		return event, SkipNoRepo, nil
	}
	if rules.IsIgnored(event.Repository) {
		return event, SkipIgnoreRepo, nil
	}
	return event, SkipNone, nil
}
