package usecase

import (
	"github.com/naka-gawa/recent-activity/internal/domain"
)

// Collate folds a newest-first event stream into a digest of at most limit repositories.
//
// Repositories keep the order in which they first appear, and each repository collects the
// distinct labels of its events in first-seen order. Iteration stops as soon as limit distinct
// repositories have been seen, so later events are never considered. Events whose kind has no
// label are ignored.
func Collate(events []domain.Event, wanted domain.LabelMap, limit int) domain.Digest {
	digest := domain.Digest{Entries: []domain.DigestEntry{}}
	if limit <= 0 {
		return digest
	}

	index := make(map[string]int)
	for _, event := range events {
		label, ok := wanted[event.Kind]
		if !ok || event.Repository == "" {
			continue
		}

		i, seen := index[event.Repository]
		if !seen {
			index[event.Repository] = len(digest.Entries)
			digest.Entries = append(digest.Entries, domain.DigestEntry{
				Repository: event.Repository,
				Labels:     []string{label},
			})
		} else if !contains(digest.Entries[i].Labels, label) {
			digest.Entries[i].Labels = append(digest.Entries[i].Labels, label)
		}

		if len(digest.Entries) >= limit {
			break
		}
	}
	return digest
}

func contains(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
