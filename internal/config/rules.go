package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/naka-gawa/recent-activity/internal/domain"
	"gopkg.in/yaml.v3"
)

// DefaultRules returns the built-in allow-list, labels and markers.
// Each call returns a fresh value.
func DefaultRules() domain.Rules {
	return domain.Rules{
		Allowed: []domain.EventKind{
			domain.CreateEvent,
			domain.DeleteEvent,
			domain.DiscussionEvent,
			domain.ForkEvent,
			domain.GollumEvent,
			domain.IssueCommentEvent,
			domain.IssuesEvent,
			domain.MemberEvent,
			domain.PublicEvent,
			domain.PullRequestEvent,
			domain.PullRequestReviewEvent,
			domain.PullRequestReviewCommentEvent,
			domain.PushEvent,
			domain.ReleaseEvent,
			domain.WatchEvent,
		},
		Wanted: domain.LabelMap{
			domain.DiscussionEvent:  "📣 contributed to discussion in",
			domain.ForkEvent:        "🥄 forked",
			domain.IssuesEvent:      "🐞 made/updated issue(s) in",
			domain.PublicEvent:      "🎉 released",
			domain.PullRequestEvent: "🪢 PR'ed to",
			domain.PushEvent:        "🫸 pushed commit(s) to",
			domain.ReleaseEvent:     "🎉 released",
		},
		Markers: domain.Markers{
			Start: "<!--START_SECTION:raa-->",
			End:   "<!--END_SECTION:raa-->",
		},
		IgnoreRepos: []string{},
	}
}

// rulesFile mirrors the rules file. Absent keys decode to nil and keep their defaults.
type rulesFile struct {
	AllowedEventTypes []string          `yaml:"ALLOWED_EVENT_TYPES"`
	WantedEventTypes  map[string]string `yaml:"WANTED_EVENT_TYPES"`
	FileMarkers       *struct {
		Start string `yaml:"start_marker"`
		End   string `yaml:"end_marker"`
	} `yaml:"FILE_MARKERS"`
	IgnoreRepos []string `yaml:"IGNORE_REPOS"`
}

// LoadRules reads the rules file at path over DefaultRules. An empty path returns the defaults.
func LoadRules(path string) (domain.Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return domain.Rules{}, errors.Mark(errors.Wrap(err, "read config"), domain.ErrConfiguration)
	}
	var f rulesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return domain.Rules{}, errors.Mark(errors.Wrapf(err, "parse yaml %s", path), domain.ErrConfiguration)
	}

	if f.AllowedEventTypes != nil {
		rules.Allowed = make([]domain.EventKind, 0, len(f.AllowedEventTypes))
		for _, kind := range f.AllowedEventTypes {
			rules.Allowed = append(rules.Allowed, domain.EventKind(kind))
		}
	}
	if f.WantedEventTypes != nil {
		rules.Wanted = make(domain.LabelMap, len(f.WantedEventTypes))
		for kind, label := range f.WantedEventTypes {
			rules.Wanted[domain.EventKind(kind)] = label
		}
	}
	if f.FileMarkers != nil {
		if f.FileMarkers.Start != "" {
			rules.Markers.Start = f.FileMarkers.Start
		}
		if f.FileMarkers.End != "" {
			rules.Markers.End = f.FileMarkers.End
		}
	}
	if f.IgnoreRepos != nil {
		rules.IgnoreRepos = f.IgnoreRepos
	}

	if err := validateRules(rules); err != nil {
		return domain.Rules{}, errors.Wrapf(err, "invalid config %s", path)
	}
	return rules, nil
}

func validateRules(rules domain.Rules) error {
	for kind, label := range rules.Wanted {
		if !rules.IsAllowed(string(kind)) {
			return domain.ConfigurationErrorf("wanted event type %q is not in ALLOWED_EVENT_TYPES", kind)
		}
		if strings.TrimSpace(label) == "" {
			return domain.ConfigurationErrorf("wanted event type %q has an empty label", kind)
		}
		if strings.Contains(label, rules.Markers.Start) || strings.Contains(label, rules.Markers.End) {
			return domain.ConfigurationErrorf("label for %q contains a file marker", kind)
		}
	}
	if rules.Markers.Start == rules.Markers.End {
		return domain.ConfigurationErrorf("start and end markers must differ, both are %q", rules.Markers.Start)
	}
	return nil
}
