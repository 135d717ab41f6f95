// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// EventKind is the category of platform activity, e.g. "PushEvent".
type EventKind string

// Event kinds recognised by the hosting platform's event API.
const (
	CreateEvent                   EventKind = "CreateEvent"
	DeleteEvent                   EventKind = "DeleteEvent"
	DiscussionEvent               EventKind = "DiscussionEvent"
	ForkEvent                     EventKind = "ForkEvent"
	GollumEvent                   EventKind = "GollumEvent"
	IssueCommentEvent             EventKind = "IssueCommentEvent"
	IssuesEvent                   EventKind = "IssuesEvent"
	MemberEvent                   EventKind = "MemberEvent"
	PublicEvent                   EventKind = "PublicEvent"
	PullRequestEvent              EventKind = "PullRequestEvent"
	PullRequestReviewEvent        EventKind = "PullRequestReviewEvent"
	PullRequestReviewCommentEvent EventKind = "PullRequestReviewCommentEvent"
	PushEvent                     EventKind = "PushEvent"
	ReleaseEvent                  EventKind = "ReleaseEvent"
	WatchEvent                    EventKind = "WatchEvent"
)

// RawEvent is an activity record as returned by an activity source, before its kind is validated.
type RawEvent struct {
	ID         string
	Kind       string
	Actor      string
	Repository string
	CreatedAt  time.Time
	Payload    json.RawMessage
}

// Event is a classified activity record. Its Kind is guaranteed to be on the allow-list it was
// classified against. Events are folded into a Digest and never persisted.
type Event struct {
	Kind       EventKind
	Actor      string
	Repository string
	Timestamp  time.Time
	Payload    json.RawMessage
}

// LabelMap maps the wanted event kinds to the verb phrase shown in the digest.
type LabelMap map[EventKind]string

// Markers delimit the region of a text body that is replaced by the digest.
type Markers struct {
	Start string
	End   string
}

// Rules is the immutable configuration consulted while classifying, collating and splicing.
type Rules struct {
	Allowed     []EventKind
	Wanted      LabelMap
	Markers     Markers
	IgnoreRepos []string
}

// IsAllowed reports whether kind is on the allow-list.
func (r Rules) IsAllowed(kind string) bool {
	for _, k := range r.Allowed {
		if string(k) == kind {
			return true
		}
	}
	return false
}

// IsIgnored reports whether repo is excluded from the digest.
// Repository names are compared case-insensitively, as the platforms treat them.
func (r Rules) IsIgnored(repo string) bool {
	for _, ignored := range r.IgnoreRepos {
		if strings.EqualFold(ignored, repo) {
			return true
		}
	}
	return false
}
