package domain

import (
	"fmt"
	"strings"
)

// DigestEntry summarises the activity on a single repository.
type DigestEntry struct {
	Repository string
	// Labels holds distinct verb phrases in order of first appearance.
	Labels []string
}

// Digest is the ordered, capped list of per-repository entries.
// Entries appear in the order their repository was first seen in the event stream.
type Digest struct {
	Entries []DigestEntry
}

// Len returns the number of repositories in the digest.
func (d Digest) Len() int {
	return len(d.Entries)
}

// Lines renders one markdown line per entry, linking each repository on host.
func (d Digest) Lines(host string) []string {
	lines := make([]string, 0, len(d.Entries))
	for i, entry := range d.Entries {
		lines = append(lines, fmt.Sprintf("%d. %s [%s](%s)",
			i+1, strings.Join(entry.Labels, ", "), entry.Repository, RepositoryURL(host, entry.Repository)))
	}
	return lines
}

// RepositoryURL returns the web URL of repo on host.
func RepositoryURL(host, repo string) string {
	return fmt.Sprintf("https://%s/%s", host, repo)
}
