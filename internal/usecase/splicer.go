package usecase

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/naka-gawa/recent-activity/internal/domain"
)

// locate returns the offset of the start marker and the offset of the first end marker after it.
func locate(body string, markers domain.Markers) (int, int, error) {
	start := strings.Index(body, markers.Start)
	if start < 0 {
		return 0, 0, errors.Mark(errors.Newf("start marker %q not found", markers.Start), domain.ErrMissingMarker)
	}
	afterStart := start + len(markers.Start)
	end := strings.Index(body[afterStart:], markers.End)
	if end < 0 {
		return 0, 0, errors.Mark(errors.Newf("end marker %q not found after start marker", markers.End), domain.ErrMissingMarker)
	}
	return start, afterStart + end, nil
}

// ValidateMarkers checks that body holds a start marker followed by an end marker.
func ValidateMarkers(body string, markers domain.Markers) error {
	_, _, err := locate(body, markers)
	return err
}

// Splice replaces the region between the first start marker and the next end marker with
// lines, one per line. The markers themselves are kept. Splicing the same lines into an
// already spliced body returns it unchanged.
func Splice(body string, markers domain.Markers, lines []string) (string, error) {
	start, end, err := locate(body, markers)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(body[:start])
	b.WriteString(markers.Start)
	b.WriteString("\n")
	if len(lines) > 0 {
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}
	b.WriteString(body[end:])
	return b.String(), nil
}
