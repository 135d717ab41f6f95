package domain

import "github.com/cockroachdb/errors"

// Error categories. Concrete errors are marked with one of these so callers can test the
// category with errors.Is while the message keeps the underlying cause.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrTargetFile        = errors.New("target file error")
	ErrMissingMarker     = errors.New("missing marker")
	ErrInvalidEventKind  = errors.New("invalid event kind")
	ErrSourceUnavailable = errors.New("activity source unavailable")
	ErrPublishConflict   = errors.New("publish conflict")
	ErrPublishFailure    = errors.New("publish failure")
)

// ConfigurationErrorf returns a formatted error in the ErrConfiguration category.
func ConfigurationErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfiguration)
}
