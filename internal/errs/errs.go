// Package errs defines the error kinds shared across the service.
package errs

import "errors"

var (
	ErrNotAuthorized       = errors.New("not authorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrFetchFailed         = errors.New("fetch failed")
	ErrParseFailed         = errors.New("parse failed")
	ErrEmbedFailed         = errors.New("embed failed")
	ErrProviderUnavailable = errors.New("chat provider unavailable")
	ErrStateConflict       = errors.New("state conflict")
)

var kinds = []error{
	ErrNotAuthorized,
	ErrForbidden,
	ErrNotFound,
	ErrInvalidInput,
	ErrFetchFailed,
	ErrParseFailed,
	ErrEmbedFailed,
	ErrProviderUnavailable,
	ErrStateConflict,
}

// KindOf returns the sentinel kind wrapped by err, or nil if err carries none.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
