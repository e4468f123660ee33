package metadata

import (
	"errors"
	"fmt"
)

// Common errors returned by registry sources.
var (
	// ErrNotFound indicates the registry has no record for the DOI.
	ErrNotFound = errors.New("DOI not found in registry")

	// ErrMalformed indicates a response without the expected envelope.
	ErrMalformed = errors.New("malformed registry response")

	// ErrNetwork indicates a transport failure talking to a registry.
	ErrNetwork = errors.New("network error communicating with registry")

	// ErrInvalidDOI indicates the DOI was empty after normalization.
	ErrInvalidDOI = errors.New("invalid DOI")
)

// StatusError is returned when a registry answers with a non-2xx status.
type StatusError struct {
	Source     string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Source, e.StatusCode)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}

// LookupError is the single error surfaced once every source has failed.
// Cause is the last failure observed.
type LookupError struct {
	DOI    string
	Source string // Source that produced Cause
	Cause  error
}

func (e *LookupError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("metadata lookup for %s failed (%s): %v", e.DOI, e.Source, e.Cause)
	}
	return fmt.Sprintf("metadata lookup for %s failed: %v", e.DOI, e.Cause)
}

func (e *LookupError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether err is worth retrying: a 5xx status or a
// transport failure.
func IsTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 && statusErr.StatusCode <= 599
	}
	return errors.Is(err, ErrNetwork)
}

// IsNotFound reports whether err means the DOI is unknown to the registry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
