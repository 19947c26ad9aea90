package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across components.
var (
	// ErrLoginFailed is returned when the authentication handshake does
	// not end in a verified logged-in session. It aborts the whole run.
	ErrLoginFailed = errors.New("login failed")

	// ErrAccessDenied marks an HTTP 403 on an asset download. It is
	// permanent for that URL and must not be retried.
	ErrAccessDenied = errors.New("access denied")
)

// DownloadError carries the failing URL and last observed status so a
// failed download can be diagnosed from the log alone.
type DownloadError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error // wrapped original error, if any
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("download %s: status %d after %d attempts: %v", e.URL, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("download %s: status %d after %d attempts", e.URL, e.StatusCode, e.Attempts)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
