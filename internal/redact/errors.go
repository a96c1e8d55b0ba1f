package redact

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDocument means the input could not be parsed as a PDF.
	ErrInvalidDocument = errors.New("invalid or corrupted PDF file")
	// ErrSerialization means the cleaned document could not be written.
	ErrSerialization = errors.New("failed to write redacted document")
	// ErrTimeout means the processing deadline expired mid-run.
	ErrTimeout = errors.New("redaction deadline exceeded")
	// ErrCanceled means the request context was canceled mid-run, typically
	// because the client went away. Nobody is waiting for a response.
	ErrCanceled = errors.New("redaction canceled")
	// ErrVerification means the saved output still contained a target term.
	ErrVerification = errors.New("output verification failed")
)

// PageError reports a locator or applier failure on one page. The whole
// request is aborted; a partially redacted document is never returned.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }
