// Package engine defines the document-model surface the redaction pipeline
// runs against. The pipeline never touches PDF internals directly; it talks
// to a Document, which internal/engine/pdf implements.
package engine

import "github.com/MalithGihan/redact-service/pkg/types"

// Document is one open PDF, exclusively owned by a single redaction run.
// It is not safe for concurrent use and must not be used after Close.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int

	// Search returns every region on the zero-based page where the term's
	// rendered text appears, compared case-insensitively. An absent term
	// yields an empty slice, not an error.
	Search(page int, term string, mode types.MatchMode) ([]types.Region, error)

	// MarkRegions stages regions on a page for removal. Staged marks have
	// no effect until ApplyMarks runs.
	MarkRegions(page int, regions []types.Region)

	// ApplyMarks irreversibly removes the content under every staged mark
	// on the page (text and overlapping raster images) and fills each
	// region with solid black. The page is either fully redacted or, on
	// error, left untouched.
	ApplyMarks(page int) error

	// ScrubMetadata clears all document-level metadata. Idempotent.
	ScrubMetadata()

	// SaveTo serializes the document to path, dropping every object no
	// longer referenced so removed content is not recoverable from the file.
	SaveTo(path string) error

	// Close releases the document. Any use afterwards is an error.
	Close() error
}

// Opener opens the document at path, or fails if it cannot be parsed.
type Opener func(path string) (Document, error)
