// Package store manages the request-scoped files on transient storage.
// Every staged file is keyed by a generated session identifier and must be
// gone by the time its request finishes.
package store

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

type FS struct{ Root string }

func New(root string) (*FS, error) {
	for _, dir := range []string{uploadsDir, processedDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, err
		}
	}
	return &FS{Root: root}, nil
}

const (
	uploadsDir   = "uploads"
	processedDir = "processed"
)

// Session holds the two ephemeral paths of one request.
type Session struct {
	ID         string
	InputPath  string
	OutputPath string
}

// Session derives the input and output paths for a request identifier. The
// identifier must be collision-resistant; paths are never reused across
// requests.
func (s *FS) Session(id string) Session {
	return Session{
		ID:         id,
		InputPath:  filepath.Join(s.Root, uploadsDir, fmt.Sprintf("%s_input.pdf", id)),
		OutputPath: filepath.Join(s.Root, processedDir, fmt.Sprintf("%s_redacted.pdf", id)),
	}
}

// Cleanup removes the given files. Best effort: a missing file is fine and
// any other failure is logged, never escalated, since cleanup runs on paths
// the response has already moved past.
func (s *FS) Cleanup(logger *log.Logger, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if logger != nil {
				logger.Printf("cleanup: failed to delete %s: %v", p, err)
			}
		}
	}
}
