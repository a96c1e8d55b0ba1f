// Package redact orchestrates the redaction of one document: locate every
// term on every page, destructively apply the marks page by page, scrub
// metadata, and serialize the cleaned result.
package redact

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/MalithGihan/redact-service/internal/engine"
	"github.com/MalithGihan/redact-service/pkg/types"
)

// Verifier re-reads a saved document and fails if any term still appears
// under the match mode the redaction ran with.
type Verifier func(path string, terms []string, mode types.MatchMode) error

// Pipeline redacts documents. Zero value is not usable; Open is required.
type Pipeline struct {
	Open   engine.Opener
	Mode   types.MatchMode
	Log    *log.Logger
	Verify Verifier // optional independent post-save check
}

// Run redacts every occurrence of terms from the document at inputPath and
// writes the sanitized result to outputPath. The document handle is
// released on every exit path. Finding no occurrence anywhere is not an
// error: metadata is still scrubbed and an output is still produced.
func (p *Pipeline) Run(ctx context.Context, inputPath, outputPath string, terms []string) (types.Summary, error) {
	sum := types.Summary{Terms: len(terms)}

	doc, err := p.Open(inputPath)
	if err != nil {
		return sum, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	defer doc.Close()

	sum.Pages = doc.PageCount()
	for page := 0; page < sum.Pages; page++ {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return sum, ErrTimeout
			}
			return sum, fmt.Errorf("%w: %v", ErrCanceled, err)
		}
		found := 0
		for _, term := range terms {
			regions, err := doc.Search(page, term, p.Mode)
			if err != nil {
				return sum, &PageError{Page: page, Err: err}
			}
			if len(regions) == 0 {
				continue
			}
			if p.Log != nil {
				p.Log.Printf("page %d: found %q %d time(s)", page+1, term, len(regions))
			}
			doc.MarkRegions(page, regions)
			found += len(regions)
		}
		if found == 0 {
			continue
		}
		if err := doc.ApplyMarks(page); err != nil {
			return sum, &PageError{Page: page, Err: err}
		}
		sum.Redactions += found
	}

	// Metadata goes unconditionally: the source document may identify its
	// author even when no term matched.
	doc.ScrubMetadata()

	if err := doc.SaveTo(outputPath); err != nil {
		return sum, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	if p.Verify != nil {
		if err := p.Verify(outputPath, terms, p.Mode); err != nil {
			return sum, fmt.Errorf("%w: %v", ErrVerification, err)
		}
	}
	if p.Log != nil {
		p.Log.Printf("redacted %d region(s) across %d page(s)", sum.Redactions, sum.Pages)
	}
	return sum, nil
}
