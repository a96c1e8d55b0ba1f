// Package pdf implements the engine.Document contract on a self-contained
// PDF object model: parse, positioned text search, destructive redaction
// and a garbage-collecting writer.
package pdf

import (
	"fmt"

	"github.com/MalithGihan/redact-service/internal/engine"
	"github.com/MalithGihan/redact-service/pkg/types"
)

// Document is one open PDF. It satisfies engine.Document and is owned by a
// single redaction run; it is not safe for concurrent use.
type Document struct {
	f       *file
	layouts map[int]*pageLayout
	marks   map[int][]types.Region
	closed  bool
}

var _ engine.Document = (*Document)(nil)

// Open parses the PDF at path.
func Open(path string) (engine.Document, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Document{
		f:       f,
		layouts: map[int]*pageLayout{},
		marks:   map[int][]types.Region{},
	}, nil
}

func (d *Document) PageCount() int {
	if d.closed {
		return 0
	}
	return len(d.f.pages)
}

func (d *Document) layout(page int) (*pageLayout, error) {
	if pl, ok := d.layouts[page]; ok {
		return pl, nil
	}
	pl, err := layoutPage(d.f, d.f.pages[page])
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	d.layouts[page] = pl
	return pl, nil
}

func (d *Document) Search(page int, term string, mode types.MatchMode) ([]types.Region, error) {
	if err := d.checkPage(page); err != nil {
		return nil, err
	}
	pl, err := d.layout(page)
	if err != nil {
		return nil, err
	}
	return pl.search(term, mode), nil
}

func (d *Document) MarkRegions(page int, regions []types.Region) {
	if d.closed || page < 0 || page >= len(d.f.pages) {
		return
	}
	d.marks[page] = append(d.marks[page], regions...)
}

func (d *Document) ApplyMarks(page int) error {
	if err := d.checkPage(page); err != nil {
		return err
	}
	regions := d.marks[page]
	if len(regions) == 0 {
		return nil
	}
	pl, err := d.layout(page)
	if err != nil {
		return err
	}
	if err := d.f.applyRedactions(d.f.pages[page], pl, regions); err != nil {
		return fmt.Errorf("page %d: %w", page, err)
	}
	// The page content changed; both the staged marks and the cached
	// layout are stale now.
	delete(d.marks, page)
	delete(d.layouts, page)
	return nil
}

// ScrubMetadata drops the info dictionary and the XMP metadata stream.
// The writer's reachability walk keeps the old objects out of the output.
func (d *Document) ScrubMetadata() {
	if d.closed {
		return
	}
	delete(d.f.trailer, "Info")
	if cat, err := d.f.catalog(); err == nil {
		delete(cat, "Metadata")
	}
}

func (d *Document) SaveTo(path string) error {
	if d.closed {
		return fmt.Errorf("document is closed")
	}
	if err := d.f.save(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// Close invalidates the document. The backing data is in memory only, so
// this releases buffers rather than file handles; it is safe to call more
// than once.
func (d *Document) Close() error {
	d.closed = true
	d.f = nil
	d.layouts = nil
	d.marks = nil
	return nil
}

func (d *Document) checkPage(page int) error {
	if d.closed {
		return fmt.Errorf("document is closed")
	}
	if page < 0 || page >= len(d.f.pages) {
		return fmt.Errorf("page %d out of range [0,%d)", page, len(d.f.pages))
	}
	return nil
}
