package types

import "fmt"

// Region is an axis-aligned box in PDF user space (origin bottom-left,
// units are points). X0/Y0 is the lower-left corner, X1/Y1 the upper-right.
type Region struct {
	X0, Y0, X1, Y1 float64
}

func (r Region) Width() float64  { return r.X1 - r.X0 }
func (r Region) Height() float64 { return r.Y1 - r.Y0 }

// Contains reports whether the point (x, y) lies inside the region.
func (r Region) Contains(x, y float64) bool {
	return x >= r.X0 && x <= r.X1 && y >= r.Y0 && y <= r.Y1
}

// Intersects reports whether r and o overlap with positive area.
func (r Region) Intersects(o Region) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

// Union returns the smallest region covering both r and o.
func (r Region) Union(o Region) Region {
	return Region{
		X0: min(r.X0, o.X0),
		Y0: min(r.Y0, o.Y0),
		X1: max(r.X1, o.X1),
		Y1: max(r.Y1, o.Y1),
	}
}

// Expand grows the region by d points on every side.
func (r Region) Expand(d float64) Region {
	return Region{X0: r.X0 - d, Y0: r.Y0 - d, X1: r.X1 + d, Y1: r.Y1 + d}
}

// MatchMode selects how target terms are matched against page text.
type MatchMode int

const (
	// MatchSubstring redacts every occurrence of the term, even inside a
	// longer word ("secret" also hits "secretary").
	MatchSubstring MatchMode = iota
	// MatchWord only redacts occurrences bounded by non-alphanumeric
	// characters or the page edge.
	MatchWord
)

func (m MatchMode) String() string {
	if m == MatchWord {
		return "word"
	}
	return "substring"
}

// ParseMatchMode maps the wire/config spelling to a MatchMode.
func ParseMatchMode(s string) (MatchMode, error) {
	switch s {
	case "substring":
		return MatchSubstring, nil
	case "word":
		return MatchWord, nil
	default:
		return MatchSubstring, fmt.Errorf("unknown match mode %q", s)
	}
}

// Summary reports what one redaction run did.
type Summary struct {
	Pages      int // pages processed
	Terms      int // distinct terms searched
	Redactions int // regions blacked out across the whole document
}
