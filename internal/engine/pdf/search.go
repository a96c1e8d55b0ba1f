package pdf

import (
	"math"
	"unicode"

	"github.com/MalithGihan/redact-service/pkg/types"
)

// search finds every occurrence of term in the page's assembled text,
// case-insensitively, and returns one or more regions per occurrence
// (an occurrence wrapping across lines yields one region per line).
func (pl *pageLayout) search(term string, mode types.MatchMode) []types.Region {
	needle := foldRunes([]rune(term))
	if len(needle) == 0 {
		return nil
	}
	hay := foldRunes(pl.text)

	var out []types.Region
	for i := 0; i+len(needle) <= len(hay); i++ {
		if !runesMatch(hay[i:i+len(needle)], needle) {
			continue
		}
		if mode == types.MatchWord && !wordBounded(hay, i, len(needle)) {
			continue
		}
		if rs := pl.matchRegions(i, len(needle)); len(rs) > 0 {
			out = append(out, rs...)
		}
		i += len(needle) - 1
	}
	return out
}

func foldRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

// runesMatch compares a haystack window against the needle, treating any
// whitespace in the window as equal to a space in the needle so wrapped
// text still matches phrases.
func runesMatch(window, needle []rune) bool {
	for i, n := range needle {
		w := window[i]
		if n == ' ' {
			if w != ' ' && w != '\n' {
				return false
			}
			continue
		}
		if w != n {
			return false
		}
	}
	return true
}

func wordBounded(hay []rune, start, n int) bool {
	if start > 0 && isWordRune(hay[start-1]) {
		return false
	}
	if end := start + n; end < len(hay) && isWordRune(hay[end]) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// matchRegions maps the matched rune span back through glyph provenance
// and unions the glyph boxes, split per text line.
func (pl *pageLayout) matchRegions(start, n int) []types.Region {
	var out []types.Region
	have := false
	var cur types.Region
	var curY float64
	for _, gi := range pl.prov[start : start+n] {
		if gi < 0 {
			continue
		}
		g := pl.glyphs[gi]
		if have && math.Abs(g.baseY-curY) <= max(g.size*0.5, 2) {
			cur = cur.Union(g.rect)
			continue
		}
		if have {
			out = append(out, cur)
		}
		cur = g.rect
		curY = g.baseY
		have = true
	}
	if have {
		out = append(out, cur)
	}
	return out
}
