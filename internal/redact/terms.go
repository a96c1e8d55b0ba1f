package redact

import "strings"

// ParseTerms splits a comma-separated terms field, trimming whitespace and
// dropping empty entries. Duplicates are kept; redaction is idempotent so
// they are harmless.
func ParseTerms(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
