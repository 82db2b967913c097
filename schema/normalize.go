// ABOUTME: Header normalization for human-edited spreadsheet columns
// ABOUTME: Maps drifting header labels onto one canonical lookup key
package schema

import (
	"strings"
	"unicode"
)

// Normalize lower-cases a header label, trims it and collapses every run of
// whitespace, underscores and hyphens into a single underscore. It is
// idempotent; an empty result means the column is ignored.
func Normalize(header string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(header)) {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	return b.String()
}
