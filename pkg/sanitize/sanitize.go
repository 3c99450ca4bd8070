// Package sanitize cleans provider-supplied text before it is persisted.
// Malformed Gmail and Calendar payloads occasionally carry stray control
// characters and exotic whitespace that corrupt rendering downstream.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Text applies Unicode NFKC normalization, collapses non-breaking spaces to
// regular spaces, and strips control characters except tab, newline and CR.
// Text(Text(s)) == Text(s) for all s.
func Text(s string) string {
	s = norm.NFKC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == ' ':
			b.WriteRune(' ')
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(r)
		case unicode.IsControl(r):
			// dropped
		default:
			b.WriteRune(r)
		}
	}

	// Stripping can expose newly adjacent sequences, so normalize once more to
	// keep the result a fixpoint.
	return norm.NFKC.String(b.String())
}

// TextPtr is Text for nullable columns; nil stays nil.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	cleaned := Text(*s)
	return &cleaned
}
