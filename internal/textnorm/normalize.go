// Package textnorm canonicalizes free text for identity comparison across
// the order and invoice ledgers.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const nbsp = "\u00a0"

// Normalize returns the identity key for text: trimmed, non-breaking spaces
// turned into spaces, diacritics removed, lowercased, with whitespace runs
// collapsed to a single space.
//
// Both ledgers must go through this function; it is the only basis of
// cross-ledger matching.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	s := strings.TrimSpace(text)
	s = strings.ReplaceAll(s, nbsp, " ")
	s = StripAccents(s)
	s = strings.ToLower(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// StripAccents decomposes s (NFKD) and drops the combining marks.
func StripAccents(s string) string {
	// transform.Chain keeps state, so a fresh chain is built per call.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
