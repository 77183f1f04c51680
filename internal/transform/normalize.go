// Package transform provides text normalization helpers for comparing
// statement descriptions across exporters that disagree on casing, accents
// and padding.
package transform

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeDescription folds a free-text description into a comparable form:
// accents removed, lowercased, inner whitespace collapsed to single spaces.
// Examples: "TRANSFERÊNCIA  Recebida" → "transferencia recebida".
func NormalizeDescription(s string) string {
	// Strip combining marks (accented characters become their base rune)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, s)
	if err != nil {
		// Fall back to the raw string; normalization is a comparison aid,
		// not a correctness requirement
		normalized = s
	}

	normalized = strings.ToLower(strings.TrimSpace(normalized))
	return strings.Join(strings.Fields(normalized), " ")
}
