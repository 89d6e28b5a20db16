package domain

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeSlug lowercases s, folds diacritics and replaces whitespace runs with underscores.
func NormalizeSlug(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(folded)), "_")
}
