package food

import (
	"strings"
	"unicode"
)

// KeySuffix is appended to a normalized name to form the cache key.
const KeySuffix = "_per_100g"

// Normalize canonicalizes a free-text food name:
// 1. Lowercase
// 2. Drop everything that is not a letter or whitespace
// 3. Collapse whitespace runs to single spaces and trim
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Key returns the cache key for an already-normalized name.
func Key(normalized string) string {
	return normalized + KeySuffix
}
