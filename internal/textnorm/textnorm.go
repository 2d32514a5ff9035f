// Package textnorm provides accent-insensitive normalization for keyword matching.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases text, strips combining diacritics, replaces every
// character that is not an ASCII word character or whitespace with a space,
// collapses whitespace runs and trims the result.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn))),
		strings.ToLower(text),
	)
	if err != nil {
		stripped = strings.ToLower(text)
	}

	var b strings.Builder
	b.Grow(len(stripped))
	pendingSpace := false
	for _, r := range stripped {
		if !isWordRune(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
}

// ContainsKeyword reports whether the normalized keyword is a substring of an
// already normalized text.
func ContainsKeyword(normalizedText, keyword string) bool {
	needle := Normalize(keyword)
	if needle == "" {
		return false
	}
	return strings.Contains(normalizedText, needle)
}

// ContainsAllKeywords reports whether every keyword matches. An empty keyword
// list never matches.
func ContainsAllKeywords(normalizedText string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	for _, keyword := range keywords {
		if !ContainsKeyword(normalizedText, keyword) {
			return false
		}
	}
	return true
}

// ContainsAnyKeyword reports whether at least one keyword matches.
func ContainsAnyKeyword(normalizedText string, keywords []string) bool {
	for _, keyword := range keywords {
		if ContainsKeyword(normalizedText, keyword) {
			return true
		}
	}
	return false
}

// Tokens splits normalized text on spaces.
func Tokens(normalizedText string) []string {
	return strings.Fields(normalizedText)
}
