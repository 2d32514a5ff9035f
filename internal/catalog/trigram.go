package catalog

import (
	"strings"
	"unicode"
)

// TrigramSimilarity follows pg_trgm's similarity(): lower-cased words padded
// with two leading blanks and one trailing blank, then shared trigrams over
// the union of both sets.
func TrigramSimilarity(a, b string) float64 {
	left := trigrams(a)
	right := trigrams(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}
	shared := 0
	for t := range left {
		if _, ok := right[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(left)+len(right)-shared)
}

func trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		padded := []rune("  " + word + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}
