package validator

import (
	"strings"
	"unicode/utf8"
)

// FuzzyThreshold is the score a catalog name must exceed to replace a mention.
const FuzzyThreshold = 0.6

// Similarity scores two names in [0,1], case-insensitively:
//   - 1 for equal strings;
//   - shorter/longer length ratio when one contains the other;
//   - otherwise the share of words (longer than two characters) found in the
//     other name, over the larger word count.
func Similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
		if la == 0 || lb == 0 {
			return 0
		}
		return float64(min(la, lb)) / float64(max(la, lb))
	}

	wordsA, wordsB := significantWords(a), significantWords(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}
	matching := 0
	for _, wa := range wordsA {
		for _, wb := range wordsB {
			if strings.Contains(wa, wb) || strings.Contains(wb, wa) {
				matching++
				break
			}
		}
	}
	return float64(matching) / float64(max(len(wordsA), len(wordsB)))
}

func significantWords(s string) []string {
	var words []string
	for _, word := range strings.Fields(s) {
		if utf8.RuneCountInString(word) > 2 {
			words = append(words, word)
		}
	}
	return words
}
