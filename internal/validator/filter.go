package validator

import (
	"math"
	"strings"
	"unicode/utf8"

	"mia/apps/backend/internal/catalog"
	"mia/apps/backend/internal/textnorm"
)

// MaxClarifyingCards caps the cards shown while the assistant asks a question
// instead of naming products.
const MaxClarifyingCards = 3

const mentionWordShare = 0.6

var interrogatives = map[string]struct{}{
	"es": {}, "tiene": {}, "quiere": {}, "busca": {}, "necesita": {}, "dime": {},
	"cuentame": {}, "puedes": {}, "cual": {}, "que": {}, "cuanto": {}, "cuanta": {},
}

// FilterMentioned keeps the products the reply actually names: the exact name,
// or at least 60% of its significant words when it has two or more.
func FilterMentioned(text string, products []catalog.Product) []catalog.Product {
	shown := make([]catalog.Product, 0)
	if strings.TrimSpace(text) == "" {
		return shown
	}
	lowerText := strings.ToLower(text)
	for _, p := range products {
		if mentions(lowerText, p.Name) {
			shown = append(shown, p)
		}
	}
	return shown
}

func mentions(lowerText, name string) bool {
	lowerName := strings.ToLower(name)
	if lowerName == "" {
		return false
	}
	if strings.Contains(lowerText, lowerName) {
		return true
	}
	var words []string
	for _, word := range strings.Fields(lowerName) {
		if utf8.RuneCountInString(word) > 3 {
			words = append(words, word)
		}
	}
	if len(words) < 2 {
		return false
	}
	matched := 0
	for _, word := range words {
		if strings.Contains(lowerText, word) {
			matched++
		}
	}
	return matched >= int(math.Ceil(float64(len(words))*mentionWordShare))
}

// IsClarifyingQuestion reports whether the reply asks the user something: a
// question mark plus a common interrogative word.
func IsClarifyingQuestion(text string) bool {
	if !strings.ContainsAny(text, "¿?") {
		return false
	}
	for _, token := range textnorm.Tokens(textnorm.Normalize(text)) {
		if _, ok := interrogatives[token]; ok {
			return true
		}
	}
	return false
}

// SelectCards picks the product cards for a reply. When nothing is named but
// the assistant is asking a clarifying question, the first retrieved products
// are offered as options.
func SelectCards(text string, products []catalog.Product) []catalog.Product {
	shown := FilterMentioned(text, products)
	if len(shown) > 0 || len(products) == 0 || !IsClarifyingQuestion(text) {
		return shown
	}
	n := min(len(products), MaxClarifyingCards)
	return append(shown, products[:n]...)
}
