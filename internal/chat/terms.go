package chat

import (
	"regexp"
	"strings"

	"mia/apps/backend/internal/llm"
	"mia/apps/backend/internal/textnorm"
)

const (
	SpeciesDog = "perro"
	SpeciesCat = "gato"
)

var speciesTokens = map[string]string{
	"perro": SpeciesDog, "perros": SpeciesDog, "perra": SpeciesDog, "perras": SpeciesDog,
	"can": SpeciesDog, "canes": SpeciesDog, "canino": SpeciesDog, "canina": SpeciesDog,
	"gato": SpeciesCat, "gatos": SpeciesCat, "gata": SpeciesCat, "gatas": SpeciesCat,
	"felino": SpeciesCat, "felina": SpeciesCat, "gatito": SpeciesCat, "gatitos": SpeciesCat,
}

type hint struct {
	term   string
	tokens []string
}

var foodHints = []hint{
	{term: "alimentación", tokens: []string{"alimentacion"}},
	{term: "comida", tokens: []string{"comida"}},
	{term: "pienso", tokens: []string{"pienso", "piensos"}},
	{term: "croquetas", tokens: []string{"croquetas"}},
	{term: "dieta", tokens: []string{"dieta", "dietas"}},
}

var ageHints = []hint{
	{term: "cachorro", tokens: []string{"cachorro", "cachorros", "puppy", "joven"}},
	{term: "adulto", tokens: []string{"adulto", "adultos", "adult"}},
	{term: "senior", tokens: []string{"senior", "anciano", "viejo", "mayor"}},
}

var ageInYears = regexp.MustCompile(`\b\d+ anos?\b`)

// ExtractSpecies finds perro or gato in the message, then in earlier user
// turns from newest to oldest. Empty when no species is mentioned.
func ExtractSpecies(history []llm.Turn, message string) string {
	if species := speciesIn(message); species != "" {
		return species
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != llm.RoleUser {
			continue
		}
		if species := speciesIn(history[i].Content); species != "" {
			return species
		}
	}
	return ""
}

func speciesIn(text string) string {
	for _, token := range textnorm.Tokens(textnorm.Normalize(text)) {
		if species, ok := speciesTokens[token]; ok {
			return species
		}
	}
	return ""
}

// ExtractSearchTerms builds the retrieval query: the message itself plus the
// food, species and life-stage words mentioned across the user's turns that
// the message does not already contain.
func ExtractSearchTerms(history []llm.Turn, message string) string {
	var userText []string
	for _, turn := range history {
		if turn.Role == llm.RoleUser {
			userText = append(userText, turn.Content)
		}
	}
	userText = append(userText, message)
	combined := textnorm.Normalize(strings.Join(userText, " "))
	tokens := make(map[string]struct{})
	for _, token := range textnorm.Tokens(combined) {
		tokens[token] = struct{}{}
	}
	has := func(h hint) bool {
		for _, t := range h.tokens {
			if _, ok := tokens[t]; ok {
				return true
			}
		}
		return false
	}

	var hints []string
	for _, h := range foodHints {
		if has(h) {
			hints = append(hints, h.term)
		}
	}
	seenSpecies := make(map[string]bool)
	for _, token := range textnorm.Tokens(combined) {
		if species, ok := speciesTokens[token]; ok && !seenSpecies[species] {
			seenSpecies[species] = true
		}
	}
	for _, species := range []string{SpeciesDog, SpeciesCat} {
		if seenSpecies[species] {
			hints = append(hints, species)
		}
	}
	for _, h := range ageHints {
		if has(h) || (h.term == "adulto" && ageInYears.MatchString(combined)) {
			hints = append(hints, h.term)
		}
	}

	message = strings.TrimSpace(message)
	normalizedMessage := textnorm.Normalize(message)
	terms := []string{message}
	for _, h := range hints {
		if !textnorm.ContainsKeyword(normalizedMessage, h) {
			terms = append(terms, h)
		}
	}
	return strings.Join(terms, " ")
}
