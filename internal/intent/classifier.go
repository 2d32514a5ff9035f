package intent

import (
	"sort"
	"strings"

	"mia/apps/backend/internal/textnorm"
)

// Result is the outcome of Detect. An empty Intent means no specific intent
// matched and generic search should be used.
type Result struct {
	Intent             string                    `json:"intent,omitempty"`
	Priority           int                       `json:"priority,omitempty"`
	CategoryCandidates [][]string                `json:"categoryCandidates"`
	CategoryFilters    map[string]CategoryFilter `json:"categoryFilters"`
	SearchStrategy     []Strategy                `json:"searchStrategy"`
	NameSynonyms       []string                  `json:"nameSynonyms"`
	RedFlags           []string                  `json:"redFlags"`
	FollowupQuestions  []string                  `json:"followupQuestions"`
}

func (r Result) Matched() bool {
	return r.Intent != ""
}

// HasStrategy reports whether any of the given strategies is part of the recipe.
func (r Result) HasStrategy(strategies ...Strategy) bool {
	for _, have := range r.SearchStrategy {
		for _, want := range strategies {
			if have == want {
				return true
			}
		}
	}
	return false
}

type compiledIntent struct {
	Intent
	triggers []string
}

type Classifier struct {
	intents         []compiledIntent
	tokenAliases    map[string]string
	categoryAliases map[string]string
	giRedFlags      []string
}

func NewClassifier(dict Dictionary) *Classifier {
	c := &Classifier{
		tokenAliases:    make(map[string]string, len(dict.TokenAliases)),
		categoryAliases: make(map[string]string, len(dict.CategoryAliases)),
	}
	for from, to := range dict.TokenAliases {
		c.tokenAliases[textnorm.Normalize(from)] = textnorm.Normalize(to)
	}
	for from, to := range dict.CategoryAliases {
		c.categoryAliases[strings.ToUpper(strings.TrimSpace(from))] = to
	}

	for _, in := range dict.Intents {
		compiled := compiledIntent{Intent: in}
		for _, trigger := range in.Triggers {
			if normalized := c.aliasPhrase(trigger); normalized != "" {
				compiled.triggers = append(compiled.triggers, normalized)
			}
		}
		c.intents = append(c.intents, compiled)
		if in.ID == GIGastrointestinal {
			c.giRedFlags = in.RedFlags
		}
	}
	sort.SliceStable(c.intents, func(i, j int) bool {
		return c.intents[i].Priority > c.intents[j].Priority
	})
	return c
}

// aliasPhrase normalizes text and maps every token through the alias table.
func (c *Classifier) aliasPhrase(text string) string {
	tokens := textnorm.Tokens(textnorm.Normalize(text))
	for i, token := range tokens {
		if alias, ok := c.tokenAliases[token]; ok {
			tokens[i] = alias
		}
	}
	return strings.Join(tokens, " ")
}

// Detect picks the highest-priority intent with at least one trigger hit;
// equal priorities resolve to dictionary order.
func (c *Classifier) Detect(message string) Result {
	normalized := textnorm.Normalize(message)
	fullText := c.aliasPhrase(normalized)
	tokenSet := make(map[string]struct{})
	for _, token := range strings.Fields(fullText) {
		tokenSet[token] = struct{}{}
	}

	var best *compiledIntent
	for i := range c.intents {
		if c.intents[i].matches(fullText, tokenSet) {
			best = &c.intents[i]
			break
		}
	}
	if best == nil {
		return emptyResult()
	}

	redFlags := make([]string, 0)
	seen := make(map[string]struct{})
	collect := func(flags []string) {
		for _, flag := range flags {
			if _, dup := seen[flag]; dup {
				continue
			}
			if textnorm.ContainsKeyword(normalized, flag) {
				seen[flag] = struct{}{}
				redFlags = append(redFlags, flag)
			}
		}
	}
	collect(best.RedFlags)
	collect(c.giRedFlags)

	filters := best.CategoryFilters
	if filters == nil {
		filters = map[string]CategoryFilter{}
	}
	return Result{
		Intent:             best.ID,
		Priority:           best.Priority,
		CategoryCandidates: nonNil(best.CategoryCandidates),
		CategoryFilters:    filters,
		SearchStrategy:     nonNil(best.SearchStrategy),
		NameSynonyms:       nonNil(best.NameSynonyms),
		RedFlags:           redFlags,
		FollowupQuestions:  nonNil(best.FollowupQuestions),
	}
}

func (ci *compiledIntent) matches(fullText string, tokens map[string]struct{}) bool {
	for _, trigger := range ci.triggers {
		if strings.Contains(fullText, trigger) {
			return true
		}
		if _, ok := tokens[trigger]; ok {
			return true
		}
	}
	return false
}

// NormalizedCategoryNames flattens candidate paths into upper-cased,
// alias-resolved, de-duplicated category names in first-seen order.
func (c *Classifier) NormalizedCategoryNames(candidates [][]string) []string {
	names := make([]string, 0)
	seen := make(map[string]struct{})
	for _, path := range candidates {
		for _, name := range path {
			normalized := c.normalizeCategoryName(name)
			if normalized == "" {
				continue
			}
			if _, dup := seen[normalized]; dup {
				continue
			}
			seen[normalized] = struct{}{}
			names = append(names, normalized)
		}
	}
	return names
}

// SpecificCategoryNames returns the candidates that are not merely a parent
// grouping: a name is a parent when it only ever heads a multi-level path.
func (c *Classifier) SpecificCategoryNames(candidates [][]string) []string {
	parentOnly := make(map[string]bool)
	for _, path := range candidates {
		for i, name := range path {
			normalized := c.normalizeCategoryName(name)
			if normalized == "" {
				continue
			}
			isParent := i == 0 && len(path) > 1
			if prev, ok := parentOnly[normalized]; ok {
				parentOnly[normalized] = prev && isParent
			} else {
				parentOnly[normalized] = isParent
			}
		}
	}
	specific := make([]string, 0)
	for _, name := range c.NormalizedCategoryNames(candidates) {
		if !parentOnly[name] {
			specific = append(specific, name)
		}
	}
	return specific
}

func (c *Classifier) normalizeCategoryName(name string) string {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if upper == "" {
		return ""
	}
	if alias, ok := c.categoryAliases[upper]; ok {
		return alias
	}
	return upper
}

func emptyResult() Result {
	return Result{
		CategoryCandidates: [][]string{},
		CategoryFilters:    map[string]CategoryFilter{},
		SearchStrategy:     []Strategy{},
		NameSynonyms:       []string{},
		RedFlags:           []string{},
		FollowupQuestions:  []string{},
	}
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
