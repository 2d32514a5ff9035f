package catalog

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"mia/apps/backend/internal/intent"
	"mia/apps/backend/internal/textnorm"
)

const (
	DefaultLimit            = 5
	DefaultAlternativeLimit = 3
	relatedCategoryLimit    = 2
)

// Retrieval tiers, in the order Retrieve tries them.
const (
	TierCategories   = "categories"
	TierNameSynonyms = "name_synonyms"
	TierGeneric      = "generic"
	TierAlternatives = "alternatives"
	TierBroad        = "broad_category"
	TierSpecies      = "species"
	TierNone         = "none"
)

// CategoryNamer resolves intent category paths into flat category names.
// *intent.Classifier implements it.
type CategoryNamer interface {
	NormalizedCategoryNames(candidates [][]string) []string
	SpecificCategoryNames(candidates [][]string) []string
}

// Recorder observes which tier answered a retrieval.
type Recorder interface {
	ObserveRetrieval(tier string, alternative bool)
}

type EngineConfig struct {
	Limit            int
	AlternativeLimit int
	Recorder         Recorder
}

// Engine runs the retrieval strategies over a Store. Store failures never
// reach the caller: a failing strategy counts as an empty one.
type Engine struct {
	store      Store
	categories CategoryNamer
	limit      int
	altLimit   int
	recorder   Recorder
	logger     *zap.Logger
}

func NewEngine(store Store, categories CategoryNamer, cfg EngineConfig, logger *zap.Logger) *Engine {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.AlternativeLimit <= 0 {
		cfg.AlternativeLimit = DefaultAlternativeLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:      store,
		categories: categories,
		limit:      cfg.Limit,
		altLimit:   cfg.AlternativeLimit,
		recorder:   cfg.Recorder,
		logger:     logger,
	}
}

type Filters struct {
	Species  string
	Category string
	MaxPrice float64
	Limit    int
}

type Query struct {
	Terms   string
	Species string
	Intent  intent.Result
}

type Result struct {
	Products      []Product
	IsAlternative bool
	Tier          string
}

type tier struct {
	name        string
	alternative bool
	run         func(ctx context.Context) ([]Product, error)
}

// Retrieve walks the whole cascade and stops at the first tier with results:
// categories, name synonyms, generic search, alternatives, broad category,
// species. The last three mark the result as alternative.
func (e *Engine) Retrieve(ctx context.Context, q Query) Result {
	var tiers []tier
	intentPath := usesCatalogStrategy(q.Intent)
	if intentPath {
		tiers = append(tiers, e.intentTiers(q.Terms, q.Intent, q.Species, e.limit)...)
	}
	tiers = append(tiers, tier{name: TierGeneric, run: func(ctx context.Context) ([]Product, error) {
		return e.generic(ctx, q.Terms, Filters{Species: q.Species, Limit: e.limit})
	}})
	if intentPath {
		related := e.categories.NormalizedCategoryNames(q.Intent.CategoryCandidates)
		tiers = append(tiers, tier{name: TierAlternatives, alternative: true, run: func(ctx context.Context) ([]Product, error) {
			return e.alternatives(ctx, q.Terms, related, q.Species, e.altLimit)
		}})
	}
	tiers = append(tiers, tier{name: TierBroad, alternative: true, run: func(ctx context.Context) ([]Product, error) {
		return e.broad(ctx, q.Terms, e.limit)
	}})
	if strings.TrimSpace(q.Species) != "" {
		tiers = append(tiers, tier{name: TierSpecies, alternative: true, run: func(ctx context.Context) ([]Product, error) {
			return e.bySpecies(ctx, q.Species, e.limit)
		}})
	}

	res := e.firstNonEmpty(ctx, tiers)
	if e.recorder != nil {
		e.recorder.ObserveRetrieval(res.Tier, res.IsAlternative)
	}
	e.logger.Info("product retrieval completed",
		zap.String("intent", intentLabel(q.Intent)),
		zap.String("query", q.Terms),
		zap.String("species", q.Species),
		zap.String("tier", res.Tier),
		zap.Int("results_count", len(res.Products)),
		zap.Bool("is_alternative", res.IsAlternative),
		zap.Int64s("top_ids", productIDs(res.Products)),
	)
	return res
}

// SearchProductsWithIntent runs the intent's own strategies and falls back to
// the generic search.
func (e *Engine) SearchProductsWithIntent(ctx context.Context, terms string, in intent.Result, f Filters) []Product {
	limit := e.limitOr(f.Limit)
	tiers := e.intentTiers(terms, in, f.Species, limit)
	tiers = append(tiers, tier{name: TierGeneric, run: func(ctx context.Context) ([]Product, error) {
		return e.generic(ctx, terms, Filters{Species: f.Species, Limit: limit})
	}})
	return e.firstNonEmpty(ctx, tiers).Products
}

func (e *Engine) intentTiers(terms string, in intent.Result, species string, limit int) []tier {
	var tiers []tier
	if in.HasStrategy(intent.StrategyCategoriesFirst, intent.StrategyCategoryThenName) && len(in.CategoryCandidates) > 0 {
		names := e.categories.NormalizedCategoryNames(in.CategoryCandidates)
		specific := e.categories.SpecificCategoryNames(in.CategoryCandidates)
		tiers = append(tiers, tier{name: TierCategories, run: func(ctx context.Context) ([]Product, error) {
			return e.byCategories(ctx, names, CategoryOptions{
				Specific: specific,
				Filters:  in.CategoryFilters,
				Species:  species,
				Limit:    limit,
			})
		}})
	}
	if in.HasStrategy(intent.StrategyNameWithSynonyms, intent.StrategyCategoryThenName) {
		synonyms := append([]string{terms}, in.NameSynonyms...)
		tiers = append(tiers, tier{name: TierNameSynonyms, run: func(ctx context.Context) ([]Product, error) {
			return e.byNameSynonyms(ctx, synonyms, species, limit)
		}})
	}
	return tiers
}

func (e *Engine) firstNonEmpty(ctx context.Context, tiers []tier) Result {
	for _, t := range tiers {
		products, err := t.run(ctx)
		if err != nil {
			e.logger.Warn("retrieval tier failed", zap.String("tier", t.name), zap.Error(err))
			continue
		}
		if len(products) > 0 {
			return Result{Products: products, IsAlternative: t.alternative, Tier: t.name}
		}
	}
	return Result{Products: []Product{}, Tier: TierNone}
}

// SearchProducts is the generic full-text / trigram search with its substring
// fallback.
func (e *Engine) SearchProducts(ctx context.Context, terms string, f Filters) []Product {
	f.Limit = e.limitOr(f.Limit)
	return e.quiet(TierGeneric)(e.generic(ctx, terms, f))
}

func (e *Engine) generic(ctx context.Context, terms string, f Filters) ([]Product, error) {
	if strings.TrimSpace(terms) == "" {
		return []Product{}, nil
	}
	products, err := e.store.FindByFilters(ctx, FilterQuery{
		Text:     terms,
		Species:  f.Species,
		Category: f.Category,
		MaxPrice: f.MaxPrice,
		Limit:    f.Limit,
	})
	if err != nil {
		e.logger.Warn("full-text search failed, using substring fallback", zap.String("query", terms), zap.Error(err))
	} else if len(products) > 0 {
		return products, nil
	}
	return e.substringFallback(ctx, terms, f.Species, f.Limit)
}

func (e *Engine) substringFallback(ctx context.Context, terms, species string, limit int) ([]Product, error) {
	clauses := []TermClause{{
		Term:   terms,
		Fields: []Field{FieldName, FieldCategory, FieldDescription, FieldIndications, FieldSpecies},
	}}
	for _, word := range significantWords(terms) {
		clauses = append(clauses, TermClause{Term: word, Fields: []Field{FieldName, FieldCategory, FieldIndications}})
	}
	return e.store.FindByTerms(ctx, TermQuery{Clauses: clauses, Species: species, Limit: limit})
}

type CategoryOptions struct {
	// Specific lists the names ranked ahead of parent categories. Nil treats
	// every name as specific.
	Specific []string
	Filters  map[string]intent.CategoryFilter
	Species  string
	Limit    int
}

// SearchProductsByCategories matches products whose category or subcategory
// contains any of names. Name filters apply only to the category they are
// declared for.
func (e *Engine) SearchProductsByCategories(ctx context.Context, names []string, opts CategoryOptions) []Product {
	opts.Limit = e.limitOr(opts.Limit)
	return e.quiet(TierCategories)(e.byCategories(ctx, names, opts))
}

func (e *Engine) byCategories(ctx context.Context, names []string, opts CategoryOptions) ([]Product, error) {
	if len(names) == 0 {
		return []Product{}, nil
	}
	specific := make(map[string]struct{}, len(opts.Specific))
	for _, name := range opts.Specific {
		specific[name] = struct{}{}
	}
	targets := make([]CategoryTarget, 0, len(names))
	for _, name := range names {
		_, isSpecific := specific[name]
		targets = append(targets, CategoryTarget{
			Name:      name,
			Specific:  opts.Specific == nil || isSpecific,
			NameTerms: filterTermsFor(name, opts.Filters),
		})
	}
	return e.store.FindByCategoryNames(ctx, CategoryQuery{Targets: targets, Species: opts.Species, Limit: opts.Limit})
}

// filterTermsFor collects the name terms of every filter whose key matches
// the category in either direction.
func filterTermsFor(category string, filters map[string]intent.CategoryFilter) []string {
	if len(filters) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	normalizedCategory := textnorm.Normalize(category)
	var terms []string
	for _, key := range keys {
		normalizedKey := textnorm.Normalize(key)
		if normalizedKey == "" || normalizedCategory == "" {
			continue
		}
		if strings.Contains(normalizedCategory, normalizedKey) || strings.Contains(normalizedKey, normalizedCategory) {
			terms = append(terms, filters[key].Terms()...)
		}
	}
	return terms
}

// SearchProductsByNameSynonyms OR-combines every term over name, description,
// indications, category and subcategory.
func (e *Engine) SearchProductsByNameSynonyms(ctx context.Context, terms []string, species string, limit int) []Product {
	return e.quiet(TierNameSynonyms)(e.byNameSynonyms(ctx, terms, species, e.limitOr(limit)))
}

func (e *Engine) byNameSynonyms(ctx context.Context, terms []string, species string, limit int) ([]Product, error) {
	var clauses []TermClause
	for _, term := range terms {
		if strings.TrimSpace(term) == "" {
			continue
		}
		clauses = append(clauses, TermClause{
			Term:   term,
			Fields: []Field{FieldName, FieldDescription, FieldIndications, FieldCategory, FieldSubcategory},
		})
	}
	if len(clauses) == 0 {
		return []Product{}, nil
	}
	return e.store.FindByTerms(ctx, TermQuery{Clauses: clauses, Species: species, Limit: limit})
}

// BroadCategorySearch matches each significant query word against category,
// subcategory and species.
func (e *Engine) BroadCategorySearch(ctx context.Context, terms string, limit int) []Product {
	return e.quiet(TierBroad)(e.broad(ctx, terms, e.limitOr(limit)))
}

func (e *Engine) broad(ctx context.Context, terms string, limit int) ([]Product, error) {
	words := significantWords(terms)
	if len(words) == 0 {
		return []Product{}, nil
	}
	clauses := make([]TermClause, 0, len(words))
	for _, word := range words {
		clauses = append(clauses, TermClause{Term: word, Fields: []Field{FieldCategory, FieldSubcategory, FieldSpecies}})
	}
	return e.store.FindByTerms(ctx, TermQuery{Clauses: clauses, Limit: limit})
}

// FindAlternativeProducts takes up to two products from the related
// categories, without name filters, and tops up with the broad search.
func (e *Engine) FindAlternativeProducts(ctx context.Context, terms string, related []string, species string, limit int) []Product {
	if limit <= 0 {
		limit = e.altLimit
	}
	return e.quiet(TierAlternatives)(e.alternatives(ctx, terms, related, species, limit))
}

func (e *Engine) alternatives(ctx context.Context, terms string, related []string, species string, limit int) ([]Product, error) {
	found := make([]Product, 0, limit)
	if len(related) > 0 {
		products, err := e.byCategories(ctx, related, CategoryOptions{Species: species, Limit: min(relatedCategoryLimit, limit)})
		if err != nil {
			e.logger.Warn("related category search failed", zap.Strings("categories", related), zap.Error(err))
		}
		found = append(found, products...)
	}
	if len(found) < limit && strings.TrimSpace(terms) != "" {
		broad, err := e.broad(ctx, terms, limit)
		if err != nil && len(found) == 0 {
			return nil, err
		}
		seen := make(map[int64]struct{}, len(found))
		for _, p := range found {
			seen[p.ID] = struct{}{}
		}
		for _, p := range broad {
			if len(found) >= limit {
				break
			}
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			found = append(found, p)
		}
	}
	return applyLimit(found, limit), nil
}

func (e *Engine) GetProductsBySpecies(ctx context.Context, species string, limit int) []Product {
	return e.quiet(TierSpecies)(e.bySpecies(ctx, species, e.limitOr(limit)))
}

func (e *Engine) bySpecies(ctx context.Context, species string, limit int) ([]Product, error) {
	if strings.TrimSpace(species) == "" {
		return []Product{}, nil
	}
	return e.store.FindByTerms(ctx, TermQuery{
		Clauses: []TermClause{{Term: species, Fields: []Field{FieldSpecies}}},
		Limit:   limit,
	})
}

// quiet turns a failed strategy into an empty result.
func (e *Engine) quiet(name string) func([]Product, error) []Product {
	return func(products []Product, err error) []Product {
		if err != nil {
			e.logger.Warn("product search failed", zap.String("tier", name), zap.Error(err))
			return []Product{}
		}
		if products == nil {
			return []Product{}
		}
		return products
	}
}

func (e *Engine) limitOr(limit int) int {
	if limit > 0 {
		return limit
	}
	return e.limit
}

// significantWords returns the lower-cased words longer than two characters,
// skipping stop words.
func significantWords(terms string) []string {
	var words []string
	seen := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(terms)) {
		word = strings.Trim(word, "¿?¡!.,;:()\"'")
		if utf8.RuneCountInString(word) <= 2 {
			continue
		}
		if _, stop := spanishStopwords[textnorm.Normalize(word)]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		words = append(words, word)
	}
	return words
}

func usesCatalogStrategy(in intent.Result) bool {
	return in.Matched() && in.HasStrategy(
		intent.StrategyCategoriesFirst,
		intent.StrategyCategoryThenName,
		intent.StrategyNameWithSynonyms,
	)
}

func intentLabel(in intent.Result) string {
	if in.Matched() {
		return in.Intent
	}
	return "none"
}

func productIDs(products []Product) []int64 {
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}
