package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"mia/apps/backend/internal/textnorm"
)

// spanishStopwords approximates the stop list of the "spanish" text search
// configuration for the words customers actually type.
var spanishStopwords = map[string]struct{}{
	"a": {}, "al": {}, "algo": {}, "con": {}, "de": {}, "del": {}, "el": {}, "en": {}, "es": {},
	"la": {}, "las": {}, "le": {}, "lo": {}, "los": {}, "me": {}, "mi": {}, "mis": {}, "o": {},
	"para": {}, "por": {}, "que": {}, "se": {}, "su": {}, "sus": {}, "tu": {}, "un": {}, "una": {},
	"unas": {}, "unos": {}, "y": {}, "muy": {}, "sin": {}, "como": {},
}

type indexedProduct struct {
	Product
	fields     map[Field]string
	searchText map[string]struct{}
	nameTokens map[string]struct{}
}

func indexProduct(p Product) indexedProduct {
	fields := map[Field]string{
		FieldName:        textnorm.Normalize(p.Name),
		FieldCategory:    textnorm.Normalize(p.Category),
		FieldSubcategory: textnorm.Normalize(p.Subcategory),
		FieldSpecies:     textnorm.Normalize(p.Species),
		FieldDescription: textnorm.Normalize(p.Description),
		FieldIndications: textnorm.Normalize(p.Indications),
	}
	searchText := make(map[string]struct{})
	for _, text := range []string{
		fields[FieldName], fields[FieldCategory], fields[FieldSubcategory], fields[FieldDescription],
		fields[FieldIndications], textnorm.Normalize(p.Brand), textnorm.Normalize(p.ActiveIngredients),
	} {
		for _, token := range textnorm.Tokens(text) {
			searchText[stem(token)] = struct{}{}
		}
	}
	nameTokens := make(map[string]struct{})
	for _, token := range textnorm.Tokens(fields[FieldName]) {
		nameTokens[stem(token)] = struct{}{}
	}
	return indexedProduct{Product: p, fields: fields, searchText: searchText, nameTokens: nameTokens}
}

// MemoryStore is a Store over an in-process product list. It backs the
// in-memory mode and the tests.
type MemoryStore struct {
	mu       sync.RWMutex
	products []indexedProduct
	nextID   int64
}

func NewMemoryStore(products ...Product) *MemoryStore {
	s := &MemoryStore{nextID: 1}
	for _, p := range products {
		s.Upsert(p)
	}
	return s
}

// Upsert inserts or replaces a product keyed by ID, or by ExternalID when the
// ID is zero. It returns the stored ID.
func (s *MemoryStore) Upsert(p Product) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.products {
		existing := s.products[i].Product
		if (p.ID != 0 && existing.ID == p.ID) || (p.ID == 0 && p.ExternalID != "" && existing.ExternalID == p.ExternalID) {
			p.ID = existing.ID
			s.products[i] = indexProduct(p)
			return p.ID
		}
	}
	if p.ID == 0 {
		p.ID = s.nextID
	}
	if p.ID >= s.nextID {
		s.nextID = p.ID + 1
	}
	s.products = append(s.products, indexProduct(p))
	return p.ID
}

func (s *MemoryStore) active() []indexedProduct {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]indexedProduct, 0, len(s.products))
	for _, p := range s.products {
		if p.Active {
			out = append(out, p)
		}
	}
	return out
}

func (s *MemoryStore) FindByFilters(ctx context.Context, q FilterQuery) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return []Product{}, nil
	}
	queryTerms := textSearchTerms(text)
	category := textnorm.Normalize(q.Category)

	type scored struct {
		product   Product
		relevance float64
		nameSim   float64
	}
	var hits []scored
	for _, p := range s.active() {
		if !matchesSpecies(p, q.Species) {
			continue
		}
		if category != "" && !strings.Contains(p.fields[FieldCategory], category) {
			continue
		}
		if q.MaxPrice > 0 && p.Price > q.MaxPrice {
			continue
		}

		relevance := fullTextRank(p, queryTerms)
		nameSim := TrigramSimilarity(p.Name, text)
		if relevance == 0 &&
			nameSim <= NameSimilarityThreshold &&
			TrigramSimilarity(p.Category, text) <= CategorySimilarityThreshold &&
			TrigramSimilarity(p.Description, text) <= DescriptionSimilarityThreshold {
			continue
		}
		hits = append(hits, scored{product: p.Product, relevance: relevance, nameSim: nameSim})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].relevance != hits[j].relevance {
			return hits[i].relevance > hits[j].relevance
		}
		if hits[i].nameSim != hits[j].nameSim {
			return hits[i].nameSim > hits[j].nameSim
		}
		return lessByName(hits[i].product, hits[j].product)
	})
	products := make([]Product, 0, len(hits))
	for _, h := range hits {
		products = append(products, h.product)
	}
	return applyLimit(products, q.Limit), nil
}

func (s *MemoryStore) FindByTerms(ctx context.Context, q TermQuery) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	products := make([]Product, 0)
	for _, p := range s.active() {
		if !matchesSpecies(p, q.Species) {
			continue
		}
		for _, clause := range q.Clauses {
			if p.matchesClause(clause) {
				products = append(products, p.Product)
				break
			}
		}
	}
	sort.SliceStable(products, func(i, j int) bool { return lessByName(products[i], products[j]) })
	return applyLimit(products, q.Limit), nil
}

func (p indexedProduct) matchesClause(clause TermClause) bool {
	for _, field := range clause.Fields {
		if textnorm.ContainsKeyword(p.fields[field], clause.Term) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) FindByCategoryNames(ctx context.Context, q CategoryQuery) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type ranked struct {
		product Product
		rank    int
	}
	var hits []ranked
	for _, p := range s.active() {
		if !matchesSpecies(p, q.Species) {
			continue
		}
		best := -1
		for _, target := range q.Targets {
			rank, ok := p.categoryRank(target)
			if ok && (best < 0 || rank < best) {
				best = rank
			}
		}
		if best >= 0 {
			hits = append(hits, ranked{product: p.Product, rank: best})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank < hits[j].rank
		}
		return lessByName(hits[i].product, hits[j].product)
	})
	products := make([]Product, 0, len(hits))
	for _, h := range hits {
		products = append(products, h.product)
	}
	return applyLimit(products, q.Limit), nil
}

func (p indexedProduct) categoryRank(target CategoryTarget) (int, bool) {
	inSubcategory := textnorm.ContainsKeyword(p.fields[FieldSubcategory], target.Name)
	inCategory := textnorm.ContainsKeyword(p.fields[FieldCategory], target.Name)
	if !inSubcategory && !inCategory {
		return 0, false
	}
	if len(target.NameTerms) > 0 && !textnorm.ContainsAnyKeyword(p.fields[FieldName], target.NameTerms) {
		return 0, false
	}
	switch {
	case target.Specific && inSubcategory:
		return RankSpecificSubcategory, true
	case target.Specific:
		return RankSpecificCategory, true
	default:
		return RankParent, true
	}
}

func (s *MemoryStore) ListAllActiveNames(ctx context.Context) ([]NameRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	active := s.active()
	refs := make([]NameRef, 0, len(active))
	for _, p := range active {
		refs = append(refs, NameRef{ID: p.ID, Name: p.Name, URL: p.ProductURL})
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

func matchesSpecies(p indexedProduct, species string) bool {
	if strings.TrimSpace(species) == "" {
		return true
	}
	return textnorm.ContainsKeyword(p.fields[FieldSpecies], species)
}

// textSearchTerms mimics plainto_tsquery: stop words dropped, remaining
// words stemmed, all of them required.
func textSearchTerms(text string) []string {
	var terms []string
	for _, token := range textnorm.Tokens(textnorm.Normalize(text)) {
		if _, stop := spanishStopwords[token]; stop {
			continue
		}
		terms = append(terms, stem(token))
	}
	return terms
}

// fullTextRank is zero unless every term occurs in the product text. Terms in
// the name weigh double.
func fullTextRank(p indexedProduct, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	rank := 0.0
	for _, term := range terms {
		if _, ok := p.searchText[term]; !ok {
			return 0
		}
		rank++
		if _, ok := p.nameTokens[term]; ok {
			rank++
		}
	}
	return rank / float64(2*len(terms))
}

// stem strips Spanish plural endings so "pipetas" meets "pipeta".
func stem(token string) string {
	switch {
	case len(token) > 4 && strings.HasSuffix(token, "es"):
		return strings.TrimSuffix(token, "es")
	case len(token) > 3 && strings.HasSuffix(token, "s"):
		return strings.TrimSuffix(token, "s")
	default:
		return token
	}
}

func lessByName(a, b Product) bool {
	la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if la != lb {
		return la < lb
	}
	return a.ID < b.ID
}

func applyLimit(products []Product, limit int) []Product {
	if limit > 0 && len(products) > limit {
		return products[:limit]
	}
	return products
}
