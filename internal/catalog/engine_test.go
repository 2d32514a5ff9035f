package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mia/apps/backend/internal/intent"
)

func fixtureProducts() []Product {
	return []Product{
		{
			ID: 1, Name: "Cosequin Condroprotector Perro", Brand: "Cosequin",
			Category: "SALUD", Subcategory: "CONDROPROTECTOR/ARTICULAR", Species: "Perro",
			Description: "Comprimidos masticables", Price: 32.9, ProductURL: "https://shop.test/cosequin", Active: true,
		},
		{
			ID: 2, Name: "Aloe Dermacalm Spray", Brand: "Aloe Vet",
			Category: "SALUD", Subcategory: "DERMATOLOGÍA", Species: "Perro, Gato",
			Description: "Calma la piel", Price: 12.5, ProductURL: "https://shop.test/aloe", Active: true,
		},
		{
			ID: 3, Name: "Advance Mini Adult Chicken & Rice", Brand: "Advance",
			Category: "ALIMENTACIÓN", Subcategory: "PIENSO SECO", Species: "Perro",
			Description: "Pienso completo", Price: 18, ProductURL: "https://shop.test/advance-mini", Active: true,
		},
		{
			ID: 4, Name: "Hill's Prescription Diet k/d Renal Care", Brand: "Hill's",
			Category: "DIETA VETERINARIA", Subcategory: "RENAL", Species: "Gato",
			Description: "Cuidado del riñón", Price: 45, ProductURL: "https://shop.test/hills-kd", RequiresPrescription: true, Active: true,
		},
		{
			ID: 5, Name: "Royal Canin Gastrointestinal", Brand: "Royal Canin",
			Category: "DIETA VETERINARIA", Subcategory: "GASTROINTESTINAL", Species: "Perro",
			Description: "Trastornos digestivos", Price: 39.95, ProductURL: "https://shop.test/rc-gi", Active: true,
		},
		{
			ID: 6, Name: "Frontline Tri-Act Pipeta", Brand: "Frontline",
			Category: "HIGIENE", Subcategory: "ANTIPARASITARIOS", Species: "Perro",
			Description: "Protege frente a pulgas", Price: 21, ProductURL: "https://shop.test/frontline", Active: true,
		},
		{
			ID: 7, Name: "Antiguo Condroprotector", Category: "SALUD", Subcategory: "CONDROPROTECTOR/ARTICULAR",
			Species: "Perro", Price: 10, Active: false,
		},
	}
}

func newTestEngine(store Store) *Engine {
	return NewEngine(store, intent.NewClassifier(intent.DefaultDictionary()), EngineConfig{}, nil)
}

func detect(message string) intent.Result {
	return intent.NewClassifier(intent.DefaultDictionary()).Detect(message)
}

func names(products []Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.Name)
	}
	return out
}

func TestRetrieveRanksSubcategoryAboveParentCategory(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(NewMemoryStore(fixtureProducts()...))
	message := "¿Tienes condroprotector?"
	in := detect(message)
	require.Equal(t, intent.JointsCondroprotector, in.Intent)

	res := engine.Retrieve(context.Background(), Query{Terms: message, Intent: in})
	require.Equal(t, TierCategories, res.Tier)
	assert.False(t, res.IsAlternative)
	require.Equal(t, []string{"Cosequin Condroprotector Perro", "Aloe Dermacalm Spray"}, names(res.Products))
}

func TestSearchProductsWithIntentNonEmptyWhenCategoryMatches(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(NewMemoryStore(fixtureProducts()...))
	for _, message := range []string{"condroprotector", "pipeta para pulgas", "dieta gastrointestinal"} {
		in := detect(message)
		require.True(t, in.Matched(), message)
		got := engine.SearchProductsWithIntent(context.Background(), message, in, Filters{})
		assert.NotEmpty(t, got, message)
	}
}

func TestCategoryFiltersOnlyApplyToTheirCategory(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(NewMemoryStore(fixtureProducts()...))
	in := detect("insuficiencia renal")
	require.Equal(t, intent.DietRenal, in.Intent)

	res := engine.Retrieve(context.Background(), Query{Terms: "insuficiencia renal", Intent: in})
	require.Equal(t, TierCategories, res.Tier)
	got := names(res.Products)
	require.NotEmpty(t, got)
	assert.Equal(t, "Hill's Prescription Diet k/d Renal Care", got[0])
	assert.NotContains(t, got, "Royal Canin Gastrointestinal")
	// SALUD carries no filter, so its products still qualify behind the specific match.
	assert.Contains(t, got, "Aloe Dermacalm Spray")
}

func TestFilterTermsFor(t *testing.T) {
	t.Parallel()

	filters := map[string]intent.CategoryFilter{
		"DIETA VETERINARIA": {MustMatchNameAny: []string{"renal"}, ShouldMatchNameAny: []string{"ignored"}},
	}
	assert.Equal(t, []string{"renal"}, filterTermsFor("DIETA VETERINARIA", filters))
	assert.Equal(t, []string{"renal"}, filterTermsFor("dieta", filters))
	assert.Nil(t, filterTermsFor("SALUD", filters))
	assert.Nil(t, filterTermsFor("SALUD", nil))
}

func TestRetrieveFallsBackToAlternatives(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(NewMemoryStore(fixtureProducts()...))
	in := detect("diabetes")
	require.Equal(t, intent.DietDiabetes, in.Intent)

	res := engine.Retrieve(context.Background(), Query{Terms: "diabetes", Intent: in})
	require.Equal(t, TierAlternatives, res.Tier)
	assert.True(t, res.IsAlternative)
	assert.LessOrEqual(t, len(res.Products), DefaultAlternativeLimit)
	for _, p := range res.Products {
		assert.Equal(t, "DIETA VETERINARIA", p.Category)
	}
}

func TestRetrieveFallsBackToBroadCategory(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(NewMemoryStore(fixtureProducts()...))
	res := engine.Retrieve(context.Background(), Query{Terms: "algo para mi gato", Intent: detect("algo para mi gato")})
	require.Equal(t, TierBroad, res.Tier)
	assert.True(t, res.IsAlternative)
	require.NotEmpty(t, res.Products)
	for _, p := range res.Products {
		assert.Contains(t, strings.ToLower(p.Species), "gato")
	}
}

func TestRetrieveFallsBackToSpecies(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(NewMemoryStore(fixtureProducts()...))
	res := engine.Retrieve(context.Background(), Query{Terms: "zz", Species: "perro", Intent: detect("zz")})
	require.Equal(t, TierSpecies, res.Tier)
	assert.True(t, res.IsAlternative)
	assert.NotEmpty(t, res.Products)

	none := engine.Retrieve(context.Background(), Query{Terms: "zz", Intent: detect("zz")})
	assert.Equal(t, TierNone, none.Tier)
	assert.NotNil(t, none.Products)
	assert.Empty(t, none.Products)
}

func TestRetrieveNeverReturnsInactiveProducts(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(NewMemoryStore(fixtureProducts()...))
	for _, terms := range []string{"condroprotector", "Antiguo Condroprotector", "perro"} {
		res := engine.Retrieve(context.Background(), Query{Terms: terms, Species: "perro", Intent: detect(terms)})
		assert.NotContains(t, names(res.Products), "Antiguo Condroprotector", terms)
	}
}

type recorder struct {
	tiers []string
}

func (r *recorder) ObserveRetrieval(tier string, _ bool) {
	r.tiers = append(r.tiers, tier)
}

func TestRetrieveReportsTier(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	engine := NewEngine(NewMemoryStore(fixtureProducts()...), intent.NewClassifier(intent.DefaultDictionary()), EngineConfig{Recorder: rec}, nil)
	engine.Retrieve(context.Background(), Query{Terms: "condroprotector", Intent: detect("condroprotector")})
	engine.Retrieve(context.Background(), Query{Terms: "zz", Intent: detect("zz")})
	assert.Equal(t, []string{TierCategories, TierNone}, rec.tiers)
}

func TestSearchProductsRanksFullTextMatches(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(NewMemoryStore(fixtureProducts()...))
	got := engine.SearchProducts(context.Background(), "Advance Mini Adult", Filters{})
	require.NotEmpty(t, got)
	assert.Equal(t, "Advance Mini Adult Chicken & Rice", got[0].Name)
}

func TestFindByFiltersAppliesPriceAndCategory(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(fixtureProducts()...)
	ctx := context.Background()
	capped, err := store.FindByFilters(ctx, FilterQuery{Text: "Advance Mini Adult", MaxPrice: 10})
	require.NoError(t, err)
	assert.NotContains(t, names(capped), "Advance Mini Adult Chicken & Rice")

	wrongCategory, err := store.FindByFilters(ctx, FilterQuery{Text: "Advance Mini Adult", Category: "higiene"})
	require.NoError(t, err)
	assert.NotContains(t, names(wrongCategory), "Advance Mini Adult Chicken & Rice")
}

func TestTrigramSimilarity(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, TrigramSimilarity("Pipeta", "pipeta"), 1e-9)
	assert.InDelta(t, 4.0/11.0, TrigramSimilarity("word", "two words"), 1e-9)
	assert.Zero(t, TrigramSimilarity("", "pipeta"))
	assert.Zero(t, TrigramSimilarity("abc", "xyz"))
}

func TestListAllActiveNames(t *testing.T) {
	t.Parallel()

	refs, err := NewMemoryStore(fixtureProducts()...).ListAllActiveNames(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 6)
	assert.Equal(t, "Advance Mini Adult Chicken & Rice", refs[0].Name)
	assert.Equal(t, "https://shop.test/advance-mini", refs[0].URL)
}

func TestMemoryStoreUpsertByExternalID(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	id := store.Upsert(Product{ExternalID: "8410650", Name: "Collar Scalibor", Price: 30, Active: true})
	again := store.Upsert(Product{ExternalID: "8410650", Name: "Collar Scalibor 65cm", Price: 31, Active: true})
	require.Equal(t, id, again)

	refs, err := store.ListAllActiveNames(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "Collar Scalibor 65cm", refs[0].Name)
}

func TestFormatProductsForContext(t *testing.T) {
	t.Parallel()

	assert.Empty(t, FormatProductsForContext(nil, false))

	long := strings.Repeat("a", 250)
	strict := FormatProductsForContext([]Product{
		{Name: "Hill's k/d", Brand: "Hill's", Price: 23.5, Species: "Gato", Description: long, RequiresPrescription: true},
		{Name: "Sin precio"},
	}, false)
	assert.True(t, strings.HasPrefix(strict, "PRODUCTOS RELEVANTES DEL CATÁLOGO:"))
	assert.Contains(t, strict, "1. NOMBRE EXACTO: \"Hill's k/d\"\n   Marca: Hill's\n   Precio: 23.5€\n   Especie: Gato")
	assert.Contains(t, strict, "Descripción: "+strings.Repeat("a", 200)+"\n")
	assert.NotContains(t, strict, strings.Repeat("a", 201))
	assert.Contains(t, strict, "⚠️ Requiere receta veterinaria")
	assert.True(t, strings.HasSuffix(strict, "\n\n2. NOMBRE EXACTO: \"Sin precio\""))

	alternative := FormatProductsForContext([]Product{{Name: "Aloe Dermacalm Spray"}}, true)
	assert.True(t, strings.HasPrefix(alternative, "PRODUCTOS ALTERNATIVOS DISPONIBLES:"))
}

func TestCards(t *testing.T) {
	t.Parallel()

	cards := Cards(fixtureProducts()[:1])
	require.Len(t, cards, 1)
	assert.Equal(t, Card{
		ID: 1, Name: "Cosequin Condroprotector Perro", Brand: "Cosequin", Price: 32.9, Species: "Perro",
		Category: "SALUD", ProductURL: "https://shop.test/cosequin",
	}, cards[0])
	assert.NotNil(t, Cards(nil))
}

type failingStore struct {
	Store
	failFilters bool
	failAll     bool
}

var errStoreDown = errors.New("store down")

func (s failingStore) FindByFilters(ctx context.Context, q FilterQuery) ([]Product, error) {
	if s.failFilters || s.failAll {
		return nil, errStoreDown
	}
	return s.Store.FindByFilters(ctx, q)
}

func (s failingStore) FindByTerms(ctx context.Context, q TermQuery) ([]Product, error) {
	if s.failAll {
		return nil, errStoreDown
	}
	return s.Store.FindByTerms(ctx, q)
}

func (s failingStore) FindByCategoryNames(ctx context.Context, q CategoryQuery) ([]Product, error) {
	if s.failAll {
		return nil, errStoreDown
	}
	return s.Store.FindByCategoryNames(ctx, q)
}

func TestGenericSearchFallsBackToSubstringMatch(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(failingStore{Store: NewMemoryStore(fixtureProducts()...), failFilters: true})
	got := engine.SearchProducts(context.Background(), "frontline", Filters{})
	require.Equal(t, []string{"Frontline Tri-Act Pipeta"}, names(got))
}

func TestStoreFailuresDegradeToEmpty(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(failingStore{Store: NewMemoryStore(fixtureProducts()...), failAll: true})
	ctx := context.Background()

	res := engine.Retrieve(ctx, Query{Terms: "condroprotector", Species: "perro", Intent: detect("condroprotector")})
	assert.Equal(t, TierNone, res.Tier)
	assert.Empty(t, res.Products)
	assert.NotNil(t, engine.SearchProducts(ctx, "pipeta", Filters{}))
	assert.NotNil(t, engine.BroadCategorySearch(ctx, "salud perro", 0))
	assert.NotNil(t, engine.GetProductsBySpecies(ctx, "gato", 0))
}

func TestFindAlternativeProductsTopsUpWithBroadSearch(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(NewMemoryStore(fixtureProducts()...))
	got := engine.FindAlternativeProducts(context.Background(), "higiene", []string{"DIETA VETERINARIA"}, "", 3)
	require.Len(t, got, 3)
	assert.Equal(t, "DIETA VETERINARIA", got[0].Category)
	assert.Equal(t, "DIETA VETERINARIA", got[1].Category)
	assert.Equal(t, "Frontline Tri-Act Pipeta", got[2].Name)
}

func TestSearchProductsByNameSynonyms(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(NewMemoryStore(fixtureProducts()...))
	got := engine.SearchProductsByNameSynonyms(context.Background(), []string{"", "pulgas", "renal"}, "", 0)
	assert.Equal(t, []string{"Frontline Tri-Act Pipeta", "Hill's Prescription Diet k/d Renal Care"}, names(got))

	onlyCats := engine.SearchProductsByNameSynonyms(context.Background(), []string{"pulgas", "renal"}, "gato", 0)
	assert.Equal(t, []string{"Hill's Prescription Diet k/d Renal Care"}, names(onlyCats))
}
