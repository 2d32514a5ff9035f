package validator

import (
	"testing"

	"mia/apps/backend/internal/catalog"
)

func cardProducts() []catalog.Product {
	return []catalog.Product{
		{ID: 1, Name: "Royal Canin Gastrointestinal Low Fat"},
		{ID: 2, Name: "Frontline Tri-Act Pipeta"},
		{ID: 3, Name: "Pipeta"},
		{ID: 4, Name: "Cosequin Condroprotector Perro"},
	}
}

func productIDs(products []catalog.Product) []int64 {
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFilterMentioned(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want []int64
	}{
		{name: "exact names", text: "La frontline tri-act pipeta protege 4 semanas.", want: []int64{2, 3}},
		{name: "word share", text: "El Royal Canin gastrointestinal es muy digestible.", want: []int64{1}},
		{name: "single significant word needs exact name", text: "Una pipetita bastará.", want: []int64{}},
		{name: "below share", text: "Royal es una marca.", want: []int64{}},
		{name: "empty text", text: "", want: []int64{}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := productIDs(FilterMentioned(tc.text, cardProducts()))
			if !equalIDs(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestIsClarifyingQuestion(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"¿Qué edad tiene tu perro?":              true,
		"Dime la raza, ¿vale?":                   true,
		"Cuéntame más?":                          true,
		"¿Vale?":                                 false,
		"Qué bien, te recomiendo este producto.": false,
	}
	for text, want := range cases {
		if got := IsClarifyingQuestion(text); got != want {
			t.Fatalf("IsClarifyingQuestion(%q): expected %v, got %v", text, want, got)
		}
	}
}

func TestSelectCards(t *testing.T) {
	t.Parallel()

	products := cardProducts()
	if got := productIDs(SelectCards("Te recomiendo Cosequin Condroprotector Perro.", products)); !equalIDs(got, []int64{4}) {
		t.Fatalf("expected mentioned product only, got %v", got)
	}
	if got := productIDs(SelectCards("¿Qué edad tiene tu perro?", products)); !equalIDs(got, []int64{1, 2, 3}) {
		t.Fatalf("expected first three products while asking, got %v", got)
	}
	if got := SelectCards("Gracias por escribirnos.", products); len(got) != 0 {
		t.Fatalf("expected no cards, got %v", productIDs(got))
	}
	if got := SelectCards("¿Qué edad tiene?", nil); len(got) != 0 {
		t.Fatalf("expected no cards without products, got %v", productIDs(got))
	}
}
