package catalog

import "context"

type Field string

const (
	FieldName        Field = "name"
	FieldCategory    Field = "category"
	FieldSubcategory Field = "subcategory"
	FieldSpecies     Field = "species"
	FieldDescription Field = "description"
	FieldIndications Field = "indications"
)

// FilterQuery drives the generic full-text / trigram search.
type FilterQuery struct {
	Text     string
	Species  string
	Category string
	MaxPrice float64
	Limit    int
}

// TermClause matches when Term is a substring of any of Fields.
type TermClause struct {
	Term   string
	Fields []Field
}

// TermQuery OR-combines its clauses and returns matches ordered by name.
type TermQuery struct {
	Clauses []TermClause
	Species string
	Limit   int
}

// CategoryTarget is one candidate category name. NameTerms, when set, is a
// name filter that only applies to products matched through this target.
type CategoryTarget struct {
	Name      string
	Specific  bool
	NameTerms []string
}

// CategoryQuery matches products whose category or subcategory contains any
// target name. Ordering: subcategory hit on a specific target, then category
// hit on a specific target, then everything else; name ascending within a rank.
type CategoryQuery struct {
	Targets []CategoryTarget
	Species string
	Limit   int
}

// Store is the read side of the catalog. Implementations only ever return
// active products.
type Store interface {
	FindByFilters(ctx context.Context, q FilterQuery) ([]Product, error)
	FindByTerms(ctx context.Context, q TermQuery) ([]Product, error)
	FindByCategoryNames(ctx context.Context, q CategoryQuery) ([]Product, error)
	ListAllActiveNames(ctx context.Context) ([]NameRef, error)
}

// Category match ranks used by CategoryQuery ordering.
const (
	RankSpecificSubcategory = iota
	RankSpecificCategory
	RankParent
)

// Trigram similarity thresholds of the generic search.
const (
	NameSimilarityThreshold        = 0.15
	CategorySimilarityThreshold    = 0.2
	DescriptionSimilarityThreshold = 0.15
)
