package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"mia/apps/backend/internal/catalog"
)

const productColumns = `id, coalesce(external_id, ''), name, brand, category, subcategory, species,
	description, indications, active_ingredients, price::float8, product_url, add_to_cart_url,
	image_url, requires_prescription, is_active`

// productFields whitelists the columns a TermClause may reference.
var productFields = map[catalog.Field]string{
	catalog.FieldName:        "name",
	catalog.FieldCategory:    "category",
	catalog.FieldSubcategory: "subcategory",
	catalog.FieldSpecies:     "species",
	catalog.FieldDescription: "description",
	catalog.FieldIndications: "indications",
}

func scanProducts(rows pgx.Rows) ([]catalog.Product, error) {
	defer rows.Close()
	products := make([]catalog.Product, 0)
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(
			&p.ID, &p.ExternalID, &p.Name, &p.Brand, &p.Category, &p.Subcategory, &p.Species,
			&p.Description, &p.Indications, &p.ActiveIngredients, &p.Price, &p.ProductURL,
			&p.AddToCartURL, &p.ImageURL, &p.RequiresPrescription, &p.Active,
		); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Postgres) queryProducts(ctx context.Context, sql string, args []any) ([]catalog.Product, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanProducts(rows)
}

func (s *Postgres) FindByFilters(ctx context.Context, q catalog.FilterQuery) ([]catalog.Product, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return []catalog.Product{}, nil
	}
	b := &queryBuilder{}
	textParam := b.arg(text)
	tsquery := fmt.Sprintf("plainto_tsquery('spanish', unaccent(%s::text))", textParam)

	where := []string{
		"is_active",
		orJoin([]string{
			"search_vector @@ " + tsquery,
			fmt.Sprintf("similarity(name, %s::text) > %s", textParam, b.arg(catalog.NameSimilarityThreshold)),
			fmt.Sprintf("similarity(category, %s::text) > %s", textParam, b.arg(catalog.CategorySimilarityThreshold)),
			fmt.Sprintf("similarity(description, %s::text) > %s", textParam, b.arg(catalog.DescriptionSimilarityThreshold)),
		}),
	}
	if species := strings.TrimSpace(q.Species); species != "" {
		where = append(where, containsExpr("species", b.likeArg(species)))
	}
	if category := strings.TrimSpace(q.Category); category != "" {
		where = append(where, containsExpr("category", b.likeArg(category)))
	}
	if q.MaxPrice > 0 {
		where = append(where, "price <= "+b.arg(q.MaxPrice))
	}

	sql := `SELECT ` + productColumns + `
		FROM products
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ts_rank(search_vector, ` + tsquery + `) DESC,
		         similarity(name, ` + textParam + `::text) DESC,
		         lower(name) ASC, id ASC` + limitClause(b, q.Limit)
	products, err := s.queryProducts(ctx, sql, b.args)
	if err != nil {
		return nil, fmt.Errorf("find products by filters: %w", err)
	}
	return products, nil
}

func (s *Postgres) FindByTerms(ctx context.Context, q catalog.TermQuery) ([]catalog.Product, error) {
	b := &queryBuilder{}
	var clauses []string
	for _, clause := range q.Clauses {
		term := strings.TrimSpace(clause.Term)
		if term == "" {
			continue
		}
		param := b.likeArg(term)
		for _, field := range clause.Fields {
			column, ok := productFields[field]
			if !ok {
				return nil, fmt.Errorf("find products by terms: unknown field %q", field)
			}
			clauses = append(clauses, containsExpr(column, param))
		}
	}
	if len(clauses) == 0 {
		return []catalog.Product{}, nil
	}

	where := []string{"is_active", orJoin(clauses)}
	if species := strings.TrimSpace(q.Species); species != "" {
		where = append(where, containsExpr("species", b.likeArg(species)))
	}
	sql := `SELECT ` + productColumns + `
		FROM products
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY lower(name) ASC, id ASC` + limitClause(b, q.Limit)
	products, err := s.queryProducts(ctx, sql, b.args)
	if err != nil {
		return nil, fmt.Errorf("find products by terms: %w", err)
	}
	return products, nil
}

// FindByCategoryNames ranks every product by its best matching target and
// orders by that rank.
func (s *Postgres) FindByCategoryNames(ctx context.Context, q catalog.CategoryQuery) ([]catalog.Product, error) {
	b := &queryBuilder{}
	var matches, ranks []string
	for _, target := range q.Targets {
		name := strings.TrimSpace(target.Name)
		if name == "" {
			continue
		}
		param := b.likeArg(name)
		inSubcategory := containsExpr("subcategory", param)
		match := orJoin([]string{inSubcategory, containsExpr("category", param)})
		if len(target.NameTerms) > 0 {
			match += fmt.Sprintf(
				" AND EXISTS (SELECT 1 FROM unnest(%s::text[]) AS term WHERE %s)",
				b.arg(escapeLikeAll(target.NameTerms)),
				containsExpr("name", "term"),
			)
		}
		rank := fmt.Sprintf("%d", catalog.RankParent)
		if target.Specific {
			rank = fmt.Sprintf("CASE WHEN %s THEN %d ELSE %d END",
				inSubcategory, catalog.RankSpecificSubcategory, catalog.RankSpecificCategory)
		}
		matches = append(matches, "("+match+")")
		ranks = append(ranks, fmt.Sprintf("CASE WHEN (%s) THEN %s END", match, rank))
	}
	if len(matches) == 0 {
		return []catalog.Product{}, nil
	}

	where := []string{"is_active", orJoin(matches)}
	if species := strings.TrimSpace(q.Species); species != "" {
		where = append(where, containsExpr("species", b.likeArg(species)))
	}
	sql := `SELECT ` + productColumns + `
		FROM products
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY LEAST(` + strings.Join(ranks, ", ") + `) ASC, lower(name) ASC, id ASC` + limitClause(b, q.Limit)
	products, err := s.queryProducts(ctx, sql, b.args)
	if err != nil {
		return nil, fmt.Errorf("find products by category: %w", err)
	}
	return products, nil
}

func (s *Postgres) ListAllActiveNames(ctx context.Context) ([]catalog.NameRef, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, product_url FROM products WHERE is_active ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list product names: %w", err)
	}
	defer rows.Close()
	refs := make([]catalog.NameRef, 0)
	for rows.Next() {
		var ref catalog.NameRef
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.URL); err != nil {
			return nil, fmt.Errorf("scan product name: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// UpsertProduct inserts p, or updates the row with the same external id.
func (s *Postgres) UpsertProduct(ctx context.Context, p catalog.Product) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (
			external_id, name, brand, category, subcategory, species, description, indications,
			active_ingredients, price, product_url, add_to_cart_url, image_url,
			requires_prescription, is_active
		) VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (external_id) DO UPDATE SET
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			category = EXCLUDED.category,
			subcategory = EXCLUDED.subcategory,
			species = EXCLUDED.species,
			description = EXCLUDED.description,
			indications = EXCLUDED.indications,
			active_ingredients = EXCLUDED.active_ingredients,
			price = EXCLUDED.price,
			product_url = EXCLUDED.product_url,
			add_to_cart_url = EXCLUDED.add_to_cart_url,
			image_url = EXCLUDED.image_url,
			requires_prescription = EXCLUDED.requires_prescription,
			is_active = EXCLUDED.is_active
		RETURNING id`,
		p.ExternalID, p.Name, p.Brand, p.Category, p.Subcategory, p.Species, p.Description,
		p.Indications, p.ActiveIngredients, p.Price, p.ProductURL, p.AddToCartURL, p.ImageURL,
		p.RequiresPrescription, p.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert product %q: %w", p.Name, err)
	}
	return id, nil
}
