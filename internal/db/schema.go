package db

import (
	"context"
	"fmt"
	"strings"
)

type column struct {
	table  string
	column string
}

var requiredColumns = []column{
	{table: "products", column: "search_vector"},
	{table: "products", column: "subcategory"},
	{table: "products", column: "requires_prescription"},
	{table: "conversations", column: "product_context"},
	{table: "conversations", column: "has_emergency"},
	{table: "messages", column: "red_flags_detected"},
	{table: "messages", column: "products_recommended"},
	{table: "red_flag_patterns", column: "pattern_type"},
	{table: "system_prompts", column: "version"},
	{table: "vademecums", column: "content_text"},
	{table: "faqs", column: "keywords"},
	{table: "vet_clinics", column: "postal_code"},
}

// ValidateRuntimeSchema fails fast when the database is behind the code.
func ValidateRuntimeSchema(ctx context.Context, q Querier) error {
	if q == nil {
		return fmt.Errorf("database pool is nil")
	}

	for _, item := range requiredColumns {
		ok, err := columnExists(ctx, q, item.table, item.column)
		if err != nil {
			return fmt.Errorf(
				"failed checking schema for %s.%s: %w",
				item.table,
				item.column,
				err,
			)
		}
		if !ok {
			return fmt.Errorf(
				"required column %s.%s is missing; run miactl migrate",
				item.table,
				item.column,
			)
		}
	}

	return nil
}

func columnExists(ctx context.Context, q Querier, tableName, columnName string) (bool, error) {
	table := strings.TrimSpace(tableName)
	column := strings.TrimSpace(columnName)
	if table == "" || column == "" {
		return false, fmt.Errorf("table/column must not be empty")
	}
	var exists bool
	err := q.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM information_schema.columns
		   WHERE table_schema = current_schema()
		     AND lower(table_name) = lower($1)
		     AND lower(column_name) = lower($2)
		 )`,
		table,
		column,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
