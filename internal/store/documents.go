package store

import (
	"context"
	"fmt"
	"strings"

	"mia/apps/backend/internal/vademecum"
)

func (s *Postgres) SearchDocumentsByKeyword(ctx context.Context, keyword string, limit int) ([]vademecum.Document, error) {
	b := &queryBuilder{}
	sql := `SELECT id, original_name, content_text, is_active
		FROM vademecums
		WHERE is_active AND content_text ILIKE '%' || ` + b.arg(escapeLike(keyword)) + `::text || '%'
		ORDER BY id ASC` + limitClause(b, limit)
	rows, err := s.pool.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, fmt.Errorf("search vademecums: %w", err)
	}
	defer rows.Close()
	docs := make([]vademecum.Document, 0)
	for rows.Next() {
		var doc vademecum.Document
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Content, &doc.Active); err != nil {
			return nil, fmt.Errorf("scan vademecum: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Postgres) SaveDocument(ctx context.Context, doc vademecum.Document) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO vademecums (original_name, content_text, is_active)
		VALUES ($1, $2, $3)
		RETURNING id`,
		doc.Name, doc.Content, doc.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save vademecum %q: %w", doc.Name, err)
	}
	return id, nil
}

// escapeLike makes the keyword match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLikeAll(terms []string) []string {
	out := make([]string, len(terms))
	for i, term := range terms {
		out[i] = escapeLike(term)
	}
	return out
}
