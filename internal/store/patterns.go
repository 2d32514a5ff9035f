package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mia/apps/backend/internal/redflag"
)

const patternColumns = `id, pattern_type, keywords, severity, category, is_active`

func scanPattern(row pgx.Row) (redflag.Pattern, error) {
	var (
		p           redflag.Pattern
		patternType string
		severity    string
	)
	if err := row.Scan(&p.ID, &patternType, &p.Keywords, &severity, &p.Category, &p.Active); err != nil {
		return redflag.Pattern{}, err
	}
	p.Type = redflag.PatternType(patternType)
	p.Severity = redflag.Severity(severity)
	return p, nil
}

func (s *Postgres) listPatterns(ctx context.Context, sql string) ([]redflag.Pattern, error) {
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	patterns := make([]redflag.Pattern, 0)
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

func (s *Postgres) ListActiveRedFlagPatterns(ctx context.Context) ([]redflag.Pattern, error) {
	patterns, err := s.listPatterns(ctx, `SELECT `+patternColumns+` FROM red_flag_patterns WHERE is_active ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active red flag patterns: %w", err)
	}
	return patterns, nil
}

func (s *Postgres) ListPatterns(ctx context.Context) ([]redflag.Pattern, error) {
	patterns, err := s.listPatterns(ctx, `SELECT `+patternColumns+` FROM red_flag_patterns ORDER BY category ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list red flag patterns: %w", err)
	}
	return patterns, nil
}

func (s *Postgres) CreatePattern(ctx context.Context, p redflag.Pattern) (redflag.Pattern, error) {
	created, err := scanPattern(s.pool.QueryRow(ctx, `
		INSERT INTO red_flag_patterns (pattern_type, keywords, severity, category, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+patternColumns,
		string(p.Type), p.Keywords, string(p.Severity), p.Category, p.Active,
	))
	if err != nil {
		return redflag.Pattern{}, fmt.Errorf("create red flag pattern: %w", err)
	}
	return created, nil
}

func (s *Postgres) UpdatePattern(ctx context.Context, p redflag.Pattern) (redflag.Pattern, error) {
	updated, err := scanPattern(s.pool.QueryRow(ctx, `
		UPDATE red_flag_patterns
		SET pattern_type = $2, keywords = $3, severity = $4, category = $5, is_active = $6
		WHERE id = $1
		RETURNING `+patternColumns,
		p.ID, string(p.Type), p.Keywords, string(p.Severity), p.Category, p.Active,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return redflag.Pattern{}, fmt.Errorf("%w: %w", redflag.ErrPatternNotFound, ErrNotFound)
	}
	if err != nil {
		return redflag.Pattern{}, fmt.Errorf("update red flag pattern %d: %w", p.ID, err)
	}
	return updated, nil
}

func (s *Postgres) DeletePattern(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM red_flag_patterns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete red flag pattern %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %w", redflag.ErrPatternNotFound, ErrNotFound)
	}
	return nil
}
