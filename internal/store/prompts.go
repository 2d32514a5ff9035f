package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mia/apps/backend/internal/chat"
)

func (s *Postgres) GetActiveSystemPrompt(ctx context.Context, name string) (string, error) {
	var content string
	err := s.pool.QueryRow(ctx, `
		SELECT content
		FROM system_prompts
		WHERE name = $1 AND is_active
		ORDER BY version DESC
		LIMIT 1`,
		name,
	).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %w", chat.ErrPromptNotFound, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get system prompt %q: %w", name, err)
	}
	return content, nil
}

// SavePrompt stores content as the next version of name and deactivates the
// previous ones in the same transaction.
func (s *Postgres) SavePrompt(ctx context.Context, name, content string) (chat.SystemPrompt, error) {
	saved := chat.SystemPrompt{Name: name, Content: content, Active: true}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// Serializes concurrent saves of the same prompt name.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, name); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE system_prompts SET is_active = FALSE WHERE name = $1`, name); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			INSERT INTO system_prompts (name, content, version, is_active)
			SELECT $1, $2, coalesce(max(version), 0) + 1, TRUE
			FROM system_prompts
			WHERE name = $1
			RETURNING version, created_at`,
			name, content,
		).Scan(&saved.Version, &saved.CreatedAt)
	})
	if err != nil {
		return chat.SystemPrompt{}, fmt.Errorf("save system prompt %q: %w", name, err)
	}
	return saved, nil
}
