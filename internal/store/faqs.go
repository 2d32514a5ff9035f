package store

import (
	"context"
	"fmt"

	"mia/apps/backend/internal/chat"
)

// SearchFAQs ranks the active FAQs in process; the table is small and the
// matching rules live in chat.RankFAQs.
func (s *Postgres) SearchFAQs(ctx context.Context, message string, limit int) ([]chat.FAQ, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, category, question, answer, keywords, priority, is_active
		FROM faqs
		WHERE is_active
		ORDER BY priority DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list faqs: %w", err)
	}
	defer rows.Close()
	faqs := make([]chat.FAQ, 0)
	for rows.Next() {
		var faq chat.FAQ
		if err := rows.Scan(&faq.ID, &faq.Category, &faq.Question, &faq.Answer, &faq.Keywords, &faq.Priority, &faq.Active); err != nil {
			return nil, fmt.Errorf("scan faq: %w", err)
		}
		faqs = append(faqs, faq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list faqs: %w", err)
	}
	return chat.RankFAQs(message, faqs, limit), nil
}

func (s *Postgres) SaveFAQ(ctx context.Context, faq chat.FAQ) (int64, error) {
	keywords := faq.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO faqs (category, question, answer, keywords, priority, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		faq.Category, faq.Question, faq.Answer, keywords, faq.Priority, faq.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save faq: %w", err)
	}
	return id, nil
}
