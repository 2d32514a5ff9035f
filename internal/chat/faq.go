package chat

import (
	"context"
	"sort"
	"strings"
	"sync"

	"mia/apps/backend/internal/textnorm"
)

const defaultFAQLimit = 3

type FAQ struct {
	ID       int64    `json:"id" yaml:"id"`
	Category string   `json:"category" yaml:"category"`
	Question string   `json:"question" yaml:"question"`
	Answer   string   `json:"answer" yaml:"answer"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Priority int      `json:"priority" yaml:"priority"`
	Active   bool     `json:"is_active" yaml:"is_active"`
}

// FAQStore finds active FAQs relevant to a message, highest priority first.
type FAQStore interface {
	SearchFAQs(ctx context.Context, message string, limit int) ([]FAQ, error)
}

// MatchFAQ reports whether an FAQ applies to an already normalized message:
// one of its keywords appears in it, or the whole question does.
func MatchFAQ(normalizedMessage string, faq FAQ) bool {
	if textnorm.ContainsAnyKeyword(normalizedMessage, faq.Keywords) {
		return true
	}
	question := textnorm.Normalize(faq.Question)
	return question != "" && strings.Contains(normalizedMessage, question)
}

// RankFAQs keeps the matching FAQs ordered by priority, then id.
func RankFAQs(message string, faqs []FAQ, limit int) []FAQ {
	normalized := textnorm.Normalize(message)
	out := make([]FAQ, 0)
	for _, faq := range faqs {
		if faq.Active && MatchFAQ(normalized, faq) {
			out = append(out, faq)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func FormatFAQsForContext(faqs []FAQ) string {
	parts := make([]string, 0, len(faqs))
	for _, faq := range faqs {
		parts = append(parts, "P: "+faq.Question+"\nR: "+faq.Answer)
	}
	return strings.Join(parts, "\n\n")
}

type MemoryFAQStore struct {
	mu   sync.RWMutex
	faqs []FAQ
}

func NewMemoryFAQStore(faqs ...FAQ) *MemoryFAQStore {
	return &MemoryFAQStore{faqs: append([]FAQ(nil), faqs...)}
}

func (s *MemoryFAQStore) SearchFAQs(ctx context.Context, message string, limit int) ([]FAQ, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return RankFAQs(message, s.faqs, limit), nil
}
