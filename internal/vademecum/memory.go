package vademecum

import (
	"context"
	"strings"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	docs []Document
}

func NewMemoryStore(docs ...Document) *MemoryStore {
	return &MemoryStore{docs: append([]Document(nil), docs...)}
}

func (s *MemoryStore) Add(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
}

func (s *MemoryStore) SearchDocumentsByKeyword(ctx context.Context, keyword string, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(keyword)

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, 0)
	for _, doc := range s.docs {
		if !doc.Active || !strings.Contains(strings.ToLower(doc.Content), needle) {
			continue
		}
		out = append(out, doc)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
