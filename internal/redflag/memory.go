package redflag

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrPatternNotFound = errors.New("red flag pattern not found")

// Repository is the admin side of pattern storage.
type Repository interface {
	PatternStore
	ListPatterns(ctx context.Context) ([]Pattern, error)
	CreatePattern(ctx context.Context, p Pattern) (Pattern, error)
	UpdatePattern(ctx context.Context, p Pattern) (Pattern, error)
	DeletePattern(ctx context.Context, id int64) error
}

// MemoryStore keeps patterns in process.
type MemoryStore struct {
	mu       sync.RWMutex
	patterns map[int64]Pattern
	nextID   int64
}

func NewMemoryStore(patterns ...Pattern) *MemoryStore {
	store := &MemoryStore{patterns: make(map[int64]Pattern)}
	for _, p := range patterns {
		_, _ = store.CreatePattern(context.Background(), p)
	}
	return store
}

func (s *MemoryStore) ListActiveRedFlagPatterns(ctx context.Context) ([]Pattern, error) {
	all, err := s.ListPatterns(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, p := range all {
		if p.Active {
			active = append(active, p)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active, nil
}

func (s *MemoryStore) ListPatterns(context.Context) ([]Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		p.Keywords = append([]string(nil), p.Keywords...)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) CreatePattern(_ context.Context, p Pattern) (Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	if p.ID == 0 || p.ID < s.nextID {
		p.ID = s.nextID
	} else {
		s.nextID = p.ID
	}
	p.Keywords = append([]string(nil), p.Keywords...)
	s.patterns[p.ID] = p
	return p, nil
}

func (s *MemoryStore) UpdatePattern(_ context.Context, p Pattern) (Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patterns[p.ID]; !ok {
		return Pattern{}, ErrPatternNotFound
	}
	p.Keywords = append([]string(nil), p.Keywords...)
	s.patterns[p.ID] = p
	return p, nil
}

func (s *MemoryStore) DeletePattern(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patterns[id]; !ok {
		return ErrPatternNotFound
	}
	delete(s.patterns, id)
	return nil
}
