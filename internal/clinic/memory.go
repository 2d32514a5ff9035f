package clinic

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type MemoryStore struct {
	mu      sync.RWMutex
	clinics []Clinic
}

func NewMemoryStore(clinics ...Clinic) *MemoryStore {
	return &MemoryStore{clinics: append([]Clinic(nil), clinics...)}
}

func (s *MemoryStore) Add(c Clinic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clinics = append(s.clinics, c)
}

func (s *MemoryStore) FindByPostalCode(ctx context.Context, postalCode string) ([]Clinic, error) {
	return s.find(ctx, func(c Clinic) bool { return c.PostalCode == postalCode }, 0)
}

func (s *MemoryStore) FindByPostalPrefix(ctx context.Context, prefix string, limit int) ([]Clinic, error) {
	return s.find(ctx, func(c Clinic) bool { return strings.HasPrefix(c.PostalCode, prefix) }, limit)
}

func (s *MemoryStore) find(ctx context.Context, match func(Clinic) bool, limit int) ([]Clinic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Clinic, 0)
	for _, c := range s.clinics {
		if c.Active && match(c) {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsEmergency != out[j].IsEmergency {
			return out[i].IsEmergency
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
