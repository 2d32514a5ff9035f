package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mia/apps/backend/internal/cache"
)

const (
	DefaultPromptName     = "main_assistant"
	DefaultPromptCacheTTL = 5 * time.Minute
)

// FallbackSystemPrompt is used whenever no active prompt can be read.
const FallbackSystemPrompt = "Eres MIA, el asistente veterinario de la tienda online MundoMascotix en España.\n" +
	"Tu rol es el de un asistente farmacéutico veterinario que orienta sobre productos, pero NO diagnosticas ni prescribes.\n" +
	"Escribe en español de España, con tono amable pero profesional.\n" +
	"Recomienda EXCLUSIVAMENTE productos del catálogo de la tienda. No inventes marcas ni productos que no estén en el catálogo.\n" +
	"Usa el nombre EXACTO del producto tal como aparece en el catálogo, sin resumirlo, sin cambiarlo y sin abreviarlo.\n" +
	"Sé breve y directo (máximo 3-4 líneas). Antes de recomendar, pregunta raza, edad y si tiene alguna patología.\n" +
	"Solo menciona síntomas o derivación al veterinario si el usuario ha hablado de síntomas."

var ErrPromptNotFound = errors.New("system prompt not found")

type SystemPrompt struct {
	Name      string    `json:"name" yaml:"name"`
	Content   string    `json:"content" yaml:"content"`
	Version   int       `json:"version" yaml:"version"`
	Active    bool      `json:"is_active" yaml:"is_active"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// PromptStore returns the content of the highest active version of a prompt.
type PromptStore interface {
	GetActiveSystemPrompt(ctx context.Context, name string) (string, error)
}

// PromptRepository is the admin side: saving makes a new active version.
type PromptRepository interface {
	PromptStore
	SavePrompt(ctx context.Context, name, content string) (SystemPrompt, error)
}

type PromptProvider struct {
	prompt *cache.CachedStore[string]
	logger *zap.Logger
}

func NewPromptProvider(store PromptStore, name string, ttl time.Duration, logger *zap.Logger) *PromptProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultPromptCacheTTL
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultPromptName
	}
	load := func(ctx context.Context) (string, error) {
		if store == nil {
			return "", ErrPromptNotFound
		}
		content, err := store.GetActiveSystemPrompt(ctx, name)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(content) == "" {
			return "", ErrPromptNotFound
		}
		return content, nil
	}
	return &PromptProvider{prompt: cache.NewCachedStore(ttl, load), logger: logger}
}

// SystemPrompt never fails; a missing or unreadable prompt yields the fallback.
func (p *PromptProvider) SystemPrompt(ctx context.Context) string {
	content, err := p.prompt.Get(ctx)
	if err != nil {
		p.logger.Warn("could not load system prompt, using default", zap.Error(err))
		return FallbackSystemPrompt
	}
	return content
}

func (p *PromptProvider) Invalidate() {
	p.prompt.Invalidate()
}

type MemoryPromptStore struct {
	mu      sync.RWMutex
	prompts []SystemPrompt
	now     func() time.Time
}

func NewMemoryPromptStore(prompts ...SystemPrompt) *MemoryPromptStore {
	return &MemoryPromptStore{prompts: append([]SystemPrompt(nil), prompts...), now: time.Now}
}

func (s *MemoryPromptStore) GetActiveSystemPrompt(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *SystemPrompt
	for i := range s.prompts {
		p := &s.prompts[i]
		if p.Name != name || !p.Active {
			continue
		}
		if best == nil || p.Version > best.Version {
			best = p
		}
	}
	if best == nil {
		return "", ErrPromptNotFound
	}
	return best.Content, nil
}

// SavePrompt stores content as the next version of name and deactivates the
// previous ones.
func (s *MemoryPromptStore) SavePrompt(ctx context.Context, name, content string) (SystemPrompt, error) {
	if err := ctx.Err(); err != nil {
		return SystemPrompt{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	version := 0
	for i := range s.prompts {
		if s.prompts[i].Name != name {
			continue
		}
		version = max(version, s.prompts[i].Version)
		s.prompts[i].Active = false
	}
	saved := SystemPrompt{Name: name, Content: content, Version: version + 1, Active: true, CreatedAt: s.now()}
	s.prompts = append(s.prompts, saved)
	return saved, nil
}
