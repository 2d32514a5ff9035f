package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"mia/apps/backend/internal/llm"
)

func TestExtractSpecies(t *testing.T) {
	t.Parallel()

	history := []llm.Turn{
		{Role: llm.RoleUser, Content: "Tengo una gata de 3 años"},
		{Role: llm.RoleAssistant, Content: "¿Y tu perro también necesita algo?"},
	}
	cases := []struct {
		name    string
		history []llm.Turn
		message string
		want    string
	}{
		{name: "message wins", history: history, message: "Para mi perro", want: SpeciesDog},
		{name: "from user history", history: history, message: "¿Qué pienso le va bien?", want: SpeciesCat},
		{name: "assistant turns ignored", history: history[1:], message: "¿Qué pienso le va bien?", want: ""},
		{name: "whole tokens only", message: "Está muy cansado", want: ""},
		{name: "felino", message: "Arena para felinos y felino senior", want: SpeciesCat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractSpecies(tc.history, tc.message); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestExtractSearchTerms(t *testing.T) {
	t.Parallel()

	history := []llm.Turn{
		{Role: llm.RoleUser, Content: "Busco pienso para mi perro"},
		{Role: llm.RoleAssistant, Content: "¿Qué edad tiene?"},
	}
	cases := []struct {
		name    string
		history []llm.Turn
		message string
		want    string
	}{
		{name: "no hints", message: "¿Tienes condroprotector?", want: "¿Tienes condroprotector?"},
		{name: "history hints appended", history: history, message: "Tiene 4 años", want: "Tiene 4 años pienso perro adulto"},
		{name: "hints already present", message: "Pienso para perro cachorro", want: "Pienso para perro cachorro"},
		{name: "senior cat", message: "Comida para gato mayor", want: "Comida para gato mayor senior"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractSearchTerms(tc.history, tc.message); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRequestValidate(t *testing.T) {
	t.Parallel()

	if err := (Request{SessionID: "s", Message: "hola"}).Validate(0); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	err := (Request{SessionID: "s", Message: strings.Repeat("ñ", 11)}).Validate(10)
	if !errors.Is(err, ErrMessageTooLong) || !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected too long error, got %v", err)
	}
	if got := ValidationMessage(err); got != "El mensaje es demasiado largo (máximo 10 caracteres)" {
		t.Fatalf("unexpected validation message %q", got)
	}
	if got := ValidationMessage(ErrMissingSession); got != "sessionId es obligatorio" {
		t.Fatalf("unexpected validation message %q", got)
	}
	if err := (Request{SessionID: "s", Message: strings.Repeat("ñ", 10)}).Validate(10); err != nil {
		t.Fatalf("length is counted in characters, got %v", err)
	}
}

func TestProductContextPriceAcceptsNumbersAndStrings(t *testing.T) {
	t.Parallel()

	var numeric, text ProductContext
	if err := json.Unmarshal([]byte(`{"name":"Seraquin","price":24.5}`), &numeric); err != nil {
		t.Fatalf("unmarshal numeric price: %v", err)
	}
	if err := json.Unmarshal([]byte(`{"name":"Seraquin","price":"24,50"}`), &text); err != nil {
		t.Fatalf("unmarshal string price: %v", err)
	}
	if numeric.Price != "24.5" || text.Price != "24,50" {
		t.Fatalf("unexpected prices %q and %q", numeric.Price, text.Price)
	}
}

func TestPromptProviderFallsBackAndPicksLatestVersion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryPromptStore()
	provider := NewPromptProvider(store, DefaultPromptName, 0, nil)
	if got := provider.SystemPrompt(ctx); got != FallbackSystemPrompt {
		t.Fatalf("expected fallback prompt, got %q", got)
	}

	if _, err := store.SavePrompt(ctx, DefaultPromptName, "Versión uno"); err != nil {
		t.Fatalf("save prompt: %v", err)
	}
	saved, err := store.SavePrompt(ctx, DefaultPromptName, "Versión dos")
	if err != nil {
		t.Fatalf("save prompt: %v", err)
	}
	if saved.Version != 2 {
		t.Fatalf("expected version 2, got %d", saved.Version)
	}
	if got := provider.SystemPrompt(ctx); got != "Versión dos" {
		t.Fatalf("expected latest version, got %q", got)
	}

	if _, err := store.SavePrompt(ctx, DefaultPromptName, "Versión tres"); err != nil {
		t.Fatalf("save prompt: %v", err)
	}
	if got := provider.SystemPrompt(ctx); got != "Versión dos" {
		t.Fatalf("expected cached version until invalidated, got %q", got)
	}
	provider.Invalidate()
	if got := provider.SystemPrompt(ctx); got != "Versión tres" {
		t.Fatalf("expected reloaded version, got %q", got)
	}
}

func TestRankFAQs(t *testing.T) {
	t.Parallel()

	faqs := []FAQ{
		{ID: 1, Question: "¿Hacéis envíos a Canarias?", Answer: "Sí.", Keywords: []string{"canarias"}, Priority: 1, Active: true},
		{ID: 2, Question: "¿Cuánto tarda el envío?", Answer: "24-48h.", Keywords: []string{"envio"}, Priority: 5, Active: true},
		{ID: 3, Question: "¿Puedo devolver un pedido?", Answer: "30 días.", Keywords: []string{"devolucion"}, Priority: 9, Active: false},
	}
	got := RankFAQs("¿El envío a Canarias cuánto tarda?", faqs, 0)
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 1 {
		t.Fatalf("unexpected ranking: %+v", got)
	}
	if got := RankFAQs("Hola", faqs, 0); len(got) != 0 {
		t.Fatalf("expected no faqs, got %+v", got)
	}
	if formatted := FormatFAQsForContext(got[:0]); formatted != "" {
		t.Fatalf("expected empty formatting, got %q", formatted)
	}
}

func TestLastTurns(t *testing.T) {
	t.Parallel()

	history := make([]llm.Turn, 12)
	for i := range history {
		history[i] = llm.Turn{Role: llm.RoleUser, Content: strings.Repeat("x", i+1)}
	}
	got := LastTurns(history, 0)
	if len(got) != DefaultHistoryTurns || got[0].Content != "xxx" {
		t.Fatalf("unexpected window: %d turns starting with %q", len(got), got[0].Content)
	}
}
