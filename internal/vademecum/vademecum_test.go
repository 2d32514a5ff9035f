package vademecum

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitIntoChunksKeepsSentencesWhole(t *testing.T) {
	t.Parallel()

	text := "Primera frase. Segunda frase! ¿Tercera frase? Cuarta."
	got := SplitIntoChunks(text, 30)
	want := []string{"Primera frase. Segunda frase!", "¿Tercera frase? Cuarta."}
	if len(got) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSplitIntoChunksRespectsLimit(t *testing.T) {
	t.Parallel()

	sentence := strings.Repeat("ñ", 40) + "."
	text := strings.TrimSpace(strings.Repeat(sentence+" ", 100))
	for _, chunk := range SplitIntoChunks(text, SearchChunkSize) {
		if n := utf8.RuneCountInString(chunk); n > SearchChunkSize {
			t.Fatalf("chunk of %d runes exceeds limit", n)
		}
	}

	long := strings.Repeat("a", 50)
	if got := SplitIntoChunks(long, 10); len(got) != 1 || got[0] != long {
		t.Fatalf("expected oversized sentence as its own chunk, got %q", got)
	}
	if got := SplitIntoChunks("   ", 10); len(got) != 0 {
		t.Fatalf("expected no chunks for blank text, got %q", got)
	}
}

func TestSearcherReturnsFirstMatchingChunk(t *testing.T) {
	t.Parallel()

	filler := strings.Repeat("Texto de relleno sin interés. ", 80)
	store := NewMemoryStore(
		Document{ID: 1, Name: "Ficha Seraquin.pdf", Content: filler + "La glucosamina protege el cartílago. " + filler, Active: true},
		Document{ID: 2, Name: "Antigua.pdf", Content: "Glucosamina al 10%.", Active: false},
		Document{ID: 3, Name: "Otra.pdf", Content: "Sin relación.", Active: true},
	)
	got := NewSearcher(store, 0, nil).Search(context.Background(), "Glucosamina")
	if len(got) != 1 {
		t.Fatalf("expected 1 excerpt, got %d", len(got))
	}
	if got[0].DocumentID != 1 || !strings.Contains(got[0].Chunk, "La glucosamina protege el cartílago.") {
		t.Fatalf("unexpected excerpt: %+v", got[0])
	}
	if n := utf8.RuneCountInString(got[0].Chunk); n > SearchChunkSize {
		t.Fatalf("excerpt of %d runes exceeds chunk size", n)
	}
	if formatted := FormatForContext(got); !strings.HasPrefix(formatted, "[Ficha Seraquin.pdf]: ") {
		t.Fatalf("unexpected formatting: %q", formatted)
	}
}

type failingStore struct{}

func (failingStore) SearchDocumentsByKeyword(context.Context, string, int) ([]Document, error) {
	return nil, errors.New("timeout")
}

func TestSearcherDegradesToNoExcerpts(t *testing.T) {
	t.Parallel()

	got := NewSearcher(failingStore{}, 3, nil).Search(context.Background(), "glucosamina")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty excerpts, got %+v", got)
	}
	if got := NewSearcher(NewMemoryStore(), 3, nil).Search(context.Background(), "  "); len(got) != 0 {
		t.Fatalf("expected no excerpts for blank terms")
	}
}
