// Package vademecum serves excerpts of technical product documents to the
// generator context.
package vademecum

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	DefaultChunkSize = 2000
	SearchChunkSize  = 1500
	DefaultLimit     = 3
)

type Document struct {
	ID      int64  `json:"id" yaml:"id"`
	Name    string `json:"original_name" yaml:"name"`
	Content string `json:"content_text" yaml:"content"`
	Active  bool   `json:"is_active" yaml:"is_active"`
}

type Excerpt struct {
	DocumentID int64
	Name       string
	Chunk      string
}

// Store finds active documents whose text contains the keyword,
// case-insensitively.
type Store interface {
	SearchDocumentsByKeyword(ctx context.Context, keyword string, limit int) ([]Document, error)
}

type Searcher struct {
	store  Store
	limit  int
	logger *zap.Logger
}

func NewSearcher(store Store, limit int, logger *zap.Logger) *Searcher {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{store: store, limit: limit, logger: logger}
}

// Search returns, per matching document, the first chunk containing the
// terms. Store failures yield no excerpts.
func (s *Searcher) Search(ctx context.Context, terms string) []Excerpt {
	terms = strings.TrimSpace(terms)
	excerpts := make([]Excerpt, 0)
	if terms == "" {
		return excerpts
	}
	docs, err := s.store.SearchDocumentsByKeyword(ctx, terms, s.limit)
	if err != nil {
		s.logger.Warn("vademecum search failed", zap.Error(err))
		return excerpts
	}

	needle := strings.ToLower(terms)
	for _, doc := range docs {
		for _, chunk := range SplitIntoChunks(doc.Content, SearchChunkSize) {
			if strings.Contains(strings.ToLower(chunk), needle) {
				excerpts = append(excerpts, Excerpt{DocumentID: doc.ID, Name: doc.Name, Chunk: chunk})
				break
			}
		}
	}
	return excerpts
}

// FormatForContext renders excerpts as "[name]: chunk" blocks.
func FormatForContext(excerpts []Excerpt) string {
	parts := make([]string, 0, len(excerpts))
	for _, e := range excerpts {
		parts = append(parts, "["+e.Name+"]: "+e.Chunk)
	}
	return strings.Join(parts, "\n\n")
}

// SplitIntoChunks packs whole sentences into chunks of at most maxRunes.
// A single sentence longer than maxRunes becomes its own chunk.
func SplitIntoChunks(text string, maxRunes int) []string {
	if maxRunes <= 0 {
		maxRunes = DefaultChunkSize
	}
	chunks := make([]string, 0)
	var current strings.Builder
	currentRunes := 0
	for _, sentence := range sentences(text) {
		sentenceRunes := utf8.RuneCountInString(sentence)
		if currentRunes > 0 && currentRunes+sentenceRunes > maxRunes {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			currentRunes = 0
		}
		current.WriteString(sentence)
		current.WriteByte(' ')
		currentRunes += sentenceRunes + 1
	}
	if last := strings.TrimSpace(current.String()); last != "" {
		chunks = append(chunks, last)
	}
	return chunks
}

// sentences splits after '.', '!' or '?' when whitespace follows.
func sentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) || i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		out = append(out, string(runes[start:i+1]))
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
