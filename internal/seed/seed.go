// Package seed loads the YAML demo fixture used by the in-memory mode and the
// Postgres seeding script.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"mia/apps/backend/internal/catalog"
	"mia/apps/backend/internal/chat"
	"mia/apps/backend/internal/clinic"
	"mia/apps/backend/internal/redflag"
	"mia/apps/backend/internal/vademecum"
)

type Prompt struct {
	Name    string `yaml:"name"`
	Content string `yaml:"content"`
}

type File struct {
	Products  []catalog.Product    `yaml:"products"`
	Patterns  []redflag.Pattern    `yaml:"red_flag_patterns"`
	Clinics   []clinic.Clinic      `yaml:"clinics"`
	Documents []vademecum.Document `yaml:"vademecums"`
	Prompts   []Prompt             `yaml:"system_prompts"`
	FAQs      []chat.FAQ           `yaml:"faqs"`
}

func Load(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	file, err := Decode(f)
	if err != nil {
		return File{}, fmt.Errorf("seed file %s: %w", path, err)
	}
	return file, nil
}

// Decode rejects unknown keys so a typo in the fixture fails loudly.
func Decode(r io.Reader) (File, error) {
	var file File
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("decode: %w", err)
	}
	for i := range file.Patterns {
		file.Patterns[i] = file.Patterns[i].Normalize()
	}
	if err := file.Validate(); err != nil {
		return File{}, err
	}
	return file, nil
}

func Parse(data []byte) (File, error) {
	return Decode(bytes.NewReader(data))
}

func (f File) Validate() error {
	externalIDs := make(map[string]struct{})
	for i, p := range f.Products {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("products[%d]: name is required", i)
		}
		if p.Price < 0 {
			return fmt.Errorf("products[%d]: price must not be negative", i)
		}
		if p.ExternalID == "" {
			continue
		}
		if _, dup := externalIDs[p.ExternalID]; dup {
			return fmt.Errorf("products[%d]: duplicate external_id %q", i, p.ExternalID)
		}
		externalIDs[p.ExternalID] = struct{}{}
	}
	for i, p := range f.Patterns {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("red_flag_patterns[%d]: %w", i, err)
		}
	}
	for i, c := range f.Clinics {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("clinics[%d]: name is required", i)
		}
		if !clinic.IsPostalCode(c.PostalCode) {
			return fmt.Errorf("clinics[%d]: invalid postal_code %q", i, c.PostalCode)
		}
	}
	for i, d := range f.Documents {
		if strings.TrimSpace(d.Name) == "" || strings.TrimSpace(d.Content) == "" {
			return fmt.Errorf("vademecums[%d]: name and content are required", i)
		}
	}
	for i, p := range f.Prompts {
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Content) == "" {
			return fmt.Errorf("system_prompts[%d]: name and content are required", i)
		}
	}
	for i, q := range f.FAQs {
		if strings.TrimSpace(q.Question) == "" || strings.TrimSpace(q.Answer) == "" {
			return fmt.Errorf("faqs[%d]: question and answer are required", i)
		}
	}
	return nil
}

// MemoryStores holds the in-process stores a fixture populates.
type MemoryStores struct {
	Catalog   *catalog.MemoryStore
	Patterns  *redflag.MemoryStore
	Clinics   *clinic.MemoryStore
	Documents *vademecum.MemoryStore
	Prompts   *chat.MemoryPromptStore
	FAQs      *chat.MemoryFAQStore
}

// InMemory builds fresh memory stores from the fixture. Rows without an id get
// one assigned in fixture order.
func (f File) InMemory() MemoryStores {
	stores := MemoryStores{
		Catalog:   catalog.NewMemoryStore(f.Products...),
		Patterns:  redflag.NewMemoryStore(f.Patterns...),
		Clinics:   clinic.NewMemoryStore(),
		Documents: vademecum.NewMemoryStore(),
		Prompts:   chat.NewMemoryPromptStore(),
	}
	for i, c := range f.Clinics {
		if c.ID == 0 {
			c.ID = int64(i + 1)
		}
		stores.Clinics.Add(c)
	}
	for i, d := range f.Documents {
		if d.ID == 0 {
			d.ID = int64(i + 1)
		}
		stores.Documents.Add(d)
	}
	for _, p := range f.Prompts {
		_, _ = stores.Prompts.SavePrompt(context.Background(), p.Name, p.Content)
	}
	faqs := make([]chat.FAQ, 0, len(f.FAQs))
	for i, q := range f.FAQs {
		if q.ID == 0 {
			q.ID = int64(i + 1)
		}
		faqs = append(faqs, q)
	}
	stores.FAQs = chat.NewMemoryFAQStore(faqs...)
	return stores
}

// Writer is the persistent side the fixture can be applied to.
type Writer interface {
	UpsertProduct(ctx context.Context, p catalog.Product) (int64, error)
	CreatePattern(ctx context.Context, p redflag.Pattern) (redflag.Pattern, error)
	SaveClinic(ctx context.Context, c clinic.Clinic) (int64, error)
	SaveDocument(ctx context.Context, d vademecum.Document) (int64, error)
	SavePrompt(ctx context.Context, name, content string) (chat.SystemPrompt, error)
	SaveFAQ(ctx context.Context, q chat.FAQ) (int64, error)
}

type Summary struct {
	Products  int
	Patterns  int
	Clinics   int
	Documents int
	Prompts   int
	FAQs      int
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"products=%d red_flag_patterns=%d clinics=%d vademecums=%d system_prompts=%d faqs=%d",
		s.Products, s.Patterns, s.Clinics, s.Documents, s.Prompts, s.FAQs,
	)
}

// Apply writes every fixture row through w and stops at the first error.
// Products upsert by external id; the other rows are appended.
func Apply(ctx context.Context, f File, w Writer) (Summary, error) {
	var summary Summary
	for _, p := range f.Products {
		if _, err := w.UpsertProduct(ctx, p); err != nil {
			return summary, err
		}
		summary.Products++
	}
	for _, p := range f.Patterns {
		if _, err := w.CreatePattern(ctx, p); err != nil {
			return summary, err
		}
		summary.Patterns++
	}
	for _, c := range f.Clinics {
		if _, err := w.SaveClinic(ctx, c); err != nil {
			return summary, err
		}
		summary.Clinics++
	}
	for _, d := range f.Documents {
		if _, err := w.SaveDocument(ctx, d); err != nil {
			return summary, err
		}
		summary.Documents++
	}
	for _, p := range f.Prompts {
		if _, err := w.SavePrompt(ctx, p.Name, p.Content); err != nil {
			return summary, err
		}
		summary.Prompts++
	}
	for _, q := range f.FAQs {
		if _, err := w.SaveFAQ(ctx, q); err != nil {
			return summary, err
		}
		summary.FAQs++
	}
	return summary, nil
}
