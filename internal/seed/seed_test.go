package seed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mia/apps/backend/internal/catalog"
	"mia/apps/backend/internal/chat"
	"mia/apps/backend/internal/clinic"
	"mia/apps/backend/internal/redflag"
	"mia/apps/backend/internal/textnorm"
	"mia/apps/backend/internal/vademecum"
)

func TestLoadDemoFixture(t *testing.T) {
	t.Parallel()

	file, err := Load("../../seed/demo.yaml")
	require.NoError(t, err)
	assert.Len(t, file.Products, 14)
	assert.Len(t, file.Patterns, 8)
	assert.NotEmpty(t, file.Clinics)
	assert.NotEmpty(t, file.Documents)
	assert.Len(t, file.Prompts, 1)
	assert.Len(t, file.FAQs, 4)

	result := redflag.Evaluate(textnorm.Normalize("Mi perro vomita con sangre"), file.Patterns)
	assert.True(t, result.IsRedFlag)
	assert.Equal(t, redflag.SeverityEmergency, result.Severity)
}

func TestInMemoryPopulatesStores(t *testing.T) {
	t.Parallel()

	file, err := Load("../../seed/demo.yaml")
	require.NoError(t, err)
	stores := file.InMemory()
	ctx := context.Background()

	names, err := stores.Catalog.ListAllActiveNames(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 13)

	prompt, err := stores.Prompts.GetActiveSystemPrompt(ctx, chat.DefaultPromptName)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(prompt, "Eres MIA"))

	clinics, err := stores.Clinics.FindByPostalCode(ctx, "28009")
	require.NoError(t, err)
	require.Len(t, clinics, 2)
	assert.True(t, clinics[0].IsEmergency)
	assert.NotZero(t, clinics[0].ID)

	docs, err := stores.Documents.SearchDocumentsByKeyword(ctx, "glucosamina", 3)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "cosequin-ds-ficha-tecnica.pdf", docs[0].Name)

	faqs, err := stores.FAQs.SearchFAQs(ctx, "¿Cuánto tarda el envío?", 3)
	require.NoError(t, err)
	require.Len(t, faqs, 1)
	assert.Equal(t, int64(1), faqs[0].ID)

	active, err := stores.Patterns.ListActiveRedFlagPatterns(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 8)
}

func TestParseRejectsBadFixtures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown key",
			yaml:    "products:\n  - name: X\n    colour: red\n",
			wantErr: "colour",
		},
		{
			name:    "invalid pattern type",
			yaml:    "red_flag_patterns:\n  - pattern_type: regex\n    keywords: [a]\n    category: x\n",
			wantErr: "red_flag_patterns[0]",
		},
		{
			name:    "duplicate external id",
			yaml:    "products:\n  - name: A\n    external_id: S1\n  - name: B\n    external_id: S1\n",
			wantErr: "duplicate external_id",
		},
		{
			name:    "bad postal code",
			yaml:    "clinics:\n  - name: C\n    postal_code: \"2800\"\n",
			wantErr: "postal_code",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParseEmptyFixture(t *testing.T) {
	t.Parallel()

	file, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, file.Products)
}

type recordingWriter struct {
	calls   []string
	failOn  string
	prompts []string
}

func (w *recordingWriter) record(kind string) error {
	if kind == w.failOn {
		return errors.New("boom")
	}
	w.calls = append(w.calls, kind)
	return nil
}

func (w *recordingWriter) UpsertProduct(context.Context, catalog.Product) (int64, error) {
	return 1, w.record("product")
}

func (w *recordingWriter) CreatePattern(_ context.Context, p redflag.Pattern) (redflag.Pattern, error) {
	return p, w.record("pattern")
}

func (w *recordingWriter) SaveClinic(context.Context, clinic.Clinic) (int64, error) {
	return 1, w.record("clinic")
}

func (w *recordingWriter) SaveDocument(context.Context, vademecum.Document) (int64, error) {
	return 1, w.record("document")
}

func (w *recordingWriter) SavePrompt(_ context.Context, name, _ string) (chat.SystemPrompt, error) {
	w.prompts = append(w.prompts, name)
	return chat.SystemPrompt{Name: name}, w.record("prompt")
}

func (w *recordingWriter) SaveFAQ(context.Context, chat.FAQ) (int64, error) {
	return 1, w.record("faq")
}

func TestApplyWritesEveryRow(t *testing.T) {
	t.Parallel()

	file, err := Load("../../seed/demo.yaml")
	require.NoError(t, err)

	w := &recordingWriter{}
	summary, err := Apply(context.Background(), file, w)
	require.NoError(t, err)
	assert.Equal(t, Summary{Products: 14, Patterns: 8, Clinics: 5, Documents: 2, Prompts: 1, FAQs: 4}, summary)
	assert.Equal(t, []string{"main_assistant"}, w.prompts)
	assert.Contains(t, summary.String(), "products=14")
}

func TestApplyStopsAtFirstError(t *testing.T) {
	t.Parallel()

	file, err := Load("../../seed/demo.yaml")
	require.NoError(t, err)

	w := &recordingWriter{failOn: "clinic"}
	summary, err := Apply(context.Background(), file, w)
	require.Error(t, err)
	assert.Equal(t, 0, summary.Clinics)
	assert.Equal(t, 8, summary.Patterns)
	assert.NotContains(t, w.calls, "document")
}
