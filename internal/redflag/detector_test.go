package redflag

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mia/apps/backend/internal/textnorm"
)

type stubStore struct {
	patterns []Pattern
	err      error
	calls    int32
}

func (s *stubStore) ListActiveRedFlagPatterns(context.Context) ([]Pattern, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.patterns, s.err
}

func TestDetectKeywordPatterns(t *testing.T) {
	t.Parallel()

	detector := NewDetector(NewMemoryStore(FallbackPatterns()...), time.Minute, nil)
	cases := []struct {
		name     string
		message  string
		redFlag  bool
		category string
	}{
		{name: "breathing", message: "Mi perro no respira", redFlag: true, category: "respiracion"},
		{name: "accented seizure", message: "Tiene CONVULSIÓN desde hace un rato", redFlag: true, category: "consciencia"},
		{name: "poison", message: "se ha comido un raticida", redFlag: true, category: "envenenamiento"},
		{name: "benign", message: "¿Tienes condroprotector para mi perro?", redFlag: false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result := detector.Detect(context.Background(), tc.message)
			assert.Equal(t, tc.redFlag, result.IsRedFlag)
			if tc.redFlag {
				assert.Equal(t, SeverityEmergency, result.Severity)
				assert.Equal(t, tc.category, result.Category)
				assert.NotEmpty(t, result.DetectedPatterns)
			} else {
				assert.Empty(t, result.DetectedPatterns)
			}
		})
	}
}

func TestCombinedPatternsRequireEveryKeyword(t *testing.T) {
	t.Parallel()

	for _, pattern := range FallbackPatterns() {
		if pattern.Type != PatternCombined {
			continue
		}
		full := textnorm.Normalize(joinWords(pattern.Keywords))
		result := Evaluate(full, []Pattern{pattern})
		require.True(t, result.IsRedFlag, "pattern %v should match its own keywords", pattern.Keywords)

		for skip := range pattern.Keywords {
			partial := make([]string, 0, len(pattern.Keywords)-1)
			for i, keyword := range pattern.Keywords {
				if i != skip {
					partial = append(partial, keyword)
				}
			}
			result := Evaluate(textnorm.Normalize(joinWords(partial)), []Pattern{pattern})
			assert.False(t, result.IsRedFlag, "pattern %v matched without %q", pattern.Keywords, pattern.Keywords[skip])
		}
	}
}

func joinWords(words []string) string {
	out := ""
	for i, w := range words {
		if i > 0 {
			out += " y "
		}
		out += w
	}
	return out
}

func TestEvaluateKeepsFirstCategoryAtMaxSeverity(t *testing.T) {
	t.Parallel()

	patterns := []Pattern{
		{Type: PatternKeyword, Keywords: []string{"cojea"}, Severity: SeverityCaution, Category: "movilidad", Active: true},
		{Type: PatternKeyword, Keywords: []string{"sangra"}, Severity: SeverityUrgent, Category: "sangrado", Active: true},
		{Type: PatternKeyword, Keywords: []string{"fiebre"}, Severity: SeverityUrgent, Category: "fiebre", Active: true},
		{Type: PatternCombined, Keywords: []string{"cojea", "fiebre"}, Severity: SeverityCaution, Category: "combinado", Active: true},
		{Type: PatternKeyword, Keywords: []string{"cojea"}, Severity: SeverityEmergency, Category: "inactivo", Active: false},
	}
	result := Evaluate(textnorm.Normalize("cojea, sangra y tiene fiebre"), patterns)

	assert.True(t, result.IsRedFlag)
	assert.Equal(t, SeverityUrgent, result.Severity)
	assert.Equal(t, "sangrado", result.Category)
	assert.Equal(t, []string{"cojea", "sangra", "fiebre", "[combo: cojea + fiebre]"}, result.DetectedPatterns)
}

func TestDetectFallsBackWhenStoreFails(t *testing.T) {
	t.Parallel()

	store := &stubStore{err: errors.New("connection refused")}
	detector := NewDetector(store, time.Minute, nil)

	result := detector.Detect(context.Background(), "creo que está envenenado")
	assert.True(t, result.IsRedFlag)
	assert.Equal(t, "envenenamiento", result.Category)

	_, fallback := detector.Patterns(context.Background())
	assert.True(t, fallback)
}

func TestDetectFallsBackWhenStoreIsEmpty(t *testing.T) {
	t.Parallel()

	detector := NewDetector(&stubStore{}, time.Minute, nil)
	result := detector.Detect(context.Background(), "mi gato no respira")
	assert.True(t, result.IsRedFlag, "an empty store must not disable emergency detection")
}

func TestDetectorCachesUntilInvalidated(t *testing.T) {
	t.Parallel()

	store := &stubStore{patterns: []Pattern{
		{Type: PatternKeyword, Keywords: []string{"golpe de calor"}, Severity: SeverityEmergency, Category: "calor", Active: true},
	}}
	detector := NewDetector(store, time.Hour, nil)
	ctx := context.Background()

	assert.True(t, detector.Detect(ctx, "creo que es un golpe de calor").IsRedFlag)
	assert.True(t, detector.Detect(ctx, "otro golpe de calor").IsRedFlag)
	assert.EqualValues(t, 1, atomic.LoadInt32(&store.calls))

	detector.Invalidate()
	assert.True(t, detector.Detect(ctx, "golpe de calor").IsRedFlag)
	assert.EqualValues(t, 2, atomic.LoadInt32(&store.calls))
}

func TestPatternNormalizeAndValidate(t *testing.T) {
	t.Parallel()

	p := Pattern{Type: " Keyword ", Keywords: []string{" fiebre alta ", ""}, Category: " fiebre "}.Normalize()
	require.NoError(t, p.Validate())
	assert.Equal(t, SeverityEmergency, p.Severity)
	assert.Equal(t, []string{"fiebre alta"}, p.Keywords)

	assert.ErrorIs(t, Pattern{Type: "regex", Keywords: []string{"x"}, Category: "c", Severity: SeverityUrgent}.Validate(), ErrInvalidPatternType)
	assert.ErrorIs(t, Pattern{Type: PatternKeyword, Category: "c", Severity: SeverityUrgent}.Validate(), ErrEmptyKeywords)
	assert.ErrorIs(t, Pattern{Type: PatternKeyword, Keywords: []string{"x"}, Severity: SeverityUrgent}.Validate(), ErrEmptyCategory)
	assert.ErrorIs(t, Pattern{Type: PatternKeyword, Keywords: []string{"x"}, Category: "c", Severity: "low"}.Validate(), ErrInvalidSeverity)
}

func TestMemoryStoreCRUD(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	created, err := store.CreatePattern(ctx, Pattern{Type: PatternKeyword, Keywords: []string{"golpe"}, Severity: SeverityUrgent, Category: "trauma", Active: true})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	created.Active = false
	_, err = store.UpdatePattern(ctx, created)
	require.NoError(t, err)
	active, err := store.ListActiveRedFlagPatterns(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, store.DeletePattern(ctx, created.ID))
	assert.ErrorIs(t, store.DeletePattern(ctx, created.ID), ErrPatternNotFound)
}
