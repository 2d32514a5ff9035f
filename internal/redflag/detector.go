package redflag

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"mia/apps/backend/internal/cache"
	"mia/apps/backend/internal/textnorm"
)

// DefaultCacheTTL bounds how long loaded patterns are reused.
const DefaultCacheTTL = 5 * time.Minute

var errNoActivePatterns = errors.New("pattern store returned no active patterns")

// PatternStore is the read side of the mutable pattern storage.
type PatternStore interface {
	ListActiveRedFlagPatterns(ctx context.Context) ([]Pattern, error)
}

type Result struct {
	IsRedFlag        bool     `json:"isRedFlag"`
	Severity         Severity `json:"severity,omitempty"`
	Category         string   `json:"category,omitempty"`
	DetectedPatterns []string `json:"detectedPatterns"`
}

type Detector struct {
	patterns *cache.CachedStore[[]Pattern]
	logger   *zap.Logger
}

func NewDetector(store PatternStore, ttl time.Duration, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	load := func(ctx context.Context) ([]Pattern, error) {
		if store == nil {
			return nil, errors.New("pattern store not configured")
		}
		patterns, err := store.ListActiveRedFlagPatterns(ctx)
		if err != nil {
			return nil, err
		}
		if len(patterns) == 0 {
			return nil, errNoActivePatterns
		}
		return patterns, nil
	}
	return &Detector{
		patterns: cache.NewCachedStore(ttl, load),
		logger:   logger,
	}
}

// Invalidate drops cached patterns; the next detection reloads from the store.
func (d *Detector) Invalidate() {
	d.patterns.Invalidate()
}

// Patterns returns the active pattern set and whether it is the built-in fallback.
func (d *Detector) Patterns(ctx context.Context) ([]Pattern, bool) {
	patterns, err := d.patterns.Get(ctx)
	if err != nil {
		d.logger.Warn("red flag patterns unavailable, using fallback patterns", zap.Error(err))
		return FallbackPatterns(), true
	}
	return patterns, false
}

// Detect never fails: store problems degrade to the fallback set.
func (d *Detector) Detect(ctx context.Context, message string) Result {
	patterns, _ := d.Patterns(ctx)
	result := Evaluate(textnorm.Normalize(message), patterns)
	if result.IsRedFlag {
		d.logger.Info("red flag detected",
			zap.String("severity", string(result.Severity)),
			zap.String("category", result.Category),
			zap.Strings("patterns", result.DetectedPatterns),
		)
	}
	return result
}

// Evaluate scans already normalized text. Severity is the maximum found;
// category comes from the first pattern that reached it.
func Evaluate(normalized string, patterns []Pattern) Result {
	result := Result{DetectedPatterns: []string{}}
	best := 0

	consider := func(p Pattern) {
		if level := p.Severity.Level(); level > best {
			best = level
			result.Severity = p.Severity
			result.Category = p.Category
		}
	}

	for _, pattern := range patterns {
		if !pattern.Active || pattern.Type != PatternKeyword {
			continue
		}
		for _, keyword := range pattern.Keywords {
			if textnorm.ContainsKeyword(normalized, keyword) {
				result.DetectedPatterns = append(result.DetectedPatterns, keyword)
				consider(pattern)
			}
		}
	}
	for _, pattern := range patterns {
		if !pattern.Active || pattern.Type != PatternCombined {
			continue
		}
		if textnorm.ContainsAllKeywords(normalized, pattern.Keywords) {
			result.DetectedPatterns = append(result.DetectedPatterns,
				"[combo: "+strings.Join(pattern.Keywords, " + ")+"]")
			consider(pattern)
		}
	}

	result.IsRedFlag = len(result.DetectedPatterns) > 0
	return result
}
