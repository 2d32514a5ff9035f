// Package redflag detects veterinary emergencies in free text.
package redflag

import (
	"errors"
	"strings"
)

type Severity string

const (
	SeverityNone      Severity = ""
	SeverityCaution   Severity = "caution"
	SeverityUrgent    Severity = "urgent"
	SeverityEmergency Severity = "emergency"
)

// Level orders severities; unknown values rank below caution.
func (s Severity) Level() int {
	switch s {
	case SeverityEmergency:
		return 3
	case SeverityUrgent:
		return 2
	case SeverityCaution:
		return 1
	default:
		return 0
	}
}

type PatternType string

const (
	// PatternKeyword fires when any single keyword is present.
	PatternKeyword PatternType = "keyword"
	// PatternCombined fires only when every keyword is present.
	PatternCombined PatternType = "combined"
)

type Pattern struct {
	ID       int64       `json:"id" yaml:"id"`
	Type     PatternType `json:"pattern_type" yaml:"pattern_type"`
	Keywords []string    `json:"keywords" yaml:"keywords"`
	Severity Severity    `json:"severity" yaml:"severity"`
	Category string      `json:"category" yaml:"category"`
	Active   bool        `json:"is_active" yaml:"is_active"`
}

var (
	ErrInvalidPatternType = errors.New("pattern_type must be keyword or combined")
	ErrEmptyKeywords      = errors.New("keywords must not be empty")
	ErrEmptyCategory      = errors.New("category is required")
	ErrInvalidSeverity    = errors.New("severity must be emergency, urgent or caution")
)

// Normalize trims fields, drops blank keywords and defaults severity to emergency.
func (p Pattern) Normalize() Pattern {
	p.Type = PatternType(strings.ToLower(strings.TrimSpace(string(p.Type))))
	p.Category = strings.TrimSpace(p.Category)
	p.Severity = Severity(strings.ToLower(strings.TrimSpace(string(p.Severity))))
	if p.Severity == SeverityNone {
		p.Severity = SeverityEmergency
	}
	keywords := make([]string, 0, len(p.Keywords))
	for _, keyword := range p.Keywords {
		if trimmed := strings.TrimSpace(keyword); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}
	p.Keywords = keywords
	return p
}

func (p Pattern) Validate() error {
	if p.Type != PatternKeyword && p.Type != PatternCombined {
		return ErrInvalidPatternType
	}
	if len(p.Keywords) == 0 {
		return ErrEmptyKeywords
	}
	if p.Category == "" {
		return ErrEmptyCategory
	}
	if p.Severity.Level() == 0 {
		return ErrInvalidSeverity
	}
	return nil
}

func keywordPattern(category string, keywords ...string) Pattern {
	return Pattern{
		Type:     PatternKeyword,
		Keywords: keywords,
		Severity: SeverityEmergency,
		Category: category,
		Active:   true,
	}
}

func combinedPattern(keywords ...string) Pattern {
	return Pattern{
		Type:     PatternCombined,
		Keywords: keywords,
		Severity: SeverityEmergency,
		Category: "combinado",
		Active:   true,
	}
}

// FallbackPatterns is the built-in set used whenever the pattern store
// cannot be read. Callers get a fresh copy.
func FallbackPatterns() []Pattern {
	return []Pattern{
		keywordPattern("respiracion", "no respira", "dificultad para respirar", "se ahoga"),
		keywordPattern("consciencia", "inconsciente", "convulsion", "convulsiones"),
		keywordPattern("sangrado", "hemorragia", "vomita sangre"),
		keywordPattern("envenenamiento", "veneno", "envenenado", "intoxicacion", "raticida", "paracetamol"),
		keywordPattern("trauma", "atropellado", "fractura"),
		keywordPattern("abdomen", "no puede orinar", "bloqueo urinario"),
		combinedPattern("vomita", "sangre"),
		combinedPattern("no come", "no bebe", "aletargado"),
		combinedPattern("diarrea", "letargo"),
		combinedPattern("vomita", "sin parar"),
	}
}
