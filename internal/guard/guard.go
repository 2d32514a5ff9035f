// Package guard decides whether a message asks for something only a
// veterinarian may provide: a diagnosis, a dosage or a prescription drug.
package guard

import (
	"mia/apps/backend/internal/textnorm"
)

type Outcome string

const (
	OutcomeNone         Outcome = ""
	OutcomeMedicalLimit Outcome = "medical_limit"
	OutcomeRxLimit      Outcome = "rx_limit"
)

// Config holds the keyword sets. They are matched after normalization, so
// accents and case are irrelevant.
type Config struct {
	MedicalRequestPatterns []string
	RxPatterns             []string
	// EducationalMarkers suppress the medical gate (not the rx gate).
	EducationalMarkers []string
}

func DefaultConfig() Config {
	return Config{
		MedicalRequestPatterns: []string{
			"que dosis", "cuanta dosis", "dosis recomendada", "cuanta cantidad",
			"que medicamento le doy", "que medicamento darle",
			"diagnostico", "diagnosticar", "que enfermedad tiene", "que le pasa",
			"que tiene mi", "esta enfermo",
			"recetame", "prescribeme", "necesito receta",
			"sustituir medicamento", "cambiar medicamento",
			"interpretar analisis", "interpretar resultados",
		},
		RxPatterns: []string{
			"receta", "prescripcion", "medicamento con receta", "necesita receta",
			"requiere receta", "antibiotico", "corticoide", "antiinflamatorio con receta",
		},
		EducationalMarkers: []string{
			"composicion", "caracteristicas", "debe tener", "deberia tener", "informacion general",
		},
	}
}

type Decision struct {
	Outcome             Outcome
	Matched             string
	EducationalOverride bool
}

type Gate struct {
	cfg Config
}

// New fills any empty keyword set from DefaultConfig.
func New(cfg Config) *Gate {
	defaults := DefaultConfig()
	if len(cfg.MedicalRequestPatterns) == 0 {
		cfg.MedicalRequestPatterns = defaults.MedicalRequestPatterns
	}
	if len(cfg.RxPatterns) == 0 {
		cfg.RxPatterns = defaults.RxPatterns
	}
	if cfg.EducationalMarkers == nil {
		cfg.EducationalMarkers = defaults.EducationalMarkers
	}
	return &Gate{cfg: cfg}
}

// Check returns exactly one outcome; medical limit is checked before rx limit.
func (g *Gate) Check(message string) Decision {
	normalized := textnorm.Normalize(message)

	educational := firstMatch(normalized, g.cfg.EducationalMarkers) != ""
	if !educational {
		if matched := firstMatch(normalized, g.cfg.MedicalRequestPatterns); matched != "" {
			return Decision{Outcome: OutcomeMedicalLimit, Matched: matched}
		}
	}
	if matched := firstMatch(normalized, g.cfg.RxPatterns); matched != "" {
		return Decision{Outcome: OutcomeRxLimit, Matched: matched, EducationalOverride: educational}
	}
	return Decision{Outcome: OutcomeNone, EducationalOverride: educational}
}

func firstMatch(normalized string, keywords []string) string {
	for _, keyword := range keywords {
		if textnorm.ContainsKeyword(normalized, keyword) {
			return keyword
		}
	}
	return ""
}
