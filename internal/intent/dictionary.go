// Package intent maps a free-text message to the shopping intent behind it,
// the catalog categories worth searching and the search recipe to use.
package intent

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Strategy string

const (
	StrategyCategoriesFirst  Strategy = "categories_first"
	StrategyNameWithSynonyms Strategy = "name_with_synonyms"
	StrategyCategoryThenName Strategy = "category_then_name"
	StrategyFAQ              Strategy = "faq"
	StrategyPolicies         Strategy = "policies"
)

// Intent ids of the built-in dictionary.
const (
	SupportShop           = "SUPPORT_SHOP"
	JointsCondroprotector = "JOINTS_CONDROPROTECTOR"
	DietRenal             = "DIET_RENAL"
	DietDiabetes          = "DIET_DIABETES"
	DietHypoallergenic    = "DIET_HYPOALLERGENIC"
	GIGastrointestinal    = "GI_GASTROINTESTINAL"
	DentalHalitosis       = "DENTAL_HALITOSIS"
	EarOtic               = "EAR_OTIC"
	ParasitesExternal     = "PARASITES_EXTERNAL"
)

// CategoryFilter narrows products found under one category by name terms.
type CategoryFilter struct {
	MustMatchNameAny   []string `yaml:"must_match_name_any,omitempty" json:"mustMatchNameAny,omitempty"`
	ShouldMatchNameAny []string `yaml:"should_match_name_any,omitempty" json:"shouldMatchNameAny,omitempty"`
}

// Terms returns the name terms a product must contain; must terms win.
func (f CategoryFilter) Terms() []string {
	if len(f.MustMatchNameAny) > 0 {
		return f.MustMatchNameAny
	}
	return f.ShouldMatchNameAny
}

type Intent struct {
	ID                 string                    `yaml:"id"`
	Priority           int                       `yaml:"priority"`
	Triggers           []string                  `yaml:"triggers_any"`
	CategoryCandidates [][]string                `yaml:"category_candidates,omitempty"`
	CategoryFilters    map[string]CategoryFilter `yaml:"category_filters,omitempty"`
	SearchStrategy     []Strategy                `yaml:"search_strategy,omitempty"`
	NameSynonyms       []string                  `yaml:"name_synonyms_any,omitempty"`
	RedFlags           []string                  `yaml:"red_flags_any,omitempty"`
	FollowupQuestions  []string                  `yaml:"followup_questions,omitempty"`
}

type Dictionary struct {
	Version         string            `yaml:"version"`
	Language        string            `yaml:"language"`
	CategoryAliases map[string]string `yaml:"category_aliases,omitempty"`
	TokenAliases    map[string]string `yaml:"token_aliases,omitempty"`
	Intents         []Intent          `yaml:"intents"`
}

// LoadDictionary reads a YAML dictionary. Alias tables left out of the file
// are taken from DefaultDictionary.
func LoadDictionary(path string) (Dictionary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Dictionary{}, fmt.Errorf("read intent dictionary: %w", err)
	}
	var dict Dictionary
	if err := yaml.Unmarshal(raw, &dict); err != nil {
		return Dictionary{}, fmt.Errorf("parse intent dictionary: %w", err)
	}
	defaults := DefaultDictionary()
	if len(dict.CategoryAliases) == 0 {
		dict.CategoryAliases = defaults.CategoryAliases
	}
	if len(dict.TokenAliases) == 0 {
		dict.TokenAliases = defaults.TokenAliases
	}
	if err := dict.Validate(); err != nil {
		return Dictionary{}, err
	}
	return dict, nil
}

func (d Dictionary) Validate() error {
	if len(d.Intents) == 0 {
		return errors.New("intent dictionary has no intents")
	}
	seen := make(map[string]struct{}, len(d.Intents))
	for _, in := range d.Intents {
		id := strings.TrimSpace(in.ID)
		if id == "" {
			return errors.New("intent id is required")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate intent id %q", id)
		}
		seen[id] = struct{}{}
		if len(in.Triggers) == 0 {
			return fmt.Errorf("intent %q has no triggers", id)
		}
	}
	return nil
}

// DefaultDictionary is the built-in Spanish (es-ES) dictionary.
func DefaultDictionary() Dictionary {
	return Dictionary{
		Version:  "mia-v2.0",
		Language: "es-ES",
		CategoryAliases: map[string]string{
			"DERMATOLOGIA":              "DERMATOLOGÍA",
			"DERMATOLOGÍA":              "DERMATOLOGÍA",
			"OTICO":                     "ÓTICO",
			"ÓTICO":                     "ÓTICO",
			"CONDOPROTECTOR/ARTICULAR":  "CONDROPROTECTOR/ARTICULAR",
			"CONDROPROTECTOR ARTICULAR": "CONDROPROTECTOR/ARTICULAR",
			"DIETA VETERINARIA":         "DIETA VETERINARIA",
			"GASTRO INTESTINAL":         "GASTROINTESTINAL",
			"GASTROINTESTINAL":          "GASTROINTESTINAL",
			"BUCO DENTAL":               "BUCODENTAL",
			"BUCODENTAL":                "BUCODENTAL",
		},
		TokenAliases: map[string]string{
			"condoprotector": "condroprotector",
			"condro":         "condroprotector",
			"artrosis":       "articulaciones",
			"movilidad":      "articulaciones",
			"diabetico":      "diabetes",
			"diabético":      "diabetes",
			"diabetica":      "diabetes",
			"diabética":      "diabetes",
			"renal":          "rinon",
			"riñon":          "rinon",
			"riñones":        "rinon",
			"gastro":         "gastrointestinal",
			"intestinal":     "gastrointestinal",
			"diarrea":        "gastrointestinal",
			"vomitos":        "gastrointestinal",
			"vómitos":        "gastrointestinal",
			"hipoalergenico": "hipoalergenico",
			"hipoalergénico": "hipoalergenico",
			"hidrolizado":    "hidrolizado",
			"ultrahypo":      "ultrahypo",
			"toallitas":      "higiene",
			"oidos":          "otico",
			"oídos":          "otico",
			"otitis":         "otico",
			"dental":         "bucodental",
			"sarro":          "bucodental",
			"malaliento":     "halitosis",
			"aliento":        "halitosis",
		},
		Intents: []Intent{
			{
				ID:       SupportShop,
				Priority: 100,
				Triggers: []string{
					"envio", "envíos", "entrega", "devolucion", "devolución", "cambio",
					"pago", "factura", "pedido", "seguimiento", "reembolso",
					"tarjeta", "bizum", "transferencia",
				},
				SearchStrategy: []Strategy{StrategyFAQ, StrategyPolicies},
			},
			{
				ID:       JointsCondroprotector,
				Priority: 90,
				Triggers: []string{
					"condroprotector", "articulaciones", "artrosis", "movilidad",
					"cojera", "cartilago", "cartílago", "glucosamina", "condroitina",
					"msm", "seraquin", "condrovet", "cosequin",
				},
				CategoryCandidates: [][]string{
					{"CONDROPROTECTOR/ARTICULAR"},
					{"SALUD", "CONDROPROTECTOR/ARTICULAR"},
					{"SUPLEMENTOS", "CONDROPROTECTOR/ARTICULAR"},
				},
				SearchStrategy: []Strategy{StrategyCategoriesFirst, StrategyNameWithSynonyms},
				NameSynonyms:   []string{"condro", "joint", "mobility", "glucos", "chondro", "articular"},
			},
			{
				ID:       DietRenal,
				Priority: 90,
				Triggers: []string{
					"renal", "renales", "rinon", "riñon", "riñones", "insuficiencia renal", "kidney",
					"uremia", "uremico", "porus one", "porus", "nefro", "renal care",
				},
				CategoryCandidates: [][]string{
					{"DIETA VETERINARIA"},
					{"SALUD", "RENAL"},
					{"RENAL"},
				},
				CategoryFilters: map[string]CategoryFilter{
					"DIETA VETERINARIA": {MustMatchNameAny: []string{"renal", "kidney", "renal care"}},
				},
				SearchStrategy: []Strategy{StrategyCategoryThenName},
				NameSynonyms:   []string{"renal", "kidney", "nefro", "urinario", "uremia"},
			},
			{
				ID:       DietDiabetes,
				Priority: 85,
				Triggers: []string{
					"diabetes", "diabetico", "diabético", "insulina", "glucosa",
					"diabetic", "glycemic", "glucemico", "glucémico",
				},
				CategoryCandidates: [][]string{{"DIETA VETERINARIA"}},
				CategoryFilters: map[string]CategoryFilter{
					"DIETA VETERINARIA": {MustMatchNameAny: []string{"diabet", "diabetes", "diabetic"}},
				},
				SearchStrategy: []Strategy{StrategyCategoryThenName},
				NameSynonyms:   []string{"diabet", "diabetes", "diabetic"},
			},
			{
				ID:       DietHypoallergenic,
				Priority: 85,
				Triggers: []string{
					"alergia", "alergico", "alérgico", "hipoalergenico", "hipoalergénico",
					"ultrahypo", "hypoallergenic", "hidrolizado", "hidrolizada",
					"intolerancia", "dieta de eliminacion", "dieta de eliminación", "prurito por comida",
				},
				CategoryCandidates: [][]string{
					{"DIETA VETERINARIA"},
					{"SALUD", "DERMATOLOGÍA"},
					{"DERMATOLOGÍA"},
				},
				CategoryFilters: map[string]CategoryFilter{
					"DIETA VETERINARIA": {ShouldMatchNameAny: []string{"hypo", "ultra", "allerg", "hidrol", "anallergenic"}},
				},
				SearchStrategy: []Strategy{StrategyCategoryThenName},
				NameSynonyms:   []string{"hypo", "ultra", "allerg", "hidrol", "anallergenic", "z/d", "ha"},
			},
			{
				ID:       GIGastrointestinal,
				Priority: 80,
				Triggers: []string{
					"diarrea", "vomito", "vómito", "vomitos", "vómitos", "gastro",
					"gastrointestinal", "intestino", "heces blandas", "flora intestinal",
					"probiotico", "probiótico", "prebiotico", "prebiótico", "fortiflora",
					"forti flora", "intestinal", "colitis",
				},
				CategoryCandidates: [][]string{
					{"GASTROINTESTINAL"},
					{"DIETA VETERINARIA"},
					{"SALUD", "GASTROINTESTINAL"},
				},
				CategoryFilters: map[string]CategoryFilter{
					"DIETA VETERINARIA": {ShouldMatchNameAny: []string{"gastro", "intestinal", "gi", "digest"}},
				},
				SearchStrategy: []Strategy{StrategyCategoriesFirst, StrategyNameWithSynonyms},
				NameSynonyms:   []string{"fortiflora", "probiotic", "prebiotic", "intestinal", "gastro", "digest"},
				RedFlags: []string{
					"sangre", "heces negras", "vomitos repetidos", "vómitos repetidos",
					"apatia", "apatía", "no come", "no bebe", "deshidrat", "cachorro muy pequeño", "gatito",
				},
			},
			{
				ID:       DentalHalitosis,
				Priority: 75,
				Triggers: []string{
					"mal aliento", "halitosis", "sarro", "dientes", "pasta de dientes",
					"cepillo", "higiene dental", "dental", "gingivitis",
				},
				CategoryCandidates: [][]string{
					{"BUCODENTAL"},
					{"HIGIENE", "BUCODENTAL"},
				},
				SearchStrategy: []Strategy{StrategyCategoriesFirst, StrategyNameWithSynonyms},
				NameSynonyms:   []string{"dental", "tooth", "pasta", "cepillo", "sarro", "aliento"},
			},
			{
				ID:       EarOtic,
				Priority: 75,
				Triggers: []string{
					"oido", "oído", "oidos", "oídos", "otitis", "limpiar oidos", "limpiar oídos",
					"oreja", "orejas", "cera", "mal olor oido", "gotas oticas", "gotas óticas",
				},
				CategoryCandidates: [][]string{
					{"ÓTICO"},
					{"HIGIENE", "ÓTICO"},
				},
				SearchStrategy: []Strategy{StrategyCategoriesFirst, StrategyNameWithSynonyms},
				NameSynonyms:   []string{"otico", "otitis", "ear", "oido", "oreja"},
				RedFlags:       []string{"dolor intenso", "pus", "fiebre", "cabeza ladeada", "equilibrio"},
			},
			{
				ID:       ParasitesExternal,
				Priority: 70,
				Triggers: []string{
					"antiparasitario", "pulgas", "garrapatas", "mosquitos", "leishmania",
					"pipeta", "collar", "spray antiparasitario", "repelente", "repelente mosquitos",
				},
				CategoryCandidates: [][]string{
					{"ANTIPARASITARIOS"},
					{"HIGIENE", "ANTIPARASITARIOS"},
				},
				SearchStrategy: []Strategy{StrategyCategoriesFirst, StrategyNameWithSynonyms},
				NameSynonyms:   []string{"flea", "tick", "pipeta", "collar", "repel", "mosquito", "leish"},
			},
		},
	}
}
