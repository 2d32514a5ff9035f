// Package clinic finds partner veterinary clinics near a Spanish postal code.
package clinic

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

type Clinic struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Address     string `json:"address,omitempty" yaml:"address"`
	City        string `json:"city,omitempty" yaml:"city"`
	Province    string `json:"province,omitempty" yaml:"province"`
	PostalCode  string `json:"postal_code" yaml:"postal_code"`
	Phone       string `json:"phone,omitempty" yaml:"phone"`
	Email       string `json:"email,omitempty" yaml:"email"`
	Website     string `json:"website,omitempty" yaml:"website"`
	IsEmergency bool   `json:"is_emergency" yaml:"is_emergency"`
	Notes       string `json:"notes,omitempty" yaml:"notes"`
	Active      bool   `json:"is_active" yaml:"is_active"`
}

type Card struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Province    string `json:"province"`
	PostalCode  string `json:"postalCode"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Website     string `json:"website"`
	IsEmergency bool   `json:"isEmergency"`
}

func (c Clinic) Card() Card {
	return Card{
		ID:          c.ID,
		Name:        c.Name,
		Address:     c.Address,
		City:        c.City,
		Province:    c.Province,
		PostalCode:  c.PostalCode,
		Phone:       c.Phone,
		Email:       c.Email,
		Website:     c.Website,
		IsEmergency: c.IsEmergency,
	}
}

func Cards(clinics []Clinic) []Card {
	cards := make([]Card, 0, len(clinics))
	for _, c := range clinics {
		cards = append(cards, c.Card())
	}
	return cards
}

var (
	postalCodeInText = regexp.MustCompile(`\b(\d{5})\b`)
	postalCodeExact  = regexp.MustCompile(`^\d{5}$`)
)

// ExtractPostalCode returns the first five-digit group of the message when
// its province prefix is a valid Spanish one (01 to 52).
func ExtractPostalCode(message string) (string, bool) {
	match := postalCodeInText.FindStringSubmatch(message)
	if match == nil {
		return "", false
	}
	code := match[1]
	if !validProvincePrefix(code) {
		return "", false
	}
	return code, true
}

// IsPostalCode reports whether s is exactly five digits.
func IsPostalCode(s string) bool {
	return postalCodeExact.MatchString(s)
}

func validProvincePrefix(code string) bool {
	prefix, err := strconv.Atoi(code[:2])
	return err == nil && prefix >= 1 && prefix <= 52
}

// Store is the read side of the clinic directory. Both queries return active
// clinics ordered emergency first, then by name.
type Store interface {
	FindByPostalCode(ctx context.Context, postalCode string) ([]Clinic, error)
	FindByPostalPrefix(ctx context.Context, prefix string, limit int) ([]Clinic, error)
}

const provinceFallbackLimit = 5

type LookupResult struct {
	Clinics []Clinic
	// Exact is false when the clinics only share the province prefix.
	Exact bool
}

type Directory struct {
	store  Store
	logger *zap.Logger
}

func NewDirectory(store Store, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{store: store, logger: logger}
}

// Lookup tries the exact postal code first and falls back to up to five
// clinics of the same province.
func (d *Directory) Lookup(ctx context.Context, postalCode string) (LookupResult, error) {
	code := strings.Join(strings.Fields(postalCode), "")
	if len(code) > 5 {
		code = code[:5]
	}

	exact, err := d.store.FindByPostalCode(ctx, code)
	if err != nil {
		return LookupResult{}, fmt.Errorf("find clinics by postal code: %w", err)
	}
	if len(exact) > 0 {
		d.logger.Info("clinics found by postal code", zap.String("postal_code", code), zap.Int("count", len(exact)))
		return LookupResult{Clinics: exact, Exact: true}, nil
	}

	if len(code) < 2 {
		return LookupResult{Clinics: []Clinic{}}, nil
	}
	prefix := code[:2]
	nearby, err := d.store.FindByPostalPrefix(ctx, prefix, provinceFallbackLimit)
	if err != nil {
		return LookupResult{}, fmt.Errorf("find clinics by province: %w", err)
	}
	if nearby == nil {
		nearby = []Clinic{}
	}
	d.logger.Info("clinics found by province prefix", zap.String("prefix", prefix), zap.Int("count", len(nearby)))
	return LookupResult{Clinics: nearby}, nil
}

const noClinicsCopy = "Lo sentimos, no tenemos clínicas colaboradoras registradas en tu zona actualmente. " +
	"Te recomendamos buscar \"urgencias veterinarias\" junto con tu localidad en Google."

// FormatForChat renders clinics as the numbered chat list.
func FormatForChat(clinics []Clinic) string {
	if len(clinics) == 0 {
		return noClinicsCopy
	}

	var b strings.Builder
	b.WriteString("🏥 **Clínicas veterinarias colaboradoras en tu zona:**\n\n")
	for i, c := range clinics {
		fmt.Fprintf(&b, "%d. **%s**", i+1, c.Name)
		if c.IsEmergency {
			b.WriteString(" 🚨 (Urgencias)")
		}
		b.WriteString("\n")
		if location := formatLocation(c); location != "" {
			b.WriteString("   📍 " + location + "\n")
		}
		if c.Phone != "" {
			b.WriteString("   📞 " + c.Phone + "\n")
		}
		if c.Email != "" {
			b.WriteString("   ✉️ " + c.Email + "\n")
		}
		if c.Website != "" {
			b.WriteString("   🌐 " + c.Website + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatLocation(c Clinic) string {
	parts := make([]string, 0, 2)
	if c.Address != "" {
		parts = append(parts, c.Address)
	}
	if c.City != "" {
		parts = append(parts, c.City)
	}
	location := strings.Join(parts, ", ")
	if c.Province != "" {
		if location != "" {
			location += " "
		}
		location += "(" + c.Province + ")"
	}
	return location
}
