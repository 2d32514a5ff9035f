// Package catalog reads the storefront catalog and turns intent-driven
// queries into a bounded list of real products.
package catalog

import (
	"strconv"
	"strings"
)

// Product is a catalog row. Name is the only string the assistant may show
// verbatim, so it is never rewritten here.
type Product struct {
	ID                   int64   `json:"id" yaml:"id"`
	ExternalID           string  `json:"external_id,omitempty" yaml:"external_id"`
	Name                 string  `json:"name" yaml:"name"`
	Brand                string  `json:"brand,omitempty" yaml:"brand"`
	Category             string  `json:"category,omitempty" yaml:"category"`
	Subcategory          string  `json:"subcategory,omitempty" yaml:"subcategory"`
	Species              string  `json:"species,omitempty" yaml:"species"`
	Description          string  `json:"description,omitempty" yaml:"description"`
	Indications          string  `json:"indications,omitempty" yaml:"indications"`
	ActiveIngredients    string  `json:"active_ingredients,omitempty" yaml:"active_ingredients"`
	Price                float64 `json:"price" yaml:"price"`
	ProductURL           string  `json:"product_url,omitempty" yaml:"product_url"`
	AddToCartURL         string  `json:"add_to_cart_url,omitempty" yaml:"add_to_cart_url"`
	ImageURL             string  `json:"image_url,omitempty" yaml:"image_url"`
	RequiresPrescription bool    `json:"requires_prescription" yaml:"requires_prescription"`
	Active               bool    `json:"is_active" yaml:"is_active"`
}

// NameRef is the slice of a product the response validator needs.
type NameRef struct {
	ID   int64
	Name string
	URL  string
}

// Card is what the chat widget renders for a recommended product.
type Card struct {
	ID                   int64   `json:"id"`
	Name                 string  `json:"name"`
	Brand                string  `json:"brand"`
	Price                float64 `json:"price"`
	Species              string  `json:"species"`
	Category             string  `json:"category"`
	ImageURL             string  `json:"imageUrl"`
	ProductURL           string  `json:"productUrl"`
	AddToCartURL         string  `json:"addToCartUrl"`
	RequiresPrescription bool    `json:"requiresPrescription"`
	Indications          string  `json:"indications"`
}

func (p Product) Card() Card {
	return Card{
		ID:                   p.ID,
		Name:                 p.Name,
		Brand:                p.Brand,
		Price:                p.Price,
		Species:              p.Species,
		Category:             p.Category,
		ImageURL:             p.ImageURL,
		ProductURL:           p.ProductURL,
		AddToCartURL:         p.AddToCartURL,
		RequiresPrescription: p.RequiresPrescription,
		Indications:          p.Indications,
	}
}

func Cards(products []Product) []Card {
	cards := make([]Card, 0, len(products))
	for _, p := range products {
		cards = append(cards, p.Card())
	}
	return cards
}

const (
	strictContextHeader = "PRODUCTOS RELEVANTES DEL CATÁLOGO:\n" +
		"Estos son productos que podrían encajar con lo que busca. Usa el NOMBRE EXACTO tal cual aparece aquí (copia y pega). " +
		"Si ninguno encaja perfectamente, recomienda el MÁS SIMILAR y explica por qué podría servirle.\n\n"
	alternativeContextHeader = "PRODUCTOS ALTERNATIVOS DISPONIBLES:\n" +
		"No tenemos un producto exacto, pero estas opciones podrían ser útiles. Usa el NOMBRE EXACTO tal cual aparece aquí. " +
		"Explica por qué podrían servirle y ofrece más información si necesita.\n\n"

	maxContextDescriptionRunes = 200
)

// FormatProductsForContext renders the product block of the generator prompt.
// Alternatives get softer wording than direct matches.
func FormatProductsForContext(products []Product, isAlternative bool) string {
	if len(products) == 0 {
		return ""
	}

	var b strings.Builder
	if isAlternative {
		b.WriteString(alternativeContextHeader)
	} else {
		b.WriteString(strictContextHeader)
	}
	for i, p := range products {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(`. NOMBRE EXACTO: "`)
		b.WriteString(p.Name)
		b.WriteString(`"`)
		writeField(&b, "Marca", p.Brand)
		if p.Price != 0 {
			writeField(&b, "Precio", strconv.FormatFloat(p.Price, 'f', -1, 64)+"€")
		}
		writeField(&b, "Especie", p.Species)
		writeField(&b, "Categoría", p.Category)
		writeField(&b, "Subcategoría", p.Subcategory)
		writeField(&b, "Enlace", p.ProductURL)
		writeField(&b, "Descripción", truncateRunes(p.Description, maxContextDescriptionRunes))
		writeField(&b, "Indicaciones", p.Indications)
		if p.RequiresPrescription {
			b.WriteString("\n   ⚠️ Requiere receta veterinaria")
		}
	}
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString("\n   ")
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
