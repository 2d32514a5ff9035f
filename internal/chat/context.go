package chat

import (
	"strings"
	"unicode/utf8"

	"mia/apps/backend/internal/catalog"
	"mia/apps/backend/internal/llm"
	"mia/apps/backend/internal/vademecum"
)

const (
	DefaultHistoryTurns     = 10
	productPageDescriptionN = 200
)

// PromptContext is everything the generator sees besides the base prompt and
// the conversation turns.
type PromptContext struct {
	ProductPage   *ProductContext
	Products      []catalog.Product
	IsAlternative bool
	Excerpts      []vademecum.Excerpt
	FAQs          []FAQ
	SymptomHints  []string
}

// AssembleSystemPrompt appends the non-empty context sections to base.
func AssembleSystemPrompt(base string, pc PromptContext) string {
	var b strings.Builder
	b.WriteString(base)
	if page := formatProductPage(pc.ProductPage); page != "" {
		b.WriteString("\n\n--- CONTEXTO DEL PRODUCTO ACTUAL ---\nEl usuario está viendo esta página de producto:\n")
		b.WriteString(page)
	}
	if len(pc.Products) > 0 {
		b.WriteString("\n\n--- PRODUCTOS RELEVANTES DEL CATÁLOGO ---\n")
		b.WriteString(catalog.FormatProductsForContext(pc.Products, pc.IsAlternative))
	}
	if len(pc.Excerpts) > 0 {
		b.WriteString("\n\n--- INFORMACIÓN TÉCNICA (VADEMECUM) ---\n")
		b.WriteString(vademecum.FormatForContext(pc.Excerpts))
	}
	if len(pc.FAQs) > 0 {
		b.WriteString("\n\n--- PREGUNTAS FRECUENTES ---\n")
		b.WriteString(FormatFAQsForContext(pc.FAQs))
	}
	if len(pc.SymptomHints) > 0 {
		b.WriteString("\n\n--- SEÑALES A VIGILAR ---\n")
		b.WriteString("El usuario menciona: " + strings.Join(pc.SymptomHints, ", ") + ".\n")
		b.WriteString("Sin diagnosticar, sugiere brevemente que un veterinario valore estos signos antes de recomendar productos.")
	}
	return b.String()
}

func formatProductPage(page *ProductContext) string {
	if page == nil || (page.Name == "" && page.Description == "") {
		return ""
	}
	description := page.Description
	if utf8.RuneCountInString(description) > productPageDescriptionN {
		description = string([]rune(description)[:productPageDescriptionN])
	}
	return "Producto: " + page.Name +
		". Precio: " + string(page.Price) + "€" +
		". Categoría: " + page.Category +
		". Descripción: " + description
}

// LastTurns keeps the most recent n turns.
func LastTurns(history []llm.Turn, n int) []llm.Turn {
	if n <= 0 {
		n = DefaultHistoryTurns
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
