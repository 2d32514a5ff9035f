package llm

import (
	"context"
	"regexp"
	"strings"
)

var exactNamePattern = regexp.MustCompile(`NOMBRE EXACTO: "([^"]+)"`)

// MockGenerator answers without a provider. It recommends the first product
// listed in the system prompt, or asks a clarifying question when none is.
type MockGenerator struct {
	Reply string
	Err   error
}

func (m MockGenerator) Complete(_ context.Context, req Request) (Completion, error) {
	if m.Err != nil {
		return Completion{}, m.Err
	}
	if strings.TrimSpace(m.Reply) != "" {
		return Completion{Text: m.Reply, TokensUsed: 200}, nil
	}

	if match := exactNamePattern.FindStringSubmatch(req.SystemPrompt); match != nil {
		return Completion{
			Text:       "Te recomiendo **" + match[1] + "**. ¿Me confirmas la edad y el peso de tu mascota para afinar la recomendación?",
			TokensUsed: 200,
		}, nil
	}
	return Completion{
		Text:       "¿Me cuentas un poco más? ¿Qué especie es, qué edad tiene y si tiene alguna patología?",
		TokensUsed: 120,
	}, nil
}
