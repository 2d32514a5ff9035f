// Package llm wraps the text generator behind the chat pipeline.
package llm

import (
	"context"
	"errors"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrRateLimited is returned when the provider rejects a call with HTTP 429.
var ErrRateLimited = errors.New("generator rate limited")

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	SystemPrompt string
	History      []Turn
	MaxTokens    int
	// Temperature is sent as given, zero included; a negative value falls
	// back to the generator's configured default.
	Temperature float64
}

type Completion struct {
	Text       string
	TokensUsed int
}

type Generator interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}
