// Package llm provides the chat-completion capability consumed by the table
// interpreter and the query pipeline stages.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fabfab/doc-agent/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrUnavailable marks a failed call to the completion capability. Callers may
// retry; the pipeline never substitutes a fabricated answer for it.
var ErrUnavailable = errors.New("llm capability unavailable")

type Message struct {
	Role    string
	Content string
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Complete sends a single-prompt request, the narrow "prompt in, text out"
// form used by stages that do not need a message history.
func Complete(ctx context.Context, c Client, prompt string) (string, error) {
	return c.Generate(ctx, []Message{{Role: RoleUser, Content: prompt}})
}

type Options struct {
	Provider string
	Model    string
	Timeout  time.Duration

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		Timeout:       cfg.CallTimeout,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}
