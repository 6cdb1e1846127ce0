// Package llm provides text-completion clients for the supported model providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Options tune a single completion call.
type Options struct {
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// Completer turns a system prompt and a user message into model output text.
type Completer interface {
	Complete(ctx context.Context, system, user string, opts Options) (string, error)
}

// ErrEmptyResponse is returned when the provider answers without any content.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// Config selects and configures a provider.
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

const (
	defaultOpenAIModel    = "gpt-4-turbo-preview"
	defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultGroqModel      = "llama-3.3-70b-versatile"
	defaultGroqEndpoint   = "https://api.groq.com/openai/v1/chat/completions"
	defaultGeminiModel    = "gemini-1.5-flash"
)

// Client is a Completer that may hold resources.
type Client interface {
	Completer
	Close() error
}

// New builds a Client for cfg.Provider. An empty provider selects OpenAI.
func New(ctx context.Context, cfg Config) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderOpenAI
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm provider %s requires an API key", provider)
	}

	switch provider {
	case ProviderOpenAI:
		return NewOpenAI(withDefaults(cfg, defaultOpenAIModel, defaultOpenAIEndpoint)), nil
	case ProviderGroq:
		return NewOpenAI(withDefaults(cfg, defaultGroqModel, defaultGroqEndpoint)), nil
	case ProviderGemini:
		return NewGemini(ctx, withDefaults(cfg, defaultGeminiModel, ""))
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

func withDefaults(cfg Config, model, endpoint string) Config {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = model
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = endpoint
	}
	return cfg
}
