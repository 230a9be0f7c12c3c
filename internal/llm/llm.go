package llm

import (
	"context"
	"strings"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	DefaultProvider    = "perplexity"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
	DefaultTimeout     = 60 * time.Second
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Provider interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// WithAPIKey returns a copy of cfg bound to key. Credentials change at
// runtime, so providers are built per call.
func (c Config) WithAPIKey(key string) Config {
	c.APIKey = key
	return c
}

type endpoint struct {
	baseURL string
	model   string
}

var endpoints = map[string]endpoint{
	"perplexity": {baseURL: "https://api.perplexity.ai", model: "sonar-small-chat"},
	"openai":     {baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini"},
	"openrouter": {baseURL: "https://openrouter.ai/api/v1", model: "perplexity/sonar"},
	"gemini":     {model: DefaultGeminiModel},
	"local":      {},
}

// Resolved returns cfg with the provider name normalized and the provider's
// default endpoint and model filled in.
func (c Config) Resolved() Config {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if defaults, ok := endpoints[c.Provider]; ok {
		c.BaseURL = defaultIfEmpty(c.BaseURL, defaults.baseURL)
		c.Model = defaultIfEmpty(c.Model, defaults.model)
	}
	return c
}

func NewProvider(cfg Config) (Provider, error) {
	cfg = cfg.Resolved()
	switch cfg.Provider {
	case "local":
		return LocalProvider{}, nil
	case "perplexity", "openai", "openrouter":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}), nil
	case "gemini":
		return NewGeminiProvider(GeminiConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}), nil
	default:
		return nil, ErrUnsupportedProvider{Provider: cfg.Provider}
	}
}

func defaultIfEmpty(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
