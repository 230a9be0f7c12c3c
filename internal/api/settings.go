package api

import (
	"net/http"
	"strings"

	"github.com/folioscope/portfolio-chat/internal/llm"
	"github.com/folioscope/portfolio-chat/internal/prompt"
	"github.com/folioscope/portfolio-chat/internal/vault"
)

var validateCredential = vault.ValidateFormat
var readPromptFile = prompt.ReadFromDisk

type llmSettingsResponse struct {
	Provider         string  `json:"provider"`
	Model            string  `json:"model"`
	BaseURL          string  `json:"base_url"`
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"max_tokens"`
	TimeoutSeconds   float64 `json:"timeout_seconds"`
	RetryMaxAttempts int     `json:"retry_max_attempts"`
	RatePerMinute    float64 `json:"rate_per_minute"`
	HasAPIKey        bool    `json:"has_api_key"`
	APIKeyHint       string  `json:"api_key_hint,omitempty"`
}

// getLLMSettings reports the effective remote settings. The key comes from
// the vault, so a credential saved at runtime shows up here.
func (s *Server) getLLMSettings(w http.ResponseWriter, r *http.Request) {
	resolved := llm.Config{
		Provider: s.cfg.LLMProvider,
		Model:    s.cfg.LLMModel,
		BaseURL:  s.cfg.LLMBaseURL,
	}.Resolved()
	response := llmSettingsResponse{
		Provider:         resolved.Provider,
		Model:            resolved.Model,
		BaseURL:          resolved.BaseURL,
		Temperature:      s.cfg.LLMTemperature,
		MaxTokens:        s.cfg.LLMMaxTokens,
		TimeoutSeconds:   s.cfg.LLMTimeout.Seconds(),
		RetryMaxAttempts: s.cfg.LLMRetryMaxAttempts,
		RatePerMinute:    s.cfg.LLMRatePerMinute,
	}
	if s.vault != nil {
		status := s.vault.Status(r.Context())
		response.HasAPIKey = status.Present
		response.APIKeyHint = status.Hint
	}
	writeJSON(w, response)
}

type promptSettingsResponse struct {
	Content  string `json:"content"`
	Source   string `json:"source"`
	Language string `json:"language"`
}

func (s *Server) getPromptSettings(w http.ResponseWriter, r *http.Request) {
	language := prompt.ParseLanguage(s.cfg.ChatLanguage)
	response := promptSettingsResponse{Language: string(language)}
	if content, err := readPromptFile(); err == nil && strings.TrimSpace(content) != "" {
		response.Content = content
		response.Source = "file"
	} else {
		response.Content = prompt.Instructions(language)
		response.Source = "default"
	}
	writeJSON(w, response)
}
