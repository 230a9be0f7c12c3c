package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileEnv names a TOML file whose keys provide defaults underneath the
// environment. Nested tables flatten with "_", so [llm] provider = "x" is
// LLM_PROVIDER.
const FileEnv = "PORTFOLIO_CHAT_CONFIG"

type Config struct {
	APIPort                 string
	APIBaseURL              string
	StoreDriver             string
	PostgresURL             string
	SQLitePath              string
	LLMProvider             string
	LLMModel                string
	LLMBaseURL              string
	LLMAPIKey               string
	LLMTemperature          float64
	LLMMaxTokens            int
	LLMTimeout              time.Duration
	LLMRetryMaxAttempts     int
	LLMRetryInitialInterval time.Duration
	LLMRetryMaxInterval     time.Duration
	LLMRatePerMinute        float64
	LLMRateBurst            int
	VaultKey                string
	VaultPassphrase         string
	VaultSalt               string
	VaultTTL                time.Duration
	ChatLanguage            string
	StockSearchLimit        int
}

type source struct {
	file map[string]string
}

// Load reads the optional config file, then the environment.
func Load() (Config, error) {
	src := source{file: map[string]string{}}
	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		values, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		src.file = values
	}

	apiPort := src.getEnv("API_PORT", "8080")
	postgresURL := src.getEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		postgresURL = src.buildPostgresURL()
	}
	return Config{
		APIPort:                 apiPort,
		APIBaseURL:              src.getEnv("API_BASE_URL", "http://localhost:"+apiPort),
		StoreDriver:             strings.ToLower(src.getEnv("STORE_DRIVER", "memory")),
		PostgresURL:             postgresURL,
		SQLitePath:              src.getEnv("SQLITE_PATH", defaultSQLitePath()),
		LLMProvider:             strings.ToLower(src.getEnv("LLM_PROVIDER", "perplexity")),
		LLMModel:                src.getEnv("LLM_MODEL", ""),
		LLMBaseURL:              src.getEnv("LLM_BASE_URL", ""),
		LLMAPIKey:               src.getEnv("LLM_API_KEY", ""),
		LLMTemperature:          src.getEnvFloat("LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:            src.getEnvInt("LLM_MAX_TOKENS", 1000),
		LLMTimeout:              src.getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		LLMRetryMaxAttempts:     src.getEnvInt("LLM_RETRY_MAX_ATTEMPTS", 1),
		LLMRetryInitialInterval: src.getEnvDuration("LLM_RETRY_INITIAL_INTERVAL", 500*time.Millisecond),
		LLMRetryMaxInterval:     src.getEnvDuration("LLM_RETRY_MAX_INTERVAL", 5*time.Second),
		LLMRatePerMinute:        src.getEnvFloat("LLM_RATE_PER_MINUTE", 0),
		LLMRateBurst:            src.getEnvInt("LLM_RATE_BURST", 1),
		VaultKey:                src.getEnv("VAULT_KEY", ""),
		VaultPassphrase:         src.getEnv("VAULT_PASSPHRASE", ""),
		VaultSalt:               src.getEnv("VAULT_SALT", "portfolio-chat"),
		VaultTTL:                src.getEnvDuration("VAULT_TTL", 24*time.Hour),
		ChatLanguage:            src.getEnv("CHAT_LANGUAGE", "en"),
		StockSearchLimit:        src.getEnvInt("STOCK_SEARCH_LIMIT", 8),
	}, nil
}

func readFile(path string) (map[string]string, error) {
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	values := map[string]string{}
	flatten("", raw, values)
	return values, nil
}

func flatten(prefix string, raw map[string]any, out map[string]string) {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		name := strings.ToUpper(key)
		if prefix != "" {
			name = prefix + "_" + name
		}
		switch value := raw[key].(type) {
		case map[string]any:
			flatten(name, value, out)
		default:
			out[name] = fmt.Sprint(value)
		}
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func (s source) getEnv(key, fallback string) string {
	if value, ok := s.file[key]; ok && value != "" {
		fallback = value
	}
	return getEnv(key, fallback)
}

func (s source) getEnvInt(key string, fallback int) int {
	if value := s.getEnv(key, ""); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func (s source) getEnvFloat(key string, fallback float64) float64 {
	if value := s.getEnv(key, ""); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func (s source) getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := s.getEnv(key, "")
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	return fallback
}

func (s source) buildPostgresURL() string {
	user := s.getEnv("POSTGRES_USER", "portfolio")
	password := s.getEnv("POSTGRES_PASSWORD", "portfolio")
	host := s.getEnv("POSTGRES_HOST", "localhost")
	port := s.getEnv("POSTGRES_PORT", "5432")
	database := s.getEnv("POSTGRES_DB", "portfolio_chat")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, database)
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".pfchat", "state.db")
	}
	return filepath.Join(home, ".pfchat", "state.db")
}
