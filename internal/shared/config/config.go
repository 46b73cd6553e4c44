package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// EndpointRoute binds a model-name keyword to an OpenAI-compatible
// upstream and its credential. Routes are evaluated in order; the
// first matcher contained in the lowercased model name wins.
type EndpointRoute struct {
	Matcher string
	BaseURL string
	APIKey  string
}

// Config holds all configuration for the gateway
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Self-hosted inference server
	LocalBaseURL string
	LocalModel   string

	// Hosted providers
	GeminiAPIKey      string
	OpenRouterAPIKey  string
	OpenRouterReferer string
	OpenRouterTitle   string

	// OpenAI-compatible upstreams, keyed by model keyword
	OpenAIRoutes []EndpointRoute

	// Fallback when no entitled selection exists and the local
	// server is unreachable
	DefaultHostedModel string

	// Aggregator catalog caching
	CatalogTTLSeconds int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		LocalBaseURL:       getEnv("LOCAL_BASE_URL", "http://localhost:5001/v1"),
		LocalModel:         getEnv("LOCAL_MODEL", "koboldcpp"),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		OpenRouterAPIKey:   getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterReferer:  getEnv("OPENROUTER_REFERER", "https://chaicafe.me/"),
		OpenRouterTitle:    getEnv("OPENROUTER_TITLE", "Ch.ai Cafe"),
		DefaultHostedModel: getEnv("DEFAULT_HOSTED_MODEL", "mistral-small-latest"),
		CatalogTTLSeconds:  getEnvInt("CATALOG_TTL_SECONDS", 3600),
	}

	cfg.OpenAIRoutes = []EndpointRoute{
		{Matcher: "mistral", BaseURL: getEnv("MISTRAL_BASE_URL", "https://api.mistral.ai/v1"), APIKey: getEnv("MISTRAL_API_KEY", "")},
		{Matcher: "deepseek", BaseURL: getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"), APIKey: getEnv("DEEPSEEK_API_KEY", "")},
		{Matcher: "gpt", BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"), APIKey: getEnv("OPENAI_API_KEY", "")},
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
