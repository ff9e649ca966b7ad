// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Storage backend selectors.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Search provider selectors.
const (
	ProviderTavily     = "tavily"
	ProviderGoogleNews = "googlenews"
)

// Config holds the application configuration.
type Config struct {
	StorageBackend string
	DatabasePath   string
	RedisAddr      string

	HTTPAddr string
	LogLevel string

	SearchProvider     string
	TavilyAPIKey       string
	MaxResultsPerQuery int

	GroqAPIKey string
	GroqModel  string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromEmail    string

	ToleranceMinutes int

	QuotaScheduledDaily   int
	QuotaInteractiveDaily int
	QuotaMonthlyTotal     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		StorageBackend:     envOrDefault("STORAGE_BACKEND", BackendSQLite),
		DatabasePath:       envOrDefault("DATABASE_PATH", "./data/agent.db"),
		RedisAddr:          envOrDefault("REDIS_ADDR", "localhost:6379"),
		HTTPAddr:           envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		SearchProvider:     envOrDefault("SEARCH_PROVIDER", ProviderTavily),
		TavilyAPIKey:       os.Getenv("TAVILY_API_KEY"),
		GroqAPIKey:         os.Getenv("GROQ_API_KEY"),
		GroqModel:          envOrDefault("GROQ_MODEL", "llama-3.1-70b-versatile"),
		SMTPHost:           os.Getenv("SMTP_HOST"),
		SMTPUsername:       os.Getenv("SMTP_USERNAME"),
		SMTPPassword:       os.Getenv("SMTP_PASSWORD"),
		FromEmail:          envOrDefault("FROM_EMAIL", "noreply@example.com"),
	}

	switch cfg.StorageBackend {
	case BackendSQLite, BackendRedis:
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	switch cfg.SearchProvider {
	case ProviderTavily, ProviderGoogleNews:
	default:
		return nil, fmt.Errorf("unknown SEARCH_PROVIDER %q", cfg.SearchProvider)
	}

	if cfg.SearchProvider == ProviderTavily && cfg.TavilyAPIKey == "" {
		return nil, fmt.Errorf("TAVILY_API_KEY is required for the tavily search provider")
	}
	if cfg.GroqAPIKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY is required")
	}

	var err error
	if cfg.SMTPPort, err = envInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.MaxResultsPerQuery, err = envInt("MAX_RESULTS_PER_QUERY", 5); err != nil {
		return nil, err
	}
	if cfg.ToleranceMinutes, err = envInt("SCHEDULE_TOLERANCE_MINUTES", 5); err != nil {
		return nil, err
	}
	if cfg.QuotaScheduledDaily, err = envInt("QUOTA_SCHEDULED_DAILY", 18); err != nil {
		return nil, err
	}
	if cfg.QuotaInteractiveDaily, err = envInt("QUOTA_INTERACTIVE_DAILY", 20); err != nil {
		return nil, err
	}
	if cfg.QuotaMonthlyTotal, err = envInt("QUOTA_MONTHLY_TOTAL", 980); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SMTPEnabled reports whether outbound SMTP delivery is configured.
// Without it the agent falls back to logging rendered briefings.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}
