package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

var knownKeys = []string{
	"STORAGE_BACKEND", "DATABASE_PATH", "REDIS_ADDR", "HTTP_ADDR", "LOG_LEVEL",
	"SEARCH_PROVIDER", "TAVILY_API_KEY", "MAX_RESULTS_PER_QUERY",
	"GROQ_API_KEY", "GROQ_MODEL",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "FROM_EMAIL",
	"SCHEDULE_TOLERANCE_MINUTES",
	"QUOTA_SCHEDULED_DAILY", "QUOTA_INTERACTIVE_DAILY", "QUOTA_MONTHLY_TOTAL",
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name:    "missing groq key",
			env:     map[string]string{"TAVILY_API_KEY": "tvly-x"},
			wantErr: true,
		},
		{
			name:    "tavily provider requires tavily key",
			env:     map[string]string{"GROQ_API_KEY": "gsk-x"},
			wantErr: true,
		},
		{
			name: "keys only, defaults applied",
			env: map[string]string{
				"GROQ_API_KEY":   "gsk-x",
				"TAVILY_API_KEY": "tvly-x",
			},
			want: &Config{
				StorageBackend:        BackendSQLite,
				DatabasePath:          "./data/agent.db",
				RedisAddr:             "localhost:6379",
				HTTPAddr:              ":8080",
				LogLevel:              "info",
				SearchProvider:        ProviderTavily,
				TavilyAPIKey:          "tvly-x",
				MaxResultsPerQuery:    5,
				GroqAPIKey:            "gsk-x",
				GroqModel:             "llama-3.1-70b-versatile",
				SMTPPort:              587,
				FromEmail:             "noreply@example.com",
				ToleranceMinutes:      5,
				QuotaScheduledDaily:   18,
				QuotaInteractiveDaily: 20,
				QuotaMonthlyTotal:     980,
			},
		},
		{
			name: "googlenews provider does not require tavily key",
			env: map[string]string{
				"GROQ_API_KEY":    "gsk-x",
				"SEARCH_PROVIDER": "googlenews",
			},
			want: &Config{
				StorageBackend:        BackendSQLite,
				DatabasePath:          "./data/agent.db",
				RedisAddr:             "localhost:6379",
				HTTPAddr:              ":8080",
				LogLevel:              "info",
				SearchProvider:        ProviderGoogleNews,
				MaxResultsPerQuery:    5,
				GroqAPIKey:            "gsk-x",
				GroqModel:             "llama-3.1-70b-versatile",
				SMTPPort:              587,
				FromEmail:             "noreply@example.com",
				ToleranceMinutes:      5,
				QuotaScheduledDaily:   18,
				QuotaInteractiveDaily: 20,
				QuotaMonthlyTotal:     980,
			},
		},
		{
			name: "all values set",
			env: map[string]string{
				"GROQ_API_KEY":               "gsk-x",
				"GROQ_MODEL":                 "llama-3.3-70b",
				"TAVILY_API_KEY":             "tvly-x",
				"STORAGE_BACKEND":            "redis",
				"REDIS_ADDR":                 "redis:6379",
				"DATABASE_PATH":              "/tmp/agent.db",
				"HTTP_ADDR":                  ":9000",
				"LOG_LEVEL":                  "debug",
				"SMTP_HOST":                  "smtp.example.com",
				"SMTP_PORT":                  "2525",
				"SMTP_USERNAME":              "u",
				"SMTP_PASSWORD":              "p",
				"FROM_EMAIL":                 "briefings@example.com",
				"MAX_RESULTS_PER_QUERY":      "3",
				"SCHEDULE_TOLERANCE_MINUTES": "10",
				"QUOTA_SCHEDULED_DAILY":      "9",
				"QUOTA_INTERACTIVE_DAILY":    "11",
				"QUOTA_MONTHLY_TOTAL":        "500",
			},
			want: &Config{
				StorageBackend:        BackendRedis,
				DatabasePath:          "/tmp/agent.db",
				RedisAddr:             "redis:6379",
				HTTPAddr:              ":9000",
				LogLevel:              "debug",
				SearchProvider:        ProviderTavily,
				TavilyAPIKey:          "tvly-x",
				MaxResultsPerQuery:    3,
				GroqAPIKey:            "gsk-x",
				GroqModel:             "llama-3.3-70b",
				SMTPHost:              "smtp.example.com",
				SMTPPort:              2525,
				SMTPUsername:          "u",
				SMTPPassword:          "p",
				FromEmail:             "briefings@example.com",
				ToleranceMinutes:      10,
				QuotaScheduledDaily:   9,
				QuotaInteractiveDaily: 11,
				QuotaMonthlyTotal:     500,
			},
		},
		{
			name: "unknown storage backend",
			env: map[string]string{
				"GROQ_API_KEY":    "gsk-x",
				"TAVILY_API_KEY":  "tvly-x",
				"STORAGE_BACKEND": "dynamo",
			},
			wantErr: true,
		},
		{
			name: "invalid numeric value",
			env: map[string]string{
				"GROQ_API_KEY":          "gsk-x",
				"TAVILY_API_KEY":        "tvly-x",
				"QUOTA_SCHEDULED_DAILY": "lots",
			},
			wantErr: true,
		},
		{
			name: "non-positive cap rejected",
			env: map[string]string{
				"GROQ_API_KEY":        "gsk-x",
				"TAVILY_API_KEY":      "tvly-x",
				"QUOTA_MONTHLY_TOTAL": "0",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range knownKeys {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSMTPEnabled(t *testing.T) {
	if (&Config{}).SMTPEnabled() {
		t.Error("SMTPEnabled true without SMTP_HOST")
	}
	if !(&Config{SMTPHost: "smtp.example.com"}).SMTPEnabled() {
		t.Error("SMTPEnabled false with SMTP_HOST set")
	}
}
