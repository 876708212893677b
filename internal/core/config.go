package core

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/orchestrai/orchestrai/internal/jira"
	"github.com/orchestrai/orchestrai/internal/llm"
)

// Config holds the process configuration. It is resolved once at startup and
// handed to the gateways as explicit structs.
type Config struct {
	Agent      *AgentProfile
	HTTPListen string
	LogLevel   slog.Level

	// LogLevelInvalid is set when LOG_LEVEL held a value that could not be
	// parsed; the level then falls back to INFO.
	LogLevelInvalid string

	// ToolAllowlist limits the tools the agent exposes; empty exposes all.
	ToolAllowlist string

	LLM  llm.Config
	Jira jira.Config
}

// LoadDotEnv loads variables from path into the process environment.
// A missing file is not an error. Variables already set are kept.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadConfig builds a Config from the given environment lookup.
func LoadConfig(getenv func(string) string) (*Config, error) {
	profile, err := LoadProfile(getenv("AGENT"))
	if err != nil {
		return nil, fmt.Errorf("invalid AGENT: %w", err)
	}

	cfg := &Config{
		Agent:         profile,
		HTTPListen:    envOrDefault(getenv, "AGENT_HTTP_LISTEN", profile.Listen),
		LogLevel:      slog.LevelInfo,
		ToolAllowlist: strings.TrimSpace(getenv("AGENT_TOOL_ALLOWLIST")),
		LLM: llm.Config{
			Provider: strings.ToLower(envOrDefault(getenv, "LLM_PROVIDER", llm.ProviderStub)),
			APIKey:   strings.TrimSpace(getenv("GROQ_API_KEY")),
			Model:    envOrDefault(getenv, "GROQ_MODEL", llm.DefaultGroqModel),
			BaseURL:  envOrDefault(getenv, "GROQ_BASE_URL", llm.DefaultGroqBaseURL),
		},
		Jira: jira.Config{
			URL:        strings.TrimRight(strings.TrimSpace(getenv("JIRA_URL")), "/"),
			Email:      strings.TrimSpace(getenv("JIRA_EMAIL")),
			Token:      strings.TrimSpace(getenv("JIRA_API_TOKEN")),
			ProjectKey: envOrDefault(getenv, "JIRA_PROJECT_KEY", jira.DefaultProjectKey),
		},
	}

	if raw := strings.TrimSpace(getenv("LOG_LEVEL")); raw != "" {
		level, ok := ParseLogLevel(raw)
		if !ok {
			cfg.LogLevelInvalid = raw
		}
		cfg.LogLevel = level
	}

	if cfg.LLM.Provider == llm.ProviderGroq && cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY is not set")
	}
	return cfg, nil
}

// ParseLogLevel accepts slog level names plus the WARNING and CRITICAL
// spellings. Unknown values yield INFO and false.
func ParseLogLevel(raw string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "WARNING":
		return slog.LevelWarn, true
	case "CRITICAL", "FATAL":
		return slog.LevelError, true
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, false
	}
	return level, true
}

func envOrDefault(getenv func(string) string, key, fallback string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return fallback
}
