// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Dialogue engine names.
const (
	EngineScripted = "scripted"
	EngineRasa     = "rasa"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	DBPath          string
	LogLevel        string
	DialogueEngine  string
	MediaDir        string
	AllowedOrigins  []string
	Rasa            RasaConfig
	LLM             LLMConfig
	Scheduler       SchedulerConfig
	NurtureInterval time.Duration
}

// RasaConfig points at an external Rasa server.
type RasaConfig struct {
	URL     string
	Timeout time.Duration
}

// LLMConfig configures the Ollama-compatible fallback model.
type LLMConfig struct {
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// SchedulerConfig controls the message scheduler worker.
type SchedulerConfig struct {
	Tick          time.Duration
	FailurePolicy string
	MaxAttempts   int
	RetryBackoff  time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "5000"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/chatbot.db"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DialogueEngine: strings.ToLower(getEnv("DIALOGUE_ENGINE", EngineScripted)),
		MediaDir:       getEnv("MEDIA_DIR", "data/knowledge_base"),
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		Rasa: RasaConfig{
			URL:     getEnv("RASA_URL", "http://localhost:5005"),
			Timeout: getEnvDuration("RASA_TIMEOUT", 10*time.Second),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("MISTRAL_BASE_URL", "http://localhost:11434"),
			Model:       getEnv("MISTRAL_MODEL_NAME", "mistral"),
			Temperature: getEnvFloat("MISTRAL_TEMPERATURE", 0.7),
			MaxTokens:   getEnvInt("MISTRAL_MAX_TOKENS", 512),
			Timeout:     getEnvDuration("LLM_TIMEOUT", 30*time.Second),
		},
		Scheduler: SchedulerConfig{
			Tick:          getEnvDuration("SCHEDULER_TICK", time.Second),
			FailurePolicy: strings.ToLower(getEnv("SCHEDULER_FAILURE_POLICY", "retry")),
			MaxAttempts:   getEnvInt("SCHEDULER_MAX_ATTEMPTS", 3),
			RetryBackoff:  getEnvDuration("SCHEDULER_RETRY_BACKOFF", 5*time.Second),
		},
		NurtureInterval: getEnvDuration("NURTURE_INTERVAL", 10*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.DialogueEngine {
	case EngineScripted:
	case EngineRasa:
		if c.Rasa.URL == "" {
			return fmt.Errorf("RASA_URL cannot be empty when DIALOGUE_ENGINE=rasa")
		}
	default:
		return fmt.Errorf("DIALOGUE_ENGINE must be %q or %q, got %q", EngineScripted, EngineRasa, c.DialogueEngine)
	}
	switch c.Scheduler.FailurePolicy {
	case "retry", "drop":
	default:
		return fmt.Errorf("SCHEDULER_FAILURE_POLICY must be \"retry\" or \"drop\", got %q", c.Scheduler.FailurePolicy)
	}
	if c.Scheduler.Tick <= 0 {
		return fmt.Errorf("SCHEDULER_TICK must be > 0")
	}
	if c.Scheduler.MaxAttempts <= 0 {
		return fmt.Errorf("SCHEDULER_MAX_ATTEMPTS must be > 0")
	}
	if c.NurtureInterval < 0 {
		return fmt.Errorf("NURTURE_INTERVAL cannot be negative")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("MISTRAL_MAX_TOKENS must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go durations ("1500ms") or plain seconds ("30").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsContainer returns true if running inside a Docker container.
func IsContainer() bool {
	if getEnvBool("CONTAINER", false) {
		return true
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}
