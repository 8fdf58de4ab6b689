package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/flx-it/assistbot/core/config"
	coredatabase "github.com/flx-it/assistbot/core/database"
)

// OpenAIConfig holds credentials and tuning for the chat/transcription API.
type OpenAIConfig struct {
	Token          string `yaml:"token" envconfig:"OPENAI_TOKEN"`
	BaseURL        string `yaml:"base_url" envconfig:"OPENAI_BASE_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"OPENAI_TIMEOUT_SECONDS"`
}

// StabilityConfig holds credentials for the image generation API.
type StabilityConfig struct {
	Token          string `yaml:"token" envconfig:"STABILITY_API_KEY"`
	BaseURL        string `yaml:"base_url" envconfig:"STABILITY_BASE_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"STABILITY_TIMEOUT_SECONDS"`
}

// TinkoffConfig holds the payment provider terminal credentials.
type TinkoffConfig struct {
	TerminalKey     string `yaml:"terminal_key" envconfig:"TINKOFF_TERMINAL_KEY"`
	Password        string `yaml:"password" envconfig:"TINKOFF_PASSWORD"`
	BaseURL         string `yaml:"base_url" envconfig:"TINKOFF_BASE_URL"`
	NotificationURL string `yaml:"notification_url" envconfig:"TINKOFF_NOTIFICATION_URL"`
}

// APIConfig describes the exposed HTTP API (payment init + provider webhook).
type APIConfig struct {
	Listen string `yaml:"listen" envconfig:"API_LISTEN"`
	Port   int    `yaml:"port" envconfig:"API_PORT"`
}

// ArtifactsConfig controls where undeliverable AI replies are preserved.
type ArtifactsConfig struct {
	Dir          string `yaml:"dir" envconfig:"ARTIFACTS_DIR"`
	RetentionHrs int    `yaml:"retention_hours" envconfig:"ARTIFACTS_RETENTION_HOURS"`
}

// SessionConfig tunes the in-memory session store.
type SessionConfig struct {
	IdleTTLMinutes int `yaml:"idle_ttl_minutes" envconfig:"SESSION_IDLE_TTL_MINUTES"`
}

// Config aggregates the core configuration with bot-specific sections.
type Config struct {
	Core      coreconfig.Config   `yaml:",inline"`
	Database  coredatabase.Config `yaml:"database"`
	OpenAI    OpenAIConfig        `yaml:"openai"`
	Stability StabilityConfig     `yaml:"stability"`
	Tinkoff   TinkoffConfig       `yaml:"tinkoff"`
	API       APIConfig           `yaml:"api"`
	Artifacts ArtifactsConfig     `yaml:"artifacts"`
	Session   SessionConfig       `yaml:"session"`
}

// CoreConfig exposes the embedded core configuration for the shared runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Core
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults after loading.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.OpenAI.Token) == "" {
		return fmt.Errorf("openai.token is required")
	}
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.TimeoutSeconds <= 0 {
		cfg.OpenAI.TimeoutSeconds = 120
	}

	if cfg.Stability.BaseURL == "" {
		cfg.Stability.BaseURL = "https://api.stability.ai"
	}
	if cfg.Stability.TimeoutSeconds <= 0 {
		cfg.Stability.TimeoutSeconds = 120
	}

	if cfg.Tinkoff.BaseURL == "" {
		cfg.Tinkoff.BaseURL = "https://securepay.tinkoff.ru/v2"
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = "0.0.0.0"
	}
	if cfg.API.Port <= 0 {
		cfg.API.Port = 8020
	}

	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = "messages"
	}
	if cfg.Artifacts.RetentionHrs <= 0 {
		cfg.Artifacts.RetentionHrs = 72
	}

	if cfg.Session.IdleTTLMinutes <= 0 {
		cfg.Session.IdleTTLMinutes = 24 * 60
	}
	return nil
}
