package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads an optional YAML file at path, overlays environment variables
// (loading a .env file first via godotenv, matching the pack's env-overlay
// idiom), applies defaults, and validates required fields. An empty path
// skips the YAML layer entirely.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else {
			decoder := yaml.NewDecoder(strings.NewReader(string(data)))
			decoder.KnownFields(true)
			if err := decoder.Decode(cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environment variables win over
// whatever the YAML file says, the same precedence the pack's loaders use.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("HOUSING_AGENT_ADDR")); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.Store.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_MODEL")); v != "" {
		cfg.LLM.DefaultModel = v
	}
	if v := strings.TrimSpace(os.Getenv("HOUSING_AGENT_MAX_CYCLES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.MaxCycles = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("HOUSING_AGENT_BEARER_TOKEN")); v != "" {
		userID := strings.TrimSpace(os.Getenv("HOUSING_AGENT_BEARER_USER_ID"))
		if userID == "" {
			userID = "default"
		}
		cfg.Auth.Tokens = append(cfg.Auth.Tokens, BearerTokenConfig{Token: v, UserID: userID})
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
}

func (c *Config) validate() error {
	if c.Store.DSN == "" {
		return errors.New("config: store.dsn (or DATABASE_URL) is required")
	}
	if c.LLM.APIKey == "" {
		return errors.New("config: llm.api_key (or ANTHROPIC_API_KEY) is required")
	}
	return nil
}
