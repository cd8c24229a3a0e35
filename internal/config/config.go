// Package config is the process-wide configuration tree: a YAML file
// overlaid with environment variables (optionally loaded from a .env
// file). The types live in config.go and loading in loader.go, scoped
// down to what this module's components actually take.
package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Store        StoreConfig        `yaml:"store"`
	LLM          LLMConfig          `yaml:"llm"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Auth         AuthConfig         `yaml:"auth"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig configures the gateway's HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig configures the Postgres-backed durable store.
type StoreConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// LLMConfig configures the Anthropic-backed completion provider.
type LLMConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
	MaxRetries   int    `yaml:"max_retries"`
}

// OrchestratorConfig configures one conversational turn.
type OrchestratorConfig struct {
	SystemPrompt string `yaml:"system_prompt"`
	Model        string `yaml:"model"`
	MaxTokens    int    `yaml:"max_tokens"`
	MaxCycles    int    `yaml:"max_cycles"`
}

// AuthConfig declares the static bearer tokens the gateway accepts. An
// empty list disables auth (local/dev mode).
type AuthConfig struct {
	Tokens []BearerTokenConfig `yaml:"tokens"`
}

// BearerTokenConfig binds one static bearer token to a user ID.
type BearerTokenConfig struct {
	Token  string `yaml:"token"`
	UserID string `yaml:"user_id"`
}

// PipelineConfig bounds the analysis pipeline's concurrency.
type PipelineConfig struct {
	ClassifyConcurrency int `yaml:"classify_concurrency"`
	EstimateConcurrency int `yaml:"estimate_concurrency"`
}

// LoggingConfig configures the process-wide slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// applyDefaults fills in zero-valued fields a fresh deployment needs to
// run without a config file at all.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Store.MaxOpenConns == 0 {
		c.Store.MaxOpenConns = 10
	}
	if c.Store.MaxIdleConns == 0 {
		c.Store.MaxIdleConns = 5
	}
	if c.Store.ConnMaxLifetime == 0 {
		c.Store.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Store.ConnectTimeout == 0 {
		c.Store.ConnectTimeout = 5 * time.Second
	}
	if c.LLM.DefaultModel == "" {
		c.LLM.DefaultModel = "claude-sonnet-4-20250514"
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 3
	}
	if c.Orchestrator.Model == "" {
		c.Orchestrator.Model = c.LLM.DefaultModel
	}
	if c.Orchestrator.MaxTokens == 0 {
		c.Orchestrator.MaxTokens = 4096
	}
	if c.Orchestrator.MaxCycles == 0 {
		c.Orchestrator.MaxCycles = 12
	}
	if c.Pipeline.ClassifyConcurrency == 0 {
		c.Pipeline.ClassifyConcurrency = 5
	}
	if c.Pipeline.EstimateConcurrency == 0 {
		c.Pipeline.EstimateConcurrency = 3
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}
