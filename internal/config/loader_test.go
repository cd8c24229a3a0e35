package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 12, cfg.Orchestrator.MaxCycles)
	assert.Equal(t, 5, cfg.Pipeline.ClassifyConcurrency)
	assert.Equal(t, 3, cfg.Pipeline.EstimateConcurrency)
}

func TestLoadRequiresStoreDSN(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRequiresLLMKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Unsetenv("ANTHROPIC_API_KEY")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadBearerTokenFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("HOUSING_AGENT_BEARER_TOKEN", "tok-abc")
	t.Setenv("HOUSING_AGENT_BEARER_USER_ID", "u1")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Len(t, cfg.Auth.Tokens, 1)
	assert.Equal(t, "tok-abc", cfg.Auth.Tokens[0].Token)
	assert.Equal(t, "u1", cfg.Auth.Tokens[0].UserID)
}
