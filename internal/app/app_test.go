package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trend-agent/internal/config"
	"github.com/trend-agent/pkg/logger"
	"github.com/trend-agent/pkg/metrics"
	"github.com/trend-agent/pkg/ratelimit"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestNewBackends(t *testing.T) {
	cfg := loadConfig(t)
	cfg.HuggingFace.APIToken = ""
	cfg.Anthropic.APIKey = ""
	cfg.OpenAI.APIKey = ""
	assert.Empty(t, NewBackends(cfg, ratelimit.Unlimited(), logger.Nop()))

	cfg.HuggingFace.APIToken = "hf"
	cfg.Anthropic.APIKey = "sk-ant"
	backends := NewBackends(cfg, ratelimit.Unlimited(), logger.Nop())
	assert.Len(t, backends, len(cfg.HuggingFace.Models)+1)
}

func TestNewTrendSource(t *testing.T) {
	cfg := loadConfig(t)

	for provider, name := range map[string]string{"google": "google", "twitter": "twitter", "static": "static"} {
		cfg.Trends.Provider = provider
		src, err := NewTrendSource(cfg, logger.Nop())
		require.NoError(t, err)
		assert.Equal(t, name, src.Name())
	}

	cfg.Trends.Provider = "bing"
	_, err := NewTrendSource(cfg, logger.Nop())
	assert.Error(t, err)
}

func TestNew_WithHistory(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Trends.Provider = "static"
	cfg.Database.Enabled = true
	cfg.Database.DSN = filepath.Join(t.TempDir(), "history.db")

	a, err := New(cfg, logger.Nop(), metrics.New())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Repo)
	assert.NotNil(t, a.Pipeline)
	assert.Nil(t, a.Tracker)
}

func TestOpenRepository_UnknownDriver(t *testing.T) {
	_, err := OpenRepository(config.DatabaseConfig{Driver: "postgres"})
	assert.Error(t, err)
}
