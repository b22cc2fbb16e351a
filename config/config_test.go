package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "0 8 * * *", cfg.Cron.Daily)
	assert.Equal(t, "0 9 1 * *", cfg.Cron.Monthly)
	assert.Equal(t, 10, cfg.News.MaxItems)
	assert.Equal(t, time.Hour, cfg.News.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.News.Timeout)
	assert.Equal(t, 5, cfg.Pipeline.DailyTopN)
	assert.Equal(t, 7, cfg.Pipeline.MonthlyTopN)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: "8081"
news:
  max_items: 6
  cache_ttl: 30m
pipeline:
  monthly_top_n: 42
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	t.Setenv("DAILY_CRON", "*/5 * * * *")
	t.Setenv("NEWS_API_KEY", "news-key")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("NEWS_KEYWORDS", "AI, robotics ,")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.GetServerAddress())
	assert.Equal(t, 6, cfg.News.MaxItems)
	assert.Equal(t, 30*time.Minute, cfg.News.CacheTTL)
	assert.Equal(t, "*/5 * * * *", cfg.Cron.Daily)
	assert.Equal(t, "news-key", cfg.News.APIKey)
	assert.Equal(t, "sk-test", cfg.LLM.ApiKey)
	assert.Equal(t, []string{"AI", "robotics"}, cfg.News.Keywords)
	// monthly selection is clamped into 5..10
	assert.Equal(t, 10, cfg.Pipeline.MonthlyTopN)
	// monthly cap never drops below the daily cap
	assert.GreaterOrEqual(t, cfg.News.MonthlyMaxItems, cfg.News.MaxItems)
}

func TestMissingCredentials(t *testing.T) {
	cfg := Default()
	assert.Equal(t, []string{"NEWS_API_KEY", "LLM_API_KEY"}, cfg.MissingCredentials())

	cfg.News.APIKey = "n"
	cfg.LLM.ApiKey = "your_openai_api_key_here"
	assert.Equal(t, []string{"LLM_API_KEY"}, cfg.MissingCredentials())

	cfg.LLM.ApiKey = "sk-real"
	assert.Empty(t, cfg.MissingCredentials())
}

func TestGetServerAddress(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":3000", cfg.GetServerAddress())

	cfg.Server.Port = "127.0.0.1:9000"
	assert.Equal(t, "127.0.0.1:9000", cfg.GetServerAddress())
}
