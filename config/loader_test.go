package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, 0.5, cfg.Retrieval.DistanceThreshold)
	assert.Equal(t, 0.1, cfg.Retrieval.RerankThreshold)
	assert.Equal(t, 20, cfg.Retrieval.MaxCandidateCount)
	assert.Equal(t, 2, cfg.Retrieval.GraphHopLimit)
	assert.False(t, cfg.Web.Enabled)
	assert.False(t, cfg.Rerank.Enabled)
	require.NoError(t, ValidateRetrieval(cfg))
}

func TestLoadFromYAMLFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
llm:
  model: qwen-plus
  timeout: 45s
retrieval:
  top_k: 3
  distance_threshold: 0.7
web:
  enabled: true
  api_key: tvly-test
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := NewLoader().
		WithConfigPath(path).
		WithValidator(ValidateRetrieval).
		WithValidator(ValidateWeb).
		Load()
	require.NoError(t, err)

	assert.Equal(t, "qwen-plus", cfg.LLM.Model)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 0.7, cfg.Retrieval.DistanceThreshold)
	assert.True(t, cfg.Web.Enabled)
	// 未覆盖的项保持默认值
	assert.Equal(t, 20, cfg.Retrieval.MaxCandidateCount)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KFTEST_RETRIEVAL_TOP_K", "7")
	t.Setenv("KFTEST_LLM_MODEL", "deepseek-chat")
	t.Setenv("KFTEST_REDIS_ENABLED", "true")
	t.Setenv("KFTEST_RETRIEVAL_SOURCE_TIMEOUT", "3s")

	cfg, err := NewLoader().WithEnvPrefix("KFTEST").Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Retrieval.TopK)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 3*time.Second, cfg.Retrieval.SourceTimeout)
}

func TestValidators(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Retrieval.DistanceThreshold = 1.5
	assert.Error(t, ValidateRetrieval(cfg))

	cfg = DefaultConfig()
	cfg.Retrieval.TopK = 0
	assert.Error(t, ValidateRetrieval(cfg))

	cfg = DefaultConfig()
	cfg.Web.Enabled = true
	assert.Error(t, ValidateWeb(cfg))

	cfg = DefaultConfig()
	cfg.Rerank.Enabled = true
	cfg.Rerank.APIKey = "jina-key"
	assert.NoError(t, ValidateRerank(cfg))
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger(LogConfig{Level: "verbose"})
	assert.Error(t, err)

	_, err = NewLogger(LogConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
