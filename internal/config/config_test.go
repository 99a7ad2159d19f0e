package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Server.Port)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout())
	assert.Equal(t, "http://localhost:4000/api/chat", cfg.Client.Endpoint)
	assert.Equal(t, "sqlite", cfg.Client.Persistence.Driver)
	assert.Equal(t, "chatbot-messages", cfg.Client.Persistence.Key)
	assert.Equal(t, time.Duration(0), cfg.Client.Timeout())
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "8080"
llm:
  model: "gpt-4.1"
  timeout_seconds: 5
client:
  level: "Advanced"
  persistence:
    driver: "file"
`), 0o644))

	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("KAFKA_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "gpt-4.1", cfg.LLM.Model)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout())
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, "Advanced", cfg.Client.Level)
	assert.Equal(t, "file", cfg.Client.Persistence.Driver)
	// 文件中未给出的字段保持默认值
	assert.Equal(t, "hanna-exchanges", cfg.Kafka.Topic)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
