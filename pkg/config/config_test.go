package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 10, c.Engine.MinimumAlignment)
	assert.Equal(t, 0.95, c.Engine.ConfidenceCap)
	assert.Equal(t, 720*time.Hour, c.Engine.Retention)
	assert.Equal(t, "signalfuse.ticks", c.Kafka.TicksTopic)
	assert.True(t, c.Adapters.Projection)
	assert.NoError(t, c.Validate())
}

func TestLoad_OverridesAndAdapterDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: production
engine:
  minimum_alignment: 12
adapters:
  remote:
    - domain: weather
      url: http://weather:9000/signature
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 12, c.Engine.MinimumAlignment)
	assert.Equal(t, 0.2, c.Engine.MomentumCutoff)
	require.Len(t, c.Adapters.Remote, 1)
	assert.Equal(t, 3*time.Second, c.Adapters.Remote[0].Timeout)
	assert.Equal(t, 5.0, c.Adapters.Remote[0].RPS)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeConfig(t, "engine:\n  confidence_cap: 1.5\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "finnhub:\n  enabled: true\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "kafka:\n  enabled: true\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PORT", "9090")
	c, err := LoadWithEnv(writeConfig(t, "environment: test\n"))
	require.NoError(t, err)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 9090, c.Server.Port)
}
