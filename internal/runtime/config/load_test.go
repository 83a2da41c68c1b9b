package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads; viper treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvConnectionString, EnvHubName,
		"STREAMRELAY_PUBSUB_SYSTEM", "STREAMRELAY_KAFKA_BROKERS", "STREAMRELAY_TOPIC",
		"STREAMRELAY_EVENTHUBS_CONNECTION_STRING", "STREAMRELAY_LISTEN_ADDRESS",
		"STREAMRELAY_BATCH_SIZE", "STREAMRELAY_SEND_TIMEOUT", "STREAMRELAY_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "streamrelay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadLegacyEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConnectionString, testConnectionString)
	t.Setenv(EnvHubName, "ticks")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "kafka", cfg.PubSubSystem)
	assert.Equal(t, testConnectionString, cfg.EventHubsConnectionString)
	assert.Equal(t, "ticks", cfg.Topic)
	assert.Equal(t, "$Default", cfg.KafkaConsumerGroup)
	assert.Equal(t, ":8080", cfg.ListenAddress)
	assert.Equal(t, "/stream", cfg.StreamPath)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.SendTimeout)
	assert.True(t, cfg.MetricsEnabled)
}

func TestLoadPrefixedEnvironmentWins(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvHubName, "legacy")
	t.Setenv("STREAMRELAY_TOPIC", "modern")
	t.Setenv("STREAMRELAY_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("STREAMRELAY_BATCH_SIZE", "25")
	t.Setenv("STREAMRELAY_SEND_TIMEOUT", "250ms")
	t.Setenv("STREAMRELAY_ALLOWED_ORIGINS", "example.com")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "modern", cfg.Topic)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.SendTimeout)
	assert.Equal(t, []string{"example.com"}, cfg.AllowedOrigins)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
pubsub_system: nats
nats_url: nats://localhost:4222
topic: quotes
listen_address: ":9090"
stream_path: /ticks
allowed_origins:
  - "*.example.com"
batch_linger: 20ms
metrics_enabled: false
`)
	t.Setenv("STREAMRELAY_LISTEN_ADDRESS", ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "nats", cfg.PubSubSystem)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, ":7070", cfg.ListenAddress, "environment overrides the file")
	assert.Equal(t, "/ticks", cfg.StreamPath)
	assert.Equal(t, []string{"*.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 20*time.Millisecond, cfg.BatchLinger)
	assert.False(t, cfg.MetricsEnabled)
	assert.True(t, cfg.StatusEnabled)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	clearEnv(t)
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka: brokers or an event hubs connection string are required")
	assert.Contains(t, err.Error(), "topic: required")
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}
