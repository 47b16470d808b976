package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"APP_ENV", "HTTP_ADDR", "LOG_LEVEL", "STORAGE_DRIVER", "MONGO_URI", "MONGO_DB", "POSTGRES_DSN",
	"KAFKA_BROKERS", "KAFKA_TOPIC_PREFIX", "KAFKA_CONSUMER_GROUP", "NOTIFICATIONS_TOPIC",
	"IDEMP_TTL", "OUTBOX_POLL_INTERVAL", "RETRY_BACKOFF", "AVAILABILITY_BULK_CONCURRENCY",
	"AVAILABILITY_MAX_INSTANCES", "METRICS_ENABLED",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 8, cfg.BulkConcurrency)
	assert.Equal(t, 366, cfg.MaxInstances)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	assert.True(t, cfg.MetricsEnabled)
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoadDriverRequirements(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"mongo without uri", map[string]string{"STORAGE_DRIVER": "mongo"}, "MONGO_URI"},
		{"postgres without dsn", map[string]string{"STORAGE_DRIVER": "postgres"}, "POSTGRES_DSN"},
		{"unknown driver", map[string]string{"STORAGE_DRIVER": "redis"}, "STORAGE_DRIVER"},
		{"kafka on memory", map[string]string{"KAFKA_BROKERS": "localhost:9092"}, "durable"},
		{"bad concurrency", map[string]string{"AVAILABILITY_BULK_CONCURRENCY": "0"}, "positive"},
		{"bad bool", map[string]string{"METRICS_ENABLED": "maybe"}, "METRICS_ENABLED"},
		{"bad backoff", map[string]string{"RETRY_BACKOFF": "1s,soon"}, "RETRY_BACKOFF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadPostgresWithKafka(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_DRIVER", "Postgres")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/rentfleet?sslmode=disable")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("KAFKA_TOPIC_PREFIX", "dev.")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StorageDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "dev.availability.block-created", cfg.Topic("availability.block-created"))
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9999")
	// present-but-empty variables count as set for godotenv
	require.NoError(t, os.Unsetenv("AVAILABILITY_MAX_INSTANCES"))
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDR=:7000\nAVAILABILITY_MAX_INSTANCES=30\n"), 0o600))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 30, cfg.MaxInstances)
}
