package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConciergeEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"REDIS_URL", "WA_CONSUMER_GROUP", "WA_MAX_DELIVERIES", "WA_BASE_BACKOFF",
		"WA_MAX_BACKOFF", "WA_TOKENS_PER_SECOND", "WA_BUCKET_CAPACITY", "WA_READ_COUNT",
		"WA_READ_BLOCK_MS", "WA_STREAM_CLAIM_IDLE_MS", "WA_WORKER_CONCURRENCY",
		"WA_OPTIMISTIC_SEND", "WA_CHECK_CONN_TTL", "WA_IDLE_SLEEP_BASE",
		"EVOLUTION_API_URL", "EVOLUTION_SERVER_URL", "EVOLUTION_API_KEY",
		"WA_EVOLUTION_HTTP_TIMEOUT", "MEM0_TIMEOUT_MS", "MEM0_READS_ENABLED",
		"MEM0_SHADOW_MODE", "FAST_PATH_ENABLED", "CANARY_SAMPLE_RATE",
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	} {
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearConciergeEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis://localhost:6379/0", cfg.Queue.RedisURL)
	assert.Equal(t, "wa_workers", cfg.Queue.ConsumerGroup)
	assert.Equal(t, 5, cfg.Queue.MaxDeliveries)
	assert.Equal(t, 2*time.Second, cfg.Queue.BaseBackoff)
	assert.Equal(t, 60*time.Second, cfg.Queue.MaxBackoff)
	assert.Equal(t, 4, cfg.Queue.WorkerConcurrency)
	assert.True(t, cfg.Queue.OptimisticSend)

	assert.Equal(t, "https://evolution-api.example.com", cfg.Evolution.BaseURL)
	assert.True(t, cfg.Flags.FastPathEnabled)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoadEvolutionURLFallback(t *testing.T) {
	clearConciergeEnv(t)
	t.Setenv("EVOLUTION_SERVER_URL", "https://legacy.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://legacy.example.com", cfg.Evolution.BaseURL)
}

func TestLoadEvolutionURLPrefersPrimary(t *testing.T) {
	clearConciergeEnv(t)
	t.Setenv("EVOLUTION_API_URL", "https://primary.example.com")
	t.Setenv("EVOLUTION_SERVER_URL", "https://legacy.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://primary.example.com", cfg.Evolution.BaseURL)
}

func TestLoadOverrides(t *testing.T) {
	clearConciergeEnv(t)
	t.Setenv("WA_MAX_DELIVERIES", "9")
	t.Setenv("WA_WORKER_CONCURRENCY", "16")
	t.Setenv("WA_OPTIMISTIC_SEND", "false")
	t.Setenv("DB_PORT", "6543")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Queue.MaxDeliveries)
	assert.Equal(t, 16, cfg.Queue.WorkerConcurrency)
	assert.False(t, cfg.Queue.OptimisticSend)
	assert.Equal(t, 6543, cfg.Database.Port)
}

func TestLoadInvalidDBPort(t *testing.T) {
	clearConciergeEnv(t)
	t.Setenv("DB_PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
}

func TestMem0TimeoutFloor(t *testing.T) {
	clearConciergeEnv(t)
	t.Setenv("MEM0_TIMEOUT_MS", "100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.Memory.Mem0TimeoutMS)
}
