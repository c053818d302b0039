// Package config loads typed configuration for the concierge process from
// environment variables, with production defaults for every tunable named
// by the system's external-interfaces contract.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// QueueConfig tunes the egress queue-worker (component A).
type QueueConfig struct {
	RedisURL string

	ConsumerGroup string
	MaxDeliveries int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration

	TokensPerSecond float64
	BucketCapacity  int

	ReadCount         int64
	ReadBlock         time.Duration
	ClaimIdle         time.Duration
	WorkerConcurrency int
	OptimisticSend    bool
	CheckConnTTL      time.Duration
	IdleSleepBase     time.Duration
}

// EvolutionConfig configures the outbound WhatsApp provider HTTP client.
type EvolutionConfig struct {
	BaseURL     string
	APIKey      string
	HTTPTimeout time.Duration
}

// MemoryConfig tunes the memory/history subsystem (component J).
type MemoryConfig struct {
	Mem0TimeoutMS  int
	ReadsEnabled   bool
	ShadowMode     bool
	QueueCapacity  int
	LatencyWarning time.Duration
}

// FeatureFlags gates optional behavior across the pipeline.
type FeatureFlags struct {
	FastPathEnabled      bool
	LangGraphLanes       bool
	ConversationFailFast bool
	CanarySampleRate     float64
}

// DatabaseConfig configures the conversation store's PostgreSQL connection.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Config is the root configuration for the concierge process.
type Config struct {
	Queue     QueueConfig
	Evolution EvolutionConfig
	Memory    MemoryConfig
	Flags     FeatureFlags
	Database  DatabaseConfig
}

// Load reads Config from the environment, applying the defaults documented
// in the system's external-interfaces section.
func Load() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	cfg := &Config{
		Queue: QueueConfig{
			RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
			ConsumerGroup:     getEnv("WA_CONSUMER_GROUP", "wa_workers"),
			MaxDeliveries:     getEnvInt("WA_MAX_DELIVERIES", 5),
			BaseBackoff:       getEnvSeconds("WA_BASE_BACKOFF", 2.0),
			MaxBackoff:        getEnvSeconds("WA_MAX_BACKOFF", 60.0),
			TokensPerSecond:   getEnvFloat("WA_TOKENS_PER_SECOND", 1.0),
			BucketCapacity:    getEnvInt("WA_BUCKET_CAPACITY", 5),
			ReadCount:         int64(getEnvInt("WA_READ_COUNT", 32)),
			ReadBlock:         getEnvMillis("WA_READ_BLOCK_MS", 250),
			ClaimIdle:         getEnvMillis("WA_STREAM_CLAIM_IDLE_MS", 15000),
			WorkerConcurrency: getEnvInt("WA_WORKER_CONCURRENCY", 4),
			OptimisticSend:    getEnvBool("WA_OPTIMISTIC_SEND", true),
			CheckConnTTL:      getEnvSeconds("WA_CHECK_CONN_TTL", 3.0),
			IdleSleepBase:     getEnvSeconds("WA_IDLE_SLEEP_BASE", 0.05),
		},
		Evolution: EvolutionConfig{
			BaseURL:     firstNonEmpty(os.Getenv("EVOLUTION_API_URL"), os.Getenv("EVOLUTION_SERVER_URL"), "https://evolution-api.example.com"),
			APIKey:      getEnv("EVOLUTION_API_KEY", ""),
			HTTPTimeout: getEnvSeconds("WA_EVOLUTION_HTTP_TIMEOUT", 15.0),
		},
		Memory: MemoryConfig{
			Mem0TimeoutMS:  maxInt(getEnvInt("MEM0_TIMEOUT_MS", 6000), 800),
			ReadsEnabled:   getEnvBool("MEM0_READS_ENABLED", true),
			ShadowMode:     getEnvBool("MEM0_SHADOW_MODE", false),
			QueueCapacity:  getEnvInt("MEM0_WRITER_QUEUE_CAPACITY", 256),
			LatencyWarning: getEnvSeconds("MEM0_LATENCY_WARNING_SECONDS", 2.0),
		},
		Flags: FeatureFlags{
			FastPathEnabled:      getEnvBool("FAST_PATH_ENABLED", true),
			LangGraphLanes:       getEnvBool("LANGGRAPH_LANES_ENABLED", false),
			ConversationFailFast: getEnvBool("CONVERSATION_LOG_FAIL_FAST", false),
			CanarySampleRate:     getEnvFloat("CANARY_SAMPLE_RATE", 0.0),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            dbPort,
			User:            getEnv("DB_USER", "concierge"),
			Password:        os.Getenv("DB_PASSWORD"),
			Database:        getEnv("DB_NAME", "concierge"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvSeconds("DB_CONN_MAX_LIFETIME_SECONDS", 3600),
			ConnMaxIdleTime: getEnvSeconds("DB_CONN_MAX_IDLE_TIME_SECONDS", 900),
		},
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvSeconds(key string, defSeconds float64) time.Duration {
	return time.Duration(getEnvFloat(key, defSeconds) * float64(time.Second))
}

func getEnvMillis(key string, defMillis int) time.Duration {
	return time.Duration(getEnvInt(key, defMillis)) * time.Millisecond
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
