package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers []string
	KafkaGroupID string

	// Posting gateway
	GatewayServiceURL     string
	GatewayRequestTimeout time.Duration

	// Dispatch engine
	RetryAttempts         int
	RetryDelay            time.Duration
	PostProcessingTimeout time.Duration
	SchedulerPollInterval time.Duration

	// Channel testing
	ChannelTestIdempotencyTTL time.Duration

	// Social network catalog
	NetworkCatalogPath string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "postwave"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "postwave123"),
		PostgresDB:       getEnv("POSTGRES_DB", "postwave"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "postwave-platform"),

		GatewayServiceURL:     getEnv("GATEWAY_SERVICE_URL", "http://localhost:9100"),
		GatewayRequestTimeout: getDuration("GATEWAY_REQUEST_TIMEOUT", 10*time.Second),

		RetryAttempts:         getIntEnv("DISPATCH_RETRY_ATTEMPTS", 3),
		RetryDelay:            getDuration("DISPATCH_RETRY_DELAY", 500*time.Millisecond),
		PostProcessingTimeout: getDuration("POST_PROCESSING_TIMEOUT", 60*time.Second),
		SchedulerPollInterval: getDuration("SCHEDULER_POLL_INTERVAL", 30*time.Second),

		ChannelTestIdempotencyTTL: getDuration("CHANNEL_TEST_IDEMPOTENCY_TTL", 10*time.Minute),

		NetworkCatalogPath: getEnv("NETWORK_CATALOG_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
