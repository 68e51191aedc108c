package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"alumnus/pkg/platform/dedupe"
)

// Server captures process-level configuration.
type Server struct {
	Addr               string
	LogLevel           string
	LogFormat          string
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
	AlumniSeedFile     string
	Database           Database
	Redis              RedisConfig
	Auth               Auth
	Kafka              Kafka
	RateLimit          RateLimit
}

// Database configures the PostgreSQL pool. An empty URL selects in-memory stores.
type Database struct {
	URL             string
	Driver          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	TxTimeout       time.Duration
}

// RedisConfig configures the session store. An empty URL selects the in-memory store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Auth configures token issuance.
type Auth struct {
	JWTSigningKey   string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Kafka configures the consent outbox publisher. No brokers disables it.
type Kafka struct {
	Brokers            []string
	ConsentTopic       string
	TopicPartitions    int32
	ReplicationFactor  int16
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

// RateLimit configures per-client request windows. Counters live in Redis when
// it is configured and fall back to process memory otherwise.
type RateLimit struct {
	Disabled               bool
	AuthPerWindow          int
	AccountWritesPerWindow int
	Window                 time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; real
// environment variables win.
func FromEnv() Server {
	_ = godotenv.Load()

	return Server{
		Addr:               getEnv("ADDR", ":8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		AlumniSeedFile:     os.Getenv("ALUMNI_SEED_FILE"),
		Database: Database{
			URL:             os.Getenv("DATABASE_URL"),
			Driver:          getEnv("DB_DRIVER", "pgx"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			TxTimeout:       getDuration("TX_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Auth: Auth{
			// Use a default for development - should be overridden in production
			JWTSigningKey:   getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:       getEnv("JWT_ISSUER", "alumnus"),
			JWTAudience:     getEnv("JWT_AUDIENCE", "alumnus-api"),
			AccessTokenTTL:  getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		},
		Kafka: Kafka{
			Brokers:            getList("KAFKA_BROKERS", nil),
			ConsentTopic:       getEnv("CONSENT_TOPIC", "consent-events"),
			TopicPartitions:    int32(getInt("CONSENT_TOPIC_PARTITIONS", 3)),
			ReplicationFactor:  int16(getInt("CONSENT_TOPIC_REPLICATION", 1)),
			OutboxPollInterval: getDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			OutboxBatchSize:    getInt("OUTBOX_BATCH_SIZE", 100),
		},
		RateLimit: RateLimit{
			Disabled:               getBool("RATE_LIMIT_DISABLED", false),
			AuthPerWindow:          getInt("RATE_LIMIT_AUTH", 10),
			AccountWritesPerWindow: getInt("RATE_LIMIT_ACCOUNT_WRITES", 30),
			Window:                 getDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return dedupe.Trimmed(strings.Split(v, ","))
}
