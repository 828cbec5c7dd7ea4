// Package config loads the settings shared by crm_api and activity_processor
// from configs/<process>.env, overridden by environment variables.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config is the full settings tree. Each process reads the sections it needs.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
	Auth        AuthConfig
	CORS        CORSConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
	TrustedProxies  []string      // Proxies allowed to set X-Forwarded-For; empty trusts none
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	ActivityTopic     string
	NumPartitions     int // Number of partitions for topics
	ReplicationFactor int // Replication factor for topics
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string // Topic for Dead Letter Queue
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig contains cache configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration // Lifetime of cached dashboard summaries
}

// OutboxConfig contains outbox pattern configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int           // Maximum number of retry attempts for outbox messages
	ClaimTimeout     time.Duration // A claimed message becomes pending again after this long
	Retention        time.Duration // Processed messages older than this are purged; zero keeps them
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of workers in the pool
}

// AuthConfig contains staff authentication settings
type AuthConfig struct {
	JWTSecret          string
	Issuer             string
	TokenExpiry        time.Duration
	LoginRatePerSecond float64 // Sustained login attempts allowed per client IP
	LoginBurst         int

	// Seeded on crm_api startup when the staff table is empty
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// CORSConfig contains cross-origin settings for the browser console
type CORSConfig struct {
	AllowedOrigins []string
}

const minJWTSecretLen = 32

// SampleJWTSecret is the secret shipped in configs/crm_api.env for local runs
const SampleJWTSecret = "local-development-secret-change-me-now"

// RequireTokenSigning checks the settings a token-issuing process cannot
// start without. The secret has no default.
func (c *Config) RequireTokenSigning() error {
	switch {
	case c.Auth.JWTSecret == "":
		return errors.New("AUTH_JWT_SECRET is required")
	case len(c.Auth.JWTSecret) < minJWTSecretLen:
		return errors.New("AUTH_JWT_SECRET must be at least 32 characters")
	case c.Application.Env == "production" && c.Auth.JWTSecret == SampleJWTSecret:
		return errors.New("AUTH_JWT_SECRET must not be the sample secret in production")
	}
	return nil
}

// validate reports every setting that is missing or out of range at once
func (c *Config) validate() error {
	rules := []struct {
		ok  bool
		msg string
	}{
		{c.Server.Port > 0, "SERVER_PORT must be greater than 0"},
		{c.Server.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0"},
		{c.Server.ReadTimeout > 0, "SERVER_READ_TIMEOUT must be greater than 0"},
		{c.Server.WriteTimeout > 0, "SERVER_WRITE_TIMEOUT must be greater than 0"},
		{c.Server.IdleTimeout > 0, "SERVER_IDLE_TIMEOUT must be greater than 0"},

		{c.Kafka.Brokers != "", "KAFKA_BROKERS is required"},
		{c.Kafka.ActivityTopic != "", "KAFKA_ACTIVITY_TOPIC is required"},
		{c.Kafka.ConsumerGroup != "", "KAFKA_CONSUMER_GROUP is required"},
		{c.Kafka.MinBytes > 0, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0"},
		{c.Kafka.MaxBytes >= c.Kafka.MinBytes, "KAFKA_CONSUMER_MAX_BYTES must not be below KAFKA_CONSUMER_MIN_BYTES"},
		{c.Kafka.MaxWait > 0, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0"},
		{c.Kafka.DLQTopic != c.Kafka.ActivityTopic, "KAFKA_DLQ_TOPIC must differ from KAFKA_ACTIVITY_TOPIC"},

		{c.Postgres.URL != "", "POSTGRES_URL is required"},
		{c.Postgres.MinConns > 0, "POSTGRES_MIN_CONNS must be greater than 0"},
		{c.Postgres.MaxConns >= c.Postgres.MinConns, "POSTGRES_MAX_CONNS must not be below POSTGRES_MIN_CONNS"},
		{c.Postgres.ConnMaxLifetime > 0, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0"},
		{c.Postgres.ConnMaxIdleTime > 0, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0"},

		{c.MongoDB.URI != "", "MONGO_URI is required"},
		{c.MongoDB.Database != "", "MONGO_DATABASE is required"},
		{c.MongoDB.Timeout > 0, "MONGO_TIMEOUT must be greater than 0"},
		{c.MongoDB.MinPoolSize > 0, "MONGO_MIN_POOL_SIZE must be greater than 0"},
		{c.MongoDB.MaxPoolSize >= c.MongoDB.MinPoolSize, "MONGO_MAX_POOL_SIZE must not be below MONGO_MIN_POOL_SIZE"},
		{c.MongoDB.MaxConnIdleTime > 0, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0"},

		{c.Redis.Addr != "", "REDIS_ADDR is required"},
		{c.Redis.CacheTTL > 0, "REDIS_CACHE_TTL must be greater than 0"},

		{c.Outbox.PollingInterval > 0, "OUTBOX_POLLING_INTERVAL must be greater than 0"},
		{c.Outbox.BatchSize > 0, "OUTBOX_BATCH_SIZE must be greater than 0"},
		{c.Outbox.MaxRetryAttempts > 0, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0"},
		{c.Outbox.ClaimTimeout > 0, "OUTBOX_CLAIM_TIMEOUT must be greater than 0"},
		{c.Outbox.Retention >= 0, "OUTBOX_RETENTION cannot be negative"},

		{c.WorkerPool.Size > 0, "WORKER_POOL_SIZE must be greater than 0"},

		{c.Auth.JWTSecret == "" || len(c.Auth.JWTSecret) >= minJWTSecretLen, "AUTH_JWT_SECRET must be at least 32 characters"},
		{c.Auth.TokenExpiry > 0, "AUTH_TOKEN_EXPIRY must be greater than 0"},
		{c.Auth.LoginRatePerSecond > 0, "AUTH_LOGIN_RATE_PER_SECOND must be greater than 0"},
		{c.Auth.LoginBurst > 0, "AUTH_LOGIN_BURST must be greater than 0"},
	}

	var failed []string
	for _, rule := range rules {
		if !rule.ok {
			failed = append(failed, rule.msg)
		}
	}
	if len(failed) > 0 {
		return errors.New(strings.Join(failed, ", "))
	}
	return nil
}
