// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...Option) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

// Store backend identifiers.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the persistence backend: "postgres" or "memory".
	Store string `koanf:"store"`

	// Postgres connection parameters. Credentials carry no defaults and
	// must be supplied externally when Store is "postgres".
	PostgresUser     string `koanf:"postgres_user"`
	PostgresPassword string `koanf:"postgres_password"`
	PostgresHost     string `koanf:"postgres_host"`
	PostgresPort     int    `koanf:"postgres_port"`
	PostgresDB       string `koanf:"postgres_db"`

	// KafkaBrokers lists broker addresses, e.g. ["kafka:9092"].
	KafkaBrokers []string `koanf:"kafka_brokers"`

	// KafkaTopic names the activity topic to consume.
	KafkaTopic string `koanf:"kafka_topic"`

	// KafkaGroup is the consumer group identity, fixed per deployment.
	KafkaGroup string `koanf:"kafka_group"`

	// RecentLimit is the default row count for GET /recent.
	RecentLimit int `koanf:"recent_limit"`

	// MaxRecentLimit caps GET /recent?limit.
	MaxRecentLimit int `koanf:"max_recent_limit"`

	// ObserverBuffer bounds each observer's outbound queue. A full queue
	// drops the observer instead of blocking the broadcast pass.
	ObserverBuffer int `koanf:"observer_buffer"`

	// ObserverWriteTimeoutMS bounds a single websocket write.
	ObserverWriteTimeoutMS int `koanf:"observer_write_timeout_ms"`

	// StoreOpTimeoutMS bounds one store operation, pool acquisition included.
	StoreOpTimeoutMS int `koanf:"store_op_timeout_ms"`

	// WriteRetryMaxElapsedMS bounds the backoff retry window around a
	// persistence write before the failure becomes fatal to the consumer.
	WriteRetryMaxElapsedMS int `koanf:"write_retry_max_elapsed_ms"`

	// DedupeSize sets the redelivery guard capacity; 0 disables the guard.
	DedupeSize int `koanf:"dedupe_size"`

	// MemoryStoreCap bounds the in-memory store backend.
	MemoryStoreCap int `koanf:"memory_store_cap"`
}

// New creates a Config with defaults. Store credentials are deliberately
// left empty; Load validates them when the postgres backend is selected.
func New() *Config {
	c := &Config{
		LogLevel:               "info",
		Addr:                   ":9080",
		Store:                  StorePostgres,
		PostgresPort:           5432,
		KafkaBrokers:           []string{"kafka:9092"},
		KafkaTopic:             "student-activity",
		KafkaGroup:             "bridge-consumer",
		RecentLimit:            20,
		MaxRecentLimit:         100,
		ObserverBuffer:         64,
		ObserverWriteTimeoutMS: 5_000,
		StoreOpTimeoutMS:       5_000,
		WriteRetryMaxElapsedMS: 30_000,
		DedupeSize:             50_000,
		MemoryStoreCap:         10_000,
	}
	return c
}
