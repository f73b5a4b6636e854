package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if BRIDGE_CONFIG is set
//  3. env (prefix BRIDGE_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("BRIDGE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: BRIDGE_ADDR, BRIDGE_KAFKA_TOPIC, ...
	// Map env keys like BRIDGE_KAFKA_TOPIC -> kafka_topic (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("BRIDGE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "bridge_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	// BRIDGE_KAFKA_BROKERS may arrive as one comma-separated env value.
	cfg.KafkaBrokers = splitBrokers(cfg.KafkaBrokers)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitBrokers expands comma-separated entries inside the broker list.
func splitBrokers(brokers []string) []string {
	out := make([]string, 0, len(brokers))
	for _, b := range brokers {
		for _, part := range strings.Split(b, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// validate enforces the invariants Load guarantees to callers.
func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case len(c.KafkaBrokers) == 0:
		return fmt.Errorf("%w: kafka_brokers must not be empty", ErrInvalidConfig)
	case c.KafkaTopic == "":
		return fmt.Errorf("%w: kafka_topic must not be empty", ErrInvalidConfig)
	case c.KafkaGroup == "":
		return fmt.Errorf("%w: kafka_group must not be empty", ErrInvalidConfig)
	case c.RecentLimit <= 0 || c.RecentLimit > c.MaxRecentLimit:
		return fmt.Errorf("%w: recent_limit must be in (0, max_recent_limit]", ErrInvalidConfig)
	}

	switch c.Store {
	case StoreMemory:
		// no credentials required
	case StorePostgres:
		// No defaults for store credentials: all of these are deployment-supplied.
		switch {
		case c.PostgresUser == "":
			return fmt.Errorf("%w: postgres_user is required", ErrInvalidConfig)
		case c.PostgresPassword == "":
			return fmt.Errorf("%w: postgres_password is required", ErrInvalidConfig)
		case c.PostgresHost == "":
			return fmt.Errorf("%w: postgres_host is required", ErrInvalidConfig)
		case c.PostgresDB == "":
			return fmt.Errorf("%w: postgres_db is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store)
	}

	return nil
}

// PostgresDSN assembles the pool connection string from the configured parts.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}
