// Package config defines the gateway configuration and its layered
// loading: built-in defaults, a YAML file, ABLAUF_-prefixed environment
// overrides, and _file secret indirection, validated at the end.
package config

import "time"

// Config is the root of the gateway configuration tree.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Engine        EngineConfig        `yaml:"engine"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig covers the HTTP listener. The generous write timeout
// leaves room for long-lived streaming responses.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// EngineConfig tunes run execution.
type EngineConfig struct {
	// DefaultEntity is used when a request leaves model unset.
	DefaultEntity string `yaml:"default_entity"`

	// UpdateBuffer is the per-run update channel capacity.
	UpdateBuffer int `yaml:"update_buffer"`
}

// StorageConfig selects and tunes the response store.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory" or "postgres"
	MaxSize  int            `yaml:"max_size"` // memory store eviction bound
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig carries connection settings for the postgres store.
// DSNFile points at a file holding the DSN, for secret mounts.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`
	MaxConns       int32  `yaml:"max_conns"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// AuthConfig selects the authentication scheme and optional rate
// limiting.
type AuthConfig struct {
	Type      string          `yaml:"type"` // "none", "apikey", or "jwt"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"`
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig maps one static key to an identity. KeyFile points at a
// file holding the key, for secret mounts.
type APIKeyConfig struct {
	Key         string `yaml:"key"`
	KeyFile     string `yaml:"key_file"`
	Subject     string `yaml:"subject"`
	ServiceTier string `yaml:"service_tier"`
}

// JWTConfig holds OIDC-style token validation settings. Empty Issuer or
// Audience disables that check.
type JWTConfig struct {
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
	JWKSURL  string `yaml:"jwks_url"`
}

// RateLimitConfig maps service tiers to per-minute request budgets.
// Tiers without an entry fall back to DefaultRPM; zero means unlimited.
type RateLimitConfig struct {
	DefaultRPM int            `yaml:"default_rpm"`
	Tiers      map[string]int `yaml:"tiers"`
}

// ObservabilityConfig groups metrics and logging settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig sets the log level (ERROR through TRACE) and the
// comma-separated debug categories. ABLAUF_LOG_LEVEL and ABLAUF_DEBUG
// override both.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Debug string `yaml:"debug"`
}

// Defaults is the base layer every other configuration source amends.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Engine: EngineConfig{UpdateBuffer: 16},
		Storage: StorageConfig{
			Type:     "memory",
			MaxSize:  10000,
			Postgres: PostgresConfig{MaxConns: 25},
		},
		Auth: AuthConfig{Type: "none"},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		},
	}
}
