package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load assembles the configuration in layers: defaults, then a YAML
// file if one is found, then environment overrides, then secret file
// indirection, and finally validation.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if path := findConfigFile(configPath); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	overrideFromEnv(&cfg)

	if err := resolveSecretFiles(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// findConfigFile resolves the config file location. An explicit path or
// ABLAUF_CONFIG wins; otherwise the first existing well-known location
// is used, and "" means run on defaults alone.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if path := os.Getenv("ABLAUF_CONFIG"); path != "" {
		return path
	}
	for _, path := range []string{"config.yaml", "/etc/ablauf/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// overrideFromEnv lets the most operationally relevant settings be
// changed without editing the config file. Unparseable numeric values
// are ignored rather than fatal.
func overrideFromEnv(cfg *Config) {
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setInt("ABLAUF_PORT", &cfg.Server.Port)
	setString("ABLAUF_DEFAULT_ENTITY", &cfg.Engine.DefaultEntity)
	setString("ABLAUF_STORAGE", &cfg.Storage.Type)
	setInt("ABLAUF_STORAGE_SIZE", &cfg.Storage.MaxSize)
	setString("ABLAUF_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	setString("ABLAUF_AUTH_TYPE", &cfg.Auth.Type)

	// ABLAUF_API_KEYS carries a JSON array of key entries, suited to
	// injection from a secret manager.
	if v := os.Getenv("ABLAUF_API_KEYS"); v != "" {
		var keys []APIKeyConfig
		if err := json.Unmarshal([]byte(v), &keys); err == nil && len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}
}

// resolveSecretFiles fills value fields from their _file counterparts.
// A directly set value always wins over the file reference.
func resolveSecretFiles(cfg *Config) error {
	pg := &cfg.Storage.Postgres
	if pg.DSN == "" && pg.DSNFile != "" {
		val, err := readTrimmed(pg.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		pg.DSN = val
	}

	for i := range cfg.Auth.APIKeys {
		entry := &cfg.Auth.APIKeys[i]
		if entry.Key != "" || entry.KeyFile == "" {
			continue
		}
		val, err := readTrimmed(entry.KeyFile)
		if err != nil {
			return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
		}
		entry.Key = val
	}
	return nil
}

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
