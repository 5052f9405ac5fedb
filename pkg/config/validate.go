package config

import (
	"errors"
	"fmt"
)

// Validate checks required fields and value ranges, reporting every
// problem at once so a broken config can be fixed in one pass.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port <= 0 {
		fail("server.port must be > 0, got %d", c.Server.Port)
	}
	if c.Engine.UpdateBuffer < 0 {
		fail("engine.update_buffer must be >= 0, got %d", c.Engine.UpdateBuffer)
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			fail("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is %q", "postgres")
		}
	default:
		fail("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type)
	}

	switch c.Auth.Type {
	case "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			fail("auth.api_keys must not be empty when auth.type is %q", "apikey")
		}
	case "jwt":
		if c.Auth.JWT.JWKSURL == "" {
			fail("auth.jwt.jwks_url is required when auth.type is %q", "jwt")
		}
	default:
		fail("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type)
	}

	return errors.Join(errs...)
}
