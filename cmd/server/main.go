// Command server runs the ablauf streaming gateway.
//
// Configuration is loaded from a YAML file (discovered via -config,
// ABLAUF_CONFIG, ./config.yaml, or /etc/ablauf/config.yaml) with
// ABLAUF_* environment variable overrides. See pkg/config for the
// full schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ablauf-dev/ablauf/pkg/auth"
	"github.com/ablauf-dev/ablauf/pkg/auth/apikey"
	"github.com/ablauf-dev/ablauf/pkg/auth/jwt"
	"github.com/ablauf-dev/ablauf/pkg/config"
	"github.com/ablauf-dev/ablauf/pkg/debug"
	"github.com/ablauf-dev/ablauf/pkg/engine"
	"github.com/ablauf-dev/ablauf/pkg/storage/memory"
	"github.com/ablauf-dev/ablauf/pkg/storage/postgres"
	"github.com/ablauf-dev/ablauf/pkg/transport"
	transporthttp "github.com/ablauf-dev/ablauf/pkg/transport/http"
	"github.com/ablauf-dev/ablauf/pkg/workflow"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	debug.Init(cfg.Observability.Logging.Debug, cfg.Observability.Logging.Level)
	logger := slog.Default()

	// Storage backend.
	store, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer store.Close()

	// Entity catalog.
	registry, err := buildRegistry()
	if err != nil {
		return fmt.Errorf("building registry: %w", err)
	}

	// Run engine.
	eng, err := engine.New(registry, store, engine.Config{
		DefaultEntity: cfg.Engine.DefaultEntity,
		UpdateBuffer:  cfg.Engine.UpdateBuffer,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	// Server options.
	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithLogger(logger),
		transporthttp.WithMetrics(cfg.Observability.Metrics.Enabled),
	}

	if authMW := buildAuthMiddleware(cfg); authMW != nil {
		opts = append(opts, transporthttp.WithHTTPMiddleware(authMW))
	}

	srv := transporthttp.NewServer(eng, store, registry, opts...)

	logger.Info("gateway starting",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
		"default_entity", cfg.Engine.DefaultEntity,
	)

	return srv.ListenAndServe()
}

// buildStore creates the response store selected by the configuration.
func buildStore(cfg *config.Config) (transport.ResponseStore, error) {
	switch cfg.Storage.Type {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
	default:
		return memory.New(cfg.Storage.MaxSize), nil
	}
}

// buildRegistry assembles the builtin entity catalog: two demonstration
// agents and a two-stage workflow exercising the full event surface.
func buildRegistry() (*engine.Registry, error) {
	registry := engine.NewRegistry()

	echo := engine.NewAgent("echo", "streams the input back unchanged",
		func(ctx context.Context, input string, emit func(chunk string)) error {
			for _, word := range strings.Fields(input) {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				emit(word + " ")
			}
			return nil
		})

	upper := engine.NewAgent("uppercase", "streams the input back upper-cased",
		func(ctx context.Context, input string, emit func(chunk string)) error {
			emit(strings.ToUpper(input))
			return nil
		})

	pipeline, err := workflow.New("pipeline", "upper-cases the input, then appends an exclamation mark",
		[]workflow.Executor{
			{
				ID: "upper",
				Handle: func(ctx context.Context, input string, emit func(chunk string)) (string, error) {
					out := strings.ToUpper(input)
					emit(out)
					return out, nil
				},
			},
			{
				ID: "exclaim",
				Handle: func(ctx context.Context, input string, emit func(chunk string)) (string, error) {
					out := input + "!"
					emit(out)
					return out, nil
				},
			},
		},
		[]workflow.Edge{{From: "upper", To: "exclaim"}},
	)
	if err != nil {
		return nil, err
	}

	for _, e := range []engine.Entity{echo, upper, engine.NewWorkflowEntity(pipeline)} {
		if err := registry.Register(e); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// buildAuthMiddleware assembles the authentication middleware from the
// configuration. Returns nil when auth is disabled and no rate limiting
// is configured, leaving the handler tree untouched.
func buildAuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	var authenticators []auth.Authenticator
	defaultDecision := auth.Yes

	switch cfg.Auth.Type {
	case "apikey":
		entries := make([]apikey.KeyEntry, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			entries = append(entries, apikey.KeyEntry{
				Key:         k.Key,
				Subject:     k.Subject,
				ServiceTier: k.ServiceTier,
			})
		}
		authenticators = append(authenticators, apikey.New(entries))
		defaultDecision = auth.No
	case "jwt":
		authenticators = append(authenticators, jwt.New(jwt.Config{
			Issuer:   cfg.Auth.JWT.Issuer,
			Audience: cfg.Auth.JWT.Audience,
			JWKSURL:  cfg.Auth.JWT.JWKSURL,
		}))
		defaultDecision = auth.No
	default:
		// Auth disabled. Only wire middleware if rate limiting is on.
		if cfg.Auth.RateLimit.DefaultRPM == 0 && len(cfg.Auth.RateLimit.Tiers) == 0 {
			return nil
		}
	}

	chain := &auth.AuthChain{
		Authenticators:  authenticators,
		DefaultDecision: defaultDecision,
	}

	var limiter auth.RateLimiter
	if cfg.Auth.RateLimit.DefaultRPM > 0 || len(cfg.Auth.RateLimit.Tiers) > 0 {
		tiers := make(map[string]auth.TierConfig, len(cfg.Auth.RateLimit.Tiers))
		for name, rpm := range cfg.Auth.RateLimit.Tiers {
			tiers[name] = auth.TierConfig{RequestsPerMinute: rpm}
		}
		limiter = auth.NewInProcessLimiter(tiers, cfg.Auth.RateLimit.DefaultRPM)
	}

	return auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints)
}
