package auth

import (
	"log/slog"
	"net/http"

	"github.com/ablauf-dev/ablauf/pkg/observability"
)

// DefaultBypassEndpoints never require authentication: probes and metrics
// scrapes must work without credentials.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}

// Middleware wraps a handler tree with the auth chain and, when a limiter
// is given, per-tier rate limiting. Paths on the bypass list skip both.
// The identity of an admitted request is placed in the context for
// downstream handlers.
func Middleware(chain *AuthChain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			identity, ok := admit(w, r, chain)
			if !ok {
				return
			}

			if limiter != nil && limiter.Allow(r.Context(), identity) != nil {
				slog.Warn("rate limit exceeded",
					"subject", identity.Subject,
					"tier", identity.ServiceTier,
				)
				observability.RateLimitRejectedTotal.WithLabelValues(identity.ServiceTier).Inc()
				writeAuthError(w, "too_many_requests", "rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), identity)))
		})
	}
}

// admit runs the chain and writes the rejection when the request fails
// authentication.
func admit(w http.ResponseWriter, r *http.Request, chain *AuthChain) (*Identity, bool) {
	result := chain.Authenticate(r.Context(), r)

	if result.Decision != Yes || result.Identity == nil {
		if result.Err != nil {
			slog.Warn("authentication failed",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"error", result.Err,
			)
		}
		writeAuthError(w, "invalid_request", "authentication required", http.StatusUnauthorized)
		return nil, false
	}

	// A Yes vote with no subject is an authenticator bug, not a client
	// error.
	if result.Identity.Subject == "" {
		slog.Error("authenticator returned identity with empty subject")
		writeAuthError(w, "server_error", "internal authentication error", http.StatusInternalServerError)
		return nil, false
	}

	slog.Debug("authentication succeeded",
		"subject", result.Identity.Subject,
		"path", r.URL.Path,
	)
	return result.Identity, true
}

// writeAuthError emits the standard error body without importing the
// transport packages, keeping auth free of that dependency.
func writeAuthError(w http.ResponseWriter, errType, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":{"type":"` + errType + `","message":"` + message + `"}}`))
}
