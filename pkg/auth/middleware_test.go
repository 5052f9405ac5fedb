package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// serve runs one request through the middleware-wrapped handler.
func serve(mw func(http.Handler) http.Handler, next http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func ok() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareBypassSkipsAuth(t *testing.T) {
	mw := Middleware(&AuthChain{DefaultDecision: No}, nil, []string{"/healthz"})

	if rec := serve(mw, ok(), "GET", "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("bypass path: status = %d, want 200", rec.Code)
	}
	if rec := serve(mw, ok(), "POST", "/v1/responses"); rec.Code != http.StatusUnauthorized {
		t.Errorf("non-bypass path: status = %d, want 401", rec.Code)
	}
}

func TestMiddlewareInjectsIdentity(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{vote{AuthResult{
			Decision: Yes,
			Identity: &Identity{Subject: "alice", Scopes: []string{"responses:write"}},
		}}},
		DefaultDecision: No,
	}
	mw := Middleware(chain, nil, DefaultBypassEndpoints)

	var seen *Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	if rec := serve(mw, next, "POST", "/v1/responses"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if seen == nil || seen.Subject != "alice" {
		t.Fatalf("identity in context = %+v, want subject alice", seen)
	}
	if len(seen.Scopes) != 1 || seen.Scopes[0] != "responses:write" {
		t.Errorf("Scopes = %v, want [responses:write]", seen.Scopes)
	}
}

func TestMiddlewareEmptySubjectIsServerError(t *testing.T) {
	chain := &AuthChain{
		Authenticators:  []Authenticator{vote{AuthResult{Decision: Yes, Identity: &Identity{}}}},
		DefaultDecision: No,
	}
	mw := Middleware(chain, nil, DefaultBypassEndpoints)

	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true })

	rec := serve(mw, next, "POST", "/v1/responses")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if reached {
		t.Error("handler reached despite broken identity")
	}
}

func TestMiddlewareRateLimiting(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{vote{AuthResult{
			Decision: Yes,
			Identity: &Identity{Subject: "alice", ServiceTier: "limited"},
		}}},
		DefaultDecision: No,
	}
	limiter := NewInProcessLimiter(map[string]TierConfig{
		"limited": {RequestsPerMinute: 2},
	}, 100)
	mw := Middleware(chain, limiter, DefaultBypassEndpoints)

	for i := 0; i < 2; i++ {
		if rec := serve(mw, ok(), "POST", "/v1/responses"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
	if rec := serve(mw, ok(), "POST", "/v1/responses"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("over-budget request: status = %d, want 429", rec.Code)
	}
}

func TestMiddlewareNilLimiterNeverRejects(t *testing.T) {
	chain := &AuthChain{Authenticators: []Authenticator{yes("alice")}}
	mw := Middleware(chain, nil, DefaultBypassEndpoints)

	for i := 0; i < 100; i++ {
		if rec := serve(mw, ok(), "POST", "/v1/responses"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
}
