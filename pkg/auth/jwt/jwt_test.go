package jwt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ablauf-dev/ablauf/pkg/auth"
	jwtlib "github.com/golang-jwt/jwt/v5"
)

const (
	testKID      = "test-key-1"
	testIssuer   = "https://auth.example.com"
	testAudience = "my-api"
)

var signingKey *rsa.PrivateKey

func init() {
	var err error
	signingKey, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(fmt.Sprintf("generating test RSA key: %v", err))
	}
}

// serveJWKS starts a JWKS endpoint publishing the test key and returns an
// authenticator pointed at it. fetches, when non-nil, counts endpoint hits.
func serveJWKS(t *testing.T, fetches *atomic.Int32, override func(*Config)) *Authenticator {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fetches != nil {
			fetches.Add(1)
		}
		pub := signingKey.PublicKey
		doc := map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": testKID,
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(server.Close)

	cfg := Config{
		Issuer:   testIssuer,
		Audience: testAudience,
		JWKSURL:  server.URL + "/.well-known/jwks.json",
	}
	if override != nil {
		override(&cfg)
	}
	return New(cfg)
}

// signToken signs standard claims merged with extra, keyed by the test kid.
func signToken(t *testing.T, extra jwtlib.MapClaims) string {
	t.Helper()
	claims := jwtlib.MapClaims{
		"sub": "user-123",
		"iss": testIssuer,
		"aud": testAudience,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	for k, v := range extra {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	token.Header["kid"] = testKID
	signed, err := token.SignedString(signingKey)
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return signed
}

func authenticate(authn *Authenticator, authorization string) auth.AuthResult {
	r := httptest.NewRequest("GET", "/", nil)
	if authorization != "" {
		r.Header.Set("Authorization", authorization)
	}
	return authn.Authenticate(context.Background(), r)
}

func TestTokenValidation(t *testing.T) {
	tests := []struct {
		name   string
		claims jwtlib.MapClaims
		want   auth.AuthDecision
	}{
		{"valid token", nil, auth.Yes},
		{"expired", jwtlib.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()}, auth.No},
		{"wrong audience", jwtlib.MapClaims{"aud": "wrong-api"}, auth.No},
		{"wrong issuer", jwtlib.MapClaims{"iss": "https://evil.example.com"}, auth.No},
		{"missing sub", jwtlib.MapClaims{"sub": nil}, auth.No},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authn := serveJWKS(t, nil, nil)
			result := authenticate(authn, "Bearer "+signToken(t, tt.claims))
			if result.Decision != tt.want {
				t.Fatalf("Decision = %d, want %d (err=%v)", result.Decision, tt.want, result.Err)
			}
			if tt.want == auth.Yes && result.Identity.Subject != "user-123" {
				t.Errorf("Subject = %q, want user-123", result.Identity.Subject)
			}
		})
	}
}

func TestNonBearerCredentialsAbstain(t *testing.T) {
	authn := serveJWKS(t, nil, nil)
	for _, header := range []string{"", "Basic dXNlcjpwYXNz"} {
		if result := authenticate(authn, header); result.Decision != auth.Abstain {
			t.Errorf("header %q: Decision = %d, want Abstain", header, result.Decision)
		}
	}
}

func TestMalformedTokensRejected(t *testing.T) {
	authn := serveJWKS(t, nil, nil)
	for _, token := range []string{"", "not-a-jwt", "eyJhbGciOiJSUzI1NiJ9.invalidpayload"} {
		if result := authenticate(authn, "Bearer "+token); result.Decision != auth.No {
			t.Errorf("token %q: Decision = %d, want No", token, result.Decision)
		}
	}
}

func TestTierClaimFeedsServiceTier(t *testing.T) {
	authn := serveJWKS(t, nil, nil)
	result := authenticate(authn, "Bearer "+signToken(t, jwtlib.MapClaims{"tier": "premium"}))
	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes (err=%v)", result.Decision, result.Err)
	}
	if result.Identity.ServiceTier != "premium" {
		t.Errorf("ServiceTier = %q, want premium", result.Identity.ServiceTier)
	}
}

func TestScopeClaimForms(t *testing.T) {
	tests := []struct {
		name  string
		scope any
		want  []string
	}{
		{"space separated", "read write admin", []string{"read", "write", "admin"}},
		{"json array", []any{"read", "write"}, []string{"read", "write"}},
		{"absent", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authn := serveJWKS(t, nil, nil)
			result := authenticate(authn, "Bearer "+signToken(t, jwtlib.MapClaims{"scope": tt.scope}))
			if result.Decision != auth.Yes {
				t.Fatalf("Decision = %d, want Yes (err=%v)", result.Decision, result.Err)
			}
			if !reflect.DeepEqual(result.Identity.Scopes, tt.want) {
				t.Errorf("Scopes = %v, want %v", result.Identity.Scopes, tt.want)
			}
		})
	}
}

func TestJWKSFetchedOncePerTTL(t *testing.T) {
	var fetches atomic.Int32
	authn := serveJWKS(t, &fetches, nil)
	token := signToken(t, nil)

	for i := 0; i < 5; i++ {
		if result := authenticate(authn, "Bearer "+token); result.Decision != auth.Yes {
			t.Fatalf("request %d: Decision = %d, want Yes (err=%v)", i, result.Decision, result.Err)
		}
	}
	if n := fetches.Load(); n != 1 {
		t.Errorf("JWKS fetched %d times, want 1", n)
	}
}

func TestCustomClaimNames(t *testing.T) {
	authn := serveJWKS(t, nil, func(cfg *Config) {
		cfg.UserClaim = "email"
		cfg.TierClaim = "plan"
		cfg.ScopesClaim = "permissions"
	})

	token := signToken(t, jwtlib.MapClaims{
		"email":       "alice@example.com",
		"plan":        "enterprise",
		"permissions": "read write",
	})
	result := authenticate(authn, "Bearer "+token)
	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes (err=%v)", result.Decision, result.Err)
	}
	id := result.Identity
	if id.Subject != "alice@example.com" || id.ServiceTier != "enterprise" {
		t.Errorf("identity = %+v, want alice@example.com/enterprise", id)
	}
	if !reflect.DeepEqual(id.Scopes, []string{"read", "write"}) {
		t.Errorf("Scopes = %v, want [read write]", id.Scopes)
	}
}

func TestOptionalIssuerAndAudienceChecks(t *testing.T) {
	t.Run("issuer check disabled", func(t *testing.T) {
		authn := serveJWKS(t, nil, func(cfg *Config) { cfg.Issuer = "" })
		token := signToken(t, jwtlib.MapClaims{"iss": "https://any-issuer.example.com"})
		if result := authenticate(authn, "Bearer "+token); result.Decision != auth.Yes {
			t.Fatalf("Decision = %d, want Yes (err=%v)", result.Decision, result.Err)
		}
	})

	t.Run("audience check disabled", func(t *testing.T) {
		authn := serveJWKS(t, nil, func(cfg *Config) { cfg.Audience = "" })
		token := signToken(t, jwtlib.MapClaims{"aud": "any-api"})
		if result := authenticate(authn, "Bearer "+token); result.Decision != auth.Yes {
			t.Fatalf("Decision = %d, want Yes (err=%v)", result.Decision, result.Err)
		}
	})
}
