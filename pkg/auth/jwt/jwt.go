// Package jwt authenticates bearer tokens as RSA-signed JWTs verified
// against a JWKS endpoint, with configurable issuer, audience, and claim
// names for subject, service tier, and scopes.
package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ablauf-dev/ablauf/pkg/auth"
	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Config controls token validation and claim mapping. Zero values take
// defaults: claim names "sub"/"tier"/"scope", a one hour key cache, and
// http.DefaultClient. Empty Issuer or Audience skips that check.
type Config struct {
	Issuer   string
	Audience string
	JWKSURL  string

	// UserClaim names the claim used as Identity.Subject.
	UserClaim string

	// TierClaim names the claim used as Identity.ServiceTier.
	TierClaim string

	// ScopesClaim names the claim carrying scopes, either a
	// space-separated string or a JSON array.
	ScopesClaim string

	CacheTTL   time.Duration
	HTTPClient *http.Client
}

func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Authenticator votes on bearer tokens: Abstain when the request carries
// no bearer credential, No when the token is present but fails
// validation, Yes with a populated identity otherwise.
type Authenticator struct {
	config Config
	keys   *jwksCache
}

// New creates the authenticator. Keys are fetched lazily on first use.
func New(cfg Config) *Authenticator {
	cfg.applyDefaults()
	return &Authenticator{
		config: cfg,
		keys:   newJWKSCache(cfg.JWKSURL, cfg.CacheTTL, cfg.HTTPClient),
	}
}

// Authenticate validates the Authorization bearer token as a JWT.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.AuthResult {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if raw == "" {
		return reject(errors.New("bearer token is empty"))
	}

	token, err := jwtlib.Parse(raw, a.resolveKey(ctx), a.validationOpts()...)
	if err != nil {
		slog.Debug("jwt rejected", "error", err)
		return reject(fmt.Errorf("token rejected: %w", err))
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return reject(errors.New("token claims unreadable"))
	}

	subject := stringClaim(claims, a.config.UserClaim)
	if subject == "" {
		return reject(fmt.Errorf("token has no %q claim", a.config.UserClaim))
	}

	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:     subject,
			ServiceTier: stringClaim(claims, a.config.TierClaim),
			Scopes:      scopeList(claims, a.config.ScopesClaim),
			Metadata:    map[string]string{"auth_method": "jwt"},
		},
	}
}

func reject(err error) auth.AuthResult {
	return auth.AuthResult{Decision: auth.No, Err: err}
}

// resolveKey builds the key func the parser calls before it checks the
// signature: pick the RSA key whose kid matches the token header.
func (a *Authenticator) resolveKey(ctx context.Context) jwtlib.Keyfunc {
	return func(token *jwtlib.Token) (any, error) {
		if _, isRSA := token.Method.(*jwtlib.SigningMethodRSA); !isRSA {
			return nil, fmt.Errorf("unsupported signing algorithm %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header has no kid")
		}
		key, err := a.keys.keyFor(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("resolving signing key %q: %w", kid, err)
		}
		return key, nil
	}
}

func (a *Authenticator) validationOpts() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
	}
	if a.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.config.Issuer))
	}
	if a.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.config.Audience))
	}
	return opts
}

// stringClaim reads a claim as a string, "" when missing or another type.
func stringClaim(claims jwtlib.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}

// scopeList reads the scope claim, accepting both the OAuth
// space-separated string form and a JSON array of strings.
func scopeList(claims jwtlib.MapClaims, name string) []string {
	switch v := claims[name].(type) {
	case string:
		fields := strings.Fields(v)
		if len(fields) == 0 {
			return nil
		}
		return fields
	case []any:
		var out []string
		for _, entry := range v {
			if s, isStr := entry.(string); isStr {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// jwksCache caches the endpoint's RSA public keys by kid, reloading the
// whole set at most once per TTL.
type jwksCache struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu       sync.RWMutex
	byKid    map[string]*rsa.PublicKey
	loadedAt time.Time
}

func newJWKSCache(url string, ttl time.Duration, client *http.Client) *jwksCache {
	return &jwksCache{
		url:    url,
		ttl:    ttl,
		client: client,
		byKid:  make(map[string]*rsa.PublicKey),
	}
}

// keyFor returns the key for kid, reloading the set when the cache is
// stale or the kid is unknown.
func (c *jwksCache) keyFor(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, hit := c.lookup(kid)
	c.mu.RUnlock()
	if hit {
		return key, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// A concurrent caller may have reloaded while we waited.
	if key, hit := c.lookup(kid); hit {
		return key, nil
	}
	if err := c.reload(ctx); err != nil {
		return nil, err
	}
	key, ok := c.byKid[kid]
	if !ok {
		return nil, fmt.Errorf("no JWKS key with kid %q", kid)
	}
	return key, nil
}

// lookup checks the cache under whichever lock the caller holds.
func (c *jwksCache) lookup(kid string) (*rsa.PublicKey, bool) {
	if time.Since(c.loadedAt) >= c.ttl {
		return nil, false
	}
	key, ok := c.byKid[kid]
	return key, ok
}

// reload fetches the JWKS document and swaps in a fresh key map. Caller
// holds the write lock.
func (c *jwksCache) reload(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("building JWKS request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint answered %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwkEntry `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decoding JWKS document: %w", err)
	}

	fresh := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, entry := range doc.Keys {
		if entry.Kty != "RSA" || (entry.Use != "" && entry.Use != "sig") {
			continue
		}
		pub, err := entry.rsaPublicKey()
		if err != nil {
			slog.Warn("ignoring unusable JWKS key", "kid", entry.Kid, "error", err)
			continue
		}
		fresh[entry.Kid] = pub
	}

	c.byKid = fresh
	c.loadedAt = time.Now()
	slog.Debug("jwks keys reloaded", "keys", len(fresh), "url", c.url)
	return nil
}

// jwkEntry is one key of a JWKS document, RSA fields only.
type jwkEntry struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// rsaPublicKey decodes the base64url modulus and exponent.
func (k jwkEntry) rsaPublicKey() (*rsa.PublicKey, error) {
	modulus, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("bad modulus: %w", err)
	}
	exponent, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("bad exponent: %w", err)
	}

	e := new(big.Int).SetBytes(exponent)
	if !e.IsInt64() {
		return nil, errors.New("exponent out of range")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(modulus),
		E: int(e.Int64()),
	}, nil
}
