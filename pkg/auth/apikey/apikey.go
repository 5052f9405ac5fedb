// Package apikey implements static API key authentication.
//
// Keys are compared against SHA-256 hashes in constant time. Intended for
// development and small single-operator deployments; production setups
// should prefer JWT.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/ablauf-dev/ablauf/pkg/auth"
)

// KeyEntry maps an API key to an identity.
type KeyEntry struct {
	// Key is the plaintext API key. Hashed at construction time.
	Key string

	// Subject identifies the caller this key belongs to.
	Subject string

	// ServiceTier for rate limiting.
	ServiceTier string
}

// Authenticator validates Bearer tokens against a static key set.
type Authenticator struct {
	entries []hashedEntry
}

type hashedEntry struct {
	hash        [sha256.Size]byte
	subject     string
	serviceTier string
}

// New creates an API key authenticator from the given entries.
func New(entries []KeyEntry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		a.entries = append(a.entries, hashedEntry{
			hash:        sha256.Sum256([]byte(e.Key)),
			subject:     e.Subject,
			serviceTier: e.ServiceTier,
		})
	}
	return a
}

// Authenticate checks the Authorization header for a matching API key.
// Abstains when no Bearer credentials are present so other authenticators
// in the chain can run.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	// JWTs have two dots; let the JWT authenticator handle those.
	if strings.Count(token, ".") == 2 {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	candidate := sha256.Sum256([]byte(token))

	// Compare against every entry to keep timing independent of match position.
	var matched *hashedEntry
	for i := range a.entries {
		if subtle.ConstantTimeCompare(candidate[:], a.entries[i].hash[:]) == 1 {
			matched = &a.entries[i]
		}
	}

	if matched == nil {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:     matched.subject,
			ServiceTier: matched.serviceTier,
			Metadata: map[string]string{
				"auth_method": "apikey",
				"key_hash":    hex.EncodeToString(matched.hash[:8]),
			},
		},
	}
}
