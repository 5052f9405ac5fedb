package auth

import (
	"context"
	"errors"
	"net/http"
)

// AuthDecision is an authenticator's vote on a request.
type AuthDecision int

const (
	// Yes accepts the credentials; the chain stops and the identity wins.
	Yes AuthDecision = iota

	// No rejects credentials that were present but invalid; the chain
	// stops and the request fails.
	No

	// Abstain passes on credentials this authenticator does not handle;
	// the chain moves to the next voter.
	Abstain
)

// AuthResult is one authenticator's verdict. Identity is set only on Yes,
// Err only on No.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity
	Err      error
}

// Identity describes the authenticated caller. Subject must be non-empty;
// ServiceTier selects the rate limit bucket; Metadata carries
// provider-specific details such as the auth method used.
type Identity struct {
	Subject     string
	ServiceTier string
	Scopes      []string
	Metadata    map[string]string
}

// Authenticator inspects a request's credentials and votes.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// AuthChain runs authenticators left to right until one votes Yes or No.
// When every voter abstains, DefaultDecision settles it: Yes admits the
// request under an anonymous identity (open deployments), No rejects it.
type AuthChain struct {
	Authenticators  []Authenticator
	DefaultDecision AuthDecision
}

// Authenticate evaluates the chain for one request.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, voter := range c.Authenticators {
		verdict := voter.Authenticate(ctx, r)
		if verdict.Decision == Abstain {
			continue
		}
		return verdict
	}

	if c.DefaultDecision != Yes {
		return AuthResult{Decision: No, Err: ErrUnauthenticated}
	}
	return AuthResult{
		Decision: Yes,
		Identity: &Identity{Subject: "anonymous", ServiceTier: "default"},
	}
}
