// Package noop disables authentication. Every request is admitted under
// a shared anonymous identity, which is only acceptable for local
// development setups.
package noop

import (
	"context"
	"net/http"

	"github.com/ablauf-dev/ablauf/pkg/auth"
)

// Authenticator admits all requests unconditionally.
type Authenticator struct{}

func New() *Authenticator { return &Authenticator{} }

// Authenticate returns Yes with the anonymous identity for any request.
func (a *Authenticator) Authenticate(context.Context, *http.Request) auth.AuthResult {
	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:     "anonymous",
			ServiceTier: "default",
			Metadata:    map[string]string{"auth_method": "noop"},
		},
	}
}
