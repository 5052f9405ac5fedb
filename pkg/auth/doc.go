// Package auth is the gateway's pluggable authentication layer.
//
// Authenticators form a chain with three-outcome voting. Each one
// inspects the request and answers Yes (identity established), No
// (credentials present but invalid), or Abstain (not my credential
// type). When every authenticator abstains, a configurable default
// decides between admitting the request anonymously and rejecting it.
//
// The whole layer is ordinary HTTP middleware, so the engine never
// touches credentials or identities.
package auth
