package transport

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/ablauf-dev/ablauf/pkg/api"
)

// RequestID returns middleware that ensures every run carries a request
// ID in its context. An ID already present (the HTTP adapter seeds one
// from the X-Request-ID header) wins; otherwise a fresh one is generated.
func RequestID() Middleware {
	return func(next ResponseCreator) ResponseCreator {
		return ResponseCreatorFunc(func(ctx context.Context, req *api.CreateResponseRequest, w ResponseWriter) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, newRequestID())
			}
			return next.CreateResponse(ctx, req, w)
		})
	}
}

// newRequestID returns 16 random bytes hex-encoded.
func newRequestID() string {
	var b [16]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
