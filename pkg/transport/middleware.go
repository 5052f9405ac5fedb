package transport

import "context"

// Middleware decorates a ResponseCreator with cross-cutting behavior.
// Ordering follows the usual convention: the first middleware handed to
// Chain is the outermost wrapper.
type Middleware func(ResponseCreator) ResponseCreator

// Chain folds several middleware into one. Chain(a, b, c) yields
// a(b(c(next))).
func Chain(middlewares ...Middleware) Middleware {
	return func(next ResponseCreator) ResponseCreator {
		wrapped := next
		for i := len(middlewares) - 1; i >= 0; i-- {
			wrapped = middlewares[i](wrapped)
		}
		return wrapped
	}
}

type requestIDKey struct{}

// ContextWithRequestID stores a request ID in the context for later
// retrieval by logging and error reporting.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID carried by the context, or
// "" when none was set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
