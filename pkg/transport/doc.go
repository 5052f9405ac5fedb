// Package transport holds the handler interfaces and the middleware
// chain that sit between HTTP clients and the execution engine.
//
// Incoming requests are decoded into the pkg/api protocol types, handed
// to the engine, and the result goes back out either as one JSON
// document or as a server-sent event stream.
//
// # Handler interfaces
//
//   - ResponseCreator runs the create-response operation end to end:
//     pick the entity, execute it, write the outcome.
//   - ResponseStore persists, fetches, and deletes stored responses.
//     Endpoints that need it return 501 when no store is configured.
//   - EntityDirectory backs the entity discovery endpoints with the
//     registered catalog.
//
// ResponseWriter hides the output mode from the handler. The same
// handler code can emit SSE frames or a single JSON body without
// knowing which transport is underneath.
//
// # Middleware
//
// Middleware wraps ResponseCreator with cross-cutting behavior. The
// built-ins cover panic recovery, X-Request-ID assignment, and
// structured logging through log/slog; applications can append their
// own.
package transport
