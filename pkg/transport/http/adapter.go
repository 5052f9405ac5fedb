package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ablauf-dev/ablauf/pkg/api"
	"github.com/ablauf-dev/ablauf/pkg/storage"
	"github.com/ablauf-dev/ablauf/pkg/transport"
)

// Adapter exposes the responses API and the entity catalog over HTTP.
type Adapter struct {
	creator   transport.ResponseCreator
	store     transport.ResponseStore     // nil when running stateless
	directory transport.EntityDirectory   // nil disables the catalog
	inflight  *transport.InFlightRegistry // active streams, for DELETE cancellation
	mux       *http.ServeMux
	config    Config
	logger    *slog.Logger
}

// Config holds the adapter settings.
type Config struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout int // seconds
}

// DefaultConfig listens on :8080 and caps request bodies at 10 MB.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodySize:     10 << 20,
		ShutdownTimeout: 30,
	}
}

// NewAdapter wires the creator, optional store, and optional entity
// directory into an HTTP route table. Endpoints whose backing component
// is nil answer 501. Middlewares wrap the creator in the given order.
func NewAdapter(creator transport.ResponseCreator, store transport.ResponseStore, directory transport.EntityDirectory, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		creator = transport.Chain(middlewares...)(creator)
	}

	a := &Adapter{
		creator:   creator,
		store:     store,
		directory: directory,
		inflight:  transport.NewInFlightRegistry(),
		mux:       http.NewServeMux(),
		config:    cfg,
		logger:    slog.Default(),
	}

	a.mux.HandleFunc("POST /v1/responses", a.handleCreateResponse)
	a.mux.HandleFunc("GET /v1/responses", a.handleListResponses)
	a.mux.HandleFunc("GET /v1/responses/{id}", a.handleGetResponse)
	a.mux.HandleFunc("DELETE /v1/responses/{id}", a.handleDeleteResponse)
	a.mux.HandleFunc("GET /v1/entities", a.handleListEntities)
	a.mux.HandleFunc("GET /v1/entities/{name}", a.handleGetEntity)
	return a
}

// SetLogger replaces the adapter's logger.
func (a *Adapter) SetLogger(l *slog.Logger) {
	if l != nil {
		a.logger = l
	}
}

// Handler returns the routed handler with X-Request-ID propagation
// applied, ready for an http.Server or httptest.
func (a *Adapter) Handler() http.Handler {
	return requestIDHeaderMiddleware(a.mux)
}

// requestIDHeaderMiddleware carries a client-supplied X-Request-ID into
// the context and reflects whatever ID ends up there (client-sent or
// generated downstream) back on the response.
func requestIDHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			r = r.WithContext(transport.ContextWithRequestID(r.Context(), id))
		}
		next.ServeHTTP(&requestIDResponseWriter{ResponseWriter: w, r: r}, r)
	})
}

// requestIDResponseWriter injects the X-Request-ID header just before
// the first write, when the context holds its final value.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.setRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.setRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) setRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

func (a *Adapter) handleCreateResponse(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" && ct != "application/json" {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.CreateResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge)
			return
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest)
		return
	}

	if req.Stream {
		a.serveStream(w, r, &req)
		return
	}

	rw := newSSEResponseWriter(w, nil)
	if err := a.creator.CreateResponse(r.Context(), &req, rw); err != nil {
		a.writeHandlerError(r, w, rw, err)
	}
}

// serveStream runs a streaming create. The run's cancel func sits in
// the in-flight registry for as long as the stream lives, so DELETE on
// the response ID aborts it.
func (a *Adapter) serveStream(w http.ResponseWriter, r *http.Request, req *api.CreateResponseRequest) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var streamID string
	rw := newSSEResponseWriter(w, func(id string) {
		streamID = id
		a.inflight.Register(id, cancel)
	})

	err := a.creator.CreateResponse(ctx, req, rw)

	if streamID != "" {
		a.inflight.Remove(streamID)
	}
	if err != nil {
		a.writeHandlerError(r, w, rw, err)
	}
}

func (a *Adapter) handleGetResponse(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w, "response retrieval") {
		return
	}
	id, ok := responseIDFromPath(w, r)
	if !ok {
		return
	}

	resp, err := a.store.GetResponse(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, id, err)
		return
	}
	writeJSON(w, resp)
}

// handleDeleteResponse cancels an in-flight stream when the ID matches
// one, otherwise soft-deletes from the store.
func (a *Adapter) handleDeleteResponse(w http.ResponseWriter, r *http.Request) {
	id, ok := responseIDFromPath(w, r)
	if !ok {
		return
	}

	if a.inflight.Cancel(id) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !a.requireStore(w, "response deletion") {
		return
	}

	if err := a.store.DeleteResponse(r.Context(), id); err != nil {
		a.writeStoreError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Adapter) handleListResponses(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w, "response listing") {
		return
	}

	opts, optsErr := parseListOptions(r)
	if optsErr != nil {
		transport.WriteErrorResponse(w, optsErr, http.StatusBadRequest)
		return
	}

	result, err := a.store.ListResponses(r.Context(), opts)
	if err != nil {
		writeAnyError(w, err)
		return
	}
	writeJSON(w, result)
}

func (a *Adapter) handleListEntities(w http.ResponseWriter, r *http.Request) {
	if !a.requireDirectory(w, "entity listing") {
		return
	}

	list := transport.EntityList{Object: "list", Data: a.directory.ListEntities()}
	if list.Data == nil {
		list.Data = []transport.EntityInfo{}
	}
	writeJSON(w, list)
}

func (a *Adapter) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	if !a.requireDirectory(w, "entity retrieval") {
		return
	}

	detail, err := a.directory.GetEntity(r.PathValue("name"))
	if err != nil {
		writeAnyError(w, err)
		return
	}
	writeJSON(w, detail)
}

// requireStore answers 501 and returns false when no store is wired.
func (a *Adapter) requireStore(w http.ResponseWriter, op string) bool {
	if a.store != nil {
		return true
	}
	transport.WriteErrorResponse(w,
		api.NewInvalidRequestError("", op+" is not available (no store configured)"),
		http.StatusNotImplemented)
	return false
}

func (a *Adapter) requireDirectory(w http.ResponseWriter, op string) bool {
	if a.directory != nil {
		return true
	}
	transport.WriteErrorResponse(w,
		api.NewInvalidRequestError("", op+" is not available (no directory configured)"),
		http.StatusNotImplemented)
	return false
}

// responseIDFromPath validates the {id} path segment, writing a 400 on
// malformed IDs.
func responseIDFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !api.ValidateResponseID(id) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("id", "malformed response ID"),
			http.StatusBadRequest)
		return "", false
	}
	return id, true
}

// parseListOptions reads pagination parameters from the query string.
func parseListOptions(r *http.Request) (transport.ListOptions, *api.APIError) {
	q := r.URL.Query()
	opts := transport.ListOptions{
		After:  q.Get("after"),
		Before: q.Get("before"),
		Model:  q.Get("model"),
		Order:  q.Get("order"),
	}

	if opts.After != "" && opts.Before != "" {
		return opts, api.NewInvalidRequestError("after", "cannot use both 'after' and 'before' cursors")
	}
	switch opts.Order {
	case "":
		opts.Order = "desc"
	case "asc", "desc":
	default:
		return opts, api.NewInvalidRequestError("order", "order must be 'asc' or 'desc'")
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return opts, api.NewInvalidRequestError("limit", "limit must be a positive integer")
		}
		opts.Limit = limit
	}
	return opts, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeAnyError passes API errors through and wraps everything else as
// a server error.
func writeAnyError(w http.ResponseWriter, err error) {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		apiErr = api.NewServerError(err.Error())
	}
	transport.WriteAPIError(w, apiErr)
}

// writeStoreError maps store failures for a single ID to an HTTP body.
func (a *Adapter) writeStoreError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		transport.WriteAPIError(w, api.NewNotFoundError("response "+id+" not found"))
		return
	}
	writeAnyError(w, err)
}

// writeHandlerError reports a handler failure. Once streaming has
// begun there is no error frame on the wire: the stream just ends with
// no response.completed, and the failure is only logged.
func (a *Adapter) writeHandlerError(r *http.Request, w http.ResponseWriter, rw *sseResponseWriter, err error) {
	if rw.hasStartedStreaming() {
		a.logger.Error("stream ended before completion",
			slog.String("error", err.Error()),
			slog.String("request_id", transport.RequestIDFromContext(r.Context())),
		)
		return
	}
	writeAnyError(w, err)
}
