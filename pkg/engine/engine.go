package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ablauf-dev/ablauf/pkg/api"
	"github.com/ablauf-dev/ablauf/pkg/debug"
	"github.com/ablauf-dev/ablauf/pkg/observability"
	"github.com/ablauf-dev/ablauf/pkg/transport"
)

// Config holds engine tuning knobs.
type Config struct {
	// DefaultEntity is used when a request omits the model field.
	DefaultEntity string
	// UpdateBuffer is the capacity of the per-run update channel.
	// Zero means the default of 16.
	UpdateBuffer int
}

const defaultUpdateBuffer = 16

// Engine resolves entities and drives their runs. It implements
// transport.ResponseCreator.
type Engine struct {
	registry *Registry
	store    transport.ResponseStore
	logger   *slog.Logger
	cfg      Config
}

var _ transport.ResponseCreator = (*Engine)(nil)

// New creates an Engine. The registry must not be nil; the store can be
// nil for stateless operation.
func New(registry *Registry, store transport.ResponseStore, cfg Config) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("engine: registry must not be nil")
	}
	if cfg.UpdateBuffer <= 0 {
		cfg.UpdateBuffer = defaultUpdateBuffer
	}
	return &Engine{
		registry: registry,
		store:    store,
		logger:   slog.Default(),
		cfg:      cfg,
	}, nil
}

// SetLogger replaces the engine's logger. Intended for wiring at startup.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// CreateResponse validates the request, resolves the target entity, and
// runs it on the streaming or non-streaming path. Failures before the
// first event is written surface as *api.APIError so the transport can
// reply with a proper status; once streaming has started, errors end the
// stream without a terminal event.
func (e *Engine) CreateResponse(ctx context.Context, req *api.CreateResponseRequest, w transport.ResponseWriter) error {
	if req.Model == "" {
		if e.cfg.DefaultEntity == "" {
			return api.NewInvalidRequestError("model", "model is required")
		}
		req.Model = e.cfg.DefaultEntity
	}

	ent, ok := e.registry.Get(req.Model)
	if !ok {
		return api.NewNotFoundError(fmt.Sprintf("entity %q not found", req.Model))
	}

	input := req.Input.Text()
	if input == "" {
		return api.NewInvalidRequestError("input", "input must not be empty")
	}

	responseID := api.NewResponseID()
	debug.Log("engine", "run starting",
		"response_id", responseID, "entity", req.Model, "stream", req.Stream)
	if req.Stream {
		return e.streamResponse(ctx, responseID, ent, req, input, w)
	}
	return e.completeResponse(ctx, responseID, ent, req, input, w)
}

func (e *Engine) streamResponse(ctx context.Context, responseID string, ent Entity, req *api.CreateResponseRequest, input string, w transport.ResponseWriter) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	run := e.startRun(runCtx, ent, input)
	tr := NewTranslator(NewRequestSnapshots(responseID, req.Model, req.Metadata))

	err := tr.Translate(ctx, run, w)
	e.recordRun(ent, err)
	if err != nil {
		if tr.EventsEmitted() == 0 {
			return startupError(err)
		}
		// Bytes are already on the wire; the missing terminal event is
		// the client-visible failure signal.
		return fmt.Errorf("stream ended early after %d events: %w", tr.EventsEmitted(), err)
	}

	if e.store != nil && isStateful(req) && tr.CreatedEmitted() {
		resp := &api.Response{
			ID:        responseID,
			Object:    "response",
			Status:    api.ResponseStatusCompleted,
			Model:     req.Model,
			Output:    tr.Items(),
			CreatedAt: time.Now().Unix(),
			Metadata:  req.Metadata,
		}
		if err := e.store.SaveResponse(ctx, resp); err != nil {
			e.logger.Warn("failed to store streamed response",
				"response_id", responseID, "error", err)
		}
	}
	return nil
}

func (e *Engine) completeResponse(ctx context.Context, responseID string, ent Entity, req *api.CreateResponseRequest, input string, w transport.ResponseWriter) error {
	run := e.startRun(ctx, ent, input)

	resp, err := aggregate(ctx, run, responseID, req.Model, req.Metadata)
	e.recordRun(ent, err)
	if err != nil {
		return startupError(err)
	}

	if e.store != nil && isStateful(req) {
		if err := e.store.SaveResponse(ctx, resp); err != nil {
			e.logger.Warn("failed to store response",
				"response_id", responseID, "error", err)
		}
	}
	return w.WriteResponse(ctx, resp)
}

// startRun launches the entity in its own goroutine and returns the pull
// side of its update stream. The goroutine exits when the run returns or
// the context is cancelled; the run error, if any, surfaces through Next
// once the updates are drained.
func (e *Engine) startRun(ctx context.Context, ent Entity, input string) *entityRun {
	run := &entityRun{
		updates: make(chan Update, e.cfg.UpdateBuffer),
		err:     make(chan error, 1),
	}
	go func() {
		defer close(run.updates)
		err := ent.Run(ctx, input, func(u Update) {
			select {
			case run.updates <- u:
			case <-ctx.Done():
			}
		})
		run.err <- err
	}()
	return run
}

func (e *Engine) recordRun(ent Entity, err error) {
	outcome := "completed"
	switch {
	case errors.Is(err, context.Canceled):
		outcome = "cancelled"
	case err != nil:
		outcome = "failed"
	}
	observability.RecordEntityRun(string(ent.Info().Kind), outcome)
}

// entityRun is a channel-backed UpdateSource fed by the run goroutine.
type entityRun struct {
	updates chan Update
	err     chan error
}

var _ UpdateSource = (*entityRun)(nil)

// Next returns the next update. Exhaustion is reported only after the run
// has finished cleanly; a run error surfaces here once the channel drains.
func (r *entityRun) Next(ctx context.Context) (Update, bool, error) {
	select {
	case <-ctx.Done():
		return Update{}, false, ctx.Err()
	case u, ok := <-r.updates:
		if !ok {
			if err := <-r.err; err != nil {
				return Update{}, false, err
			}
			return Update{}, false, nil
		}
		observability.RecordRunUpdate(kindLabel(u.Kind()))
		return u, true, nil
	}
}

func kindLabel(k UpdateKind) string {
	switch k {
	case UpdateText:
		return "text"
	case UpdateWorkflowEvent:
		return "workflow_event"
	default:
		return "empty"
	}
}

// startupError maps a pre-stream failure to an APIError. Errors already
// carrying a classification pass through unchanged.
func startupError(err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return api.NewServerError(err.Error())
}

// isStateful reports whether the request should be stored.
// Defaults to true unless explicitly set to false.
func isStateful(req *api.CreateResponseRequest) bool {
	if req.Store == nil {
		return true
	}
	return *req.Store
}
