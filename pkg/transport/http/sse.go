package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/ablauf-dev/ablauf/pkg/api"
	"github.com/ablauf-dev/ablauf/pkg/debug"
	"github.com/ablauf-dev/ablauf/pkg/observability"
	"github.com/ablauf-dev/ablauf/pkg/transport"
)

// writerState is the lifecycle of one sseResponseWriter.
type writerState int

const (
	writerIdle      writerState = iota // nothing written yet
	writerStreaming                    // at least one SSE frame on the wire
	writerCompleted                    // terminal event sent or JSON body written
)

// sseResponseWriter is the HTTP-side transport.ResponseWriter. One request
// gets one writer, which serves either the SSE path (WriteEvent) or the
// plain JSON path (WriteResponse); mixing the two is an error. Events go
// out one per frame, flushed immediately, in emission order.
type sseResponseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState

	// onResponseCreated fires once with the response ID from the first
	// response.created frame, so the adapter can register the stream for
	// DELETE cancellation.
	onResponseCreated func(id string)
}

var _ transport.ResponseWriter = (*sseResponseWriter)(nil)

func newSSEResponseWriter(w http.ResponseWriter, onCreated func(id string)) *sseResponseWriter {
	return &sseResponseWriter{
		w:                 w,
		rc:                http.NewResponseController(w),
		onResponseCreated: onCreated,
	}
}

// WriteEvent puts one event on the wire as
//
//	event: {type}\n
//	data: {json}\n
//	\n
//
// and, after response.completed (the stream's only terminal event), a
// closing
//
//	data: [DONE]\n
//	\n
//
// A stream that fails mid-way just stops: the writer never fabricates an
// error frame, so a missing response.completed is the failure signal.
func (s *sseResponseWriter) WriteEvent(ctx context.Context, event api.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errors.New("cannot write event: writer is completed")
	}

	if s.state == writerIdle {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		s.state = writerStreaming
	}

	if event.Type == api.EventResponseCreated && event.Response != nil && s.onResponseCreated != nil {
		s.onResponseCreated(event.Response.ID)
		s.onResponseCreated = nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	debug.Log("streaming", "event written", "type", event.Type, "seq", event.SequenceNumber)
	debug.Raw("streaming", fmt.Sprintf("event: %s\ndata: %s", event.Type, data))

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("writing event frame: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("flushing event frame: %w", err)
	}

	observability.RecordStreamEvent(string(event.Type))

	if event.IsTerminal() {
		if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
			return fmt.Errorf("writing [DONE]: %w", err)
		}
		if err := s.rc.Flush(); err != nil {
			return fmt.Errorf("flushing [DONE]: %w", err)
		}
		s.state = writerCompleted
	}

	return nil
}

// WriteResponse sends the complete response as one JSON body. Only valid
// while no SSE frame has been written.
func (s *sseResponseWriter) WriteResponse(ctx context.Context, resp *api.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case writerStreaming:
		return errors.New("cannot write response: streaming has already started")
	case writerCompleted:
		return errors.New("cannot write response: writer is completed")
	}

	s.w.Header().Set("Content-Type", "application/json")
	s.state = writerCompleted

	if err := json.NewEncoder(s.w).Encode(resp); err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	return nil
}

// Flush pushes any buffered bytes to the client.
func (s *sseResponseWriter) Flush() error {
	return s.rc.Flush()
}

// hasStartedStreaming reports whether SSE bytes are already committed, in
// which case errors can no longer change the HTTP status.
func (s *sseResponseWriter) hasStartedStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == writerStreaming {
		return true
	}
	return s.state == writerCompleted && s.w.Header().Get("Content-Type") == "text/event-stream"
}
