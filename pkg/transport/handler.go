package transport

import (
	"context"

	"github.com/ablauf-dev/ablauf/pkg/api"
)

// ResponseCreator runs one create-response request and delivers the
// outcome through the ResponseWriter, either as a stream of events or
// as one complete response.
type ResponseCreator interface {
	CreateResponse(ctx context.Context, req *api.CreateResponseRequest, w ResponseWriter) error
}

// ResponseCreatorFunc lets a plain function act as a ResponseCreator.
type ResponseCreatorFunc func(ctx context.Context, req *api.CreateResponseRequest, w ResponseWriter) error

func (f ResponseCreatorFunc) CreateResponse(ctx context.Context, req *api.CreateResponseRequest, w ResponseWriter) error {
	return f(ctx, req, w)
}

// ListOptions carries cursor pagination, filtering, and ordering for
// list calls. After and Before are response ID cursors and mutually
// exclusive; Limit defaults to 20 and caps at 100; Order is "asc" or
// "desc" (the default).
type ListOptions struct {
	After  string
	Before string
	Limit  int
	Model  string
	Order  string
}

// ResponseList is one page of stored responses.
type ResponseList struct {
	Object  string          `json:"object"`
	Data    []*api.Response `json:"data"`
	HasMore bool            `json:"has_more"`
	FirstID string          `json:"first_id"`
	LastID  string          `json:"last_id"`
}

// ResponseStore persists completed responses. Deletion is soft: a
// deleted ID behaves like a missing one on reads but cannot be reused.
type ResponseStore interface {
	SaveResponse(ctx context.Context, resp *api.Response) error

	// GetResponse fails with a not-found error for missing or deleted IDs.
	GetResponse(ctx context.Context, id string) (*api.Response, error)

	DeleteResponse(ctx context.Context, id string) error

	// ListResponses pages through live responses, optionally filtered
	// by entity name.
	ListResponses(ctx context.Context, opts ListOptions) (*ResponseList, error)

	// HealthCheck probes the backing connection; it feeds the readiness
	// endpoint.
	HealthCheck(ctx context.Context) error

	Close() error
}

// ResponseWriter is the handler's output. A writer serves exactly one
// of the two modes: once WriteEvent has been called the writer is a
// stream and WriteResponse fails, and vice versa. After the terminal
// stream event no further writes are accepted.
type ResponseWriter interface {
	// WriteEvent sends one stream event.
	WriteEvent(ctx context.Context, event api.StreamEvent) error

	// WriteResponse sends the complete non-streaming response.
	WriteResponse(ctx context.Context, resp *api.Response) error

	// Flush pushes buffered data to the client and reports disconnects.
	Flush() error
}
