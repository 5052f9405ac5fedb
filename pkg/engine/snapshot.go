package engine

import (
	"fmt"
	"time"

	"github.com/ablauf-dev/ablauf/pkg/api"
)

// SnapshotBuilder produces the full response object embedded in the
// response.created event. The Translator invokes it at most once per
// stream and reuses the result verbatim for response.completed.
type SnapshotBuilder interface {
	Build(u Update) (*api.Response, error)
}

// requestSnapshots builds snapshots for a single request. The response id
// from the triggering update wins over the request-level id when present.
type requestSnapshots struct {
	responseID string
	model      string
	metadata   map[string]string
	createdAt  int64
}

// NewRequestSnapshots returns a SnapshotBuilder scoped to one request.
func NewRequestSnapshots(responseID, model string, metadata map[string]string) SnapshotBuilder {
	return &requestSnapshots{
		responseID: responseID,
		model:      model,
		metadata:   metadata,
		createdAt:  time.Now().Unix(),
	}
}

func (s *requestSnapshots) Build(u Update) (*api.Response, error) {
	id := s.responseID
	if u.ResponseID != "" {
		id = u.ResponseID
	}
	if id == "" {
		return nil, fmt.Errorf("snapshot: no response id available")
	}
	return &api.Response{
		ID:        id,
		Object:    "response",
		Status:    api.ResponseStatusInProgress,
		Model:     s.model,
		Output:    []api.Item{},
		CreatedAt: s.createdAt,
		Metadata:  s.metadata,
	}, nil
}
