package engine

import (
	"context"

	"github.com/ablauf-dev/ablauf/pkg/workflow"
)

// UpdateKind discriminates the update variants observed from a run.
type UpdateKind int

const (
	// UpdateEmpty carries no information. Discarded by the Translator.
	UpdateEmpty UpdateKind = iota
	// UpdateText carries streamed text attributed to a message id.
	UpdateText
	// UpdateWorkflowEvent carries a workflow lifecycle notification.
	UpdateWorkflowEvent
)

// Update is a single observation from a running entity. Exactly one
// variant applies, reported by Kind: a workflow notification when Event is
// set, a text update when a message id, response id, or content is
// present, and empty otherwise.
type Update struct {
	MessageID  string
	ResponseID string
	Contents   []string
	Event      *workflow.Event
}

// Kind reports the variant of the update.
func (u Update) Kind() UpdateKind {
	switch {
	case u.Event != nil:
		return UpdateWorkflowEvent
	case u.MessageID != "" || u.ResponseID != "" || len(u.Contents) > 0:
		return UpdateText
	default:
		return UpdateEmpty
	}
}

// UpdateSource is the pull side of a running entity: a lazy sequence of
// updates. Next blocks until an update is available, the source is
// exhausted (ok=false, err=nil), the source fails (err non-nil), or ctx is
// cancelled (err = ctx.Err()).
type UpdateSource interface {
	Next(ctx context.Context) (u Update, ok bool, err error)
}
