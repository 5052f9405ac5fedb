package engine

import (
	"context"

	"github.com/ablauf-dev/ablauf/pkg/api"
	"github.com/ablauf-dev/ablauf/pkg/transport"
	"github.com/ablauf-dev/ablauf/pkg/workflow"
)

// WorkflowEntity adapts a workflow graph to the Entity contract. Each
// executor streams under its own message id, so executor boundaries show
// up as message boundaries in the protocol stream.
type WorkflowEntity struct {
	wf *workflow.Workflow
}

var (
	_ Entity      = (*WorkflowEntity)(nil)
	_ Describable = (*WorkflowEntity)(nil)
)

// NewWorkflowEntity wraps a validated workflow.
func NewWorkflowEntity(wf *workflow.Workflow) *WorkflowEntity {
	return &WorkflowEntity{wf: wf}
}

// Info returns the catalog view of the workflow.
func (e *WorkflowEntity) Info() transport.EntityInfo {
	return transport.EntityInfo{
		Name:        e.wf.Name(),
		Kind:        transport.EntityKindWorkflow,
		Description: e.wf.Description(),
	}
}

// Describe exposes the static graph for the discovery endpoint.
func (e *WorkflowEntity) Describe() workflow.Descriptor {
	return e.wf.Describe()
}

// Run executes the workflow, forwarding lifecycle events and streamed
// output as updates.
func (e *WorkflowEntity) Run(ctx context.Context, input string, emit func(Update)) error {
	_, err := e.wf.Run(ctx, input, &updateSink{emit: emit})
	return err
}

// updateSink bridges the workflow sink to engine updates, assigning one
// message id per emitting executor.
type updateSink struct {
	emit       func(Update)
	messageIDs map[string]string
}

func (s *updateSink) Event(e workflow.Event) {
	ev := e
	s.emit(Update{Event: &ev})
}

func (s *updateSink) Output(executorID, chunk string) {
	if s.messageIDs == nil {
		s.messageIDs = make(map[string]string)
	}
	id, ok := s.messageIDs[executorID]
	if !ok {
		id = api.NewMessageID()
		s.messageIDs[executorID] = id
	}
	s.emit(Update{MessageID: id, Contents: []string{chunk}})
}
