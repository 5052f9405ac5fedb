package engine

import (
	"time"

	"github.com/ablauf-dev/ablauf/pkg/api"
	"github.com/ablauf-dev/ablauf/pkg/workflow"
)

// workflowEvent builds the response.workflow_event.complete event for a
// single lifecycle notification. Stateless; safe to call concurrently
// across independent streams. The item id is a fresh wf_-prefixed UUID,
// unique within (and across) streams.
func workflowEvent(e workflow.Event, seq, outputIndex int) api.StreamEvent {
	var executorID *string
	if e.ExecutorScoped() {
		id := e.ExecutorID
		executorID = &id
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	data := map[string]any{
		"event_type": string(e.Type),
		"data":       e.Data,
		"timestamp":  ts.UTC().Format(time.RFC3339Nano),
	}
	if executorID != nil {
		data["executor_id"] = *executorID
	} else {
		data["executor_id"] = nil
	}

	return api.StreamEvent{
		Type:           api.EventWorkflowEventComplete,
		SequenceNumber: seq,
		OutputIndex:    outputIndex,
		Data:           data,
		ExecutorID:     executorID,
		ItemID:         api.NewWorkflowItemID(),
	}
}
