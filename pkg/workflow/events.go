package workflow

import "time"

// EventType names a lifecycle notification kind emitted during a run.
type EventType string

const (
	EventWorkflowStarted   EventType = "workflow.started"
	EventExecutorInvoked   EventType = "executor.invoked"
	EventExecutorCompleted EventType = "executor.completed"
	EventWorkflowOutput    EventType = "workflow.output"
	EventWorkflowFailed    EventType = "workflow.failed"
	EventWorkflowCompleted EventType = "workflow.completed"
)

// Event is a single lifecycle notification. ExecutorID is set only for
// executor-scoped kinds (executor.invoked, executor.completed); it is empty
// for workflow-level notifications.
type Event struct {
	Type       EventType
	ExecutorID string
	Data       map[string]any
	Timestamp  time.Time
}

// ExecutorScoped reports whether the event is attributed to a single executor.
func (e Event) ExecutorScoped() bool {
	return e.ExecutorID != ""
}

func newEvent(typ EventType, executorID string, data map[string]any) Event {
	return Event{
		Type:       typ,
		ExecutorID: executorID,
		Data:       data,
		Timestamp:  time.Now().UTC(),
	}
}
