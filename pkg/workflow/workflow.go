// Package workflow implements the executor-graph run model: named
// executors connected by directed edges, run sequentially from the start
// node, streaming text output and lifecycle events to a sink.
package workflow

import (
	"context"
	"fmt"
)

// Executor is one node of a workflow. Handle receives the input text and
// an emit callback for streaming intermediate chunks; the returned string
// is the executor's final output, handed to the next executor along the
// outgoing edge.
type Executor struct {
	ID     string
	Handle func(ctx context.Context, input string, emit func(chunk string)) (string, error)
}

// Edge is a directed connection between two executors.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Sink receives the observable side of a run: lifecycle events and
// streamed text output attributed to the emitting executor. Calls arrive
// sequentially from the running goroutine.
type Sink interface {
	Event(e Event)
	Output(executorID, chunk string)
}

// Workflow is a validated executor graph. Construct with New; a Workflow
// is immutable after construction and safe to run concurrently, one Sink
// per run.
type Workflow struct {
	name        string
	description string
	start       string
	order       []string
	executors   map[string]Executor
	edges       []Edge
}

// New builds a workflow from its executors and edges and validates the
// graph: executor ids must be unique and non-empty, edges must reference
// known executors, each executor may have at most one outgoing edge, and
// the graph must form a single linear chain covering every executor.
func New(name, description string, executors []Executor, edges []Edge) (*Workflow, error) {
	if name == "" {
		return nil, fmt.Errorf("workflow name must not be empty")
	}
	if len(executors) == 0 {
		return nil, fmt.Errorf("workflow %q has no executors", name)
	}

	byID := make(map[string]Executor, len(executors))
	for _, ex := range executors {
		if ex.ID == "" {
			return nil, fmt.Errorf("workflow %q: executor id must not be empty", name)
		}
		if ex.Handle == nil {
			return nil, fmt.Errorf("workflow %q: executor %q has no handler", name, ex.ID)
		}
		if _, dup := byID[ex.ID]; dup {
			return nil, fmt.Errorf("workflow %q: duplicate executor id %q", name, ex.ID)
		}
		byID[ex.ID] = ex
	}

	next := make(map[string]string, len(edges))
	hasIncoming := make(map[string]bool, len(edges))
	for _, e := range edges {
		if _, ok := byID[e.From]; !ok {
			return nil, fmt.Errorf("workflow %q: edge references unknown executor %q", name, e.From)
		}
		if _, ok := byID[e.To]; !ok {
			return nil, fmt.Errorf("workflow %q: edge references unknown executor %q", name, e.To)
		}
		if _, dup := next[e.From]; dup {
			return nil, fmt.Errorf("workflow %q: executor %q has more than one outgoing edge", name, e.From)
		}
		if hasIncoming[e.To] {
			return nil, fmt.Errorf("workflow %q: executor %q has more than one incoming edge", name, e.To)
		}
		next[e.From] = e.To
		hasIncoming[e.To] = true
	}

	start := ""
	for _, ex := range executors {
		if !hasIncoming[ex.ID] {
			if start != "" {
				return nil, fmt.Errorf("workflow %q: multiple start executors (%q and %q)", name, start, ex.ID)
			}
			start = ex.ID
		}
	}
	if start == "" {
		return nil, fmt.Errorf("workflow %q: no start executor, graph contains a cycle", name)
	}

	order := make([]string, 0, len(executors))
	for id := start; id != ""; id = next[id] {
		order = append(order, id)
	}
	if len(order) != len(executors) {
		return nil, fmt.Errorf("workflow %q: %d executors unreachable from start %q", name, len(executors)-len(order), start)
	}

	return &Workflow{
		name:        name,
		description: description,
		start:       start,
		order:       order,
		executors:   byID,
		edges:       append([]Edge(nil), edges...),
	}, nil
}

// Name returns the workflow's registered name.
func (w *Workflow) Name() string { return w.name }

// Description returns the human-readable summary of the workflow.
func (w *Workflow) Description() string { return w.description }

// Run executes the chain from the start executor, threading each
// executor's output into the next one's input. Lifecycle events and
// streamed chunks go to the sink as they occur. Cancellation is checked
// before each executor; a cancelled run returns the context error after
// emitting workflow.failed.
func (w *Workflow) Run(ctx context.Context, input string, sink Sink) (string, error) {
	sink.Event(newEvent(EventWorkflowStarted, "", map[string]any{
		"workflow": w.name,
		"start":    w.start,
	}))

	current := input
	for _, id := range w.order {
		if err := ctx.Err(); err != nil {
			sink.Event(newEvent(EventWorkflowFailed, "", map[string]any{
				"workflow": w.name,
				"error":    err.Error(),
			}))
			return "", err
		}

		ex := w.executors[id]
		sink.Event(newEvent(EventExecutorInvoked, id, map[string]any{
			"executor_id": id,
		}))

		out, err := ex.Handle(ctx, current, func(chunk string) {
			if chunk != "" {
				sink.Output(id, chunk)
			}
		})
		if err != nil {
			sink.Event(newEvent(EventWorkflowFailed, "", map[string]any{
				"workflow":    w.name,
				"executor_id": id,
				"error":       err.Error(),
			}))
			return "", fmt.Errorf("executor %q: %w", id, err)
		}

		sink.Event(newEvent(EventExecutorCompleted, id, map[string]any{
			"executor_id": id,
		}))
		current = out
	}

	sink.Event(newEvent(EventWorkflowOutput, "", map[string]any{
		"workflow": w.name,
		"output":   current,
	}))
	sink.Event(newEvent(EventWorkflowCompleted, "", map[string]any{
		"workflow": w.name,
	}))
	return current, nil
}
