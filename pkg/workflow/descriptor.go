package workflow

// Descriptor is the static, UI-facing view of a workflow graph.
type Descriptor struct {
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Start       string               `json:"start"`
	Executors   []ExecutorDescriptor `json:"executors"`
	Edges       []Edge               `json:"edges"`
}

// ExecutorDescriptor describes one node of the graph.
type ExecutorDescriptor struct {
	ID string `json:"id"`
}

// Describe maps the validated graph to its descriptor. Executors are
// listed in run order; edges are listed as registered.
func (w *Workflow) Describe() Descriptor {
	execs := make([]ExecutorDescriptor, 0, len(w.order))
	for _, id := range w.order {
		execs = append(execs, ExecutorDescriptor{ID: id})
	}
	edges := w.edges
	if edges == nil {
		edges = []Edge{}
	}
	return Descriptor{
		Name:        w.name,
		Description: w.description,
		Start:       w.start,
		Executors:   execs,
		Edges:       edges,
	}
}
