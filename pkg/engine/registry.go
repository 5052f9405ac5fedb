package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/ablauf-dev/ablauf/pkg/api"
	"github.com/ablauf-dev/ablauf/pkg/transport"
	"github.com/ablauf-dev/ablauf/pkg/workflow"
)

// Entity is a runnable registered in the catalog: an agent or a workflow.
// Run executes the entity synchronously, delivering updates through emit
// in order; it returns when the run is complete or failed.
type Entity interface {
	Info() transport.EntityInfo
	Run(ctx context.Context, input string, emit func(Update)) error
}

// Describable is implemented by entities that expose a graph descriptor,
// surfaced by GET /v1/entities/{name}.
type Describable interface {
	Describe() workflow.Descriptor
}

// Registry is the named entity catalog. Registration happens at startup;
// lookups are concurrent. Registry implements transport.EntityDirectory.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]Entity
	order    []string
}

var _ transport.EntityDirectory = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]Entity)}
}

// Register adds an entity under its name. Names must be unique.
func (r *Registry) Register(e Entity) error {
	name := e.Info().Name
	if name == "" {
		return fmt.Errorf("registry: entity name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entities[name]; dup {
		return fmt.Errorf("registry: entity %q already registered", name)
	}
	r.entities[name] = e
	r.order = append(r.order, name)
	return nil
}

// Get returns the entity registered under name.
func (r *Registry) Get(name string) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[name]
	return e, ok
}

// ListEntities returns the catalog in registration order.
func (r *Registry) ListEntities() []transport.EntityInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]transport.EntityInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.entities[name].Info())
	}
	return infos
}

// GetEntity returns the detail view for one entity, including the graph
// descriptor for workflows.
func (r *Registry) GetEntity(name string) (*transport.EntityDetail, error) {
	r.mu.RLock()
	e, ok := r.entities[name]
	r.mu.RUnlock()
	if !ok {
		return nil, api.NewNotFoundError(fmt.Sprintf("entity %q not found", name))
	}

	detail := &transport.EntityDetail{EntityInfo: e.Info()}
	if d, ok := e.(Describable); ok {
		desc := d.Describe()
		detail.Workflow = &desc
	}
	return detail, nil
}
