package transport

import "github.com/ablauf-dev/ablauf/pkg/workflow"

// EntityKind distinguishes the two runnable entity flavors.
type EntityKind string

const (
	EntityKindAgent    EntityKind = "agent"
	EntityKindWorkflow EntityKind = "workflow"
)

// EntityInfo is the catalog view of one registered entity.
type EntityInfo struct {
	Name        string     `json:"name"`
	Kind        EntityKind `json:"kind"`
	Description string     `json:"description,omitempty"`
}

// EntityDetail extends EntityInfo with the workflow graph descriptor when
// the entity is a workflow. Agents carry no graph.
type EntityDetail struct {
	EntityInfo
	Workflow *workflow.Descriptor `json:"workflow,omitempty"`
}

// EntityList holds the full entity catalog.
type EntityList struct {
	Object string       `json:"object"`
	Data   []EntityInfo `json:"data"`
}

// EntityDirectory exposes the registered entity catalog to the discovery
// endpoints. Implementations must be safe for concurrent use.
type EntityDirectory interface {
	// ListEntities returns all registered entities in a stable order.
	ListEntities() []EntityInfo

	// GetEntity returns the detail view for one entity, or an error of
	// type *api.APIError (not_found) when the name is not registered.
	GetEntity(name string) (*EntityDetail, error)
}
