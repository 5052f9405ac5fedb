package engine

import (
	"context"

	"github.com/ablauf-dev/ablauf/pkg/api"
	"github.com/ablauf-dev/ablauf/pkg/transport"
)

// AgentFunc is the function backing an agent. It receives the input text
// and streams output chunks through emit; returning an error fails the run.
type AgentFunc func(ctx context.Context, input string, emit func(chunk string)) error

// Agent is a function-backed entity. All chunks of one run share a single
// message id, so the stream carries exactly one message item.
type Agent struct {
	name        string
	description string
	fn          AgentFunc
}

var _ Entity = (*Agent)(nil)

// NewAgent creates an agent entity.
func NewAgent(name, description string, fn AgentFunc) *Agent {
	return &Agent{name: name, description: description, fn: fn}
}

// Info returns the catalog view of the agent.
func (a *Agent) Info() transport.EntityInfo {
	return transport.EntityInfo{
		Name:        a.name,
		Kind:        transport.EntityKindAgent,
		Description: a.description,
	}
}

// Run executes the backing function, wrapping each chunk in a text update.
func (a *Agent) Run(ctx context.Context, input string, emit func(Update)) error {
	messageID := api.NewMessageID()
	return a.fn(ctx, input, func(chunk string) {
		emit(Update{MessageID: messageID, Contents: []string{chunk}})
	})
}
