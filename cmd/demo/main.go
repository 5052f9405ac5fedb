// Command demo runs a workflow through the engine in-process and prints
// the resulting event stream in SSE wire format. Useful for eyeballing
// the protocol without starting a server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ablauf-dev/ablauf/pkg/api"
	"github.com/ablauf-dev/ablauf/pkg/engine"
	"github.com/ablauf-dev/ablauf/pkg/transport"
	"github.com/ablauf-dev/ablauf/pkg/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "demo failed:", err)
		os.Exit(1)
	}
}

func run() error {
	wf, err := workflow.New("pipeline", "upper-cases the input, then appends an exclamation mark",
		[]workflow.Executor{
			{
				ID: "upper",
				Handle: func(ctx context.Context, input string, emit func(chunk string)) (string, error) {
					out := strings.ToUpper(input)
					emit(out)
					return out, nil
				},
			},
			{
				ID: "exclaim",
				Handle: func(ctx context.Context, input string, emit func(chunk string)) (string, error) {
					out := input + "!"
					emit(out)
					return out, nil
				},
			},
		},
		[]workflow.Edge{{From: "upper", To: "exclaim"}},
	)
	if err != nil {
		return err
	}

	registry := engine.NewRegistry()
	if err := registry.Register(engine.NewWorkflowEntity(wf)); err != nil {
		return err
	}

	eng, err := engine.New(registry, nil, engine.Config{})
	if err != nil {
		return err
	}

	input := "hello world"
	if len(os.Args) > 1 {
		input = strings.Join(os.Args[1:], " ")
	}

	fmt.Printf("=== streaming run of %q through the pipeline workflow ===\n\n", input)

	req := &api.CreateResponseRequest{
		Model:  "pipeline",
		Input:  api.NewInput(input),
		Stream: true,
	}

	if err := eng.CreateResponse(context.Background(), req, &printWriter{}); err != nil {
		return err
	}

	fmt.Println("data: [DONE]")
	return nil
}

// printWriter writes each event to stdout in SSE wire format.
type printWriter struct{}

var _ transport.ResponseWriter = (*printWriter)(nil)

func (p *printWriter) WriteEvent(_ context.Context, event api.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	fmt.Printf("event: %s\ndata: %s\n\n", event.Type, data)
	return nil
}

func (p *printWriter) WriteResponse(_ context.Context, resp *api.Response) error {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func (p *printWriter) Flush() error { return nil }
