package integration

import (
	"net/http"
	"strings"
	"testing"
)

func TestStreamingAgentRun(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/v1/responses", map[string]any{
		"model":  "echo",
		"input":  "hello streaming world",
		"stream": true,
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", contentType)
	}

	stream := parseSSE(t, resp)
	if len(stream.Events) == 0 {
		t.Fatal("no SSE events received")
	}

	// First event is response.created, last is response.completed,
	// closed by a [DONE] sentinel.
	if stream.Events[0].Type != "response.created" {
		t.Errorf("first event = %q, want response.created", stream.Events[0].Type)
	}
	last := stream.Events[len(stream.Events)-1]
	if last.Type != "response.completed" {
		t.Errorf("last event = %q, want response.completed", last.Type)
	}
	if !stream.Done {
		t.Error("stream did not end with [DONE]")
	}

	verifySequenceNumbers(t, stream.Events)

	// Three words make three deltas plus one item done.
	var deltas, dones int
	var text strings.Builder
	for _, ev := range stream.Events {
		switch ev.Type {
		case "response.output_text.delta":
			deltas++
			text.WriteString(ev.Delta)
			if ev.ContentIndex != 0 {
				t.Errorf("delta content_index = %d, want 0", ev.ContentIndex)
			}
			if ev.Logprobs == nil || len(ev.Logprobs) != 0 {
				t.Errorf("delta logprobs = %v, want empty array", ev.Logprobs)
			}
			if ev.ItemID == "" {
				t.Error("delta item_id is empty")
			}
		case "response.output_item.done":
			dones++
		}
	}
	if deltas != 3 {
		t.Errorf("delta count = %d, want 3", deltas)
	}
	if dones != 1 {
		t.Errorf("item done count = %d, want 1", dones)
	}
	if got := text.String(); got != "hello streaming world " {
		t.Errorf("accumulated text = %q, want %q", got, "hello streaming world ")
	}
}

func TestStreamingWorkflowRun(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/v1/responses", map[string]any{
		"model":  "pipeline",
		"input":  "hi",
		"stream": true,
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	stream := parseSSE(t, resp)
	verifySequenceNumbers(t, stream.Events)

	if !stream.Done {
		t.Error("stream did not end with [DONE]")
	}

	// Two executors stream under separate message ids, so the stream
	// carries two completed items with increasing output_index.
	var itemDone, wfEvents int
	outputIndexes := map[int]bool{}
	for _, ev := range stream.Events {
		switch ev.Type {
		case "response.output_item.done":
			itemDone++
			outputIndexes[ev.OutputIndex] = true
		case "response.workflow_event.complete":
			wfEvents++
			if ev.ItemID != "" && !strings.HasPrefix(ev.ItemID, "wf_") {
				t.Errorf("workflow event item_id = %q, want wf_ prefix", ev.ItemID)
			}
		}
	}
	if itemDone != 2 {
		t.Errorf("item done count = %d, want 2", itemDone)
	}
	if !outputIndexes[0] || !outputIndexes[1] {
		t.Errorf("output indexes = %v, want {0, 1}", outputIndexes)
	}
	if wfEvents == 0 {
		t.Error("no workflow events in pipeline stream")
	}

	// Executor-scoped workflow events carry the executor id; run-scoped
	// ones carry an explicit null.
	for _, ev := range stream.Events {
		if ev.Type != "response.workflow_event.complete" {
			continue
		}
		if ev.ExecutorID != nil && *ev.ExecutorID != "upper" && *ev.ExecutorID != "exclaim" {
			t.Errorf("unexpected executor_id %q", *ev.ExecutorID)
		}
	}
}

func TestStreamingMidStreamFailure(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/v1/responses", map[string]any{
		"model":  "flaky",
		"input":  "boom",
		"stream": true,
	})

	// The stream starts before the failure, so the status is 200.
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	stream := parseSSE(t, resp)

	// The stream just ends: no terminal event, no [DONE], no error frame.
	if stream.Done {
		t.Error("failed stream must not end with [DONE]")
	}
	for _, ev := range stream.Events {
		if ev.Type == "response.completed" {
			t.Error("failed stream must not carry response.completed")
		}
		if strings.Contains(ev.Type, "error") || strings.Contains(ev.Type, "failed") {
			t.Errorf("failed stream carries error frame %q", ev.Type)
		}
	}

	// The two chunks written before the failure did arrive.
	var deltas int
	for _, ev := range stream.Events {
		if ev.Type == "response.output_text.delta" {
			deltas++
		}
	}
	if deltas != 2 {
		t.Errorf("delta count = %d, want 2", deltas)
	}
}

func TestStreamingDefaultEntity(t *testing.T) {
	// Omitting model falls back to the configured default entity.
	resp := postJSON(t, testEnv.BaseURL()+"/v1/responses", map[string]any{
		"input":  "fallback",
		"stream": true,
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	stream := parseSSE(t, resp)
	if len(stream.Events) == 0 || stream.Events[0].Type != "response.created" {
		t.Fatal("expected a streamed run against the default entity")
	}
}
