package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ablauf-dev/ablauf/pkg/api"
)

const (
	testRespID = "resp_abc123456789012345678901"
	testMsgID  = "msg_abc123456789012345678901"
)

func createdEvent(seq int, id string) api.StreamEvent {
	return api.StreamEvent{
		Type:           api.EventResponseCreated,
		SequenceNumber: seq,
		Response:       &api.Response{ID: id, Status: api.ResponseStatusInProgress},
	}
}

func completedEvent(seq int) api.StreamEvent {
	return api.StreamEvent{
		Type:           api.EventResponseCompleted,
		SequenceNumber: seq,
		Response:       &api.Response{ID: testRespID, Status: api.ResponseStatusCompleted},
	}
}

func deltaEvent(seq int, text string) api.StreamEvent {
	return api.StreamEvent{
		Type:           api.EventOutputTextDelta,
		SequenceNumber: seq,
		Delta:          text,
		ItemID:         testMsgID,
	}
}

func TestWriteResponseJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newSSEResponseWriter(rec, nil)

	err := rw.WriteResponse(context.Background(), &api.Response{
		ID:     testRespID,
		Object: "response",
		Status: api.ResponseStatusCompleted,
		Model:  "echo",
	})
	if err != nil {
		t.Fatalf("WriteResponse error: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var got api.Response
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if got.ID != testRespID || got.Status != api.ResponseStatusCompleted {
		t.Errorf("decoded response = %s/%s, want %s/completed", got.ID, got.Status, testRespID)
	}
}

func TestWriteEventFrameFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newSSEResponseWriter(rec, nil)

	if err := rw.WriteEvent(context.Background(), deltaEvent(2, "Hello")); err != nil {
		t.Fatalf("WriteEvent error: %v", err)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: response.output_text.delta\n") {
		t.Errorf("missing event type line in:\n%s", body)
	}

	// The data line carries the full event JSON.
	var parsed bool
	for _, line := range strings.Split(body, "\n") {
		payload, found := strings.CutPrefix(line, "data: ")
		if !found {
			continue
		}
		parsed = true
		var got api.StreamEvent
		if err := json.Unmarshal([]byte(payload), &got); err != nil {
			t.Fatalf("parsing event JSON: %v", err)
		}
		if got.Type != api.EventOutputTextDelta || got.Delta != "Hello" {
			t.Errorf("parsed event = %s/%q, want delta event with Hello", got.Type, got.Delta)
		}
	}
	if !parsed {
		t.Errorf("no data line in:\n%s", body)
	}
}

func TestStreamingHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newSSEResponseWriter(rec, nil)

	rw.WriteEvent(context.Background(), createdEvent(1, testRespID))

	wantHeaders := map[string]string{
		"Content-Type":  "text/event-stream",
		"Cache-Control": "no-cache",
		"Connection":    "keep-alive",
	}
	for name, want := range wantHeaders {
		if got := rec.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestDoneSentinel(t *testing.T) {
	t.Run("after completed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rw := newSSEResponseWriter(rec, nil)

		if err := rw.WriteEvent(context.Background(), completedEvent(5)); err != nil {
			t.Fatalf("WriteEvent error: %v", err)
		}
		if !strings.Contains(rec.Body.String(), "data: [DONE]\n") {
			t.Errorf("missing [DONE] sentinel in:\n%s", rec.Body.String())
		}
	})

	// response.completed is the only terminal event; no other kind may
	// emit the sentinel or close the writer.
	nonTerminal := []struct {
		name  string
		event api.StreamEvent
	}{
		{"created", createdEvent(1, testRespID)},
		{"delta", deltaEvent(2, "x")},
		{"item done", api.StreamEvent{
			Type:           api.EventOutputItemDone,
			SequenceNumber: 3,
			Item:           &api.Item{ID: testMsgID, Type: api.ItemTypeMessage, Status: api.ItemStatusCompleted, Role: api.RoleAssistant},
		}},
	}
	for _, tt := range nonTerminal {
		t.Run("not after "+tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			rw := newSSEResponseWriter(rec, nil)

			if err := rw.WriteEvent(context.Background(), tt.event); err != nil {
				t.Fatalf("WriteEvent error: %v", err)
			}
			if strings.Contains(rec.Body.String(), "[DONE]") {
				t.Errorf("unexpected [DONE] sentinel after %s", tt.event.Type)
			}
			if err := rw.WriteEvent(context.Background(), completedEvent(9)); err != nil {
				t.Errorf("writer closed early after %s: %v", tt.event.Type, err)
			}
		})
	}
}

func TestWriterModeExclusivity(t *testing.T) {
	t.Run("event after terminal", func(t *testing.T) {
		rw := newSSEResponseWriter(httptest.NewRecorder(), nil)
		rw.WriteEvent(context.Background(), completedEvent(1))

		if err := rw.WriteEvent(context.Background(), deltaEvent(2, "late")); err == nil {
			t.Error("expected error after terminal event, got nil")
		}
	})

	t.Run("response after event", func(t *testing.T) {
		rw := newSSEResponseWriter(httptest.NewRecorder(), nil)
		rw.WriteEvent(context.Background(), createdEvent(1, testRespID))

		if err := rw.WriteResponse(context.Background(), &api.Response{}); err == nil {
			t.Error("expected error for WriteResponse on a streaming writer, got nil")
		}
	})

	t.Run("event after response", func(t *testing.T) {
		rw := newSSEResponseWriter(httptest.NewRecorder(), nil)
		rw.WriteResponse(context.Background(), &api.Response{})

		if err := rw.WriteEvent(context.Background(), deltaEvent(1, "x")); err == nil {
			t.Error("expected error for WriteEvent after WriteResponse, got nil")
		}
	})
}

func TestOnResponseCreatedCallback(t *testing.T) {
	var captured string
	rw := newSSEResponseWriter(httptest.NewRecorder(), func(id string) {
		captured = id
	})

	rw.WriteEvent(context.Background(), createdEvent(1, "resp_test12345678901234567890"))
	if captured != "resp_test12345678901234567890" {
		t.Errorf("captured ID = %q, want the created response ID", captured)
	}

	// Only the first created event fires the callback.
	captured = ""
	rw.WriteEvent(context.Background(), createdEvent(2, "resp_second2345678901234567890"))
	if captured != "" {
		t.Error("callback fired twice")
	}
}
