package api

import (
	"encoding/json"
	"fmt"
)

// StreamEventType identifies the type of a streaming event.
type StreamEventType string

// The five event kinds emitted on the streaming path. Every event carries
// a per-stream sequence_number; the set of other fields is fixed per kind.
const (
	EventResponseCreated       StreamEventType = "response.created"
	EventOutputTextDelta       StreamEventType = "response.output_text.delta"
	EventOutputItemDone        StreamEventType = "response.output_item.done"
	EventWorkflowEventComplete StreamEventType = "response.workflow_event.complete"
	EventResponseCompleted     StreamEventType = "response.completed"
)

// StreamEvent represents a single server-sent event in a streaming response.
// Which fields are populated depends on Type; MarshalJSON emits the exact
// field set each kind requires so the stream is byte-compatible with
// Responses-protocol clients.
type StreamEvent struct {
	Type           StreamEventType
	SequenceNumber int

	// Envelope events (created/completed).
	Response *Response

	// Text delta events.
	OutputIndex  int
	ContentIndex int
	Delta        string
	ItemID       string

	// Item completion events.
	Item *Item

	// Workflow events.
	Data       map[string]any
	ExecutorID *string
}

// IsTerminal reports whether the event ends a streaming response.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventResponseCompleted
}

// MarshalJSON serializes the event with the exact field contract of its
// kind. Delta events always carry an empty logprobs array and content_index;
// workflow events always carry executor_id, null when the notification was
// not executor-scoped.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventResponseCreated, EventResponseCompleted:
		return json.Marshal(struct {
			Type           StreamEventType `json:"type"`
			SequenceNumber int             `json:"sequence_number"`
			Response       *Response       `json:"response"`
		}{e.Type, e.SequenceNumber, e.Response})

	case EventOutputTextDelta:
		return json.Marshal(struct {
			Type           StreamEventType `json:"type"`
			SequenceNumber int             `json:"sequence_number"`
			OutputIndex    int             `json:"output_index"`
			ContentIndex   int             `json:"content_index"`
			Delta          string          `json:"delta"`
			ItemID         string          `json:"item_id"`
			Logprobs       []any           `json:"logprobs"`
		}{e.Type, e.SequenceNumber, e.OutputIndex, e.ContentIndex, e.Delta, e.ItemID, []any{}})

	case EventOutputItemDone:
		return json.Marshal(struct {
			Type           StreamEventType `json:"type"`
			SequenceNumber int             `json:"sequence_number"`
			OutputIndex    int             `json:"output_index"`
			Item           *Item           `json:"item"`
		}{e.Type, e.SequenceNumber, e.OutputIndex, e.Item})

	case EventWorkflowEventComplete:
		return json.Marshal(struct {
			Type           StreamEventType `json:"type"`
			SequenceNumber int             `json:"sequence_number"`
			OutputIndex    int             `json:"output_index"`
			Data           map[string]any  `json:"data"`
			ExecutorID     *string         `json:"executor_id"`
			ItemID         string          `json:"item_id"`
		}{e.Type, e.SequenceNumber, e.OutputIndex, e.Data, e.ExecutorID, e.ItemID})

	default:
		return nil, fmt.Errorf("unknown stream event type %q", e.Type)
	}
}

// UnmarshalJSON deserializes any event kind into the common struct.
// Fields absent from a kind's wire form are left at their zero values.
func (e *StreamEvent) UnmarshalJSON(data []byte) error {
	var w struct {
		Type           StreamEventType `json:"type"`
		SequenceNumber int             `json:"sequence_number"`
		Response       *Response       `json:"response"`
		OutputIndex    int             `json:"output_index"`
		ContentIndex   int             `json:"content_index"`
		Delta          string          `json:"delta"`
		ItemID         string          `json:"item_id"`
		Item           *Item           `json:"item"`
		Data           map[string]any  `json:"data"`
		ExecutorID     *string         `json:"executor_id"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Type = w.Type
	e.SequenceNumber = w.SequenceNumber
	e.Response = w.Response
	e.OutputIndex = w.OutputIndex
	e.ContentIndex = w.ContentIndex
	e.Delta = w.Delta
	e.ItemID = w.ItemID
	e.Item = w.Item
	e.Data = w.Data
	e.ExecutorID = w.ExecutorID
	return nil
}
