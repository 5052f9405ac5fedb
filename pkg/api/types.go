package api

import (
	"encoding/json"
	"fmt"
)

// ResponseStatus represents the lifecycle state of a response.
type ResponseStatus string

const (
	ResponseStatusInProgress ResponseStatus = "in_progress"
	ResponseStatusCompleted  ResponseStatus = "completed"
	ResponseStatusFailed     ResponseStatus = "failed"
	ResponseStatusCancelled  ResponseStatus = "cancelled"
)

// Response is the complete, protocol-shaped result of one entity run.
// It is embedded verbatim in response.created and response.completed
// streaming events and returned whole on the non-streaming path.
type Response struct {
	ID        string            `json:"id"`
	Object    string            `json:"object"`
	Status    ResponseStatus    `json:"status"`
	Model     string            `json:"model"`
	Output    []Item            `json:"output"`
	Usage     *Usage            `json:"usage,omitempty"`
	Error     *APIError         `json:"error,omitempty"`
	CreatedAt int64             `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// MarshalJSON ensures the output array is never null on the wire.
func (r Response) MarshalJSON() ([]byte, error) {
	type alias Response
	a := alias(r)
	if a.Output == nil {
		a.Output = []Item{}
	}
	return json.Marshal(a)
}

// Usage reports token accounting for a response. Entity runs that do not
// meter tokens leave the field nil and it is omitted from the wire.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// MessageRole represents the role of a message sender.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ItemType represents the type of an output item.
type ItemType string

const (
	ItemTypeMessage ItemType = "message"
)

// ItemStatus represents the processing status of an item.
type ItemStatus string

const (
	ItemStatusInProgress ItemStatus = "in_progress"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusFailed     ItemStatus = "failed"
)

// Item is a single output item of a response. The gateway emits message
// items only; the type discriminator is kept on the wire so clients can
// skip kinds they do not know.
type Item struct {
	ID      string              `json:"id"`
	Type    ItemType            `json:"type"`
	Status  ItemStatus          `json:"status"`
	Role    MessageRole         `json:"role"`
	Content []OutputContentPart `json:"content"`
}

// MarshalJSON ensures the content array is never null on the wire.
func (item Item) MarshalJSON() ([]byte, error) {
	type alias Item
	a := alias(item)
	if a.Content == nil {
		a.Content = []OutputContentPart{}
	}
	return json.Marshal(a)
}

// OutputContentPart is one part of a message item's content.
// The only part type produced by the gateway is output_text.
type OutputContentPart struct {
	Type        string   `json:"-"`
	Text        string   `json:"-"`
	Annotations []string `json:"-"`
}

// MarshalJSON ensures annotations are always an array, never null.
func (p OutputContentPart) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type        string   `json:"type"`
		Text        string   `json:"text"`
		Annotations []string `json:"annotations"`
	}
	w := wire{Type: p.Type, Text: p.Text, Annotations: p.Annotations}
	if w.Annotations == nil {
		w.Annotations = []string{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON deserializes an OutputContentPart.
func (p *OutputContentPart) UnmarshalJSON(data []byte) error {
	type wire struct {
		Type        string   `json:"type"`
		Text        string   `json:"text"`
		Annotations []string `json:"annotations"`
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Type = w.Type
	p.Text = w.Text
	p.Annotations = w.Annotations
	return nil
}

// NewTextItem builds a completed assistant message item from finalized text.
func NewTextItem(id, text string) Item {
	return Item{
		ID:     id,
		Type:   ItemTypeMessage,
		Status: ItemStatusCompleted,
		Role:   RoleAssistant,
		Content: []OutputContentPart{
			{Type: "output_text", Text: text},
		},
	}
}

// CreateResponseRequest is the body of POST /v1/responses. The model field
// names the target entity (agent or workflow) registered with the gateway.
type CreateResponseRequest struct {
	Model    string            `json:"model"`
	Input    Input             `json:"input"`
	Stream   bool              `json:"stream"`
	Store    *bool             `json:"store,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Input is the request input, which on the wire may be a plain string or
// an array of message objects with text content parts. Both forms reduce
// to a single text payload handed to the entity run.
type Input struct {
	text string
}

// NewInput builds an Input from plain text. Used by tests and embedders.
func NewInput(text string) Input {
	return Input{text: text}
}

// Text returns the concatenated text of the input.
func (in Input) Text() string {
	return in.text
}

// MarshalJSON serializes the input in its plain-string form.
func (in Input) MarshalJSON() ([]byte, error) {
	return json.Marshal(in.text)
}

// UnmarshalJSON accepts either a JSON string or an array of message
// objects carrying input_text content parts.
func (in *Input) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		in.text = s
		return nil
	}

	type contentPart struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	type message struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}

	var msgs []message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return fmt.Errorf("input must be a string or an array of messages: %w", err)
	}

	var text string
	for _, m := range msgs {
		// Content itself may be a string or an array of parts.
		var c string
		if err := json.Unmarshal(m.Content, &c); err == nil {
			text += c
			continue
		}
		var parts []contentPart
		if err := json.Unmarshal(m.Content, &parts); err != nil {
			return fmt.Errorf("message content must be a string or content parts: %w", err)
		}
		for _, p := range parts {
			if p.Type == "input_text" || p.Type == "text" {
				text += p.Text
			}
		}
	}
	in.text = text
	return nil
}
