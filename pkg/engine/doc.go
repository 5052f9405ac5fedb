// Package engine runs registered entities (agents and workflows) and
// converts their update streams into the Responses-protocol event sequence.
//
// The central piece is the Translator, a per-request state machine that
// consumes updates from a running entity and emits protocol events with
// gapless sequence numbers: a response.created envelope on the first
// qualifying update, output_text.delta events for streamed text,
// output_item.done when a message boundary is crossed, workflow_event
// events for lifecycle notifications, and a terminal response.completed
// reusing the created snapshot.
//
// The Engine implements transport.ResponseCreator: it resolves the target
// entity from the Registry, starts its run, and drives either the streaming
// translation or the non-streaming aggregation of the update sequence.
package engine
