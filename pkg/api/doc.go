// Package api defines the wire types for the ablauf gateway: the
// Responses-protocol request and response objects, the streaming event
// vocabulary, structured errors, and identifier generation.
//
// Types in this package are serialization contracts. Field names and
// shapes follow the OpenAI Responses wire format so that off-the-shelf
// clients can consume the gateway without adaptation; the single
// extension is the response.workflow_event.complete event used to
// surface workflow lifecycle notifications.
package api
