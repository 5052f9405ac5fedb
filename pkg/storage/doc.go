// Package storage holds what the storage adapters share, at the moment
// just their sentinel errors.
//
// The adapters themselves (memory, postgres) each implement
// transport.ResponseStore; that interface lives with the transport
// layer in pkg/transport/handler.go, not here.
package storage
