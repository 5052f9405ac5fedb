package api

import "fmt"

// Response and item statuses move forward only: the empty status (never
// set) may enter in_progress, in_progress may enter a terminal status,
// and terminal statuses allow no further transitions.

var responseTransitions = map[ResponseStatus][]ResponseStatus{
	"":                       {ResponseStatusInProgress},
	ResponseStatusInProgress: {ResponseStatusCompleted, ResponseStatusFailed, ResponseStatusCancelled},
}

var itemTransitions = map[ItemStatus][]ItemStatus{
	"":                   {ItemStatusInProgress, ItemStatusCompleted},
	ItemStatusInProgress: {ItemStatusCompleted, ItemStatusFailed},
}

// ValidateResponseTransition checks one response status change against the
// transition table, returning an invalid_request error when it is not
// allowed.
func ValidateResponseTransition(from, to ResponseStatus) *APIError {
	for _, s := range responseTransitions[from] {
		if s == to {
			return nil
		}
	}
	return NewInvalidRequestError("status",
		fmt.Sprintf("invalid transition from %s to %s", from, to))
}

// ValidateItemTransition checks one item status change the same way.
func ValidateItemTransition(from, to ItemStatus) *APIError {
	for _, s := range itemTransitions[from] {
		if s == to {
			return nil
		}
	}
	return NewInvalidRequestError("status",
		fmt.Sprintf("invalid transition from %s to %s", from, to))
}
