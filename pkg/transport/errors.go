package transport

import (
	"encoding/json"
	"net/http"

	"github.com/ablauf-dev/ablauf/pkg/api"
)

// Statuses without an api.ErrorType counterpart, like 405 or 415, come
// straight from the HTTP adapter and never pass through this mapping.
var statusByErrorType = map[api.ErrorType]int{
	api.ErrorTypeInvalidRequest:  http.StatusBadRequest,
	api.ErrorTypeNotFound:        http.StatusNotFound,
	api.ErrorTypeTooManyRequests: http.StatusTooManyRequests,
}

// HTTPStatusFromError picks the status code for an API error type.
func HTTPStatusFromError(err *api.APIError) int {
	if status, ok := statusByErrorType[err.Type]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse sends apiErr as a JSON body wrapped in the
// standard error envelope, with the given status.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError is WriteErrorResponse with the status derived from the
// error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}
