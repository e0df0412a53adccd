package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"hubd/internal/hub"
	"hubd/pkg/types"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

// statusForError maps hub error kinds to HTTP status codes.
func statusForError(err error) int {
	switch {
	case hub.IsMalformedCommand(err):
		return http.StatusBadRequest
	case hub.IsUnknownProvider(err):
		return http.StatusNotFound
	case hub.IsProviderUnreachable(err):
		return http.StatusBadGateway
	case errors.Is(err, hub.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
