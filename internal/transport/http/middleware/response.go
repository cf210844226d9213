package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError writes the {kind, message} error envelope shared with the handlers.
func writeJSONError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"kind": kind, "message": msg})
}
