package httputil

import (
	"encoding/json"
	"net/http"
)

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes the failure envelope with a stable machine-readable code.
func Error(w http.ResponseWriter, status int, code string) {
	JSON(w, status, map[string]any{"success": false, "error": code})
}
