// Package api holds the small JSON response helpers shared by handlers.
package api

import (
	"encoding/json"
	"net/http"
)

type ErrorBody struct {
	Error string `json:"error"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes a human-readable message. Callers log the underlying error
// themselves; it never reaches the client.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorBody{Error: msg})
}

// Count is one labelled total, as shown in dashboard count cards.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}
