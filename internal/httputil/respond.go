// Package httputil provides the JSON response envelope shared by every
// service: {success, message, data}.
package httputil

import (
	"encoding/json"
	"net/http"
)

// Response is the envelope returned by all command and query endpoints.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON writes a success envelope with the given status and data.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Response{Success: true, Data: data})
}

// WriteError writes a failure envelope with the given status and message.
func WriteError(w http.ResponseWriter, status int, message string) {
	write(w, status, Response{Success: false, Message: message})
}

// WriteConflict writes the concurrency-conflict failure callers are expected
// to resolve by re-reading and retrying.
func WriteConflict(w http.ResponseWriter) {
	WriteError(w, http.StatusConflict, "version conflict: re-read the record and retry")
}

// Health returns a liveness handler reporting the service name.
func Health(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": service})
	}
}

func write(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
