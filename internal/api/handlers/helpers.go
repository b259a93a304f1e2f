// Handler helper functions shared across the API surface.
package handlers

import (
	"encoding/json"
	"net/http"
)

const (
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"
)

// ErrorEnvelope is the uniform error body returned by every endpoint,
// including middleware rejections.
type ErrorEnvelope struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"` // seconds, rate-limit answers only
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, `{"success":false,"message":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// writeError writes the error envelope.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorEnvelope{Success: false, Message: message})
}

// writeRateLimited writes a 429 envelope with an optional retry hint.
func writeRateLimited(w http.ResponseWriter, retryAfterSeconds int) {
	WriteJSON(w, http.StatusTooManyRequests, ErrorEnvelope{
		Success:    false,
		Message:    "upstream model is rate limited, retry later",
		RetryAfter: retryAfterSeconds,
	})
}
