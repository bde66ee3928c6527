// Package api exposes the media-hosting HTTP surface: uploads, reads,
// deletes, tagging, rate-limit status, and health.
//
// Error responses are structured JSON, Stripe-style: a type, a stable code,
// and a human-readable message. Overload is machine-readable: rate-limited
// and service-busy responses both carry a Retry-After header.
package api

import (
	"encoding/json"
	"net/http"
)

// APIError represents a structured API error response.
type APIError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

type errorResponse struct {
	Error *APIError `json:"error"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// With returns a copy of the error with a custom message.
func (e *APIError) With(message string) *APIError {
	if e == nil {
		return nil
	}
	dup := *e
	dup.Message = message
	return &dup
}

// Predefined sentinel errors
var (
	ErrBadRequest      = &APIError{Type: "request_error", Code: "bad_request", Message: "Bad request", Status: http.StatusBadRequest}
	ErrNotFound        = &APIError{Type: "not_found", Code: "resource_not_found", Message: "Resource not found", Status: http.StatusNotFound}
	ErrPayloadTooLarge = &APIError{Type: "request_error", Code: "payload_too_large", Message: "Payload too large", Status: http.StatusRequestEntityTooLarge}
	ErrRateLimited     = &APIError{Type: "rate_limit_error", Code: "rate_limited", Message: "Too many requests", Status: http.StatusTooManyRequests}
	ErrServiceBusy     = &APIError{Type: "availability_error", Code: "service_busy", Message: "Service busy, try again later", Status: http.StatusServiceUnavailable}
	ErrInternal        = &APIError{Type: "api_error", Code: "internal_error", Message: "Internal server error", Status: http.StatusInternalServerError}
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err *APIError) {
	writeJSON(w, err.Status, errorResponse{Error: err})
}
