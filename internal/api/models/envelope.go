// Package models defines the JSON bodies returned by the meteocache API.
package models

import (
	"encoding/json"
	"net/http"
)

// Message is the closed set of envelope messages clients may receive. The
// set is part of the response contract; validation_failed and unauthorized
// are reserved for clients that branch on them even though no current route
// emits them.
type Message string

const (
	MessageSuccess          Message = "success"
	MessageFailed           Message = "failed"
	MessageValidationFailed Message = "validation_failed"
	MessageUnauthorized     Message = "unauthorized"
	MessageForbidden        Message = "forbidden"
	MessageNotFound         Message = "not_found"
	MessageInternalError    Message = "internal_error"
)

// Valid reports whether m is one of the defined messages.
func (m Message) Valid() bool {
	switch m {
	case MessageSuccess, MessageFailed, MessageValidationFailed, MessageUnauthorized,
		MessageForbidden, MessageNotFound, MessageInternalError:
		return true
	}
	return false
}

// SuccessEnvelope wraps every successful response body.
type SuccessEnvelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data"`
	Meta    map[string]any `json:"meta"`
}

// ErrorEnvelope wraps every error response body.
type ErrorEnvelope struct {
	Success bool         `json:"success"`
	Message Message      `json:"message"`
	Errors  []FieldError `json:"errors"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewSuccess builds a success envelope. A nil meta is rendered as {}.
func NewSuccess(data any, meta map[string]any) *SuccessEnvelope {
	if meta == nil {
		meta = map[string]any{}
	}
	return &SuccessEnvelope{Success: true, Data: data, Meta: meta}
}

// NewError builds an error envelope. Nil errors are rendered as [].
func NewError(message Message, errors []FieldError) *ErrorEnvelope {
	if errors == nil {
		errors = []FieldError{}
	}
	return &ErrorEnvelope{Success: false, Message: message, Errors: errors}
}

// Write writes the envelope as JSON with the given status code.
func (e *SuccessEnvelope) Write(w http.ResponseWriter, requestID string, status int) {
	writeJSON(w, requestID, status, e)
}

// Write writes the envelope as JSON with the given status code.
func (e *ErrorEnvelope) Write(w http.ResponseWriter, requestID string, status int) {
	writeJSON(w, requestID, status, e)
}

func writeJSON(w http.ResponseWriter, requestID string, status int, body any) {
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
