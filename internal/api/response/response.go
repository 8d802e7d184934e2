// Package response writes the API's JSON envelopes.
package response

import (
	"net/http"

	"github.com/meteocache/meteocache/internal/api/middleware"
	"github.com/meteocache/meteocache/internal/api/models"
)

// Success writes a 200 response {"success":true,"data":data,"meta":meta}.
// Includes X-Request-Id header for correlation.
func Success(w http.ResponseWriter, r *http.Request, data any, meta map[string]any) {
	models.NewSuccess(data, meta).Write(w, middleware.GetRequestID(r.Context()), http.StatusOK)
}

// Error writes {"success":false,"message":message,"errors":errors} with the
// given status code. A message outside the closed set is written as
// internal_error so clients only ever see known values.
func Error(w http.ResponseWriter, r *http.Request, message models.Message, status int, errors []models.FieldError) {
	if !message.Valid() {
		message = models.MessageInternalError
	}
	models.NewError(message, errors).Write(w, middleware.GetRequestID(r.Context()), status)
}

// InternalError writes the 500 internal_error envelope. No error detail is
// exposed to the client.
func InternalError(w http.ResponseWriter, r *http.Request) {
	Error(w, r, models.MessageInternalError, http.StatusInternalServerError, nil)
}

// NotFound writes the 404 not_found envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Error(w, r, models.MessageNotFound, http.StatusNotFound, nil)
}

// MethodNotAllowed writes the 405 failed envelope.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Error(w, r, models.MessageFailed, http.StatusMethodNotAllowed, nil)
}
