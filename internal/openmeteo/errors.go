package openmeteo

import (
	"errors"
	"fmt"
	"net/http"
)

// Error classes returned by the client. Match them with errors.Is.
var (
	// ErrInvalidOptions is returned when the request cannot be built from the
	// given coordinates and options. No request is sent.
	ErrInvalidOptions = errors.New("invalid forecast options")

	// ErrTransport is returned when no HTTP response was obtained.
	ErrTransport = errors.New("forecast transport failure")

	// ErrClientStatus is returned for 4xx responses, rate limiting included.
	// Redirects the transport did not follow are reported the same way.
	ErrClientStatus = errors.New("forecast request rejected")

	// ErrServerStatus is returned for 5xx responses.
	ErrServerStatus = errors.New("forecast upstream failure")

	// ErrDecode is returned when the response body is not valid JSON.
	ErrDecode = errors.New("forecast response decoding failed")
)

// StatusError describes a non-2xx response from the API.
type StatusError struct {
	StatusCode int

	// Reason is the API's own explanation, when the body carried one.
	Reason string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("open-meteo: unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is lets errors.Is match a StatusError against ErrClientStatus or ErrServerStatus.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrClientStatus:
		return e.StatusCode < 500
	case ErrServerStatus:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// RateLimited reports whether the API rejected the request for exceeding its quota.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable reports whether err is worth retrying at a higher layer:
// transport failures and upstream 5xx are, everything else is not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrServerStatus)
}
