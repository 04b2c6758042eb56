package chat

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by Send when neither a bot token nor a webhook
// URL is configured.
var ErrNotConfigured = errors.New("chat delivery not configured")

// Delivery modes
const (
	ModeBot     = "bot"
	ModeWebhook = "webhook"
)

// DeliveryError reports a failed delivery attempt.
type DeliveryError struct {
	Mode       string
	StatusCode int
	// APIError is the error code of an ok:false bot response.
	APIError  string
	Transient bool
	Err       error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("chat %s delivery failed", e.Mode)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.APIError != "" {
		msg += ": " + e.APIError
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a DeliveryError worth retrying.
func IsTransient(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Transient
}

// transientStatus reports whether an HTTP status is worth retrying.
func transientStatus(code int) bool {
	return code == 429 || code >= 500
}

// transientAPIErrors lists ok:false codes that clear up on their own.
var transientAPIErrors = map[string]bool{
	"ratelimited":         true,
	"rate_limited":        true,
	"service_unavailable": true,
	"internal_error":      true,
	"fatal_error":         true,
	"request_timeout":     true,
}
