package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxBodyBytes caps JSON request bodies. Task descriptions and chat payloads
// fit well inside it.
const MaxBodyBytes = 1 << 20

var (
	// ErrEmptyBody is returned when a JSON body is required but absent.
	ErrEmptyBody = errors.New("request body is empty")

	// ErrBodyTooLarge is returned when a body exceeds MaxBodyBytes.
	ErrBodyTooLarge = errors.New("request body is too large")

	// ErrTrailingData is returned when a body holds more than one JSON value.
	ErrTrailingData = errors.New("request body has trailing data")
)

// DecodeJSON decodes exactly one JSON value from the request body into v.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return ErrEmptyBody
	}
	limited := &io.LimitedReader{R: r.Body, N: MaxBodyBytes + 1}
	dec := json.NewDecoder(limited)

	if err := dec.Decode(v); err != nil {
		switch {
		case limited.N <= 0:
			return ErrBodyTooLarge
		case errors.Is(err, io.EOF):
			return ErrEmptyBody
		default:
			return fmt.Errorf("decode request body: %w", err)
		}
	}
	if dec.More() {
		return ErrTrailingData
	}
	return nil
}
