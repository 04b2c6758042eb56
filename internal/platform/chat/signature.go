package chat

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Request headers carrying the signature of an inbound chat request.
const (
	TimestampHeader = "X-Slack-Request-Timestamp"
	SignatureHeader = "X-Slack-Signature"
)

const signatureVersion = "v0"

// Signature verification errors
var (
	ErrSigningSecretMissing = errors.New("signing secret not configured")
	ErrMissingSignature     = errors.New("missing request signature")
	ErrInvalidTimestamp     = errors.New("invalid request timestamp")
	ErrStaleRequest         = errors.New("request timestamp outside replay window")
	ErrInvalidSignature     = errors.New("invalid request signature")
)

// Verifier checks the HMAC signature on inbound chat requests.
type Verifier struct {
	secret []byte
	window time.Duration
	now    func() time.Time
}

// NewVerifier creates a Verifier. Requests whose timestamp is further than
// window from the current time are rejected.
func NewVerifier(secret string, window time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), window: window, now: time.Now}
}

// Verify checks signature against the raw request body. An empty signing
// secret refuses every request.
func (v *Verifier) Verify(timestamp, signature string, body []byte) error {
	if len(v.secret) == 0 {
		return ErrSigningSecretMissing
	}
	if timestamp == "" || signature == "" {
		return ErrMissingSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimestamp, timestamp)
	}
	age := v.now().Sub(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}
	if age > v.window {
		return ErrStaleRequest
	}

	expected := Sign(v.secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign computes the v0 signature of body at timestamp.
func Sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	_, _ = mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}
