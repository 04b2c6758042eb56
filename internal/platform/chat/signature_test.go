package chat

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedVerifier(secret string, now time.Time) *Verifier {
	v := NewVerifier(secret, 5*time.Minute)
	v.now = func() time.Time { return now }
	return v
}

func TestVerify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := []byte("token=x&command=%2Ftaskstatus")
	ts := strconv.FormatInt(now.Unix(), 10)
	valid := Sign([]byte("shh"), ts, body)

	tests := []struct {
		name      string
		secret    string
		timestamp string
		signature string
		body      []byte
		want      error
	}{
		{"valid", "shh", ts, valid, body, nil},
		{"no secret refuses", "", ts, valid, body, ErrSigningSecretMissing},
		{"missing headers", "shh", "", "", body, ErrMissingSignature},
		{"bad timestamp", "shh", "yesterday", valid, body, ErrInvalidTimestamp},
		{"stale", "shh", strconv.FormatInt(now.Add(-6*time.Minute).Unix(), 10), valid, body, ErrStaleRequest},
		{"future", "shh", strconv.FormatInt(now.Add(6*time.Minute).Unix(), 10), valid, body, ErrStaleRequest},
		{"tampered body", "shh", ts, valid, []byte("token=x&command=%2Ftask"), ErrInvalidSignature},
		{"wrong secret", "other", ts, valid, body, ErrInvalidSignature},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := fixedVerifier(tc.secret, now).Verify(tc.timestamp, tc.signature, tc.body)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSign_Format(t *testing.T) {
	sig := Sign([]byte("secret"), "1", []byte("body"))
	assert.Regexp(t, `^v0=[0-9a-f]{64}$`, sig)
}
