package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/platform/chat"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/redact"
)

// maxChatBody bounds inbound chat payloads.
const maxChatBody = 1 << 20

// VerifyChatSignature rejects inbound chat requests whose signature does not
// match the raw body. The body is restored for the next handler.
func VerifyChatSignature(v *chat.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxChatBody))
			if err != nil {
				shared.RespondWithError(w, r, http.StatusBadRequest, "Unreadable request body")
				return
			}
			_ = r.Body.Close()

			err = v.Verify(r.Header.Get(chat.TimestampHeader), r.Header.Get(chat.SignatureHeader), body)
			if err != nil {
				logger.FromContext(r.Context()).Warn("rejected chat request",
					slog.String("path", r.URL.Path),
					slog.String("error", redact.Error(err)))
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid request signature")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
