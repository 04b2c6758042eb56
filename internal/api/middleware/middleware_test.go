package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/cache"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/chat"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceMiddleware(t *testing.T) {
	var traceID string
	var hasLogger bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
		hasLogger = logger.FromContextOrDefault(r.Context(), nil) != nil
	})

	rec := httptest.NewRecorder()
	NewTraceMiddleware(nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, traceID, 32)
	assert.Equal(t, traceID, rec.Header().Get(shared.TraceHeader))
	assert.True(t, hasLogger)

	t.Run("keeps well-formed inbound id", func(t *testing.T) {
		inbound := shared.NewTraceID()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(shared.TraceHeader, inbound)
		NewTraceMiddleware(nil)(next).ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, inbound, traceID)
	})

	t.Run("replaces malformed inbound id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(shared.TraceHeader, "<script>")
		NewTraceMiddleware(nil)(next).ServeHTTP(httptest.NewRecorder(), req)
		assert.Len(t, traceID, 32)
		assert.NotEqual(t, "<script>", traceID)
	})
}

func signedRequest(t *testing.T, secret, body string, at time.Time) *http.Request {
	t.Helper()
	ts := strconv.FormatInt(at.Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/api/integrations/chat/events", strings.NewReader(body))
	req.Header.Set(chat.TimestampHeader, ts)
	req.Header.Set(chat.SignatureHeader, chat.Sign([]byte(secret), ts, []byte(body)))
	return req
}

func TestVerifyChatSignature(t *testing.T) {
	const secret = "signing-secret"
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
		w.WriteHeader(http.StatusOK)
	})
	h := VerifyChatSignature(chat.NewVerifier(secret, 5*time.Minute))(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, secret, `{"type":"url_verification"}`, time.Now()))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"type":"url_verification"}`, seen, "body is restored")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, "other-secret", `{}`, time.Now()))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, secret, `{}`, time.Now().Add(-10*time.Minute)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyChatSignature_NoSecretRefuses(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	rec := httptest.NewRecorder()
	VerifyChatSignature(chat.NewVerifier("", 5*time.Minute))(next).ServeHTTP(rec, signedRequest(t, "", `{}`, time.Now()))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func withUser(r *http.Request, id uuid.UUID) *http.Request {
	return r.WithContext(shared.WithPrincipal(r.Context(), id, domain.RoleUser))
}

func TestCacheTaskList(t *testing.T) {
	c := cache.New()
	var calls atomic.Int32
	status := http.StatusOK
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"call":` + strconv.Itoa(int(n)) + `}`))
	})
	list := CacheTaskList(c, time.Minute)(next)
	mutate := InvalidateTaskLists(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	alice, bob := uuid.New(), uuid.New()
	get := func(user uuid.UUID, url string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		list.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, url, nil), user))
		return rec
	}

	first := get(alice, "/api/tasks?page=1")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "application/json", first.Header().Get("Content-Type"))
	assert.Equal(t, first.Body.String(), get(alice, "/api/tasks?page=1").Body.String())
	assert.Equal(t, int32(1), calls.Load())

	// keys are per user and per URL
	get(bob, "/api/tasks?page=1")
	get(alice, "/api/tasks?page=2")
	assert.Equal(t, int32(3), calls.Load())

	mutate.ServeHTTP(httptest.NewRecorder(), withUser(httptest.NewRequest(http.MethodPost, "/api/tasks", nil), alice))
	get(alice, "/api/tasks?page=1")
	assert.Equal(t, int32(4), calls.Load())

	// errors are served but not stored
	status = http.StatusBadRequest
	assert.Equal(t, http.StatusBadRequest, get(alice, "/api/tasks?status=bogus").Code)
	assert.Equal(t, http.StatusBadRequest, get(alice, "/api/tasks?status=bogus").Code)
	assert.Equal(t, int32(6), calls.Load())
}

func TestInvalidateTaskLists_FailedMutationKeepsCache(t *testing.T) {
	c := cache.New()
	c.Set(TaskListPrefix+"x", "v", time.Minute)

	failing := InvalidateTaskLists(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	failing.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/tasks/x", nil))
	assert.Equal(t, 1, c.Len())
}
