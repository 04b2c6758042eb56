package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/taskflow-api/internal/cache"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
)

// TaskListPrefix namespaces cached task listings.
const TaskListPrefix = "tasks:"

type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

// uncacheable carries a response that must be sent but not stored.
type uncacheable struct {
	resp *cachedResponse
}

func (u *uncacheable) Error() string { return "response not cacheable" }

type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

// CacheTaskList serves GET task listings from c, keyed by user and URL.
// Only 200 responses are stored. Concurrent identical requests share one
// handler invocation.
func CacheTaskList(c *cache.Cache, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r)
			if !ok || r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := TaskListPrefix + userID.String() + ":" + r.URL.RequestURI()
			v, err := c.GetOrCompute(r.Context(), key, ttl, func(context.Context) (any, error) {
				bw := &bufferedWriter{header: make(http.Header)}
				next.ServeHTTP(bw, r)
				resp := &cachedResponse{
					status:      bw.status,
					contentType: bw.header.Get("Content-Type"),
					body:        bw.body.Bytes(),
				}
				if resp.status != http.StatusOK {
					return nil, &uncacheable{resp: resp}
				}
				return resp, nil
			})

			var resp *cachedResponse
			var skip *uncacheable
			switch {
			case err == nil:
				resp = v.(*cachedResponse)
			case errors.As(err, &skip):
				resp = skip.resp
			default:
				// request cancelled while waiting on a shared computation
				logger.FromContext(r.Context()).Debug("task list cache wait aborted",
					slog.String("error", err.Error()))
				return
			}

			if resp.contentType != "" {
				w.Header().Set("Content-Type", resp.contentType)
			}
			w.WriteHeader(resp.status)
			_, _ = w.Write(resp.body)
		})
	}
}

// InvalidateTaskLists drops every cached listing after a successful
// mutation. Task changes can show up in the owner's and the assignee's
// listings, so the whole namespace is cleared.
func InvalidateTaskLists(c *cache.Cache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if ww.Status() < http.StatusBadRequest {
				n := c.InvalidatePrefix(TaskListPrefix)
				logger.FromContext(r.Context()).Debug("task list cache invalidated", slog.Int("entries", n))
			}
		})
	}
}
