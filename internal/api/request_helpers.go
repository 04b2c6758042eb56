package api

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// getUserIDFromContext extracts the authenticated user's UUID from the request context.
// The user ID is expected to be placed in the context by the authentication middleware.
func getUserIDFromContext(r *http.Request) (uuid.UUID, bool) {
	return shared.UserID(r.Context())
}

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required")
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format")
	}
	return id, nil
}

// requireUserID writes a 401 and returns false when the request carries no
// authenticated user.
func requireUserID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "User ID not found or invalid")
		return uuid.Nil, false
	}
	return userID, true
}

// handleUserIDAndPathUUID is a composite helper that extracts both the user ID from context
// and a UUID from the path parameters. It writes an error response if either extraction fails.
func handleUserIDAndPathUUID(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
	log *slog.Logger,
) (uuid.UUID, uuid.UUID, bool) {
	if log == nil {
		log = logger.FromContextOrDefault(r.Context(), slog.Default())
	}

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	pathID, err := getPathUUID(r, paramName)
	if err != nil {
		log.Warn("invalid "+paramName,
			slog.String("param_name", paramName),
			slog.String("value", chi.URLParam(r, paramName)))
		HandleAPIError(w, r, err, "")
		return uuid.Nil, uuid.Nil, false
	}

	return userID, pathID, true
}

// provenance captures the client address and user agent for the audit trail.
func provenance(r *http.Request) domain.Provenance {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return domain.Provenance{IPAddress: ip, UserAgent: r.UserAgent()}
}

// parseDueDate accepts an RFC 3339 timestamp or a 2006-01-02 date (midnight UTC).
func parseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, domain.NewValidationError("due_date", "must be an RFC 3339 timestamp or YYYY-MM-DD date")
}

// parseTaskFilter reads list filters, sorting and pagination from the query string.
func parseTaskFilter(q url.Values) (store.TaskFilter, error) {
	f := store.TaskFilter{
		Status:   domain.TaskStatus(q.Get("status")),
		Priority: domain.Priority(q.Get("priority")),
		Sort:     store.TaskSortField(q.Get("sort")),
	}
	if f.Status != "" && !f.Status.IsValid() {
		return f, domain.NewValidationError("status", "must be one of pending, in-progress, completed, archived")
	}
	if f.Priority != "" && !f.Priority.IsValid() {
		return f, domain.NewValidationError("priority", "must be one of low, medium, high, critical")
	}

	for name, dst := range map[string]**uuid.UUID{
		"category_id":    &f.CategoryID,
		"assigned_to_id": &f.AssignedToID,
	} {
		if v := q.Get(name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return f, domain.NewValidationError(name, "has invalid format")
			}
			*dst = &id
		}
	}

	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
	case "desc":
		f.Descending = true
	default:
		return f, domain.NewValidationError("order", "must be asc or desc")
	}

	for name, dst := range map[string]*int{"page": &f.Page, "per_page": &f.PerPage} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return f, domain.NewValidationError(name, "must be a positive integer")
			}
			*dst = n
		}
	}
	return f.Normalize(), nil
}
