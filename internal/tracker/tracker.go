// Package tracker computes field-level differences between two versions of a
// task and records them as append-only history rows.
package tracker

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// Tracked field names, in the order Diff reports them.
const (
	FieldTitle          = "title"
	FieldDescription    = "description"
	FieldDueDate        = "due_date"
	FieldPriority       = "priority"
	FieldStatus         = "status"
	FieldCategory       = "category_id"
	FieldAssignedTo     = "assigned_to"
	FieldEstimatedHours = "estimated_hours"
	FieldActualHours    = "actual_hours"
	FieldTags           = "tags"
)

// Change is one field whose rendered value differs between two task versions.
type Change struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// NameFunc renders a user ID for humans, usually as a username. A nil
// NameFunc renders the raw ID.
type NameFunc func(id uuid.UUID) string

// Diff returns the changes between before and after, one per differing field.
// Due dates compare as instants; they render as calendar days when both fall
// on midnight UTC and as RFC 3339 timestamps otherwise.
func Diff(before, after *domain.Task, names NameFunc) []Change {
	if names == nil {
		names = func(id uuid.UUID) string { return id.String() }
	}

	var changes []Change
	add := func(field, oldValue, newValue string) {
		if oldValue != newValue {
			changes = append(changes, Change{Field: field, Old: oldValue, New: newValue})
		}
	}

	add(FieldTitle, before.Title, after.Title)
	add(FieldDescription, before.Description, after.Description)
	if !before.DueDate.Equal(after.DueDate) {
		layout := time.RFC3339
		if isMidnight(before.DueDate) && isMidnight(after.DueDate) {
			layout = domain.DueDateLayout
		}
		changes = append(changes, Change{
			Field: FieldDueDate,
			Old:   before.DueDate.UTC().Format(layout),
			New:   after.DueDate.UTC().Format(layout),
		})
	}
	add(FieldPriority, string(before.Priority), string(after.Priority))
	add(FieldStatus, string(before.Status), string(after.Status))
	add(FieldCategory, formatID(before.CategoryID), formatID(after.CategoryID))
	if before.AssignedToID != after.AssignedToID {
		add(FieldAssignedTo, names(before.AssignedToID), names(after.AssignedToID))
	}
	add(FieldEstimatedHours, formatHours(before.EstimatedHours), formatHours(after.EstimatedHours))
	add(FieldActualHours, formatHours(before.ActualHours), formatHours(after.ActualHours))
	add(FieldTags, strings.Join(before.Tags, ","), strings.Join(after.Tags, ","))

	return changes
}

// Has reports whether changes include field.
func Has(changes []Change, field string) bool {
	for _, c := range changes {
		if c.Field == field {
			return true
		}
	}
	return false
}

// Without returns changes minus the given field.
func Without(changes []Change, field string) []Change {
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if c.Field != field {
			out = append(out, c)
		}
	}
	return out
}

func isMidnight(t time.Time) bool {
	t = t.UTC()
	return t.Equal(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
}

func formatID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func formatHours(h *float64) string {
	if h == nil {
		return ""
	}
	return strconv.FormatFloat(*h, 'f', -1, 64)
}

// Tracker persists history rows inside the caller's transaction.
type Tracker struct {
	history store.HistoryStore
	logger  *slog.Logger
}

// New creates a Tracker writing through history.
func New(history store.HistoryStore, logger *slog.Logger) *Tracker {
	if history == nil {
		panic("history store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		history: history,
		logger:  logger.With(slog.String("component", "change_tracker")),
	}
}

// Record writes one history row per change, or a single row for the action
// when changes is empty. Rows are written in order within tx; a failed write
// is returned as a persistence error so the caller rolls the mutation back.
func (t *Tracker) Record(
	ctx context.Context,
	tx *sql.Tx,
	taskID, actorID uuid.UUID,
	action domain.HistoryAction,
	changes []Change,
	p domain.Provenance,
) ([]*domain.TaskHistory, error) {
	log := logger.FromContextOrDefault(ctx, t.logger)

	var rows []*domain.TaskHistory
	if len(changes) == 0 {
		rows = append(rows, domain.NewTaskHistory(taskID, actorID, action, p))
	}
	for _, c := range changes {
		rows = append(rows, domain.NewTaskHistory(taskID, actorID, action, p).WithField(c.Field, c.Old, c.New))
	}

	history := t.history
	if tx != nil {
		history = history.WithTx(tx)
	}
	if err := history.Append(ctx, rows...); err != nil {
		log.Error("failed to record task history",
			slog.String("task_id", taskID.String()),
			slog.String("action", string(action)),
			slog.Int("rows", len(rows)),
			slog.String("error", err.Error()))
		if errors.Is(err, store.ErrPersistence) {
			return nil, err
		}
		return nil, store.NewPersistenceError("record history", err)
	}

	log.Debug("task history recorded",
		slog.String("task_id", taskID.String()),
		slog.String("action", string(action)),
		slog.Int("rows", len(rows)))
	return rows, nil
}
