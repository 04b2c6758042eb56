// Package sweep holds the periodic jobs: due-date reminders, daily summaries
// and retention, and the scheduler that runs them without overlap.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/notify"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// DefaultReminderLimit is how many tasks a reminder lists before summarizing
// the rest as overflow.
const DefaultReminderLimit = 10

// Reminder is one planned reminder: a user, a due bucket and the tasks listed.
type Reminder struct {
	UserID   uuid.UUID
	Type     notify.ReminderType
	TaskIDs  []uuid.UUID
	Overflow int
}

// DueDateSweep reminds assignees of overdue tasks and tasks due today or tomorrow.
type DueDateSweep struct {
	tasks    store.TaskStore
	users    store.UserStore
	notifier notify.Notifier
	limit    int
	now      func() time.Time
	logger   *slog.Logger
}

// NewDueDateSweep creates a DueDateSweep. A non-positive limit selects
// DefaultReminderLimit.
func NewDueDateSweep(
	tasks store.TaskStore,
	users store.UserStore,
	notifier notify.Notifier,
	limit int,
	logger *slog.Logger,
) *DueDateSweep {
	if limit <= 0 {
		limit = DefaultReminderLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DueDateSweep{
		tasks:    tasks,
		users:    users,
		notifier: notifier,
		limit:    limit,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With(slog.String("component", "due_date_sweep")),
	}
}

// Run plans the reminders for the current instant and submits one job per
// reminder. The plan depends only on stored state and the clock, so running
// twice at the same instant yields the same reminders. Assignees that no
// longer exist are skipped; any other lookup failure aborts the cycle before
// anything is submitted.
func (s *DueDateSweep) Run(ctx context.Context) ([]Reminder, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now()

	due, err := s.tasks.FindDueBefore(ctx, domain.DayStart(now).AddDate(0, 0, 2))
	if err != nil {
		return nil, fmt.Errorf("failed to load due tasks: %w", err)
	}

	byUser := make(map[uuid.UUID][]*domain.Task)
	for _, t := range due {
		byUser[t.AssignedToID] = append(byUser[t.AssignedToID], t)
	}

	userIDs := make([]uuid.UUID, 0, len(byUser))
	for id := range byUser {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i].String() < userIDs[j].String() })

	var (
		reminders []Reminder
		jobs      []notify.Job
	)
	for _, id := range userIDs {
		user, err := s.users.GetByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("skipping reminders for unknown assignee",
				slog.String("user_id", id.String()))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load assignee %s: %w", id, err)
		}
		if !user.ChatEnabled || !user.Preferences.DueDateReminders {
			continue
		}

		recipient := notify.SnapshotUser(user)
		for _, bucket := range partition(byUser[id], now) {
			if len(bucket.tasks) == 0 {
				continue
			}
			sortForReminder(bucket.tasks)

			listed := bucket.tasks
			if len(listed) > s.limit {
				listed = listed[:s.limit]
			}
			r := Reminder{
				UserID:   id,
				Type:     bucket.kind,
				TaskIDs:  make([]uuid.UUID, 0, len(listed)),
				Overflow: len(bucket.tasks) - len(listed),
			}
			snaps := make([]notify.TaskSnapshot, 0, len(listed))
			for _, t := range listed {
				r.TaskIDs = append(r.TaskIDs, t.ID)
				snaps = append(snaps, notify.SnapshotTask(t))
			}
			reminders = append(reminders, r)
			jobs = append(jobs, notify.Job{
				ID:           uuid.New(),
				Kind:         notify.KindReminder,
				Tasks:        snaps,
				Overflow:     r.Overflow,
				Actor:        recipient,
				Recipient:    &recipient,
				ReminderType: bucket.kind,
				CreatedAt:    now,
			})
		}
	}

	// Jobs go out only once every lookup has succeeded.
	for _, job := range jobs {
		s.notifier.Submit(ctx, job)
	}

	log.Info("due date sweep finished",
		slog.Int("due_tasks", len(due)),
		slog.Int("reminders", len(reminders)))
	return reminders, nil
}

type bucket struct {
	kind  notify.ReminderType
	tasks []*domain.Task
}

// partition splits tasks into overdue, today and tomorrow by UTC calendar day.
func partition(tasks []*domain.Task, now time.Time) []bucket {
	out := []bucket{
		{kind: notify.ReminderOverdue},
		{kind: notify.ReminderToday},
		{kind: notify.ReminderTomorrow},
	}
	for _, t := range tasks {
		switch {
		case t.IsOverdue(now):
			out[0].tasks = append(out[0].tasks, t)
		case t.IsDueToday(now):
			out[1].tasks = append(out[1].tasks, t)
		case t.IsDueTomorrow(now):
			out[2].tasks = append(out[2].tasks, t)
		}
	}
	return out
}

// sortForReminder orders by priority (highest first), then due date, then ID.
func sortForReminder(tasks []*domain.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Priority.Weight() != b.Priority.Weight() {
			return a.Priority.Weight() > b.Priority.Weight()
		}
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.ID.String() < b.ID.String()
	})
}
