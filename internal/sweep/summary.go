package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/notify"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// DailySummarySweep sends each opted-in user the day's task counts.
type DailySummarySweep struct {
	tasks    store.TaskStore
	users    store.UserStore
	notifier notify.Notifier
	now      func() time.Time
	logger   *slog.Logger
}

// NewDailySummarySweep creates a DailySummarySweep.
func NewDailySummarySweep(tasks store.TaskStore, users store.UserStore, notifier notify.Notifier, logger *slog.Logger) *DailySummarySweep {
	if logger == nil {
		logger = slog.Default()
	}
	return &DailySummarySweep{
		tasks:    tasks,
		users:    users,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With(slog.String("component", "daily_summary_sweep")),
	}
}

// Run delivers the summaries as one batch and returns its aggregate result.
// A failed per-user query aborts the cycle before the batch is submitted.
// Users without a linked chat account are skipped since summaries go to the
// private channel.
func (s *DailySummarySweep) Run(ctx context.Context) (notify.BatchResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now()

	users, err := s.users.ListChatEnabled(ctx)
	if err != nil {
		return notify.BatchResult{}, fmt.Errorf("failed to list chat users: %w", err)
	}

	var jobs []notify.Job
	for _, u := range users {
		if !u.Preferences.DailySummaries || u.DirectChannel() == "" {
			continue
		}
		counts, err := s.tasks.DailySummary(ctx, u.ID, now)
		if err != nil {
			return notify.BatchResult{}, fmt.Errorf("failed to summarize tasks for %s: %w", u.ID, err)
		}
		recipient := notify.SnapshotUser(u)
		jobs = append(jobs, notify.Job{
			ID:        uuid.New(),
			Kind:      notify.KindDailySummary,
			Actor:     recipient,
			Recipient: &recipient,
			Summary: &notify.SummaryStats{
				CompletedToday: counts.CompletedToday,
				Open:           counts.Open,
				Overdue:        counts.Overdue,
				CreatedToday:   counts.CreatedToday,
			},
			CreatedAt: now,
		})
	}

	if len(jobs) == 0 {
		log.Info("no daily summaries to send")
		return notify.BatchResult{}, nil
	}
	return s.notifier.SubmitBatch(ctx, jobs), nil
}
