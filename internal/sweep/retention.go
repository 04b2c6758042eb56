package sweep

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/notify"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/redact"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/sethvargo/go-retry"
)

// RetentionConfig sets the retention windows and the retry behavior.
type RetentionConfig struct {
	ArchiveAfter time.Duration
	KeepHistory  time.Duration
	RetryDelay   time.Duration
	OpsChannel   string
}

// DefaultRetentionConfig archives after 90 days, keeps history for 365 days
// and retries once after an hour.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		ArchiveAfter: 90 * 24 * time.Hour,
		KeepHistory:  365 * 24 * time.Hour,
		RetryDelay:   time.Hour,
	}
}

// RetentionReport counts what one retention run changed.
type RetentionReport struct {
	Archived      int64 `json:"archived"`
	PurgedHistory int64 `json:"purged_history"`
	ExpiredTokens int64 `json:"expired_tokens"`
}

// RetentionSweep archives old completed tasks and purges old history and
// expired reset tokens in one transaction.
type RetentionSweep struct {
	db       store.Beginner
	tasks    store.TaskStore
	history  store.HistoryStore
	tokens   store.ResetTokenStore
	notifier notify.Notifier
	cfg      RetentionConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewRetentionSweep creates a RetentionSweep.
func NewRetentionSweep(
	db store.Beginner,
	tasks store.TaskStore,
	history store.HistoryStore,
	tokens store.ResetTokenStore,
	notifier notify.Notifier,
	cfg RetentionConfig,
	logger *slog.Logger,
) *RetentionSweep {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionSweep{
		db:       db,
		tasks:    tasks,
		history:  history,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With(slog.String("component", "retention_sweep")),
	}
}

// RunOnce performs a single retention pass. Any failure rolls back all of it.
func (s *RetentionSweep) RunOnce(ctx context.Context) (RetentionReport, error) {
	now := s.now()
	var report RetentionReport

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		n, err := s.tasks.WithTx(tx).ArchiveCompletedBefore(ctx, now.Add(-s.cfg.ArchiveAfter))
		if err != nil {
			return fmt.Errorf("archive completed tasks: %w", err)
		}
		report.Archived = n

		n, err = s.history.WithTx(tx).PurgeBefore(ctx, now.Add(-s.cfg.KeepHistory))
		if err != nil {
			return fmt.Errorf("purge history: %w", err)
		}
		report.PurgedHistory = n

		n, err = s.tokens.WithTx(tx).DeleteExpired(ctx, now)
		if err != nil {
			return fmt.Errorf("delete expired reset tokens: %w", err)
		}
		report.ExpiredTokens = n
		return nil
	})
	if err != nil {
		return RetentionReport{}, err
	}
	return report, nil
}

// Run performs a retention pass, retrying the whole pass once after
// RetryDelay on failure, and reports the outcome to the ops channel.
func (s *RetentionSweep) Run(ctx context.Context) (RetentionReport, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var report RetentionReport
	attempt := 0
	backoff := retry.WithMaxRetries(1, retry.NewConstant(s.cfg.RetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		r, err := s.RunOnce(ctx)
		if err != nil {
			if attempt == 1 {
				log.Warn("retention sweep failed, will retry",
					slog.Duration("delay", s.cfg.RetryDelay),
					slog.String("error", redact.Error(err)))
			}
			return retry.RetryableError(err)
		}
		report = r
		return nil
	})

	maint := &notify.MaintenanceReport{Archived: report.Archived, Purged: report.PurgedHistory}
	if err != nil {
		log.Error("retention sweep failed", slog.Int("attempts", attempt), slog.String("error", redact.Error(err)))
		maint.Error = redact.Error(err)
	} else {
		log.Info("retention sweep finished",
			slog.Int64("archived", report.Archived),
			slog.Int64("purged_history", report.PurgedHistory),
			slog.Int64("expired_tokens", report.ExpiredTokens))
	}

	if s.cfg.OpsChannel != "" {
		s.notifier.Submit(ctx, notify.Job{
			ID:          uuid.New(),
			Kind:        notify.KindMaintenance,
			Maintenance: maint,
			Channel:     s.cfg.OpsChannel,
			CreatedAt:   s.now(),
		})
	}
	return report, err
}
