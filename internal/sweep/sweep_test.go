package sweep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/mocks"
	"github.com/phrazzld/taskflow-api/internal/notify"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sweepNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func chatUser(t *testing.T, name string) *domain.User {
	t.Helper()
	u, err := domain.NewUser(name, name+"@example.com", "a-long-enough-password")
	require.NoError(t, err)
	chatID := "U-" + name
	u.ChatUserID = &chatID
	u.ChatEnabled = true
	u.Preferences.DailySummaries = true
	return u
}

func dueTask(t *testing.T, assignee uuid.UUID, title string, due time.Time, p domain.Priority) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(assignee, domain.NewTaskParams{
		Title:    title,
		DueDate:  due,
		Priority: p,
	})
	require.NoError(t, err)
	return task
}

func newDueDateSweep(tasks *mocks.MockTaskStore, users *mocks.MockUserStore, n *mocks.MockNotifier) *DueDateSweep {
	s := NewDueDateSweep(tasks, users, n, 0, nil)
	s.now = func() time.Time { return sweepNow }
	return s
}

func TestDueDateSweep_OverflowBeyondLimit(t *testing.T) {
	u := chatUser(t, "alice")
	tasks := mocks.NewMockTaskStore()
	for i := 0; i < 11; i++ {
		tasks.Put(dueTask(t, u.ID, "late", sweepNow.AddDate(0, 0, -2-i), domain.PriorityLow))
	}
	critical := dueTask(t, u.ID, "very late", sweepNow.AddDate(0, 0, -1), domain.PriorityCritical)
	tasks.Put(critical)

	n := &mocks.MockNotifier{}
	reminders, err := newDueDateSweep(tasks, mocks.NewMockUserStore(u), n).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, reminders, 1)
	r := reminders[0]
	assert.Equal(t, notify.ReminderOverdue, r.Type)
	assert.Len(t, r.TaskIDs, DefaultReminderLimit)
	assert.Equal(t, 2, r.Overflow)
	assert.Equal(t, critical.ID, r.TaskIDs[0], "highest priority listed first")

	jobs := n.Submitted()
	require.Len(t, jobs, 1)
	assert.Equal(t, notify.KindReminder, jobs[0].Kind)
	assert.Len(t, jobs[0].Tasks, DefaultReminderLimit)
	assert.Equal(t, 2, jobs[0].Overflow)
	require.NotNil(t, jobs[0].Recipient)
	assert.Equal(t, u.ID, jobs[0].Recipient.ID)
}

func TestDueDateSweep_Buckets(t *testing.T) {
	u := chatUser(t, "bob")
	overdue := dueTask(t, u.ID, "overdue", sweepNow.AddDate(0, 0, -3), domain.PriorityMedium)
	today := dueTask(t, u.ID, "today", sweepNow.Add(6*time.Hour), domain.PriorityMedium)
	tomorrow := dueTask(t, u.ID, "tomorrow", sweepNow.AddDate(0, 0, 1), domain.PriorityMedium)
	later := dueTask(t, u.ID, "later", sweepNow.AddDate(0, 0, 3), domain.PriorityMedium)
	done := dueTask(t, u.ID, "done", sweepNow.AddDate(0, 0, -1), domain.PriorityMedium)
	done.Complete(u.ID, sweepNow)

	tasks := mocks.NewMockTaskStore()
	tasks.Put(overdue, today, tomorrow, later, done)

	reminders, err := newDueDateSweep(tasks, mocks.NewMockUserStore(u), &mocks.MockNotifier{}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, reminders, 3)
	assert.Equal(t, notify.ReminderOverdue, reminders[0].Type)
	assert.Equal(t, []uuid.UUID{overdue.ID}, reminders[0].TaskIDs)
	assert.Equal(t, notify.ReminderToday, reminders[1].Type)
	assert.Equal(t, []uuid.UUID{today.ID}, reminders[1].TaskIDs)
	assert.Equal(t, notify.ReminderTomorrow, reminders[2].Type)
	assert.Equal(t, []uuid.UUID{tomorrow.ID}, reminders[2].TaskIDs)
}

func TestDueDateSweep_SameInstantSamePlan(t *testing.T) {
	alice := chatUser(t, "alice")
	bob := chatUser(t, "bob")
	tasks := mocks.NewMockTaskStore()
	for i := 0; i < 4; i++ {
		tasks.Put(dueTask(t, alice.ID, "a", sweepNow.AddDate(0, 0, -1), domain.PriorityHigh))
		tasks.Put(dueTask(t, bob.ID, "b", sweepNow, domain.PriorityLow))
	}
	s := newDueDateSweep(tasks, mocks.NewMockUserStore(alice, bob), &mocks.MockNotifier{})

	first, err := s.Run(context.Background())
	require.NoError(t, err)
	second, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDueDateSweep_SkipsOptedOutUsers(t *testing.T) {
	optedOut := chatUser(t, "carol")
	optedOut.Preferences.DueDateReminders = false
	noChat := chatUser(t, "dave")
	noChat.ChatEnabled = false

	tasks := mocks.NewMockTaskStore()
	tasks.Put(
		dueTask(t, optedOut.ID, "c", sweepNow.AddDate(0, 0, -1), domain.PriorityHigh),
		dueTask(t, noChat.ID, "d", sweepNow.AddDate(0, 0, -1), domain.PriorityHigh),
		dueTask(t, uuid.New(), "orphan", sweepNow.AddDate(0, 0, -1), domain.PriorityHigh),
	)

	n := &mocks.MockNotifier{}
	reminders, err := newDueDateSweep(tasks, mocks.NewMockUserStore(optedOut, noChat), n).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reminders)
	assert.Empty(t, n.Submitted())
}

func TestDueDateSweep_StoreFailure(t *testing.T) {
	tasks := mocks.NewMockTaskStore()
	tasks.FindDueFn = func(context.Context, time.Time) ([]*domain.Task, error) {
		return nil, errors.New("connection reset")
	}
	_, err := newDueDateSweep(tasks, mocks.NewMockUserStore(), &mocks.MockNotifier{}).Run(context.Background())
	assert.ErrorContains(t, err, "connection reset")
}

func TestDueDateSweep_AssigneeLookupFailureAbortsCycle(t *testing.T) {
	alice, bob := chatUser(t, "alice"), chatUser(t, "bob")
	tasks := mocks.NewMockTaskStore()
	tasks.Put(
		dueTask(t, alice.ID, "a", sweepNow.AddDate(0, 0, -1), domain.PriorityHigh),
		dueTask(t, bob.ID, "b", sweepNow.AddDate(0, 0, -1), domain.PriorityHigh),
	)

	users := mocks.NewMockUserStore(alice, bob)
	users.GetByIDFn = func(_ context.Context, id uuid.UUID) (*domain.User, error) {
		if id == bob.ID {
			return nil, errors.New("connection reset")
		}
		cp := *alice
		return &cp, nil
	}

	n := &mocks.MockNotifier{}
	reminders, err := newDueDateSweep(tasks, users, n).Run(context.Background())
	assert.ErrorContains(t, err, "connection reset")
	assert.Empty(t, reminders)
	assert.Empty(t, n.Submitted())
}

func TestDailySummarySweep_QueryFailureAbortsCycle(t *testing.T) {
	erin, frank := chatUser(t, "erin"), chatUser(t, "frank")
	tasks := mocks.NewMockTaskStore()
	tasks.DailySummaryFn = func(_ context.Context, userID uuid.UUID, _ time.Time) (domain.DailySummary, error) {
		if userID == frank.ID {
			return domain.DailySummary{}, errors.New("connection reset")
		}
		return domain.DailySummary{Open: 1}, nil
	}

	var batches int
	n := &mocks.MockNotifier{BatchFn: func(_ context.Context, jobs []notify.Job) notify.BatchResult {
		batches++
		return notify.BatchResult{Total: len(jobs), Succeeded: len(jobs)}
	}}
	s := NewDailySummarySweep(tasks, mocks.NewMockUserStore(erin, frank), n, nil)
	s.now = func() time.Time { return sweepNow }

	_, err := s.Run(context.Background())
	assert.ErrorContains(t, err, "connection reset")
	assert.Zero(t, batches)
	assert.Empty(t, n.Submitted())
}

func TestDailySummarySweep(t *testing.T) {
	linked := chatUser(t, "erin")
	unlinked := chatUser(t, "frank")
	unlinked.ChatUserID = nil
	optedOut := chatUser(t, "gina")
	optedOut.Preferences.DailySummaries = false

	tasks := mocks.NewMockTaskStore()
	tasks.Put(
		dueTask(t, linked.ID, "open", sweepNow.AddDate(0, 0, 2), domain.PriorityMedium),
		dueTask(t, linked.ID, "late", sweepNow.AddDate(0, 0, -2), domain.PriorityMedium),
	)

	var batches int
	n := &mocks.MockNotifier{BatchFn: func(_ context.Context, jobs []notify.Job) notify.BatchResult {
		batches++
		return notify.BatchResult{Total: len(jobs), Succeeded: len(jobs)}
	}}
	s := NewDailySummarySweep(tasks, mocks.NewMockUserStore(linked, unlinked, optedOut), n, nil)
	s.now = func() time.Time { return sweepNow }

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, batches)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Succeeded)

	jobs := n.Submitted()
	require.Len(t, jobs, 1)
	assert.Equal(t, notify.KindDailySummary, jobs[0].Kind)
	assert.Equal(t, linked.ID, jobs[0].Recipient.ID)
	require.NotNil(t, jobs[0].Summary)
	assert.Equal(t, 2, jobs[0].Summary.Open)
	assert.Equal(t, 1, jobs[0].Summary.Overdue)
}

func TestDailySummarySweep_NobodyOptedIn(t *testing.T) {
	n := &mocks.MockNotifier{}
	s := NewDailySummarySweep(mocks.NewMockTaskStore(), mocks.NewMockUserStore(), n, nil)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Empty(t, n.Submitted())
}

type retentionFixture struct {
	sweep    *RetentionSweep
	sql      sqlmock.Sqlmock
	tasks    *mocks.MockTaskStore
	history  *mocks.MockHistoryStore
	tokens   *mocks.MockResetTokenStore
	notifier *mocks.MockNotifier
}

func newRetentionFixture(t *testing.T, cfg RetentionConfig) *retentionFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	f := &retentionFixture{
		sql:      mock,
		tasks:    mocks.NewMockTaskStore(),
		history:  mocks.NewMockHistoryStore(),
		tokens:   mocks.NewMockResetTokenStore(),
		notifier: &mocks.MockNotifier{},
	}
	f.sweep = NewRetentionSweep(db, f.tasks, f.history, f.tokens, f.notifier, cfg, nil)
	f.sweep.now = func() time.Time { return sweepNow }
	return f
}

func TestRetentionSweep_Run(t *testing.T) {
	cfg := DefaultRetentionConfig()
	cfg.OpsChannel = "#ops"
	f := newRetentionFixture(t, cfg)

	owner := uuid.New()
	old := dueTask(t, owner, "old", sweepNow.AddDate(0, -6, 0), domain.PriorityLow)
	old.Complete(owner, sweepNow.AddDate(0, -5, 0))
	recent := dueTask(t, owner, "recent", sweepNow.AddDate(0, 0, -2), domain.PriorityLow)
	recent.Complete(owner, sweepNow.AddDate(0, 0, -1))
	f.tasks.Put(old, recent)

	require.NoError(t, f.history.Append(context.Background(),
		&domain.TaskHistory{ID: uuid.New(), TaskID: old.ID, CreatedAt: sweepNow.AddDate(-2, 0, 0)},
		&domain.TaskHistory{ID: uuid.New(), TaskID: old.ID, CreatedAt: sweepNow.AddDate(0, -1, 0)},
	))
	require.NoError(t, f.tokens.Save(context.Background(), &store.ResetToken{
		TokenHash: "expired", UserID: owner, ExpiresAt: sweepNow.Add(-time.Hour),
	}))

	f.sql.ExpectBegin()
	f.sql.ExpectCommit()
	report, err := f.sweep.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RetentionReport{Archived: 1, PurgedHistory: 1, ExpiredTokens: 1}, report)
	assert.Equal(t, domain.TaskStatusArchived, f.tasks.Get(old.ID).Status)
	assert.Equal(t, domain.TaskStatusCompleted, f.tasks.Get(recent.ID).Status)
	assert.Equal(t, 1, f.history.Count())

	jobs := f.notifier.Submitted()
	require.Len(t, jobs, 1)
	assert.Equal(t, notify.KindMaintenance, jobs[0].Kind)
	assert.Equal(t, "#ops", jobs[0].Channel)
	assert.Equal(t, int64(1), jobs[0].Maintenance.Archived)
	assert.Empty(t, jobs[0].Maintenance.Error)
}

func TestRetentionSweep_RetriesOnce(t *testing.T) {
	cfg := DefaultRetentionConfig()
	cfg.RetryDelay = time.Millisecond
	f := newRetentionFixture(t, cfg)

	var calls atomic.Int32
	f.history.PurgeFn = func(context.Context, time.Time) (int64, error) {
		if calls.Add(1) == 1 {
			return 0, errors.New("lock timeout")
		}
		return 3, nil
	}

	f.sql.ExpectBegin()
	f.sql.ExpectRollback()
	f.sql.ExpectBegin()
	f.sql.ExpectCommit()

	report, err := f.sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int64(3), report.PurgedHistory)
	assert.Empty(t, f.notifier.Submitted(), "no ops channel configured")
}

func TestRetentionSweep_ReportsFailure(t *testing.T) {
	cfg := DefaultRetentionConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.OpsChannel = "#ops"
	f := newRetentionFixture(t, cfg)
	f.history.PurgeFn = func(context.Context, time.Time) (int64, error) {
		return 0, errors.New("disk full")
	}

	f.sql.ExpectBegin()
	f.sql.ExpectRollback()
	f.sql.ExpectBegin()
	f.sql.ExpectRollback()

	_, err := f.sweep.Run(context.Background())
	assert.ErrorContains(t, err, "disk full")

	jobs := f.notifier.Submitted()
	require.Len(t, jobs, 1)
	assert.Contains(t, jobs[0].Maintenance.Error, "disk full")
}

func TestSchedules(t *testing.T) {
	at := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), Hourly()(at))
	assert.Equal(t, time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), Hourly()(at.Add(90*time.Minute)))

	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), DailyAt(9)(at))
	assert.Equal(t, time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC), DailyAt(8)(at))
	assert.Equal(t, time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC), DailyAt(8)(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)))
}

func TestScheduler_TriggerDoesNotOverlap(t *testing.T) {
	s := NewScheduler(nil)
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	var runs atomic.Int32

	s.Register(KindDueDate, nil, func(ctx context.Context) error {
		runs.Add(1)
		started <- struct{}{}
		<-release
		return nil
	})

	ctx := context.Background()
	require.NoError(t, s.Trigger(ctx, KindDueDate))
	<-started
	assert.True(t, s.Running(KindDueDate))
	assert.ErrorIs(t, s.Trigger(ctx, KindDueDate), ErrSweepRunning)

	close(release)
	require.Eventually(t, func() bool { return !s.Running(KindDueDate) }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Trigger(ctx, KindDueDate))
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, int32(2), runs.Load())
}

func TestScheduler_Errors(t *testing.T) {
	s := NewScheduler(nil)
	s.Register(KindRetention, nil, func(context.Context) error { panic("boom") })
	ctx := context.Background()

	assert.ErrorIs(t, s.Trigger(ctx, KindDailySummary), ErrUnknownSweep)

	// a panicking sweep is recovered and frees its slot
	require.NoError(t, s.Trigger(ctx, KindRetention))
	require.Eventually(t, func() bool { return !s.Running(KindRetention) }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop(ctx))
	assert.ErrorIs(t, s.Trigger(ctx, KindRetention), ErrSchedulerStopped)
	assert.Equal(t, []Kind{KindRetention}, s.Kinds())
}

func TestScheduler_StartFiresOnSchedule(t *testing.T) {
	s := NewScheduler(nil)
	fired := make(chan struct{}, 1)
	s.Register(KindDueDate, func(now time.Time) time.Time { return now.Add(10 * time.Millisecond) },
		func(context.Context) error {
			select {
			case fired <- struct{}{}:
			default:
			}
			return nil
		})

	s.Start()
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled sweep did not fire")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
