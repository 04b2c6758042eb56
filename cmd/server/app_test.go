package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/mocks"
	"github.com/phrazzld/taskflow-api/internal/notify"
	"github.com/stretchr/testify/suite"
)

type MarkNotifiedSuite struct {
	suite.Suite
	app     *application
	history *mocks.MockHistoryStore
	task    *domain.Task
	owner   *domain.User
}

func TestMarkNotifiedSuite(t *testing.T) {
	suite.Run(t, new(MarkNotifiedSuite))
}

func (s *MarkNotifiedSuite) SetupTest() {
	owner, err := domain.NewUser("owner", "owner@example.com", "a-long-enough-password")
	s.Require().NoError(err)
	task, err := domain.NewTask(owner.ID, domain.NewTaskParams{Title: "Ship it", DueDate: time.Now().Add(24 * time.Hour)})
	s.Require().NoError(err)

	s.owner = owner
	s.task = task
	s.history = mocks.NewMockHistoryStore()
	s.Require().NoError(s.history.Append(context.Background(),
		domain.NewTaskHistory(task.ID, owner.ID, domain.HistoryActionCreated, domain.Provenance{}),
		domain.NewTaskHistory(task.ID, owner.ID, domain.HistoryActionCompleted, domain.Provenance{}),
	))
	s.app = &application{
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		historyStore: s.history,
	}
}

func (s *MarkNotifiedSuite) notified() map[domain.HistoryAction]bool {
	rows, err := s.history.ListByTask(context.Background(), s.task.ID)
	s.Require().NoError(err)
	out := make(map[domain.HistoryAction]bool, len(rows))
	for _, r := range rows {
		out[r.Action] = r.ChatNotified
	}
	return out
}

func (s *MarkNotifiedSuite) TestDeliveredJobMarksMatchingAction() {
	s.app.markNotified(notify.NewTaskJob(notify.KindCompleted, s.task, s.owner), notify.OutcomeDelivered, nil)

	got := s.notified()
	s.True(got[domain.HistoryActionCompleted])
	s.False(got[domain.HistoryActionCreated])
}

func (s *MarkNotifiedSuite) TestFailedJobLeavesHistoryUntouched() {
	job := notify.NewTaskJob(notify.KindCreated, s.task, s.owner)
	s.app.markNotified(job, notify.OutcomeFailed, errors.New("chat down"))
	s.app.markNotified(job, notify.OutcomeDropped, nil)

	s.False(s.notified()[domain.HistoryActionCreated])
}

func (s *MarkNotifiedSuite) TestJobsWithoutHistoryAreIgnored() {
	s.app.markNotified(notify.NewPlainJob("#general", "hello"), notify.OutcomeDelivered, nil)
	s.app.markNotified(notify.NewTaskJob(notify.KindReminder, s.task, s.owner), notify.OutcomeDelivered, nil)

	got := s.notified()
	s.False(got[domain.HistoryActionCreated])
	s.False(got[domain.HistoryActionCompleted])
}

func (s *MarkNotifiedSuite) TestOtherTasksAreNotMarked() {
	other := *s.task
	other.ID = uuid.New()

	s.app.markNotified(notify.NewTaskJob(notify.KindCreated, &other, s.owner), notify.OutcomeDelivered, nil)

	s.False(s.notified()[domain.HistoryActionCreated])
}
