package service

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/notify"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/redact"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/phrazzld/taskflow-api/internal/tracker"
)

// CreateTaskParams carries the caller's input for a new task.
type CreateTaskParams struct {
	Title          string
	Description    string
	DueDate        time.Time
	Priority       domain.Priority
	AssignedToID   *uuid.UUID
	CategoryID     *uuid.UUID
	EstimatedHours *float64
	Tags           []string
	Provenance     domain.Provenance
}

// UpdateTaskParams carries proposed field values. Nil fields are left alone.
type UpdateTaskParams struct {
	Title          *string
	Description    *string
	DueDate        *time.Time
	Priority       *domain.Priority
	Status         *domain.TaskStatus
	CategoryID     *uuid.UUID
	AssignedToID   *uuid.UUID
	EstimatedHours *float64
	ActualHours    *float64
	Tags           *[]string
	Provenance     domain.Provenance
}

// TaskService is the single authority for mutating tasks. Every mutation
// writes the task and its history in one transaction and only announces the
// change after commit.
type TaskService interface {
	Create(ctx context.Context, ownerID uuid.UUID, params CreateTaskParams) (*domain.Task, error)
	Update(ctx context.Context, taskID, actorID uuid.UUID, params UpdateTaskParams) (*domain.Task, []tracker.Change, error)
	Complete(ctx context.Context, taskID, actorID uuid.UUID, p domain.Provenance) (*domain.Task, error)
	Delete(ctx context.Context, taskID, actorID uuid.UUID) error

	Get(ctx context.Context, taskID, actorID uuid.UUID) (*domain.Task, error)
	List(ctx context.Context, ownerID uuid.UUID, filter store.TaskFilter) (store.Page[*domain.Task], error)
	History(ctx context.Context, taskID, actorID uuid.UUID) ([]*domain.TaskHistory, error)
	Stats(ctx context.Context, userID uuid.UUID) (domain.TaskStats, error)

	AddComment(ctx context.Context, taskID, actorID uuid.UUID, content string) (*domain.TaskComment, error)
	EditComment(ctx context.Context, commentID, actorID uuid.UUID, content string) (*domain.TaskComment, error)
	ListComments(ctx context.Context, taskID, actorID uuid.UUID) ([]*domain.TaskComment, error)
}

// TaskServiceDeps are the collaborators of the task service.
type TaskServiceDeps struct {
	DB         store.Beginner
	Tasks      store.TaskStore
	History    store.HistoryStore
	Comments   store.CommentStore
	Categories store.CategoryStore
	Users      store.UserStore
	Notifier   notify.Notifier
	// Channel receives team-wide announcements; empty means the chat default.
	Channel string
}

type taskServiceImpl struct {
	db         store.Beginner
	tasks      store.TaskStore
	history    store.HistoryStore
	comments   store.CommentStore
	categories store.CategoryStore
	users      store.UserStore
	tracker    *tracker.Tracker
	notifier   notify.Notifier
	channel    string
	now        func() time.Time
	logger     *slog.Logger
}

// NewTaskService creates a TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(deps TaskServiceDeps, logger *slog.Logger) (TaskService, error) {
	switch {
	case deps.DB == nil:
		return nil, domain.NewValidationError("db", "cannot be nil")
	case deps.Tasks == nil:
		return nil, domain.NewValidationError("tasks", "cannot be nil")
	case deps.History == nil:
		return nil, domain.NewValidationError("history", "cannot be nil")
	case deps.Comments == nil:
		return nil, domain.NewValidationError("comments", "cannot be nil")
	case deps.Categories == nil:
		return nil, domain.NewValidationError("categories", "cannot be nil")
	case deps.Users == nil:
		return nil, domain.NewValidationError("users", "cannot be nil")
	case deps.Notifier == nil:
		return nil, domain.NewValidationError("notifier", "cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		db:         deps.DB,
		tasks:      deps.Tasks,
		history:    deps.History,
		comments:   deps.Comments,
		categories: deps.Categories,
		users:      deps.Users,
		tracker:    tracker.New(deps.History, logger),
		notifier:   deps.Notifier,
		channel:    deps.Channel,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With(slog.String("component", "task_service")),
	}, nil
}

// Create implements TaskService.
func (s *taskServiceImpl) Create(ctx context.Context, ownerID uuid.UUID, params CreateTaskParams) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	owner, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, NewTaskServiceError("create", "owner not found", err)
	}

	assignee := owner
	if params.AssignedToID != nil && *params.AssignedToID != ownerID {
		assignee, err = s.users.GetByID(ctx, *params.AssignedToID)
		if err != nil {
			return nil, NewTaskServiceError("create", "assignee not found", err)
		}
	}

	task, err := domain.NewTask(ownerID, domain.NewTaskParams{
		Title:          params.Title,
		Description:    params.Description,
		DueDate:        params.DueDate,
		Priority:       params.Priority,
		AssignedToID:   assignee.ID,
		CategoryID:     params.CategoryID,
		EstimatedHours: params.EstimatedHours,
		Tags:           params.Tags,
	})
	if err != nil {
		return nil, NewTaskServiceError("create", "invalid task", err)
	}

	if task.CategoryID == nil {
		def, err := ensureDefaultCategory(ctx, s.categories, ownerID)
		if err != nil {
			return nil, NewTaskServiceError("create", "failed to resolve default category", err)
		}
		task.CategoryID = &def.ID
	} else if err := s.checkCategory(ctx, ownerID, *task.CategoryID); err != nil {
		return nil, NewTaskServiceError("create", "category not found", err)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.tasks.WithTx(tx).Create(ctx, task); err != nil {
			return NewTaskServiceError("create", "failed to save task", err)
		}
		if _, err := s.tracker.Record(ctx, tx, task.ID, ownerID, domain.HistoryActionCreated, nil, params.Provenance); err != nil {
			return NewTaskServiceError("create", "failed to record history", err)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to create task",
			slog.String("owner_id", ownerID.String()),
			slog.String("error", redact.Error(err)))
		return nil, err
	}

	log.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("owner_id", ownerID.String()))

	s.submit(ctx, s.announce(notify.NewTaskJob(notify.KindCreated, task, owner)))
	if assignee.ID != ownerID {
		s.submit(ctx, notify.NewTaskJob(notify.KindAssigned, task, owner).To(assignee))
	}
	return task, nil
}

// Update implements TaskService.
func (s *taskServiceImpl) Update(
	ctx context.Context,
	taskID, actorID uuid.UUID,
	params UpdateTaskParams,
) (*domain.Task, []tracker.Change, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, nil, NewTaskServiceError("update", "actor not found", err)
	}

	var (
		after    *domain.Task
		changes  []tracker.Change
		assignee *domain.User
	)
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)

		current, err := tasks.GetForUpdate(ctx, taskID)
		if err != nil {
			return NewTaskServiceError("update", "task not found", err)
		}
		if current.OwnerID != actorID {
			return NewTaskServiceError("update", "task not found", store.ErrTaskNotFound)
		}

		before := cloneTask(current)
		if err := s.apply(ctx, current, params); err != nil {
			return err
		}

		names, err := s.assigneeNames(ctx, before.AssignedToID, current.AssignedToID)
		if err != nil {
			return NewTaskServiceError("update", "assignee not found", err)
		}
		changes = tracker.Diff(before, current, names.name)
		if len(changes) == 0 {
			after = before
			return nil
		}
		if tracker.Has(changes, tracker.FieldAssignedTo) {
			assignee = names.users[current.AssignedToID]
		}

		current.UpdatedAt = s.now()
		if err := tasks.Update(ctx, current); err != nil {
			return NewTaskServiceError("update", "failed to save task", err)
		}
		if _, err := s.tracker.Record(ctx, tx, taskID, actorID, domain.HistoryActionUpdated, changes, params.Provenance); err != nil {
			return NewTaskServiceError("update", "failed to record history", err)
		}
		after = current
		return nil
	})
	if err != nil {
		log.Debug("task update rejected",
			slog.String("task_id", taskID.String()),
			slog.String("error", redact.Error(err)))
		return nil, nil, err
	}

	if len(changes) == 0 {
		return after, nil, nil
	}

	log.Info("task updated",
		slog.String("task_id", taskID.String()),
		slog.Int("changed_fields", len(changes)))

	if assignee != nil {
		s.submit(ctx, notify.NewTaskJob(notify.KindAssigned, after, actor).To(assignee))
	}
	if rest := tracker.Without(changes, tracker.FieldAssignedTo); len(rest) > 0 {
		job := s.announce(notify.NewTaskJob(notify.KindUpdated, after, actor))
		job.Changes = rest
		s.submit(ctx, job)
	}
	return after, changes, nil
}

// apply validates and copies the proposed values onto task.
func (s *taskServiceImpl) apply(ctx context.Context, task *domain.Task, p UpdateTaskParams) error {
	if p.Title != nil {
		task.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.DueDate != nil {
		task.DueDate = p.DueDate.UTC()
	}
	if p.Priority != nil {
		task.Priority = *p.Priority
	}
	if p.Status != nil && *p.Status != task.Status {
		switch st := *p.Status; {
		case !st.IsValid():
			return NewTaskServiceError("update", "invalid status",
				domain.NewValidationError("status", "must be one of pending, in-progress, completed, archived"))
		case st == domain.TaskStatusArchived:
			return NewTaskServiceError("update", "invalid status",
				domain.NewValidationError("status", "archived is set by retention only"))
		case st == domain.TaskStatusCompleted:
			return NewTaskServiceError("update", "invalid status",
				domain.NewValidationError("status", "use the complete operation to complete a task"))
		default:
			task.Reopen(st)
		}
	}
	if p.CategoryID != nil && (task.CategoryID == nil || *task.CategoryID != *p.CategoryID) {
		if err := s.checkCategory(ctx, task.OwnerID, *p.CategoryID); err != nil {
			return NewTaskServiceError("update", "category not found", err)
		}
		id := *p.CategoryID
		task.CategoryID = &id
	}
	if p.AssignedToID != nil {
		task.AssignedToID = *p.AssignedToID
	}
	if p.EstimatedHours != nil {
		h := *p.EstimatedHours
		task.EstimatedHours = &h
	}
	if p.ActualHours != nil {
		h := *p.ActualHours
		task.ActualHours = &h
	}
	if p.Tags != nil {
		task.Tags = domain.NormalizeTags(*p.Tags)
	}

	if err := task.Validate(); err != nil {
		return NewTaskServiceError("update", "invalid task", err)
	}
	return nil
}

type resolvedNames struct {
	users map[uuid.UUID]*domain.User
}

func (r resolvedNames) name(id uuid.UUID) string {
	if u, ok := r.users[id]; ok {
		return u.Username
	}
	return id.String()
}

// assigneeNames loads the users behind the old and new assignee. A missing
// new assignee is an error; a missing old one renders as its ID.
func (s *taskServiceImpl) assigneeNames(ctx context.Context, oldID, newID uuid.UUID) (resolvedNames, error) {
	r := resolvedNames{users: make(map[uuid.UUID]*domain.User, 2)}
	if oldID == newID {
		return r, nil
	}
	if u, err := s.users.GetByID(ctx, oldID); err == nil {
		r.users[oldID] = u
	}
	u, err := s.users.GetByID(ctx, newID)
	if err != nil {
		return r, err
	}
	r.users[newID] = u
	return r, nil
}

// Complete implements TaskService. Completing a completed or archived task is
// a no-op that returns the task unchanged.
func (s *taskServiceImpl) Complete(ctx context.Context, taskID, actorID uuid.UUID, p domain.Provenance) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, NewTaskServiceError("complete", "actor not found", err)
	}

	var (
		task      *domain.Task
		completed bool
	)
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)

		current, err := tasks.GetForUpdate(ctx, taskID)
		if err != nil {
			return NewTaskServiceError("complete", "task not found", err)
		}
		if !current.CanComplete(actorID) {
			return NewTaskServiceError("complete", "only the owner or assignee may complete a task", domain.ErrForbidden)
		}
		task = current
		if current.IsCompleted() {
			return nil
		}

		previous := current.Status
		current.Complete(actorID, s.now())
		if err := tasks.Update(ctx, current); err != nil {
			return NewTaskServiceError("complete", "failed to save task", err)
		}
		change := []tracker.Change{{Field: tracker.FieldStatus, Old: string(previous), New: string(current.Status)}}
		if _, err := s.tracker.Record(ctx, tx, taskID, actorID, domain.HistoryActionCompleted, change, p); err != nil {
			return NewTaskServiceError("complete", "failed to record history", err)
		}
		completed = true
		return nil
	})
	if err != nil {
		log.Debug("task completion rejected",
			slog.String("task_id", taskID.String()),
			slog.String("error", redact.Error(err)))
		return nil, err
	}

	if !completed {
		log.Debug("task already completed", slog.String("task_id", taskID.String()))
		return task, nil
	}

	log.Info("task completed",
		slog.String("task_id", taskID.String()),
		slog.String("completed_by", actorID.String()))

	s.submit(ctx, s.announce(notify.NewTaskJob(notify.KindCompleted, task, actor)))
	if task.CreatedByID != actorID {
		creator, err := s.users.GetByID(ctx, task.CreatedByID)
		switch {
		case err != nil:
			log.Warn("could not load task creator for completion notice",
				slog.String("task_id", taskID.String()),
				slog.String("error", redact.Error(err)))
		case creator.ChatEnabled && creator.Preferences.TaskCompletions && creator.DirectChannel() != "":
			s.submit(ctx, notify.NewTaskJob(notify.KindCompleted, task, actor).To(creator))
		}
	}
	return task, nil
}

// Delete implements TaskService.
func (s *taskServiceImpl) Delete(ctx context.Context, taskID, actorID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return NewTaskServiceError("delete", "actor not found", err)
	}

	var deleted *domain.Task
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)
		current, err := tasks.GetForUpdate(ctx, taskID)
		if err != nil {
			return NewTaskServiceError("delete", "task not found", err)
		}
		if current.OwnerID != actorID {
			return NewTaskServiceError("delete", "task not found", store.ErrTaskNotFound)
		}
		if err := tasks.Delete(ctx, taskID); err != nil {
			return NewTaskServiceError("delete", "failed to delete task", err)
		}
		deleted = current
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("task deleted", slog.String("task_id", taskID.String()))
	s.submit(ctx, s.announce(notify.NewTaskJob(notify.KindDeleted, deleted, actor)))
	return nil
}

// Get implements TaskService. Only the owner and the assignee can see a task.
func (s *taskServiceImpl) Get(ctx context.Context, taskID, actorID uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, NewTaskServiceError("get", "task not found", err)
	}
	if task.OwnerID != actorID && task.AssignedToID != actorID {
		return nil, NewTaskServiceError("get", "task not found", store.ErrTaskNotFound)
	}
	return task, nil
}

// List implements TaskService.
func (s *taskServiceImpl) List(ctx context.Context, ownerID uuid.UUID, filter store.TaskFilter) (store.Page[*domain.Task], error) {
	page, err := s.tasks.List(ctx, ownerID, filter.Normalize())
	if err != nil {
		return store.Page[*domain.Task]{}, NewTaskServiceError("list", "failed to list tasks", err)
	}
	return page, nil
}

// History implements TaskService.
func (s *taskServiceImpl) History(ctx context.Context, taskID, actorID uuid.UUID) ([]*domain.TaskHistory, error) {
	if _, err := s.Get(ctx, taskID, actorID); err != nil {
		return nil, err
	}
	rows, err := s.history.ListByTask(ctx, taskID)
	if err != nil {
		return nil, NewTaskServiceError("history", "failed to load history", err)
	}
	return rows, nil
}

// Stats implements TaskService.
func (s *taskServiceImpl) Stats(ctx context.Context, userID uuid.UUID) (domain.TaskStats, error) {
	stats, err := s.tasks.Stats(ctx, userID, s.now())
	if err != nil {
		return domain.TaskStats{}, NewTaskServiceError("stats", "failed to compute stats", err)
	}
	return stats, nil
}

// AddComment implements TaskService.
func (s *taskServiceImpl) AddComment(ctx context.Context, taskID, actorID uuid.UUID, content string) (*domain.TaskComment, error) {
	if _, err := s.Get(ctx, taskID, actorID); err != nil {
		return nil, err
	}
	c, err := domain.NewTaskComment(taskID, actorID, content)
	if err != nil {
		return nil, NewTaskServiceError("add_comment", "invalid comment", err)
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, NewTaskServiceError("add_comment", "failed to save comment", err)
	}
	return c, nil
}

// EditComment implements TaskService.
func (s *taskServiceImpl) EditComment(ctx context.Context, commentID, actorID uuid.UUID, content string) (*domain.TaskComment, error) {
	c, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, NewTaskServiceError("edit_comment", "comment not found", err)
	}
	if err := c.Edit(actorID, content); err != nil {
		return nil, NewTaskServiceError("edit_comment", "cannot edit comment", err)
	}
	if err := s.comments.Update(ctx, c); err != nil {
		return nil, NewTaskServiceError("edit_comment", "failed to save comment", err)
	}
	return c, nil
}

// ListComments implements TaskService.
func (s *taskServiceImpl) ListComments(ctx context.Context, taskID, actorID uuid.UUID) ([]*domain.TaskComment, error) {
	if _, err := s.Get(ctx, taskID, actorID); err != nil {
		return nil, err
	}
	cs, err := s.comments.ListByTask(ctx, taskID)
	if err != nil {
		return nil, NewTaskServiceError("list_comments", "failed to load comments", err)
	}
	return cs, nil
}

func (s *taskServiceImpl) checkCategory(ctx context.Context, ownerID, categoryID uuid.UUID) error {
	c, err := s.categories.GetByID(ctx, categoryID)
	if err != nil {
		return err
	}
	if c.OwnerID != ownerID {
		return store.ErrCategoryNotFound
	}
	return nil
}

// announce addresses a job to the team channel.
func (s *taskServiceImpl) announce(job notify.Job) notify.Job {
	job.Channel = s.channel
	return job
}

func (s *taskServiceImpl) submit(ctx context.Context, job notify.Job) {
	s.notifier.Submit(ctx, job)
}

func cloneTask(t *domain.Task) *domain.Task {
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	return &c
}
