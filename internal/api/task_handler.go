package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/service"
	"github.com/phrazzld/taskflow-api/internal/tracker"
)

// TaskHandler serves the task, history, stats and comment endpoints.
type TaskHandler struct {
	tasks     service.TaskService
	validator *validator.Validate
	now       func() time.Time
	logger    *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(tasks service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}
	return &TaskHandler{
		tasks:     tasks,
		validator: validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With(slog.String("component", "task_handler")),
	}
}

// CreateTask handles POST /tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	task, err := h.tasks.Create(r.Context(), userID, service.CreateTaskParams{
		Title:          req.Title,
		Description:    req.Description,
		DueDate:        due,
		Priority:       domain.Priority(req.Priority),
		AssignedToID:   req.AssignedToID,
		CategoryID:     req.CategoryID,
		EstimatedHours: req.EstimatedHours,
		Tags:           req.Tags,
		Provenance:     provenance(r),
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}

	log.Debug("task created via API", slog.String("task_id", task.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, taskToResponse(task, h.now()))
}

// ListTasks handles GET /tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	filter, err := parseTaskFilter(r.URL.Query())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	page, err := h.tasks.List(r.Context(), userID, filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, pageToResponse(page, h.now()))
}

// GetTask handles GET /tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	task, err := h.tasks.Get(r.Context(), taskID, userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task, h.now()))
}

// UpdateTask handles PATCH /tasks/{id}.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	params := service.UpdateTaskParams{
		Title:          req.Title,
		Description:    req.Description,
		AssignedToID:   req.AssignedToID,
		CategoryID:     req.CategoryID,
		EstimatedHours: req.EstimatedHours,
		ActualHours:    req.ActualHours,
		Tags:           req.Tags,
		Provenance:     provenance(r),
	}
	if req.DueDate != nil {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		params.DueDate = &due
	}
	if req.Priority != nil {
		p := domain.Priority(*req.Priority)
		params.Priority = &p
	}
	if req.Status != nil {
		s := domain.TaskStatus(*req.Status)
		params.Status = &s
	}

	task, changes, err := h.tasks.Update(r.Context(), taskID, userID, params)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task")
		return
	}
	if changes == nil {
		changes = []tracker.Change{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, UpdateTaskResponse{
		Task:    taskToResponse(task, h.now()),
		Changes: changes,
	})
}

// CompleteTask handles POST /tasks/{id}/complete.
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	task, err := h.tasks.Complete(r.Context(), taskID, userID, provenance(r))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to complete task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task, h.now()))
}

// DeleteTask handles DELETE /tasks/{id}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), taskID, userID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHistory handles GET /tasks/{id}/history.
func (h *TaskHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	rows, err := h.tasks.History(r.Context(), taskID, userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task history")
		return
	}
	resp := make([]HistoryResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, historyToResponse(row))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetStats handles GET /tasks/stats.
func (h *TaskHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	stats, err := h.tasks.Stats(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task statistics")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// AddComment handles POST /tasks/{id}/comments.
func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	var req CommentRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}
	c, err := h.tasks.AddComment(r.Context(), taskID, userID, req.Content)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to add comment")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, c)
}

// ListComments handles GET /tasks/{id}/comments.
func (h *TaskHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	comments, err := h.tasks.ListComments(r.Context(), taskID, userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list comments")
		return
	}
	if comments == nil {
		comments = []*domain.TaskComment{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, comments)
}

// EditComment handles PUT /comments/{id}.
func (h *TaskHandler) EditComment(w http.ResponseWriter, r *http.Request) {
	userID, commentID, ok := handleUserIDAndPathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	var req CommentRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}
	c, err := h.tasks.EditComment(r.Context(), commentID, userID, req.Content)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to edit comment")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, c)
}
