package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/notify"
	"github.com/phrazzld/taskflow-api/internal/platform/chat"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/redact"
	"github.com/phrazzld/taskflow-api/internal/service"
	"github.com/phrazzld/taskflow-api/internal/store"
)

const (
	replyEphemeral    = "ephemeral"
	commandTask       = "/task"
	commandTaskStatus = "/taskstatus"
	commandListLimit  = 10
)

// ChatReply is the synchronous answer to a chat command or interaction.
type ChatReply struct {
	ResponseType string       `json:"response_type"`
	Text         string       `json:"text,omitempty"`
	Blocks       []chat.Block `json:"blocks,omitempty"`
}

func ephemeral(text string) ChatReply {
	return ChatReply{ResponseType: replyEphemeral, Text: text}
}

// chatEvent is the JSON envelope of the events endpoint.
type chatEvent struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
}

// chatInteraction is the payload of a button click.
type chatInteraction struct {
	Type string `json:"type"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Actions []struct {
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`
}

// ChatHandler serves the inbound chat integration: the events endpoint
// (URL verification and interactive buttons) and slash commands. Requests
// reach it only after signature verification.
type ChatHandler struct {
	users       service.UserService
	tasks       service.TaskService
	frontendURL string
	logger      *slog.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(users service.UserService, tasks service.TaskService, frontendURL string, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		users:       users,
		tasks:       tasks,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger.With(slog.String("component", "chat_handler")),
	}
}

// Events handles POST /integrations/chat/events. Interactive payloads arrive
// form-encoded under "payload"; everything else is a JSON event.
func (h *ChatHandler) Events(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
			return
		}
		var in chatInteraction
		if err := json.Unmarshal([]byte(r.PostForm.Get("payload")), &in); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid interaction payload")
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, h.interact(r, in))
		return
	}

	var ev chatEvent
	if err := shared.DecodeJSON(r, &ev); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	if ev.Type == "url_verification" {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"challenge": ev.Challenge})
		return
	}
	log.Debug("chat event ignored", slog.String("type", ev.Type))
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ChatHandler) interact(r *http.Request, in chatInteraction) ChatReply {
	if len(in.Actions) == 0 {
		return ephemeral("Action processed.")
	}
	action := in.Actions[0]
	if action.ActionID != notify.ActionCompleteTask {
		return ephemeral("Action processed.")
	}

	taskID, err := uuid.Parse(strings.TrimPrefix(action.Value, notify.ActionCompleteTask+"_"))
	if err != nil {
		return ephemeral("That task reference is not valid.")
	}
	user, reply, ok := h.linkedUser(r, in.User.ID)
	if !ok {
		return reply
	}

	task, err := h.tasks.Complete(r.Context(), taskID, user.ID, domain.Provenance{
		IPAddress: provenance(r).IPAddress,
		UserAgent: "chat:" + in.User.ID,
	})
	if err != nil {
		return h.failure(r, "complete task", err)
	}
	return ephemeral(fmt.Sprintf("Task *%s* marked as complete! :white_check_mark:", task.Title))
}

// Commands handles POST /integrations/chat/commands.
func (h *ChatHandler) Commands(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	command := r.PostForm.Get("command")
	text := strings.TrimSpace(r.PostForm.Get("text"))
	chatUserID := r.PostForm.Get("user_id")

	var reply ChatReply
	switch command {
	case commandTask:
		reply = h.taskCommand(r, chatUserID, text)
	case commandTaskStatus:
		reply = h.statusCommand(r, chatUserID)
	default:
		reply = ephemeral("Unknown command: " + command)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, reply)
}

func (h *ChatHandler) taskCommand(r *http.Request, chatUserID, text string) ChatReply {
	args := strings.Fields(text)
	if len(args) == 0 {
		return ephemeral("Usage: `/task list [pending|in-progress|completed]`")
	}
	if strings.ToLower(args[0]) != "list" {
		return ephemeral("Available actions: list\nExample: `/task list in-progress`")
	}

	status := domain.TaskStatusPending
	if len(args) > 1 {
		status = domain.TaskStatus(strings.ToLower(args[1]))
		if !status.IsValid() {
			return ephemeral("Unknown status: " + args[1])
		}
	}

	user, reply, ok := h.linkedUser(r, chatUserID)
	if !ok {
		return reply
	}
	page, err := h.tasks.List(r.Context(), user.ID, store.TaskFilter{
		Status:  status,
		Sort:    store.SortByDueDate,
		PerPage: commandListLimit,
	})
	if err != nil {
		return h.failure(r, "list tasks", err)
	}
	if len(page.Items) == 0 {
		return ephemeral(fmt.Sprintf("You have no %s tasks.", status))
	}

	var b strings.Builder
	for _, t := range page.Items {
		fmt.Fprintf(&b, "• *%s* (%s) due %s\n", t.Title, t.Priority, t.DueDate.Format("01/02"))
	}
	if page.Total > len(page.Items) {
		fmt.Fprintf(&b, "_...and %d more_\n", page.Total-len(page.Items))
	}
	return ChatReply{
		ResponseType: replyEphemeral,
		Text:         fmt.Sprintf("Your %s tasks", status),
		Blocks: []chat.Block{
			chat.Header(fmt.Sprintf("Your %s tasks (%d)", status, page.Total)),
			chat.Section(b.String()),
			chat.Actions(chat.LinkButton("View All Tasks", h.frontendURL+"/tasks")),
		},
	}
}

func (h *ChatHandler) statusCommand(r *http.Request, chatUserID string) ChatReply {
	user, reply, ok := h.linkedUser(r, chatUserID)
	if !ok {
		return reply
	}
	stats, err := h.tasks.Stats(r.Context(), user.ID)
	if err != nil {
		return h.failure(r, "load task stats", err)
	}
	return ChatReply{
		ResponseType: replyEphemeral,
		Text:         fmt.Sprintf("%d pending, %d in progress, %d overdue", stats.Pending, stats.InProgress, stats.Overdue),
		Blocks: []chat.Block{
			chat.Header("Your Task Status"),
			chat.Fields(
				fmt.Sprintf("*Pending:* %d", stats.Pending),
				fmt.Sprintf("*In Progress:* %d", stats.InProgress),
				fmt.Sprintf("*Completed:* %d", stats.Completed),
				fmt.Sprintf("*Overdue:* %d", stats.Overdue),
				fmt.Sprintf("*Due Today:* %d", stats.DueToday),
				fmt.Sprintf("*Completion Rate:* %.1f%%", stats.CompletionRate),
			),
			chat.Actions(chat.LinkButton("View All Tasks", h.frontendURL+"/tasks")),
		},
	}
}

// linkedUser resolves the account linked to a chat user. When there is none
// it returns the reply to send instead.
func (h *ChatHandler) linkedUser(r *http.Request, chatUserID string) (*domain.User, ChatReply, bool) {
	if chatUserID == "" {
		return nil, ephemeral("Could not identify your chat account."), false
	}
	user, err := h.users.GetByChatUserID(r.Context(), chatUserID)
	if err != nil {
		if errors.Is(err, service.ErrChatNotLinked) {
			return nil, ephemeral("Your chat account is not linked. Add your chat user ID in Taskflow settings."), false
		}
		return nil, h.failure(r, "resolve chat user", err), false
	}
	return user, ChatReply{}, true
}

// failure logs err and turns it into a user-facing reply.
func (h *ChatHandler) failure(r *http.Request, op string, err error) ChatReply {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ephemeral("That task no longer exists.")
	case errors.Is(err, domain.ErrForbidden):
		return ephemeral("You are not allowed to do that.")
	case errors.Is(err, domain.ErrValidation):
		return ephemeral(GetSafeErrorMessage(err))
	}
	logger.FromContextOrDefault(r.Context(), h.logger).Error("chat request failed",
		slog.String("operation", op),
		slog.String("error", redact.Error(err)))
	return ephemeral("Sorry, there was an error processing your request.")
}
