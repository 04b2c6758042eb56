package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/notify"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/service"
)

const defaultTestMessage = "Test notification from Taskflow!"

// ChatTestRequest is the optional body of POST /users/me/chat/test.
type ChatTestRequest struct {
	Message string `json:"message" validate:"omitempty,max=1000"`
	Channel string `json:"channel" validate:"omitempty,max=80"`
}

// UserHandler serves the authenticated user's profile and chat settings.
type UserHandler struct {
	users     service.UserService
	notifier  notify.Notifier
	validator *validator.Validate
	logger    *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users service.UserService, notifier notify.Notifier, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{
		users:     users,
		notifier:  notifier,
		validator: validator.New(),
		logger:    logger.With(slog.String("component", "user_handler")),
	}
}

// GetMe handles GET /users/me.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}
	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get user")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, userToResponse(user))
}

// UpdateChatSettings handles PUT /users/me/chat. Absent fields are left alone.
func (h *UserHandler) UpdateChatSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}
	var req ChatSettingsRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}
	if req.ChatUserID != nil {
		trimmed := strings.TrimSpace(*req.ChatUserID)
		req.ChatUserID = &trimmed
	}

	user, err := h.users.UpdateChatSettings(r.Context(), userID, service.ChatSettings{
		Enabled:     req.Enabled,
		ChatUserID:  req.ChatUserID,
		Preferences: req.Preferences,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update chat settings")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, userToResponse(user))
}

// SendTestMessage handles POST /users/me/chat/test. The message goes to the
// requested channel, or to the user's private channel when none is given.
// Delivery is asynchronous so the response is 202.
func (h *UserHandler) SendTestMessage(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req ChatTestRequest
	if r.ContentLength != 0 {
		if !decodeAndValidate(w, r, h.validator, &req) {
			return
		}
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get user")
		return
	}

	channel := strings.TrimSpace(req.Channel)
	if channel == "" {
		channel = user.DirectChannel()
	}
	if channel == "" {
		HandleAPIError(w, r, service.ErrChatNotLinked, "")
		return
	}
	text := req.Message
	if text == "" {
		text = defaultTestMessage
	}

	h.notifier.Submit(r.Context(), notify.NewPlainJob(channel, text))
	log.Info("chat test message queued", slog.String("channel", channel))
	shared.RespondWithJSON(w, r, http.StatusAccepted, map[string]string{
		"message": "Test notification queued",
		"channel": channel,
	})
}
