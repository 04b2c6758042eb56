package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/sweep"
)

// SweepTrigger starts sweeps on demand.
type SweepTrigger interface {
	Trigger(ctx context.Context, kind sweep.Kind) error
	Kinds() []sweep.Kind
	Running(kind sweep.Kind) bool
}

// SweepStatus is one entry of GET /admin/sweeps.
type SweepStatus struct {
	Sweep   string `json:"sweep"`
	Running bool   `json:"running"`
}

// AdminHandler serves operator endpoints. Routes must be guarded by the
// admin role.
type AdminHandler struct {
	sweeps SweepTrigger
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(sweeps SweepTrigger, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		sweeps: sweeps,
		logger: logger.With(slog.String("component", "admin_handler")),
	}
}

// ListSweeps handles GET /admin/sweeps.
func (h *AdminHandler) ListSweeps(w http.ResponseWriter, r *http.Request) {
	kinds := h.sweeps.Kinds()
	resp := make([]SweepStatus, 0, len(kinds))
	for _, k := range kinds {
		resp = append(resp, SweepStatus{Sweep: string(k), Running: h.sweeps.Running(k)})
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// TriggerSweep handles POST /admin/sweeps/{kind}. The sweep runs in the
// background; 409 means it is already running.
func (h *AdminHandler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	kind := sweep.Kind(chi.URLParam(r, "kind"))
	if err := h.sweeps.Trigger(r.Context(), kind); err != nil {
		HandleAPIError(w, r, err, "Failed to trigger sweep")
		return
	}

	if userID, ok := getUserIDFromContext(r); ok {
		logger.FromContextOrDefault(r.Context(), h.logger).Info("sweep triggered by admin",
			slog.String("sweep", string(kind)),
			slog.String("user_id", userID.String()))
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, SweepResponse{Sweep: string(kind), Started: true})
}
