package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ragline/internal/contextutil"
	"ragline/internal/workflow"
)

// StatusHandler reports the state of a scheduled orchestration instance.
type StatusHandler struct {
	engine Scheduler
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(engine Scheduler) *StatusHandler {
	return &StatusHandler{engine: engine}
}

// StatusResponse represents the state of one orchestration instance.
//
// swagger:model StatusResponse
type StatusResponse struct {
	InstanceID   string    `json:"instanceId"`
	Orchestrator string    `json:"orchestrator"`
	Status       string    `json:"status"`
	Output       []string  `json:"output,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ServeHTTP handles GET /api/status/{instanceID}.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	instanceID := chi.URLParam(r, "instanceID")
	if instanceID == "" {
		writeError(w, http.StatusBadRequest, "Instance id is required")
		return
	}

	instance, err := h.engine.Get(ctx, instanceID)
	if err != nil {
		if errors.Is(err, workflow.ErrInstanceNotFound) {
			writeError(w, http.StatusNotFound, "Instance not found")
			return
		}
		logger.ErrorContext(ctx, "failed to load instance", "error", err, "instance_id", instanceID)
		writeError(w, http.StatusInternalServerError, "Failed to load instance")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		InstanceID:   instance.ID,
		Orchestrator: instance.Orchestrator,
		Status:       string(instance.Status),
		Output:       instance.Output,
		Error:        instance.Error,
		StartedAt:    instance.StartedAt,
		UpdatedAt:    instance.UpdatedAt,
	})
}
