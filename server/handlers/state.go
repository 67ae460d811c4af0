package handlers

import (
	"log/slog"
	"net/http"
)

// StateHandler serves the session snapshot as JSON.
type StateHandler struct {
	logger *slog.Logger
	view   SnapshotProvider
}

// NewStateHandler creates a new StateHandler.
func NewStateHandler(logger *slog.Logger, view SnapshotProvider) *StateHandler {
	return &StateHandler{logger: logger, view: view}
}

// ServeHTTP implements http.Handler.
func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap, err := h.view.Snapshot()
	if err != nil {
		h.logger.Error("failed to read session state", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
