package handlers

import (
	"log/slog"
	"net/http"
)

// HealthHandler reports "ok" while the session's event loop is serving.
type HealthHandler struct {
	logger *slog.Logger
	view   SnapshotProvider
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(logger *slog.Logger, view SnapshotProvider) *HealthHandler {
	return &HealthHandler{logger: logger, view: view}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := h.view.Snapshot(); err != nil {
		h.logger.Warn("health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
