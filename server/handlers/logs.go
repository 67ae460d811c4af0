package handlers

import "net/http"

// LogsHandler serves the captured diagnostics per operation.
type LogsHandler struct {
	provider LogProvider
}

// NewLogsHandler creates a new LogsHandler.
func NewLogsHandler(provider LogProvider) *LogsHandler {
	return &LogsHandler{provider: provider}
}

// ServeHTTP implements http.Handler. ?operation=signup limits the response
// to one bucket.
func (h *LogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	all := h.provider.GetAllLogs()
	if op := r.URL.Query().Get("operation"); op != "" {
		writeJSON(w, http.StatusOK, map[string]any{op: all[op]})
		return
	}
	writeJSON(w, http.StatusOK, all)
}
