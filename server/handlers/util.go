package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nomis52/signupdesk/session"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is returned when a request cannot be served.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ActionResponse is returned by every action endpoint. The action's outcome
// is also reflected in State.Message, exactly as a user would see it.
type ActionResponse struct {
	OK    bool             `json:"ok"`
	Error string           `json:"error,omitempty"`
	State session.Snapshot `json:"state"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeAction reports the outcome of an action together with the resulting
// snapshot. Session-level failures are still 200: the session handled them.
func writeAction(w http.ResponseWriter, logger *slog.Logger, view SnapshotProvider, actionErr error) {
	snap, err := view.Snapshot()
	if err != nil {
		logger.Error("failed to read session state", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	resp := ActionResponse{OK: actionErr == nil, State: snap}
	if actionErr != nil {
		resp.Error = actionErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
