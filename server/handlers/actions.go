package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nomis52/signupdesk/session"
)

// ParticipantRequest is the body of /api/signup and /api/unregister.
type ParticipantRequest struct {
	Activity string `json:"activity"`
	Email    string `json:"email"`
}

// LoginRequest is the body of /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshHandler reloads the roster.
type RefreshHandler struct {
	logger    *slog.Logger
	refresher Refresher
	view      SnapshotProvider
}

// NewRefreshHandler creates a new RefreshHandler.
func NewRefreshHandler(logger *slog.Logger, refresher Refresher, view SnapshotProvider) *RefreshHandler {
	return &RefreshHandler{logger: logger, refresher: refresher, view: view}
}

// ServeHTTP implements http.Handler.
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h.refresher.RefreshRoster(r.Context())
	writeAction(w, h.logger, h.view, err)
}

// SignupHandler registers a participant.
type SignupHandler struct {
	logger    *slog.Logger
	registrar Registrar
	view      SnapshotProvider
}

// NewSignupHandler creates a new SignupHandler.
func NewSignupHandler(logger *slog.Logger, registrar Registrar, view SnapshotProvider) *SignupHandler {
	return &SignupHandler{logger: logger, registrar: registrar, view: view}
}

// ServeHTTP implements http.Handler. The request fills in and submits the
// signup form, so invalid input is refused before the service is called.
func (h *SignupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ParticipantRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	err := h.registrar.SubmitSignupForm(r.Context(), req.Activity, req.Email)
	if errors.Is(err, session.ErrInvalidForm) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	writeAction(w, h.logger, h.view, err)
}

// UnregisterHandler clicks the removal control of a rendered participant.
type UnregisterHandler struct {
	logger *slog.Logger
	finder ParticipantFinder
	view   SnapshotProvider
}

// NewUnregisterHandler creates a new UnregisterHandler.
func NewUnregisterHandler(logger *slog.Logger, finder ParticipantFinder, view SnapshotProvider) *UnregisterHandler {
	return &UnregisterHandler{logger: logger, finder: finder, view: view}
}

// ServeHTTP implements http.Handler. Only participants present in the
// current render can be removed.
func (h *UnregisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ParticipantRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	p, ok := h.finder.Participant(req.Activity, req.Email)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "participant is not shown in the current roster"})
		return
	}
	err := p.Remove(r.Context())
	if errors.Is(err, session.ErrStaleControl) {
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	}
	writeAction(w, h.logger, h.view, err)
}

// LoginHandler verifies teacher credentials.
type LoginHandler struct {
	logger   *slog.Logger
	verifier CredentialVerifier
	view     SnapshotProvider
}

// NewLoginHandler creates a new LoginHandler.
func NewLoginHandler(logger *slog.Logger, verifier CredentialVerifier, view SnapshotProvider) *LoginHandler {
	return &LoginHandler{logger: logger, verifier: verifier, view: view}
}

// ServeHTTP implements http.Handler.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	err := h.verifier.VerifyTeacherCredentials(r.Context(), req.Username, req.Password)
	writeAction(w, h.logger, h.view, err)
}
