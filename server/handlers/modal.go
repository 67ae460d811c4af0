package handlers

import (
	"log/slog"
	"net/http"

	"github.com/nomis52/signupdesk/session"
)

// ModalClickRequest is the body of /api/modal/click.
type ModalClickRequest struct {
	Target session.ClickTarget `json:"target"`
}

// ModalHandler drives the login modal. The action is fixed per route.
type ModalHandler struct {
	logger *slog.Logger
	modal  ModalController
	view   SnapshotProvider
	action string
}

// Modal actions.
const (
	ModalOpen  = "open"
	ModalClose = "close"
	ModalClick = "click"
)

// NewModalHandler creates a ModalHandler for one of ModalOpen, ModalClose or
// ModalClick.
func NewModalHandler(logger *slog.Logger, modal ModalController, view SnapshotProvider, action string) *ModalHandler {
	return &ModalHandler{logger: logger, modal: modal, view: view, action: action}
}

// ServeHTTP implements http.Handler.
func (h *ModalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var err error
	switch h.action {
	case ModalOpen:
		err = h.modal.OpenLoginModal()
	case ModalClose:
		err = h.modal.CloseLoginModal()
	case ModalClick:
		var req ModalClickRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		if req.Target != session.TargetBackdrop && req.Target != session.TargetContent {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "target must be backdrop or content"})
			return
		}
		err = h.modal.ClickLoginModal(req.Target)
	default:
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "unknown modal action " + h.action})
		return
	}
	writeAction(w, h.logger, h.view, err)
}
