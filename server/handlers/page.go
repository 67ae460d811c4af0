package handlers

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/nomis52/signupdesk/render"
)

// PageHandler serves the HTML dashboard.
type PageHandler struct {
	logger *slog.Logger
	view   SnapshotProvider
	tr     render.Translator
	lang   string
}

// NewPageHandler creates a new PageHandler rendering labels with tr in the
// given language.
func NewPageHandler(logger *slog.Logger, view SnapshotProvider, tr render.Translator, lang string) *PageHandler {
	return &PageHandler{logger: logger, view: view, tr: tr, lang: lang}
}

// ServeHTTP implements http.Handler.
func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap, err := h.view.Snapshot()
	if err != nil {
		h.logger.Error("failed to read session state", "error", err)
		http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		return
	}

	var buf bytes.Buffer
	if err := render.HTML(&buf, snap, h.tr, h.lang); err != nil {
		h.logger.Error("failed to render page", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
