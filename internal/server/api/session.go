package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/ayusman/verovision/internal/app"
)

// SessionController is the control surface of a recognition session.
type SessionController interface {
	Start(ctx context.Context) error
	Stop()
	ClearSentence()
	Snapshot() app.Update
}

// SessionHandler exposes session state and controls.
type SessionHandler struct {
	session SessionController
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(s SessionController) *SessionHandler {
	return &SessionHandler{session: s}
}

// ServeHTTP routes /api/session and /api/session/{start,stop,clear}.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/session")
	action = strings.TrimPrefix(action, "/")

	if action == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.session.Snapshot())
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "start":
		if err := h.session.Start(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	case "stop":
		h.session.Stop()
	case "clear":
		h.session.ClearSentence()
	default:
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	writeJSON(w, http.StatusOK, h.session.Snapshot())
}
