// Package api provides HTTP API handlers for the VeroVision recognition service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/verovision/internal/gesture"
	"github.com/ayusman/verovision/internal/store"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

// LabelHandler handles HTTP requests for label resources. Every label of the
// alphabet is listed, including those without samples yet.
type LabelHandler struct {
	store    *store.Store
	alphabet *gesture.Alphabet
}

// NewLabelHandler creates a new LabelHandler.
func NewLabelHandler(s *store.Store, alphabet *gesture.Alphabet) *LabelHandler {
	return &LabelHandler{store: s, alphabet: alphabet}
}

// ServeHTTP implements the http.Handler interface.
// Expected paths: /api/labels or /api/labels/{name}
func (h *LabelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/labels")
	name = strings.TrimPrefix(name, "/")

	if name == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, name)
	case http.MethodDelete:
		h.delete(w, r, name)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type labelResponse struct {
	Name      string `json:"name"`
	Display   string `json:"display"`
	Index     int    `json:"index"`
	Samples   int    `json:"samples"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type listLabelsResponse struct {
	Labels []labelResponse `json:"labels"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func (h *LabelHandler) describe(l gesture.Label, stored *store.Label) labelResponse {
	resp := labelResponse{
		Name:    string(l),
		Display: h.alphabet.Display(l),
		Index:   h.alphabet.Index(l),
	}
	if stored != nil {
		resp.Samples = stored.Samples
		resp.UpdatedAt = stored.UpdatedAt.Format(timeLayout)
	}
	return resp
}

// list handles GET /api/labels.
func (h *LabelHandler) list(w http.ResponseWriter, r *http.Request) {
	stored, err := h.store.Labels().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list labels")
		return
	}
	byName := make(map[string]*store.Label, len(stored))
	for _, l := range stored {
		byName[l.Name] = l
	}

	response := listLabelsResponse{
		Labels: make([]labelResponse, 0, h.alphabet.Len()),
	}
	for _, l := range h.alphabet.Labels() {
		response.Labels = append(response.Labels, h.describe(l, byName[string(l)]))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/labels/{name}.
func (h *LabelHandler) get(w http.ResponseWriter, r *http.Request, name string) {
	l := gesture.Label(name)
	if !h.alphabet.Contains(l) {
		writeError(w, http.StatusNotFound, "Label not found")
		return
	}

	stored, err := h.store.Labels().Get(name)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to get label")
		return
	}

	writeJSON(w, http.StatusOK, h.describe(l, stored))
}

// delete handles DELETE /api/labels/{name}, removing all of its samples.
func (h *LabelHandler) delete(w http.ResponseWriter, r *http.Request, name string) {
	if err := h.store.Labels().Delete(name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Label has no samples")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete label")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
