package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/verovision/internal/app"
	"github.com/ayusman/verovision/internal/detector"
	"github.com/ayusman/verovision/internal/store"
)

// SampleRecorder validates and stores recorded hands.
type SampleRecorder interface {
	AddSamples(label string, hands [][]detector.Point3D) ([]string, error)
}

// SamplesHandler handles HTTP requests for sample resources.
type SamplesHandler struct {
	store    *store.Store
	recorder SampleRecorder
}

// NewSamplesHandler creates a new SamplesHandler.
func NewSamplesHandler(s *store.Store, recorder SampleRecorder) *SamplesHandler {
	return &SamplesHandler{store: s, recorder: recorder}
}

// ServeHTTP implements the http.Handler interface.
// Expected paths: /api/samples or /api/samples/{id}
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/samples")
	id = strings.TrimPrefix(id, "/")

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request types

type createSamplesRequest struct {
	Label   string               `json:"label"`
	Samples [][]detector.Point3D `json:"samples"`
}

// Response types

type sampleResponse struct {
	ID        string          `json:"id"`
	Label     string          `json:"label"`
	Landmarks json.RawMessage `json:"landmarks"`
	CreatedAt string          `json:"created_at"`
}

type listSamplesResponse struct {
	Samples []sampleResponse `json:"samples"`
}

type createSamplesResponse struct {
	IDs []string `json:"ids"`
}

func toSampleResponse(s store.Sample) sampleResponse {
	return sampleResponse{
		ID:        s.ID,
		Label:     s.Label,
		Landmarks: s.Landmarks,
		CreatedAt: s.CreatedAt.Format(timeLayout),
	}
}

// list handles GET /api/samples[?label=A]
func (h *SamplesHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		samples []store.Sample
		err     error
	)
	if label := r.URL.Query().Get("label"); label != "" {
		samples, err = h.store.Samples().ListByLabel(label)
	} else {
		samples, err = h.store.Samples().List()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	response := listSamplesResponse{
		Samples: make([]sampleResponse, 0, len(samples)),
	}
	for _, s := range samples {
		response.Samples = append(response.Samples, toSampleResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

// create handles POST /api/samples
func (h *SamplesHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSamplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ids, err := h.recorder.AddSamples(req.Label, req.Samples)
	if err != nil {
		if errors.Is(err, app.ErrInvalidSample) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save samples")
		return
	}

	writeJSON(w, http.StatusCreated, createSamplesResponse{IDs: ids})
}

// get handles GET /api/samples/{id}
func (h *SamplesHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.store.Samples().Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Sample not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get sample")
		return
	}

	writeJSON(w, http.StatusOK, toSampleResponse(*s))
}

// delete handles DELETE /api/samples/{id}
func (h *SamplesHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Samples().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Sample not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete sample")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
