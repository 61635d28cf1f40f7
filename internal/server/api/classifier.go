package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/verovision/internal/gesture"
)

// Retrainer rebuilds the classifier from stored samples.
type Retrainer interface {
	Retrain(ctx context.Context) (int, error)
	ClassifierName() string
}

// ClassifierHandler reports and retrains the installed classifier.
type ClassifierHandler struct {
	trainer Retrainer
}

// NewClassifierHandler creates a new ClassifierHandler.
func NewClassifierHandler(t Retrainer) *ClassifierHandler {
	return &ClassifierHandler{trainer: t}
}

type classifierResponse struct {
	Name   string `json:"name"`
	Loaded bool   `json:"loaded"`
	Labels int    `json:"labels,omitempty"`
}

// ServeHTTP routes GET /api/classifier and POST /api/classifier/train.
func (h *ClassifierHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/classifier")
	action = strings.TrimPrefix(action, "/")

	switch {
	case action == "" && r.Method == http.MethodGet:
		name := h.trainer.ClassifierName()
		writeJSON(w, http.StatusOK, classifierResponse{Name: name, Loaded: name != ""})
	case action == "train" && r.Method == http.MethodPost:
		h.train(w, r)
	case action == "" || action == "train":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *ClassifierHandler) train(w http.ResponseWriter, r *http.Request) {
	n, err := h.trainer.Retrain(r.Context())
	if err != nil {
		if errors.Is(err, gesture.ErrNoSamples) {
			writeError(w, http.StatusConflict, "No samples recorded")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, classifierResponse{
		Name:   h.trainer.ClassifierName(),
		Loaded: true,
		Labels: n,
	})
}
