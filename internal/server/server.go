// Package server provides the HTTP server for the VeroVision recognition service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayusman/verovision/internal/app"
	"github.com/ayusman/verovision/internal/server/api"
	"github.com/ayusman/verovision/pkg/logger"
	"github.com/ayusman/verovision/pkg/metrics"
)

// shutdownTimeout bounds graceful shutdown of open connections.
const shutdownTimeout = 5 * time.Second

// Config holds the server configuration.
type Config struct {
	StaticDir string
	App       *app.App
}

// Server represents the HTTP server for the VeroVision application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	log    logger.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    logger.Named("server"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	if a := s.config.App; a != nil {
		session := api.NewSessionHandler(a)
		s.mux.Handle("/api/session", session)
		s.mux.Handle("/api/session/", session)

		classifier := api.NewClassifierHandler(a)
		s.mux.Handle("/api/classifier", classifier)
		s.mux.Handle("/api/classifier/", classifier)

		s.mux.Handle("/api/events", NewEventsHandler(a.Hub(), a))
		s.mux.Handle("/api/stream", NewStreamHandler(a))
		s.mux.HandleFunc("/api/plugins", s.handlePlugins)

		if st := a.Store(); st != nil {
			labels := api.NewLabelHandler(st, a.Alphabet())
			s.mux.Handle("/api/labels", labels)
			s.mux.Handle("/api/labels/", labels)

			samples := api.NewSamplesHandler(st, a)
			s.mux.Handle("/api/samples", samples)
			s.mux.Handle("/api/samples/", samples)
		}
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type healthResponse struct {
	Status     string `json:"status"`
	Uptime     string `json:"uptime"`
	Running    *bool  `json:"running,omitempty"`
	Classifier string `json:"classifier,omitempty"`
	Sentence   *int   `json:"sentence_length,omitempty"`
}

// handleHealth reports liveness and, when an app is wired, whether the
// session is running and which classifier is loaded.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := healthResponse{
		Status: "ok",
		Uptime: time.Since(s.start).Round(time.Second).String(),
	}
	if a := s.config.App; a != nil {
		snap := a.Snapshot()
		n := len([]rune(snap.Sentence))
		resp.Running = &snap.Running
		resp.Classifier = a.ClassifierName()
		resp.Sentence = &n
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

type pluginResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Kind        string   `json:"kind"`
	Actions     []string `json:"actions,omitempty"`
}

// handlePlugins handles GET /api/plugins.
func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	plugins := s.config.App.PluginManager().List()
	resp := make([]pluginResponse, 0, len(plugins))
	for _, p := range plugins {
		resp = append(resp, pluginResponse{
			Name:        p.Manifest.Name,
			Version:     p.Manifest.Version,
			Description: p.Manifest.Description,
			Kind:        string(p.Manifest.Kind),
			Actions:     p.Manifest.Actions,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"plugins": resp})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "http server listening", logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
