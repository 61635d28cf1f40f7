package server

import (
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"
)

const (
	// streamInterval polls the preview at about 15 FPS.
	streamInterval = 66 * time.Millisecond
	streamBoundary = "frame"
)

// PreviewSource supplies the most recent JPEG-encoded camera frame.
type PreviewSource interface {
	Preview() []byte
}

// StreamHandler serves the session's camera preview as MJPEG.
type StreamHandler struct {
	source   PreviewSource
	interval time.Duration
}

// NewStreamHandler creates a StreamHandler over source.
func NewStreamHandler(source PreviewSource) *StreamHandler {
	return &StreamHandler{source: source, interval: streamInterval}
}

// ServeHTTP writes one multipart part per new preview frame until the client
// goes away. The stream idles while the session is stopped.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(streamBoundary); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last []byte
	written := false
	for {
		select {
		case <-r.Context().Done():
			if written {
				mw.Close()
			}
			return
		case <-ticker.C:
		}

		jpeg := h.source.Preview()
		if len(jpeg) == 0 || sameFrame(jpeg, last) {
			continue
		}
		last = jpeg

		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":   {"image/jpeg"},
			"Content-Length": {strconv.Itoa(len(jpeg))},
		})
		if err != nil {
			return
		}
		if _, err := part.Write(jpeg); err != nil {
			return
		}
		written = true
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// sameFrame reports whether a and b share backing storage. Sources publish a
// fresh slice per frame, so this skips re-sending an unchanged preview.
func sameFrame(a, b []byte) bool {
	return len(a) == len(b) && len(b) > 0 && &a[0] == &b[0]
}
