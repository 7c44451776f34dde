package server

import (
	"log"
	"net/http"
	"sync/atomic"

	"github.com/ayusman/trackcam/internal/capture"
	"github.com/ayusman/trackcam/internal/detector"
	"github.com/ayusman/trackcam/internal/server/api"
	"github.com/ayusman/trackcam/internal/stream"
	"github.com/ayusman/trackcam/internal/tracking"
)

// Camera is the part of the tracking controller the video feed needs.
type Camera interface {
	stream.ModeSource
	ActiveMode() (tracking.Mode, error)
	EnsureCameraOpen() (*capture.Feed, error)
}

// VideoHandler serves the MJPEG feed for the current tracking mode.
type VideoHandler struct {
	camera   Camera
	detector detector.Detector
	onResult func(stream.Result)
	active   atomic.Int64
}

// NewVideoHandler creates a VideoHandler. onResult, if not nil, is called
// with the summary of every finished stream.
func NewVideoHandler(camera Camera, d detector.Detector, onResult func(stream.Result)) *VideoHandler {
	return &VideoHandler{
		camera:   camera,
		detector: d,
		onResult: onResult,
	}
}

// Active returns the number of open streams.
func (h *VideoHandler) Active() int {
	return int(h.active.Load())
}

// ServeHTTP streams annotated frames until the mode changes or the client
// goes away. Setup errors are reported as JSON before any frame is sent.
func (h *VideoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mode, err := h.camera.ActiveMode()
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "No tracking running")
		return
	}

	feed, err := h.camera.EnsureCameraOpen()
	if err != nil {
		log.Printf("Video feed unavailable: %v", err)
		api.WriteError(w, http.StatusServiceUnavailable, "Could not open camera")
		return
	}

	session := stream.NewSession(mode, h.camera, feed.Subscribe(), h.detector)

	w.Header().Set("Content-Type", stream.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	h.active.Add(1)
	res := session.Run(r.Context(), w)
	h.active.Add(-1)

	if h.onResult != nil {
		h.onResult(res)
	}
}

var _ Camera = (*tracking.Controller)(nil)
