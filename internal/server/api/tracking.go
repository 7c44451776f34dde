package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/ayusman/trackcam/internal/tracking"
)

// StreamURL is where clients fetch the annotated video.
const StreamURL = "/video_feed"

// ModeController switches the tracking mode.
type ModeController interface {
	Start(mode tracking.Mode) error
	Stop()
	CurrentMode() tracking.Mode
}

// TrackingHandler serves /start/{mode} and /stop.
type TrackingHandler struct {
	controller ModeController
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(c ModeController) *TrackingHandler {
	return &TrackingHandler{controller: c}
}

type startResponse struct {
	Status    string `json:"status"`
	StreamURL string `json:"stream_url"`
}

type stopResponse struct {
	Status string `json:"status"`
}

// Start handles GET /start/{mode}.
func (h *TrackingHandler) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/start/")
	mode, err := tracking.ParseMode(name)
	if err == nil {
		err = h.controller.Start(mode)
	}
	if err != nil {
		if errors.Is(err, tracking.ErrInvalidMode) {
			writeError(w, http.StatusBadRequest, "Invalid mode")
			return
		}
		log.Printf("Failed to start tracking: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to start tracking")
		return
	}

	writeJSON(w, http.StatusOK, startResponse{
		Status:    mode.Name() + " tracking started",
		StreamURL: StreamURL,
	})
}

// Stop handles GET /stop.
func (h *TrackingHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.controller.Stop()
	writeJSON(w, http.StatusOK, stopResponse{Status: "Tracking stopped"})
}
