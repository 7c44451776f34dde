package api

import (
	"net/http"

	"github.com/ayusman/trackcam/internal/capture"
	"github.com/ayusman/trackcam/internal/hook"
	"github.com/ayusman/trackcam/internal/tracking"
)

// StatusSource reports the live state of tracking and the camera.
type StatusSource interface {
	CurrentMode() tracking.Mode
	Feed() (*capture.Feed, bool)
}

// HookSource reports the state of the event hooks.
type HookSource interface {
	Status() hook.Status
}

// StatusHandler serves GET /api/status.
type StatusHandler struct {
	source  StatusSource
	streams func() int
	hooks   HookSource
}

// NewStatusHandler creates a StatusHandler. streams reports the number of
// open video feeds and may be nil. hooks may be nil when no hooks run.
func NewStatusHandler(source StatusSource, streams func() int, hooks HookSource) *StatusHandler {
	return &StatusHandler{source: source, streams: streams, hooks: hooks}
}

type statusResponse struct {
	Mode            tracking.Mode    `json:"mode"`
	CameraOpen      bool             `json:"camera_open"`
	Streams         int              `json:"streams"`
	Subscribers     int              `json:"subscribers"`
	FramesPublished uint64           `json:"frames_published"`
	FramesDropped   uint64           `json:"frames_dropped"`
	Activity        capture.Activity `json:"activity"`
	Hooks           *hook.Status     `json:"hooks,omitempty"`
}

// ServeHTTP implements the http.Handler interface.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statusResponse{Mode: h.source.CurrentMode()}
	if feed, ok := h.source.Feed(); ok {
		stats := feed.Stats()
		resp.CameraOpen = true
		resp.Subscribers = stats.Subscribers
		resp.FramesPublished = stats.Published
		resp.FramesDropped = stats.Dropped
		resp.Activity = stats.Activity
	}
	if h.streams != nil {
		resp.Streams = h.streams()
	}
	if h.hooks != nil {
		st := h.hooks.Status()
		resp.Hooks = &st
	}

	writeJSON(w, http.StatusOK, resp)
}
