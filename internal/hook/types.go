// Package hook runs user supplied executables when tracking changes mode or
// a video stream ends.
package hook

import (
	"encoding/json"
	"time"
)

// Event types delivered to hooks.
const (
	EventModeChanged = "mode_changed"
	EventStreamEnded = "stream_ended"
)

// ManifestFile is the file name Discover looks for in each hook directory.
const ManifestFile = "hook.json"

// Manifest describes a hook and the events it wants.
type Manifest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Executable  string `json:"executable"`

	// Events lists the event types to deliver. Empty means all of them.
	Events []string `json:"events"`
}

// Event is written to the hook's stdin as JSON.
type Event struct {
	Type      string      `json:"type"`
	Previous  string      `json:"previous,omitempty"`
	Mode      string      `json:"mode"`
	Stream    *StreamInfo `json:"stream,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// StreamInfo summarises a finished video stream.
type StreamInfo struct {
	ID         string `json:"id"`
	Reason     string `json:"reason"`
	Frames     int    `json:"frames"`
	Faces      int    `json:"faces"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response is what a hook prints on stdout. Hooks that print nothing are
// treated as successful.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Handles reports whether the hook subscribed to eventType.
func (h *Hook) Handles(eventType string) bool {
	if len(h.Manifest.Events) == 0 {
		return true
	}
	for _, e := range h.Manifest.Events {
		if e == eventType {
			return true
		}
	}
	return false
}
