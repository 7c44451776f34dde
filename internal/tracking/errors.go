package tracking

import "errors"

var (
	// ErrInvalidMode is returned when a mode name or value is outside the
	// supported set.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrCameraUnavailable is returned when the camera cannot be opened.
	// A later call may retry the open.
	ErrCameraUnavailable = errors.New("camera unavailable")

	// ErrNoActiveTracking is returned when a stream is requested while no
	// tracking mode is running.
	ErrNoActiveTracking = errors.New("no tracking running")
)
