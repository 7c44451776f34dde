// Package detector finds regions of interest (faces) in video frames.
package detector

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when Detect is given a nil or empty frame.
var ErrEmptyFrame = errors.New("empty frame")

// Detector defines the interface for face detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the bounding box of every
	// detected face, in frame pixel coordinates.
	// Returns an empty slice if no faces are detected.
	Detect(frame *gocv.Mat) ([]image.Rectangle, error)

	// Close releases any resources held by the detector.
	Close() error
}
