package detector

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"
)

// Cascade parameters for frontal faces.
const (
	ScaleFactor  = 1.3
	MinNeighbors = 5
)

// DefaultCascade is the file name of the frontal face Haar cascade shipped with OpenCV.
const DefaultCascade = "haarcascade_frontalface_default.xml"

// CascadeDetector implements Detector with an OpenCV Haar cascade classifier.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	path       string
	mu         sync.Mutex
	closed     bool
}

// NewCascadeDetector loads the cascade at path. If path is a bare file name
// that does not exist, the usual OpenCV install locations are searched.
func NewCascadeDetector(path string) (*CascadeDetector, error) {
	resolved := FindCascade(path)
	if resolved == "" {
		return nil, fmt.Errorf("cascade %s not found", path)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(resolved) {
		classifier.Close()
		return nil, fmt.Errorf("load cascade %s", resolved)
	}

	return &CascadeDetector{
		classifier: classifier,
		path:       resolved,
	}, nil
}

// Path returns the cascade file in use.
func (d *CascadeDetector) Path() string {
	return d.path
}

// Detect converts the frame to grayscale and runs the cascade on it.
func (d *CascadeDetector) Detect(frame *gocv.Mat) ([]image.Rectangle, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	// CascadeClassifier is not safe for concurrent use
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("detector closed")
	}

	rects := d.classifier.DetectMultiScaleWithParams(gray, ScaleFactor, MinNeighbors, 0, image.Point{}, image.Point{})
	return rects, nil
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.classifier.Close()
}

// FindCascade resolves a cascade file. It returns name itself when it exists,
// otherwise the first match among common OpenCV data directories, or "".
func FindCascade(name string) string {
	if name == "" {
		name = DefaultCascade
	}
	if _, err := os.Stat(name); err == nil {
		if abs, err := filepath.Abs(name); err == nil {
			return abs
		}
		return name
	}
	if filepath.Base(name) != name {
		return ""
	}

	execDir := ""
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("data", name),
		filepath.Join(execDir, "data", name),
		filepath.Join(os.Getenv("HOME"), ".trackcam", name),
		filepath.Join("/usr/share/opencv4/haarcascades", name),
		filepath.Join("/usr/local/share/opencv4/haarcascades", name),
		filepath.Join("/opt/homebrew/share/opencv4/haarcascades", name),
		filepath.Join("/usr/share/opencv/haarcascades", name),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
