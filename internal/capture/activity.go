package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Activity measurement constants
const (
	// ActivityBlurSize is the Gaussian kernel applied before differencing.
	ActivityBlurSize = 21
	// ActivityDiffThreshold is the per-pixel change that counts as movement.
	ActivityDiffThreshold = 25
	// DefaultActivityThreshold is the changed-pixel percentage above which
	// the scene is reported as moving.
	DefaultActivityThreshold = 1.0
	// ActivitySampleInterval is how many published frames a Feed lets pass
	// between two measurements.
	ActivitySampleInterval = 3
)

// Activity describes how much a frame differs from the one before it.
type Activity struct {
	// Changed is the percentage of pixels that changed, 0 to 100.
	Changed float64 `json:"changed"`
	// Moving is true when Changed exceeds the meter threshold.
	Moving bool `json:"moving"`
}

// ActivityMeter compares consecutive frames by blurred grayscale
// differencing. It does not modify the frames it measures.
type ActivityMeter struct {
	threshold float64
	prev      gocv.Mat
	hasPrev   bool
	closed    bool
	mu        sync.Mutex
}

// NewActivityMeter creates a meter reporting movement above threshold
// percent of changed pixels. Non-positive thresholds use the default.
func NewActivityMeter(threshold float64) *ActivityMeter {
	if threshold <= 0 {
		threshold = DefaultActivityThreshold
	}
	return &ActivityMeter{
		threshold: threshold,
		prev:      gocv.NewMat(),
	}
}

// Measure compares frame with the previous one. The first frame after
// creation or Reset only sets the baseline and reports no activity.
func (m *ActivityMeter) Measure(frame *gocv.Mat) Activity {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || frame == nil || frame.Empty() {
		return Activity{}
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: ActivityBlurSize, Y: ActivityBlurSize}, 0, 0, gocv.BorderDefault)

	// A size change (new source resolution) starts a new baseline
	if !m.hasPrev || blurred.Rows() != m.prev.Rows() || blurred.Cols() != m.prev.Cols() {
		m.replace(blurred)
		return Activity{}
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prev, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, ActivityDiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0
	m.replace(blurred)

	return Activity{Changed: changed, Moving: changed > m.threshold}
}

// replace makes baseline the new previous frame, taking ownership of it.
func (m *ActivityMeter) replace(baseline gocv.Mat) {
	m.prev.Close()
	m.prev = baseline
	m.hasPrev = true
}

// Reset drops the baseline so the next frame starts a new comparison.
func (m *ActivityMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.prev.Close()
	m.prev = gocv.NewMat()
	m.hasPrev = false
}

// Close releases the baseline frame. Measure reports nothing afterwards.
func (m *ActivityMeter) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.prev.Close()
	m.hasPrev = false
	m.closed = true
}
