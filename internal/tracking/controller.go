package tracking

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/ayusman/trackcam/internal/capture"
)

// Listener is called after every mode transition.
type Listener func(previous, current Mode)

// Controller is the single source of truth for the tracking mode and owns
// the camera. Mode writes are serialized by mu; reads are a lock-free atomic
// load. Opening the camera is serialized separately by openMu so that a slow
// device never blocks mode changes.
type Controller struct {
	mu        sync.Mutex
	mode      atomic.Int32
	listeners []Listener

	camera capture.Camera
	openMu sync.Mutex
	feed   atomic.Pointer[capture.Feed]
}

// NewController creates a Controller in ModeNone. The camera is not opened
// until the first EnsureCameraOpen call.
func NewController(camera capture.Camera) *Controller {
	return &Controller{camera: camera}
}

// Start switches to mode, which must be ModeFace or ModeObject.
// Starting the mode that is already running is a no-op.
func (c *Controller) Start(mode Mode) error {
	if !mode.Active() {
		return fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}
	c.set(mode)
	return nil
}

// Stop switches to ModeNone. Stopping when already stopped is a no-op.
func (c *Controller) Stop() {
	c.set(ModeNone)
}

// CurrentMode returns the current mode without blocking.
func (c *Controller) CurrentMode() Mode {
	return Mode(c.mode.Load())
}

// Subscribe registers fn to be called after each mode transition.
func (c *Controller) Subscribe(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) set(mode Mode) {
	c.mu.Lock()
	previous := Mode(c.mode.Load())
	if previous == mode {
		c.mu.Unlock()
		return
	}
	c.mode.Store(int32(mode))
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	log.Printf("Tracking mode changed: %s -> %s", previous, mode)

	// Call listeners outside the lock to prevent deadlocks
	for _, fn := range listeners {
		fn(previous, mode)
	}
}

// ActiveMode returns the current mode, or ErrNoActiveTracking when tracking
// is stopped.
func (c *Controller) ActiveMode() (Mode, error) {
	mode := c.CurrentMode()
	if !mode.Active() {
		return ModeNone, ErrNoActiveTracking
	}
	return mode, nil
}

// EnsureCameraOpen opens the camera on first use and returns the feed that
// all streams read from. Later calls return the same feed. A failed open is
// not cached: the next call tries again.
func (c *Controller) EnsureCameraOpen() (*capture.Feed, error) {
	if feed := c.feed.Load(); feed != nil {
		return feed, nil
	}

	c.openMu.Lock()
	defer c.openMu.Unlock()

	if feed := c.feed.Load(); feed != nil {
		return feed, nil
	}

	if err := c.camera.Open(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	}

	feed := capture.NewFeed(c.camera)
	c.feed.Store(feed)
	log.Println("Camera opened")

	return feed, nil
}

// Feed returns the camera feed if the camera has been opened.
func (c *Controller) Feed() (*capture.Feed, bool) {
	feed := c.feed.Load()
	return feed, feed != nil
}

// CameraOpen reports whether the camera has been opened.
func (c *Controller) CameraOpen() bool {
	return c.feed.Load() != nil
}

// Close releases the camera. It is meant for process shutdown only; Stop
// leaves the camera open for the next stream.
func (c *Controller) Close() error {
	c.openMu.Lock()
	defer c.openMu.Unlock()

	feed := c.feed.Swap(nil)
	if feed == nil {
		return nil
	}
	log.Println("Camera closed")
	return feed.Close()
}
