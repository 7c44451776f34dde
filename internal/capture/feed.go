package capture

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

var (
	// ErrFeedClosed is delivered to subscribers when the feed shuts down.
	ErrFeedClosed = errors.New("feed closed")

	// ErrSubscriptionClosed is returned by Read after Close.
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// FeedStats is a snapshot of the feed's counters.
type FeedStats struct {
	Running     bool     `json:"running"`
	Subscribers int      `json:"subscribers"`
	Published   uint64   `json:"frames_published"`
	Dropped     uint64   `json:"frames_dropped"`
	Measured    uint64   `json:"activity_samples"`
	Activity    Activity `json:"activity"`
}

// Feed is the single reader of a Camera. One pump goroutine reads frames and
// hands every subscriber its own copy through a one-frame mailbox. A slow
// subscriber loses stale frames instead of queueing them.
//
// The pump runs only while there are subscribers. A read error ends the pump
// and is delivered to every subscriber present at that moment; the camera is
// left open so the next subscriber starts a fresh pump on it.
type Feed struct {
	camera Camera
	meter  *ActivityMeter

	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	running bool
	closed  bool
	done    chan struct{}

	activity Activity

	published atomic.Uint64
	dropped   atomic.Uint64
	measured  atomic.Uint64
}

// NewFeed creates a Feed reading from an already opened camera.
func NewFeed(camera Camera) *Feed {
	return &Feed{
		camera: camera,
		meter:  NewActivityMeter(DefaultActivityThreshold),
		subs:   make(map[uint64]*Subscription),
		done:   make(chan struct{}),
	}
}

// Subscribe registers a new consumer, starting the pump if it is idle.
// The caller must Close the subscription when done.
func (f *Feed) Subscribe() *Subscription {
	s := &Subscription{
		feed:   f,
		notify: make(chan struct{}, 1),
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		s.err = ErrFeedClosed
		return s
	}
	f.nextID++
	s.id = f.nextID
	f.subs[s.id] = s
	start := !f.running
	f.running = true
	f.mu.Unlock()

	if start {
		go f.pump()
	}
	return s
}

// Stats returns a snapshot of the feed counters.
func (f *Feed) Stats() FeedStats {
	f.mu.Lock()
	defer f.mu.Unlock()

	return FeedStats{
		Running:     f.running,
		Subscribers: len(f.subs),
		Published:   f.published.Load(),
		Dropped:     f.dropped.Load(),
		Measured:    f.measured.Load(),
		Activity:    f.activity,
	}
}

// Close stops the pump, fails all subscribers with ErrFeedClosed and closes
// the camera.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.done)
	for id, s := range f.subs {
		s.fail(ErrFeedClosed)
		delete(f.subs, id)
	}
	f.activity = Activity{}
	f.mu.Unlock()

	f.meter.Close()
	return f.camera.Close()
}

// pump is the only goroutine that calls camera.ReadFrame.
func (f *Feed) pump() {
	fps := f.camera.FPS()
	if fps <= 0 {
		fps = DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	// Frames from an earlier run are not a valid baseline
	f.meter.Reset()
	n := 0

	for {
		if f.idle() {
			return
		}

		frame, err := f.camera.ReadFrame()
		if err != nil {
			log.Printf("Error reading frame: %v", err)
			f.failAll(err)
			return
		}

		f.publish(frame)

		// Measured after publishing, one frame per ActivitySampleInterval
		if n%ActivitySampleInterval == 0 {
			f.setActivity(f.meter.Measure(frame))
		}
		n++
		frame.Close()

		select {
		case <-f.done:
			return
		case <-ticker.C:
		}
	}
}

// idle reports whether the pump should exit, clearing the running flag in
// the same critical section Subscribe uses to decide whether to start one.
func (f *Feed) idle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || len(f.subs) == 0 {
		f.running = false
		return true
	}
	return false
}

func (f *Feed) setActivity(a Activity) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.activity = a
	f.measured.Add(1)
}

func (f *Feed) publish(frame *gocv.Mat) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.subs {
		clone := frame.Clone()
		if s.put(&clone) {
			f.dropped.Add(1)
		}
	}
	f.published.Add(1)
}

func (f *Feed) failAll(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, s := range f.subs {
		s.fail(err)
		delete(f.subs, id)
	}
	f.running = false
}

func (f *Feed) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
}

// Subscription is one consumer's mailbox on a Feed.
type Subscription struct {
	feed   *Feed
	id     uint64
	notify chan struct{}

	mu     sync.Mutex
	frame  *gocv.Mat
	err    error
	closed bool
}

// Read blocks until a frame is available, the feed fails, or ctx is done.
// The returned Mat belongs to the caller, who must Close it.
func (s *Subscription) Read(ctx context.Context) (*gocv.Mat, error) {
	for {
		s.mu.Lock()
		if s.frame != nil {
			frame := s.frame
			s.frame = nil
			s.mu.Unlock()
			return frame, nil
		}
		if s.closed {
			s.mu.Unlock()
			return nil, ErrSubscriptionClosed
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return nil, err
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close detaches the subscription from the feed. Safe to call more than once.
func (s *Subscription) Close() {
	s.feed.remove(s.id)

	s.mu.Lock()
	s.closed = true
	if s.frame != nil {
		s.frame.Close()
		s.frame = nil
	}
	s.mu.Unlock()

	s.wake()
}

// put stores frame in the mailbox, replacing any unread one. It reports
// whether a frame was dropped.
func (s *Subscription) put(frame *gocv.Mat) bool {
	s.mu.Lock()
	if s.closed || s.err != nil {
		s.mu.Unlock()
		frame.Close()
		return false
	}
	dropped := false
	if s.frame != nil {
		s.frame.Close()
		dropped = true
	}
	s.frame = frame
	s.mu.Unlock()

	s.wake()
	return dropped
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()

	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
