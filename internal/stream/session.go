// Package stream turns camera frames into a multipart MJPEG response body.
package stream

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/trackcam/internal/capture"
	"github.com/ayusman/trackcam/internal/detector"
	"github.com/ayusman/trackcam/internal/tracking"
)

// EndReason says why a session stopped streaming.
type EndReason string

const (
	// EndModeChanged means the tracking mode no longer matches the session.
	EndModeChanged EndReason = "mode_changed"
	// EndSourceExhausted means the camera reported end of stream.
	EndSourceExhausted EndReason = "source_exhausted"
	// EndReadFailure means reading a frame failed.
	EndReadFailure EndReason = "read_failure"
	// EndPeerDisconnected means writing to the client failed.
	EndPeerDisconnected EndReason = "peer_disconnected"
	// EndCancelled means the request context was cancelled.
	EndCancelled EndReason = "cancelled"
)

// ModeSource reports the current tracking mode.
type ModeSource interface {
	CurrentMode() tracking.Mode
}

// FrameReader yields frames owned by the caller. *capture.Subscription
// implements it.
type FrameReader interface {
	Read(ctx context.Context) (*gocv.Mat, error)
	Close()
}

// Result summarizes a finished session.
type Result struct {
	ID      string
	Mode    tracking.Mode
	Reason  EndReason
	Frames  int
	Faces   int
	Err     error
	Started time.Time
	Ended   time.Time
}

// Session drives one video feed response. It is bound to the mode observed
// when it was opened and ends as soon as the current mode differs.
type Session struct {
	ID   string
	Mode tracking.Mode

	modes    ModeSource
	frames   FrameReader
	detector detector.Detector
}

// NewSession creates a session bound to mode. The session takes ownership
// of frames and closes it when Run returns. det may be nil, in which case
// face mode streams without annotation.
func NewSession(mode tracking.Mode, modes ModeSource, frames FrameReader, det detector.Detector) *Session {
	return &Session{
		ID:       uuid.New().String(),
		Mode:     mode,
		modes:    modes,
		frames:   frames,
		detector: det,
	}
}

// Run streams chunks to w until the mode changes, the source fails, the
// client goes away or ctx is cancelled. Failures after the first byte can't
// be reported to the client, so they are returned in the Result and logged.
func (s *Session) Run(ctx context.Context, w io.Writer) Result {
	defer s.frames.Close()

	flusher, _ := w.(interface{ Flush() })

	res := Result{
		ID:      s.ID,
		Mode:    s.Mode,
		Started: time.Now(),
	}
	log.Printf("Stream %s opened (mode=%s)", s.ID, s.Mode)

	for {
		if current := s.modes.CurrentMode(); current != s.Mode {
			res.Reason = EndModeChanged
			break
		}

		frame, err := s.frames.Read(ctx)
		if err != nil {
			res.Err = err
			switch {
			case ctx.Err() != nil:
				res.Reason = EndCancelled
			case errors.Is(err, capture.ErrEndOfStream):
				res.Reason = EndSourceExhausted
			default:
				res.Reason = EndReadFailure
			}
			break
		}

		faces := s.annotate(frame)
		jpeg, err := Encode(frame)
		frame.Close()
		if err != nil {
			log.Printf("Stream %s: error encoding frame: %v", s.ID, err)
			continue
		}

		if err := WriteChunk(w, jpeg); err != nil {
			res.Err = err
			res.Reason = EndPeerDisconnected
			break
		}
		if flusher != nil {
			flusher.Flush()
		}

		res.Frames++
		res.Faces += faces
	}

	res.Ended = time.Now()
	if res.Err != nil && res.Reason != EndCancelled && res.Reason != EndPeerDisconnected {
		log.Printf("Stream %s ended: %s after %d frames: %v", s.ID, res.Reason, res.Frames, res.Err)
	} else {
		log.Printf("Stream %s ended: %s after %d frames", s.ID, res.Reason, res.Frames)
	}
	return res
}

// annotate applies the session mode to frame and returns the number of
// faces drawn. Object mode streams frames unchanged.
func (s *Session) annotate(frame *gocv.Mat) int {
	if s.Mode != tracking.ModeFace || s.detector == nil {
		return 0
	}

	rects, err := s.detector.Detect(frame)
	if err != nil {
		log.Printf("Stream %s: error detecting faces: %v", s.ID, err)
		return 0
	}
	Annotate(frame, rects)
	return len(rects)
}
