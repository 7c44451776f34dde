// Package tracking holds the process-wide tracking mode and the camera
// lifecycle shared by every stream.
package tracking

import (
	"fmt"
	"strings"
)

// Mode is the tracking behavior currently selected.
type Mode int32

const (
	// ModeNone means no tracking is running and no stream may be opened.
	ModeNone Mode = iota
	// ModeFace streams frames annotated with detected faces.
	ModeFace
	// ModeObject streams frames without annotation.
	ModeObject
)

// ParseMode converts the short names used in URLs ("face", "object").
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(name) {
	case "face":
		return ModeFace, nil
	case "object":
		return ModeObject, nil
	default:
		return ModeNone, fmt.Errorf("%w: %q", ErrInvalidMode, name)
	}
}

// String returns the canonical mode value.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeFace:
		return "face_tracking"
	case ModeObject:
		return "object_tracking"
	default:
		return fmt.Sprintf("mode(%d)", int32(m))
	}
}

// Name returns the short name accepted by ParseMode, or "" for ModeNone.
func (m Mode) Name() string {
	switch m {
	case ModeFace:
		return "face"
	case ModeObject:
		return "object"
	default:
		return ""
	}
}

// Active reports whether m is a tracking mode a stream can bind to.
func (m Mode) Active() bool {
	return m == ModeFace || m == ModeObject
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
