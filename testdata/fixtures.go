// Package testdata builds synthetic frames and parses MJPEG bodies for tests.
package testdata

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"mime/multipart"

	"gocv.io/x/gocv"
)

// Frame sizes used across the tests
const (
	Width  = 160
	Height = 120
)

// Boundary matches the multipart boundary of the video feed.
const Boundary = "frame"

// SolidFrame returns a width x height BGR frame filled with c.
// The caller must Close it.
func SolidFrame(width, height int, c color.RGBA) *gocv.Mat {
	mat := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0),
		height, width, gocv.MatTypeCV8UC3,
	)
	return &mat
}

// Sequence returns n gray frames of increasing brightness.
func Sequence(n, width, height int) []*gocv.Mat {
	frames := make([]*gocv.Mat, 0, n)
	for i := 0; i < n; i++ {
		level := uint8(32 + (i*16)%192)
		frames = append(frames, SolidFrame(width, height, color.RGBA{R: level, G: level, B: level}))
	}
	return frames
}

// CloseAll releases every frame.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}

// Chunk is one part of a multipart MJPEG body.
type Chunk struct {
	ContentType string
	Data        []byte
}

// IsJPEG reports whether the chunk payload starts with a JPEG marker.
func (c Chunk) IsJPEG() bool {
	return len(c.Data) > 2 && c.Data[0] == 0xFF && c.Data[1] == 0xD8
}

var errMalformed = errors.New("malformed chunk")

// SplitChunks parses a complete MJPEG body. Every part must be
// "--frame\r\nContent-Type: ...\r\n\r\n<data>\r\n".
func SplitChunks(body []byte) ([]Chunk, error) {
	delim := []byte("--" + Boundary + "\r\n")
	if len(body) == 0 {
		return nil, nil
	}
	if !bytes.HasPrefix(body, delim) {
		return nil, fmt.Errorf("%w: body does not start with boundary", errMalformed)
	}

	var chunks []Chunk
	for _, part := range bytes.Split(body[len(delim):], delim) {
		header, data, ok := bytes.Cut(part, []byte("\r\n\r\n"))
		if !ok {
			return nil, fmt.Errorf("%w: missing header terminator", errMalformed)
		}
		contentType, found := bytes.CutPrefix(header, []byte("Content-Type: "))
		if !found {
			return nil, fmt.Errorf("%w: missing content type", errMalformed)
		}
		data, found = bytes.CutSuffix(data, []byte("\r\n"))
		if !found {
			return nil, fmt.Errorf("%w: missing trailing CRLF", errMalformed)
		}
		chunks = append(chunks, Chunk{ContentType: string(contentType), Data: data})
	}
	return chunks, nil
}

// ChunkReader reads parts from a live MJPEG stream. Keep one reader per
// stream: it buffers ahead of the part it returns.
type ChunkReader struct {
	mr *multipart.Reader
}

// NewChunkReader wraps a video feed response body.
func NewChunkReader(r io.Reader) *ChunkReader {
	return &ChunkReader{mr: multipart.NewReader(r, Boundary)}
}

// Next returns the next part. It blocks until the part after it starts,
// since that is when the current one is known to be complete.
func (c *ChunkReader) Next() (Chunk, error) {
	part, err := c.mr.NextPart()
	if err != nil {
		return Chunk{}, err
	}
	data, err := io.ReadAll(part)
	if err != nil {
		return Chunk{}, err
	}
	return Chunk{ContentType: part.Header.Get("Content-Type"), Data: data}, nil
}

// ReadN reads n parts.
func (c *ChunkReader) ReadN(n int) ([]Chunk, error) {
	chunks := make([]Chunk, 0, n)
	for len(chunks) < n {
		chunk, err := c.Next()
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}
