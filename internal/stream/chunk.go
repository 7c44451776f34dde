package stream

import (
	"image"
	"image/color"
	"io"

	"gocv.io/x/gocv"
)

// Boundary separates the parts of the multipart response.
const Boundary = "frame"

// ContentType is the response content type of a video feed.
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

var (
	chunkHeader  = []byte("--" + Boundary + "\r\nContent-Type: image/jpeg\r\n\r\n")
	chunkTrailer = []byte("\r\n")
)

// AnnotationColor is the color of the boxes drawn around faces.
var AnnotationColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}

// AnnotationThickness is the line width of the boxes, in pixels.
const AnnotationThickness = 3

// WriteChunk writes one multipart part holding a JPEG image.
func WriteChunk(w io.Writer, jpeg []byte) error {
	if _, err := w.Write(chunkHeader); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := w.Write(chunkTrailer)
	return err
}

// Encode compresses the frame to JPEG.
func Encode(frame *gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Annotate draws a box around every rect directly onto frame.
func Annotate(frame *gocv.Mat, rects []image.Rectangle) {
	for _, r := range rects {
		gocv.Rectangle(frame, r, AnnotationColor, AnnotationThickness)
	}
}
