// Package vision defines the capability boundary of the recognition engine:
// the frame source, the face detector, and the face embedder. Concrete
// implementations talk to a camera stream and a detection/embedding sidecar;
// tests substitute fakes.
package vision

import (
	"context"
	"errors"
	"time"
)

// Frame is a single camera frame as encoded image bytes.
type Frame struct {
	Data     []byte // JPEG bytes
	Sequence uint64
	TakenAt  time.Time
}

// Box is a detected face bounding box in pixel coordinates [x1,y1,x2,y2].
type Box struct {
	X1, Y1, X2, Y2 int
	Score          float64
}

// Width returns the box width in pixels.
func (b Box) Width() int { return b.X2 - b.X1 }

// Height returns the box height in pixels.
func (b Box) Height() int { return b.Y2 - b.Y1 }

// Detector finds face bounding boxes in a frame. An empty result is a
// normal outcome for a frame without faces.
type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]Box, error)
}

// Embedder computes a fixed-dimension embedding for a cropped, normalized
// face image. The output is deterministic for a given input.
type Embedder interface {
	Embed(ctx context.Context, faceJPEG []byte) ([]float32, error)
}

// FrameSource supplies a sequential stream of frames from one device.
type FrameSource interface {
	// Next blocks until a frame is available. It returns
	// ErrDeviceUnavailable when the device cannot deliver frames anymore;
	// that is fatal to the calling loop.
	Next(ctx context.Context) (Frame, error)
	Close() error
}

var (
	// ErrDeviceUnavailable means the camera could not be opened or the
	// stream died. Fatal to the loop that requested it.
	ErrDeviceUnavailable = errors.New("camera device unavailable")

	// ErrDeviceBusy means another loop currently owns the camera.
	ErrDeviceBusy = errors.New("camera device busy")

	// ErrFaceTooSmall means a detected box is below the minimum size and
	// the face is skipped.
	ErrFaceTooSmall = errors.New("detected face below minimum size")
)
