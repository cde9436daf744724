// pkg/camera/camera.go
package camera

import (
	"image"

	"github.com/pkg/errors"
)

var (
	// ErrNoFrame is returned by a Device when no frame is ready. It is never fatal.
	ErrNoFrame = errors.New("no frame available")
	// ErrDecode is returned when image bytes cannot be decoded.
	ErrDecode = errors.New("cannot decode image")
)

// Position is a pan (X) and tilt (Y) angle in degrees.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Bounds are the inclusive axis limits of a pan/tilt head.
type Bounds struct {
	XMin int `json:"x_min"`
	XMax int `json:"x_max"`
	YMin int `json:"y_min"`
	YMax int `json:"y_max"`
}

// DefaultBounds are the limits used when no remote camera is reachable.
var DefaultBounds = Bounds{XMin: 0, XMax: 180, YMin: 0, YMax: 90}

// Center is the start position for these bounds.
func (b Bounds) Center() Position {
	return Position{X: (b.XMin + b.XMax) / 2, Y: (b.YMin + b.YMax) / 2}
}

// Clamp pulls p inside b.
func (b Bounds) Clamp(p Position) Position {
	return Position{X: clamp(p.X, b.XMin, b.XMax), Y: clamp(p.Y, b.YMin, b.YMax)}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Device is a locally attached capture device.
type Device interface {
	// Read returns the next frame in RGB ordering, or ErrNoFrame.
	Read() (image.Image, error)
	Close() error
}

// DeviceInfo describes a device found by a scan.
type DeviceInfo struct {
	ID          int
	Name        string
	IsAvailable bool
}
