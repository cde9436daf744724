// Package opencv reads frames from a locally attached webcam through gocv.
package opencv

import (
	"fmt"
	"image"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/AlverezYari/suscam/pkg/camera"
)

// Default capture settings.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
	DefaultFPS    = 20
)

// Device is a gocv backed camera.Device.
type Device struct {
	id  int
	mu  sync.Mutex
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

var _ camera.Device = (*Device)(nil)

// Open opens capture device id. Device 0 is usually the built-in webcam.
func Open(id int) (*Device, error) {
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening camera %d", id)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Errorf("camera %d is not open", id)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	vc.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	vc.Set(gocv.VideoCaptureFPS, DefaultFPS)

	return &Device{id: id, vc: vc, mat: gocv.NewMat()}, nil
}

// Read grabs one frame. The Mat is BGR; ToImage converts it to RGBA.
func (d *Device) Read() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc == nil {
		return nil, camera.ErrNoFrame
	}
	if ok := d.vc.Read(&d.mat); !ok || d.mat.Empty() {
		return nil, camera.ErrNoFrame
	}

	img, err := d.mat.ToImage()
	if err != nil {
		return nil, errors.Wrapf(camera.ErrNoFrame, "camera %d: %v", d.id, err)
	}
	return img, nil
}

// Close releases the device. Calling it twice is a no-op.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc == nil {
		return nil
	}
	err := d.vc.Close()
	d.mat.Close()
	d.vc = nil
	if err != nil {
		return errors.Wrapf(err, "error closing camera %d", d.id)
	}
	return nil
}

// Scan probes the first n device indices and reports the ones that open.
func Scan(n int) []camera.DeviceInfo {
	var devices []camera.DeviceInfo
	for i := 0; i < n; i++ {
		vc, err := gocv.OpenVideoCapture(i)
		if err != nil {
			continue
		}
		opened := vc.IsOpened()
		vc.Close()
		if !opened {
			continue
		}

		name := fmt.Sprintf("Camera %d", i)
		if i == 0 {
			name = "Built-in Camera"
		}
		devices = append(devices, camera.DeviceInfo{ID: i, Name: name, IsAvailable: true})
	}
	return devices
}
