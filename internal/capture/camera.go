// Package capture supplies landmark observations to the recognition loop,
// either from a camera and hand detector or from a scripted replay.
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Capture defaults. Landmarks are normalized by the detector, so a small
// frame is enough.
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when reading from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrFrameUnavailable is returned when the device produced no usable frame.
	ErrFrameUnavailable = errors.New("no frame available")
)

// Camera is a frame producer. Frames returned by ReadFrame belong to the
// caller, who must Close them.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// DeviceConfig describes a capture device.
type DeviceConfig struct {
	ID     int
	Width  int
	Height int
	FPS    int
	// Mirror flips frames horizontally so the preview matches what the
	// signer sees and handedness is reported from their side.
	Mirror bool
}

// DefaultDeviceConfig returns the settings for device id.
func DefaultDeviceConfig(id int) DeviceConfig {
	return DeviceConfig{ID: id, Width: DefaultWidth, Height: DefaultHeight, FPS: DefaultFPS}
}

// device is a Camera backed by gocv.VideoCapture.
type device struct {
	cfg DeviceConfig

	mu sync.Mutex
	vc *gocv.VideoCapture
}

// NewCamera creates a Camera for cfg. Zero sizes and rates fall back to the
// defaults.
func NewCamera(cfg DeviceConfig) Camera {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = DefaultWidth, DefaultHeight
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	return &device{cfg: cfg}
}

// Open opens the device. Opening an open camera is a no-op.
func (d *device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(d.cfg.ID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", d.cfg.ID, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("open camera %d: device unavailable", d.cfg.ID)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(d.cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(d.cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(d.cfg.FPS))

	d.vc = vc
	return nil
}

// Close releases the device handle. Closing a closed camera is a no-op.
func (d *device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc == nil {
		return nil
	}
	err := d.vc.Close()
	d.vc = nil
	return err
}

// ReadFrame grabs one frame, mirrored when configured.
func (d *device) ReadFrame() (*gocv.Mat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc == nil {
		return nil, ErrCameraNotOpen
	}

	frame := gocv.NewMat()
	if ok := d.vc.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return nil, ErrFrameUnavailable
	}

	if d.cfg.Mirror {
		flipped := gocv.NewMat()
		gocv.Flip(frame, &flipped, 1)
		frame.Close()
		return &flipped, nil
	}
	return &frame, nil
}

// SetFPS changes the capture rate; non-positive values are ignored.
func (d *device) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.cfg.FPS = fps
	if d.vc != nil {
		d.vc.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the configured capture rate.
func (d *device) FPS() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg.FPS
}

// IsOpen reports whether the device is open.
func (d *device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vc != nil
}
