package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// FakeCamera is a Camera that synthesizes blank frames, for tests and for
// running the pipeline without a device. It records Open and Close calls so
// callers can check that the handle is released.
type FakeCamera struct {
	cfg   DeviceConfig
	limit int

	mu      sync.Mutex
	open    bool
	served  int
	openErr error
	opens   int
	closes  int
}

// NewFakeCamera returns a camera producing frames of cfg's size. After limit
// frames ReadFrame reports ErrSourceExhausted; limit <= 0 never runs out.
func NewFakeCamera(cfg DeviceConfig, limit int) *FakeCamera {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = DefaultWidth, DefaultHeight
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	return &FakeCamera{cfg: cfg, limit: limit}
}

// FailOpen makes subsequent Open calls return err.
func (c *FakeCamera) FailOpen(err error) {
	c.mu.Lock()
	c.openErr = err
	c.mu.Unlock()
}

func (c *FakeCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.opens++
	if c.openErr != nil {
		return c.openErr
	}
	c.open = true
	c.served = 0
	return nil
}

func (c *FakeCamera) Close() error {
	c.mu.Lock()
	c.closes++
	c.open = false
	c.mu.Unlock()
	return nil
}

func (c *FakeCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case !c.open:
		return nil, ErrCameraNotOpen
	case c.limit > 0 && c.served >= c.limit:
		return nil, ErrSourceExhausted
	}
	c.served++

	frame := gocv.NewMatWithSize(c.cfg.Height, c.cfg.Width, gocv.MatTypeCV8UC3)
	return &frame, nil
}

func (c *FakeCamera) SetFPS(fps int) {
	if fps > 0 {
		c.mu.Lock()
		c.cfg.FPS = fps
		c.mu.Unlock()
	}
}

func (c *FakeCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.FPS
}

func (c *FakeCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Calls returns how many times Open and Close were called.
func (c *FakeCamera) Calls() (opens, closes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens, c.closes
}
