package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/verovision/internal/detector"
	"github.com/ayusman/verovision/pkg/logger"
)

// ErrSourceExhausted is returned by Next once a finite source has no more
// observations.
var ErrSourceExhausted = errors.New("landmark source exhausted")

// Observation is the result of one frame. Hand is nil when no hand was
// detected, which the recognizer treats as the no-hand sentinel.
type Observation struct {
	Hand *detector.HandLandmarks
	At   time.Time
}

// HasHand reports whether a hand was detected in the frame.
func (o Observation) HasHand() bool {
	return o.Hand != nil
}

// CameraSource reads frames from a Camera, runs them through a Detector and
// yields the first detected hand of each frame. Frames are paced at the
// camera's FPS.
type CameraSource struct {
	camera   Camera
	detector detector.Detector
	preview  bool
	now      func() time.Time
	log      logger.Logger

	mu      sync.Mutex
	ticker  *time.Ticker
	running bool
	latest  []byte
}

// CameraOption configures a CameraSource.
type CameraOption func(*CameraSource)

// WithPreview keeps the most recent frame as JPEG for Preview.
func WithPreview(enabled bool) CameraOption {
	return func(s *CameraSource) {
		s.preview = enabled
	}
}

// WithClock overrides the timestamp source for observations.
func WithClock(now func() time.Time) CameraOption {
	return func(s *CameraSource) {
		s.now = now
	}
}

// NewCameraSource combines a camera and a hand detector into a landmark source.
func NewCameraSource(camera Camera, det detector.Detector, opts ...CameraOption) *CameraSource {
	s := &CameraSource{
		camera:   camera,
		detector: det,
		now:      time.Now,
		log:      logger.Named("capture"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the camera. A failure leaves the source stopped.
func (s *CameraSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.camera.Open(); err != nil {
		return fmt.Errorf("acquire camera: %w", err)
	}

	fps := s.camera.FPS()
	if fps <= 0 {
		fps = DefaultFPS
	}
	s.ticker = time.NewTicker(time.Second / time.Duration(fps))
	s.running = true

	s.log.Info(ctx, "camera source started", logger.Int("fps", fps))
	return nil
}

// Next blocks until the next frame is due, then captures and analyzes it.
// A detector failure yields an observation without a hand.
func (s *CameraSource) Next(ctx context.Context) (Observation, error) {
	s.mu.Lock()
	ticker := s.ticker
	running := s.running
	s.mu.Unlock()

	if !running {
		return Observation{}, ErrCameraNotOpen
	}

	select {
	case <-ctx.Done():
		return Observation{}, ctx.Err()
	case <-ticker.C:
	}

	frame, err := s.camera.ReadFrame()
	if err != nil {
		return Observation{}, err
	}
	defer frame.Close()

	obs := Observation{At: s.now()}

	if s.preview {
		s.storePreview(frame)
	}

	hands, err := s.detector.Detect(frame)
	if err != nil {
		s.log.Warn(ctx, "hand detection failed", logger.Error(err))
		return obs, nil
	}
	if hand, ok := detector.PrimaryHand(hands); ok {
		obs.Hand = &hand
	}
	return obs, nil
}

func (s *CameraSource) storePreview(frame *gocv.Mat) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	s.mu.Lock()
	s.latest = data
	s.mu.Unlock()
}

// Preview returns the most recent frame as JPEG, or nil.
func (s *CameraSource) Preview() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Stop releases the camera and the detector. It is safe to call repeatedly.
func (s *CameraSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.ticker.Stop()
	s.latest = nil

	var errs []error
	if err := s.camera.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close camera: %w", err))
	}
	if err := s.detector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close detector: %w", err))
	}

	s.log.Info(context.Background(), "camera source stopped")
	return errors.Join(errs...)
}
