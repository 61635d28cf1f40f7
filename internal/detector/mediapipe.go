package detector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/verovision/pkg/logger"
)

const (
	helperScript = "scripts/mediapipe_service.py"
	venvPython   = "venv/bin/python"

	// idleShutdown stops the helper after this long without frames.
	idleShutdown = 30 * time.Second
)

// ErrHelperNotFound is returned when the MediaPipe helper script is missing.
var ErrHelperNotFound = errors.New("mediapipe helper not found")

// MediaPipeDetector finds hands with MediaPipe running in a Python helper.
// The helper is started on the first frame and stopped after idleShutdown.
type MediaPipeDetector struct {
	config Config
	script string
	python string
	log    logger.Logger

	mu   sync.Mutex
	proc *helper
	idle *time.Timer
}

// NewMediaPipeDetector locates the helper and its interpreter. A virtualenv
// next to the project wins over python3 on PATH.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	script := locate(searchPaths(helperScript))
	if script == "" {
		return nil, ErrHelperNotFound
	}
	python := locate(searchPaths(venvPython))
	if python == "" {
		python = "python3"
	}

	return &MediaPipeDetector{
		config: config,
		script: script,
		python: python,
		log:    logger.Named("detector"),
	}, nil
}

// Detect returns the hands MediaPipe found in frame.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc == nil {
		proc, err := startHelper(d.python, d.script, d.config.args())
		if err != nil {
			return nil, err
		}
		d.proc = proc
		d.log.Info(context.Background(), "mediapipe helper started",
			logger.String("script", d.script), logger.String("python", d.python))
	}

	line, err := d.proc.exchange(buf.GetBytes())
	if err != nil {
		// A broken pipe leaves the helper unusable; restart on the next frame.
		d.stopLocked()
		return nil, err
	}
	d.armIdle()
	return decodeHands(line)
}

// Close stops the helper if it is running.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

func (d *MediaPipeDetector) stopLocked() error {
	if d.idle != nil {
		d.idle.Stop()
		d.idle = nil
	}
	if d.proc == nil {
		return nil
	}
	err := d.proc.stop()
	d.proc = nil
	return err
}

func (d *MediaPipeDetector) armIdle() {
	if d.idle != nil {
		d.idle.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.idle != t {
			return
		}
		d.idle = nil
		if err := d.stopLocked(); err != nil {
			d.log.Warn(context.Background(), "idle mediapipe shutdown", logger.Error(err))
		}
	})
	d.idle = t
}

// decodeHands parses one helper reply. A hand with the wrong number of
// points fails the whole frame rather than being padded.
func decodeHands(line []byte) ([]HandLandmarks, error) {
	var reply struct {
		Hands []struct {
			Points     []Point3D `json:"points"`
			Handedness string    `json:"handedness"`
			Score      float64   `json:"score"`
		} `json:"hands"`
	}
	if err := json.Unmarshal(line, &reply); err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}

	hands := make([]HandLandmarks, 0, len(reply.Hands))
	for i, h := range reply.Hands {
		lm, err := NewHandLandmarks(h.Points, h.Handedness, h.Score)
		if err != nil {
			return nil, fmt.Errorf("hand %d: %w", i, err)
		}
		hands = append(hands, lm)
	}
	return hands, nil
}
