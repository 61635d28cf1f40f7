package capture

import (
	"context"
	"sync"
	"time"

	"github.com/ayusman/verovision/internal/detector"
)

// ReplaySource yields a scripted sequence of observations. It backs tests and
// the terminal demo; with a non-zero interval it paces itself like a camera.
type ReplaySource struct {
	frames   []Observation
	interval time.Duration
	startErr error

	mu      sync.Mutex
	index   int
	running bool
	starts  int
	stops   int
}

// NewReplaySource creates a source that yields frames in order, then
// ErrSourceExhausted.
func NewReplaySource(frames []Observation, interval time.Duration) *ReplaySource {
	return &ReplaySource{frames: frames, interval: interval}
}

// Hold appends observations of hand every step over [from, to], inclusive.
// A nil hand scripts frames without a hand.
func Hold(frames []Observation, hand *detector.HandLandmarks, base time.Time, from, to, step time.Duration) []Observation {
	for d := from; d <= to; d += step {
		frames = append(frames, Observation{Hand: hand, At: base.Add(d)})
	}
	return frames
}

// SetStartError makes subsequent Start calls fail with err.
func (r *ReplaySource) SetStartError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startErr = err
}

// Start rewinds the script.
func (r *ReplaySource) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.startErr != nil {
		return r.startErr
	}
	r.running = true
	r.index = 0
	return nil
}

// Next returns the next scripted observation.
func (r *ReplaySource) Next(ctx context.Context) (Observation, error) {
	if r.interval > 0 {
		timer := time.NewTimer(r.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Observation{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Observation{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return Observation{}, ErrCameraNotOpen
	}
	if r.index >= len(r.frames) {
		return Observation{}, ErrSourceExhausted
	}
	obs := r.frames[r.index]
	r.index++
	return obs, nil
}

// Stop ends playback.
func (r *ReplaySource) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.stops++
	}
	r.running = false
	return nil
}

// Starts returns how many times Start was called.
func (r *ReplaySource) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

// Stops returns how many times a running source was stopped.
func (r *ReplaySource) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

// Running reports whether the source is between Start and Stop.
func (r *ReplaySource) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Remaining returns how many scripted observations have not been consumed.
func (r *ReplaySource) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames) - r.index
}
