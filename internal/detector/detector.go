package detector

import (
	"fmt"
	"strconv"

	"gocv.io/x/gocv"
)

// Detector finds hands in camera frames.
type Detector interface {
	// Detect returns the hands found in frame, or an empty slice.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)
	Close() error
}

// Config tunes the hand detector.
type Config struct {
	MaxHands        int
	MinConfidence   float64 // detection threshold, 0..1
	MinTrackingConf float64 // tracking threshold, 0..1
}

// DefaultConfig tracks a single signing hand with 0.6 confidence thresholds.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.6,
		MinTrackingConf: 0.6,
	}
}

// Validate rejects settings the helper process would refuse.
func (c Config) Validate() error {
	if c.MaxHands < 1 {
		return fmt.Errorf("max hands must be at least 1, got %d", c.MaxHands)
	}
	for name, v := range map[string]float64{
		"detection confidence": c.MinConfidence,
		"tracking confidence":  c.MinTrackingConf,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %g", name, v)
		}
	}
	return nil
}

// args renders c as helper command line flags.
func (c Config) args() []string {
	return []string{
		"--max-hands", strconv.Itoa(c.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(c.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(c.MinTrackingConf, 'f', -1, 64),
	}
}

// PrimaryHand picks the signing hand: the most confident detection, first
// one on ties.
func PrimaryHand(hands []HandLandmarks) (HandLandmarks, bool) {
	if len(hands) == 0 {
		return HandLandmarks{}, false
	}
	best := 0
	for i := 1; i < len(hands); i++ {
		if hands[i].Score > hands[best].Score {
			best = i
		}
	}
	return hands[best], true
}
