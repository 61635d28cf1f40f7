package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	hands  []HandLandmarks
	err    error
	calls  int
	closed bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close records that the detector was released.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// FistLandmarks returns a right hand in a closed fist with the thumb resting
// along the index finger (fingerspelled "A").
func FistLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb pressed against the side of the index finger
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.0}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.58, Y: 0.68, Z: 0.0}
	landmarks.Points[ThumbIP] = Point3D{X: 0.59, Y: 0.62, Z: -0.01}
	landmarks.Points[ThumbTip] = Point3D{X: 0.59, Y: 0.57, Z: -0.02}

	// All four fingers curled into the palm
	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.62, Z: -0.02}
	landmarks.Points[IndexPIP] = Point3D{X: 0.55, Y: 0.58, Z: -0.05}
	landmarks.Points[IndexDIP] = Point3D{X: 0.54, Y: 0.62, Z: -0.06}
	landmarks.Points[IndexTip] = Point3D{X: 0.54, Y: 0.66, Z: -0.04}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.61, Z: -0.02}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.57, Z: -0.05}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.49, Y: 0.61, Z: -0.06}
	landmarks.Points[MiddleTip] = Point3D{X: 0.49, Y: 0.65, Z: -0.04}

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.62, Z: -0.02}
	landmarks.Points[RingPIP] = Point3D{X: 0.45, Y: 0.58, Z: -0.05}
	landmarks.Points[RingDIP] = Point3D{X: 0.44, Y: 0.62, Z: -0.06}
	landmarks.Points[RingTip] = Point3D{X: 0.44, Y: 0.66, Z: -0.04}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.41, Y: 0.64, Z: -0.02}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.41, Y: 0.61, Z: -0.04}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.40, Y: 0.64, Z: -0.05}
	landmarks.Points[PinkyTip] = Point3D{X: 0.40, Y: 0.67, Z: -0.03}

	return landmarks
}

// OpenPalmLandmarks returns a right hand with the four fingers extended and
// together and the thumb folded across the palm (fingerspelled "B").
func OpenPalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb folded in front of the palm
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.0}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.57, Y: 0.70, Z: -0.02}
	landmarks.Points[ThumbIP] = Point3D{X: 0.53, Y: 0.67, Z: -0.04}
	landmarks.Points[ThumbTip] = Point3D{X: 0.49, Y: 0.66, Z: -0.05}

	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.555, Y: 0.55, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: 0.56, Y: 0.45, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: 0.56, Y: 0.36, Z: 0.0}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.41, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.31, Z: 0.0}

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.445, Y: 0.55, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: 0.44, Y: 0.45, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: 0.44, Y: 0.37, Z: 0.0}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.41, Y: 0.70, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.40, Y: 0.60, Z: 0.0}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.395, Y: 0.52, Z: 0.0}
	landmarks.Points[PinkyTip] = Point3D{X: 0.39, Y: 0.45, Z: 0.0}

	return landmarks
}
