// Package gesture turns hand landmarks into committed characters: pairwise
// distance features, a classifier boundary, and a hold-to-confirm engine.
package gesture

import (
	"fmt"

	"github.com/ayusman/verovision/internal/detector"
)

// FeatureVector holds one distance per unordered landmark pair, in canonical
// order: for i in 0..n-1, for j in i+1..n-1, distance(i, j).
type FeatureVector []float64

// FeatureLen returns C(n, 2), the feature count for n landmarks.
func FeatureLen(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}

// PairAt returns the landmark pair stored at feature index k for n landmarks.
// It returns ok=false when k is out of range.
func PairAt(n, k int) (i, j int, ok bool) {
	if k < 0 || k >= FeatureLen(n) {
		return 0, 0, false
	}
	for i = 0; i < n-1; i++ {
		row := n - 1 - i
		if k < row {
			return i, i + 1 + k, true
		}
		k -= row
	}
	return 0, 0, false
}

// Extractor converts landmark sets of a fixed length into feature vectors.
// It holds no state beyond the contracted landmark count and is safe for
// concurrent use.
type Extractor struct {
	n int
}

// NewExtractor creates an Extractor for sets of landmarkCount points.
func NewExtractor(landmarkCount int) *Extractor {
	if landmarkCount < 2 {
		panic(fmt.Sprintf("gesture: landmark count %d is below 2", landmarkCount))
	}
	return &Extractor{n: landmarkCount}
}

// LandmarkCount returns the contracted number of landmarks per set.
func (e *Extractor) LandmarkCount() int {
	return e.n
}

// Len returns the length of every vector this extractor produces.
func (e *Extractor) Len() int {
	return FeatureLen(e.n)
}

// Extract computes the pairwise Euclidean distances of points.
//
// A set of the wrong length is a programming error upstream and panics;
// the input is never truncated or padded.
func (e *Extractor) Extract(points []detector.Point3D) FeatureVector {
	if len(points) != e.n {
		panic(fmt.Sprintf("gesture: extract got %d landmarks, want %d", len(points), e.n))
	}

	out := make(FeatureVector, 0, e.Len())
	for i := 0; i < e.n; i++ {
		for j := i + 1; j < e.n; j++ {
			out = append(out, detector.Distance(points[i], points[j]))
		}
	}
	return out
}

// ExtractHand is Extract for a detector hand.
func (e *Extractor) ExtractHand(hand *detector.HandLandmarks) FeatureVector {
	return e.Extract(hand.Points[:])
}
