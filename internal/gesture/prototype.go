package gesture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
)

// DefaultNeighbors is how many nearest prototypes vote on a frame.
const DefaultNeighbors = 3

// ErrUntrained is returned by a classifier with no prototypes.
var ErrUntrained = errors.New("classifier has no prototypes")

// Prototype is the averaged feature vector of one label.
type Prototype struct {
	Class    int
	Label    Label
	Features FeatureVector
	Support  int // number of samples averaged
}

// PrototypeClassifier scores frames against per-label prototypes. The k
// nearest prototypes vote with weight 1/(distance+epsilon); the score vector
// holds each class's share of the total weight.
type PrototypeClassifier struct {
	classes    int
	k          int
	prototypes []Prototype
}

// NewPrototypeClassifier creates a classifier over classes labels. A
// non-positive k uses DefaultNeighbors.
func NewPrototypeClassifier(classes int, prototypes []Prototype, k int) (*PrototypeClassifier, error) {
	if len(prototypes) == 0 {
		return nil, ErrUntrained
	}
	if k <= 0 {
		k = DefaultNeighbors
	}

	width := len(prototypes[0].Features)
	for _, p := range prototypes {
		if p.Class < 0 || p.Class >= classes {
			return nil, fmt.Errorf("prototype %q: class %d out of range", p.Label, p.Class)
		}
		if len(p.Features) != width {
			return nil, fmt.Errorf("prototype %q: %d features, expected %d", p.Label, len(p.Features), width)
		}
	}

	return &PrototypeClassifier{
		classes:    classes,
		k:          k,
		prototypes: prototypes,
	}, nil
}

// Prototypes returns the trained prototypes.
func (c *PrototypeClassifier) Prototypes() []Prototype {
	return c.prototypes
}

// Classify implements Classifier.
func (c *PrototypeClassifier) Classify(ctx context.Context, features FeatureVector) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if len(features) != len(c.prototypes[0].Features) {
		return Result{}, fmt.Errorf("got %d features, expected %d", len(features), len(c.prototypes[0].Features))
	}

	type neighbor struct {
		class    int
		distance float64
	}
	neighbors := make([]neighbor, len(c.prototypes))
	for i, p := range c.prototypes {
		neighbors[i] = neighbor{class: p.Class, distance: euclidean(features, p.Features)}
	}
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].distance < neighbors[j].distance
	})

	k := min(c.k, len(neighbors))
	scores := make([]float64, c.classes)
	var total float64
	for _, n := range neighbors[:k] {
		w := 1.0 / (n.distance + 1e-9)
		scores[n.class] += w
		total += w
	}
	for i := range scores {
		scores[i] /= total
	}

	return ScoreVector(scores), nil
}

func euclidean(a, b FeatureVector) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
