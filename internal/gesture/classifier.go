package gesture

import "context"

// Classifier scores one feature vector. Implementations may return either
// result shape; callers resolve it with Result.Winner.
type Classifier interface {
	Classify(ctx context.Context, features FeatureVector) (Result, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, features FeatureVector) (Result, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, features FeatureVector) (Result, error) {
	return f(ctx, features)
}

type resultKind uint8

const (
	kindNone resultKind = iota
	kindRawLabel
	kindScores
)

// Result is a classifier output: either a raw class index or a per-class
// score vector. The zero value has no winner.
type Result struct {
	kind   resultKind
	index  int
	scores []float64
}

// RawLabel returns a Result naming class index i directly.
func RawLabel(i int) Result {
	return Result{kind: kindRawLabel, index: i}
}

// ScoreVector returns a Result holding one score per class, in alphabet order.
func ScoreVector(scores []float64) Result {
	s := make([]float64, len(scores))
	copy(s, scores)
	return Result{kind: kindScores, scores: s}
}

// IsScoreVector reports whether r carries scores rather than a raw index.
func (r Result) IsScoreVector() bool {
	return r.kind == kindScores
}

// Scores returns a copy of the score vector, or nil for a raw label.
func (r Result) Scores() []float64 {
	if r.kind != kindScores {
		return nil
	}
	out := make([]float64, len(r.scores))
	copy(out, r.scores)
	return out
}

// Winner returns the winning class index, or -1 when there is none.
func (r Result) Winner() int {
	switch r.kind {
	case kindRawLabel:
		return r.index
	case kindScores:
		return Argmax(r.scores)
	default:
		return -1
	}
}

// Argmax returns the index of the largest score. Ties go to the lowest index
// and NaN never wins. It returns -1 for an empty or all-NaN slice.
func Argmax(scores []float64) int {
	best := -1
	for i, s := range scores {
		if s != s {
			continue
		}
		if best == -1 || s > scores[best] {
			best = i
		}
	}
	return best
}
