package gesture

import (
	"context"
	"math"
	"testing"
)

func TestArgmax(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name   string
		scores []float64
		want   int
	}{
		{"unique maximum", []float64{0.1, 0.7, 0.2}, 1},
		{"tie resolves to lowest index", []float64{0, 0.1, 0.9, 0.2, 0.3, 0.9}, 2},
		{"all equal", []float64{1, 1, 1}, 0},
		{"negative scores", []float64{-3, -1, -2}, 1},
		{"NaN never wins", []float64{nan, 0.2, nan}, 1},
		{"all NaN", []float64{nan, nan}, -1},
		{"empty", nil, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Argmax(tt.scores); got != tt.want {
				t.Errorf("Argmax(%v) = %d, want %d", tt.scores, got, tt.want)
			}
		})
	}
}

func TestResult_Winner(t *testing.T) {
	t.Run("raw label", func(t *testing.T) {
		r := RawLabel(7)
		if r.IsScoreVector() {
			t.Error("raw label reported as score vector")
		}
		if r.Winner() != 7 {
			t.Errorf("Winner() = %d, want 7", r.Winner())
		}
		if r.Scores() != nil {
			t.Error("raw label should have no scores")
		}
	})

	t.Run("score vector", func(t *testing.T) {
		scores := []float64{0.1, 0.2, 0.5, 0.1, 0.1, 0.5}
		r := ScoreVector(scores)
		scores[5] = 10

		if !r.IsScoreVector() {
			t.Error("expected score vector")
		}
		if r.Winner() != 2 {
			t.Errorf("Winner() = %d, want 2", r.Winner())
		}
	})

	t.Run("zero value", func(t *testing.T) {
		if (Result{}).Winner() != -1 {
			t.Error("zero Result should have no winner")
		}
	})

	t.Run("resolves through alphabet", func(t *testing.T) {
		a := newTestAlphabet(t)
		scores := make([]float64, a.Len())
		scores[19] = 0.8
		if got := a.At(ScoreVector(scores).Winner()); got != "Space" {
			t.Errorf("got %q, want Space", got)
		}
		if got := a.At(RawLabel(99).Winner()); got != Sentinel {
			t.Errorf("out of range index resolved to %q, want sentinel", got)
		}
	})
}

func TestClassifierFunc(t *testing.T) {
	var c Classifier = ClassifierFunc(func(ctx context.Context, f FeatureVector) (Result, error) {
		return RawLabel(len(f)), nil
	})

	r, err := c.Classify(context.Background(), FeatureVector{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Winner() != 3 {
		t.Errorf("Winner() = %d, want 3", r.Winner())
	}
}
