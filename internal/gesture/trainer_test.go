package gesture

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ayusman/verovision/internal/detector"
)

func handSample(label Label, hand detector.HandLandmarks) Sample {
	return Sample{Label: label, Landmarks: append([]detector.Point3D(nil), hand.Points[:]...)}
}

func TestTrainer_Centroid(t *testing.T) {
	trainer := NewTrainer(NewExtractor(2), newTestAlphabet(t))

	samples := []Sample{
		{Label: "A", Landmarks: []detector.Point3D{{X: 0}, {X: 1}}},
		{Label: "A", Landmarks: []detector.Point3D{{X: 0}, {X: 3}}},
	}

	centroid, err := trainer.Centroid(samples)
	if err != nil {
		t.Fatalf("Centroid() error = %v", err)
	}
	if len(centroid) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(centroid))
	}

	// Distances 1 and 3 average to 2
	if !floatEqual(centroid[0], 2) {
		t.Errorf("wrong average: got %f, expected 2", centroid[0])
	}
}

func TestTrainer_Centroid_EmptySamples(t *testing.T) {
	trainer := NewTrainer(NewExtractor(2), newTestAlphabet(t))

	_, err := trainer.Centroid(nil)
	if !errors.Is(err, ErrNoSamples) {
		t.Errorf("expected ErrNoSamples, got %v", err)
	}
}

func TestTrainer_Centroid_WrongLandmarkCount(t *testing.T) {
	trainer := NewTrainer(NewExtractor(3), newTestAlphabet(t))

	samples := []Sample{
		{Label: "A", Landmarks: []detector.Point3D{{X: 0}, {X: 1}, {X: 2}}},
		{Label: "A", Landmarks: []detector.Point3D{{X: 0}, {X: 1}}},
	}

	if _, err := trainer.Centroid(samples); err == nil {
		t.Error("expected error for mismatched landmark count")
	}
}

func TestTrainer_Train(t *testing.T) {
	alphabet := newTestAlphabet(t)
	trainer := NewTrainer(NewExtractor(detector.NumLandmarks), alphabet)

	samples := []Sample{
		handSample("A", detector.FistLandmarks()),
		handSample("A", detector.FistLandmarks()),
		handSample("B", detector.OpenPalmLandmarks()),
	}

	classifier, err := trainer.Train(samples)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	protos := classifier.Prototypes()
	if len(protos) != 2 {
		t.Fatalf("expected 2 prototypes, got %d", len(protos))
	}
	if protos[0].Label != "A" || protos[0].Class != 0 || protos[0].Support != 2 {
		t.Errorf("unexpected first prototype: %+v", protos[0])
	}
	if protos[1].Label != "B" || protos[1].Class != 1 || protos[1].Support != 1 {
		t.Errorf("unexpected second prototype: %+v", protos[1])
	}

	extractor := NewExtractor(detector.NumLandmarks)
	fist := detector.FistLandmarks()
	result, err := classifier.Classify(context.Background(), extractor.ExtractHand(&fist))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got := alphabet.At(result.Winner()); got != "A" {
		t.Errorf("fist classified as %q, want A", got)
	}
}

func TestTrainer_Train_Errors(t *testing.T) {
	trainer := NewTrainer(NewExtractor(detector.NumLandmarks), newTestAlphabet(t))

	t.Run("no samples", func(t *testing.T) {
		if _, err := trainer.Train(nil); !errors.Is(err, ErrNoSamples) {
			t.Errorf("expected ErrNoSamples, got %v", err)
		}
	})

	t.Run("unknown label", func(t *testing.T) {
		_, err := trainer.Train([]Sample{handSample("Ñ", detector.FistLandmarks())})
		if err == nil {
			t.Error("expected error for label outside the alphabet")
		}
	})
}

func TestDecodeSamples(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"label": "A", "landmarks": [{"x": 0.5, "y": 0.5, "z": 0}]}`),
		json.RawMessage(`{"label": "Space", "landmarks": [{"x": 0.6, "y": 0.4, "z": 0.1}]}`),
	}

	samples, err := DecodeSamples(raw)
	if err != nil {
		t.Fatalf("DecodeSamples() error = %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[1].Label != "Space" || !floatEqual(samples[1].Landmarks[0].Z, 0.1) {
		t.Errorf("unexpected sample: %+v", samples[1])
	}

	if _, err := DecodeSamples([]json.RawMessage{json.RawMessage(`{invalid json}`)}); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
