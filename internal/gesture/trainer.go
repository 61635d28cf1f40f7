package gesture

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayusman/verovision/internal/detector"
)

// ErrNoSamples is returned when training has nothing to learn from.
var ErrNoSamples = errors.New("no samples provided")

// Sample is one recorded, labeled landmark set.
type Sample struct {
	Label     Label              `json:"label"`
	Landmarks []detector.Point3D `json:"landmarks"`
}

// DecodeSamples parses stored sample payloads of the form
// {"label": "A", "landmarks": [{"x":..,"y":..,"z":..}, ...]}.
func DecodeSamples(raw []json.RawMessage) ([]Sample, error) {
	samples := make([]Sample, 0, len(raw))
	for i, r := range raw {
		var s Sample
		if err := json.Unmarshal(r, &s); err != nil {
			return nil, fmt.Errorf("failed to parse sample %d: %w", i, err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// Trainer turns recorded samples into per-label prototypes.
type Trainer struct {
	extractor *Extractor
	alphabet  *Alphabet
}

// NewTrainer creates a Trainer for the given feature layout and alphabet.
func NewTrainer(extractor *Extractor, alphabet *Alphabet) *Trainer {
	return &Trainer{extractor: extractor, alphabet: alphabet}
}

// Centroid averages the feature vectors of one label's samples.
func (t *Trainer) Centroid(samples []Sample) (FeatureVector, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	n := t.extractor.LandmarkCount()
	sum := make(FeatureVector, t.extractor.Len())
	for i, s := range samples {
		if len(s.Landmarks) != n {
			return nil, fmt.Errorf("sample %d has %d landmarks, expected %d", i, len(s.Landmarks), n)
		}
		for k, v := range t.extractor.Extract(s.Landmarks) {
			sum[k] += v
		}
	}

	count := float64(len(samples))
	for k := range sum {
		sum[k] /= count
	}
	return sum, nil
}

// Train groups samples by label and averages each group into a prototype.
// Every sample label must belong to the alphabet.
func (t *Trainer) Train(samples []Sample) (*PrototypeClassifier, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	groups := make(map[Label][]Sample)
	for i, s := range samples {
		if !t.alphabet.Contains(s.Label) {
			return nil, fmt.Errorf("sample %d: label %q is not in the alphabet", i, s.Label)
		}
		groups[s.Label] = append(groups[s.Label], s)
	}

	prototypes := make([]Prototype, 0, len(groups))
	for _, l := range t.alphabet.Labels() {
		group, ok := groups[l]
		if !ok {
			continue
		}
		centroid, err := t.Centroid(group)
		if err != nil {
			return nil, fmt.Errorf("label %q: %w", l, err)
		}
		prototypes = append(prototypes, Prototype{
			Class:    t.alphabet.Index(l),
			Label:    l,
			Features: centroid,
			Support:  len(group),
		})
	}

	return NewPrototypeClassifier(t.alphabet.Len(), prototypes, 0)
}
