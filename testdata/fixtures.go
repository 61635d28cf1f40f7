// Package testdata embeds recorded hand landmarks used by the end-to-end
// tests.
package testdata

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/ayusman/verovision/internal/detector"
)

//go:embed hands/*.json
var handsFS embed.FS

// LoadHand loads a recorded hand by label, e.g. "L".
func LoadHand(label string) (detector.HandLandmarks, error) {
	data, err := handsFS.ReadFile(path.Join("hands", label+".json"))
	if err != nil {
		return detector.HandLandmarks{}, fmt.Errorf("load hand %s: %w", label, err)
	}

	var raw struct {
		Points     []detector.Point3D `json:"points"`
		Handedness string             `json:"handedness"`
		Score      float64            `json:"score"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return detector.HandLandmarks{}, fmt.Errorf("decode hand %s: %w", label, err)
	}
	return detector.NewHandLandmarks(raw.Points, raw.Handedness, raw.Score)
}

// Labels returns the labels with a recorded hand, sorted.
func Labels() []string {
	entries, err := handsFS.ReadDir("hands")
	if err != nil {
		return nil
	}
	labels := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		labels = append(labels, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(labels)
	return labels
}
