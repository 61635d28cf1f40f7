// Package plugin discovers and runs external plugins: classifiers that score
// feature vectors and output plugins that act on committed characters.
package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// ErrUnsupportedAction is returned when a request names an action the
// manifest does not list.
var ErrUnsupportedAction = errors.New("unsupported action")

// Kind says what a plugin is used for.
type Kind string

const (
	// KindClassifier plugins run as a long-lived process scoring one feature
	// vector per line.
	KindClassifier Kind = "classifier"
	// KindOutput plugins are executed once per committed character.
	KindOutput Kind = "output"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Kind         Kind            `json:"kind"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions,omitempty"`
	Labels       []string        `json:"labels,omitempty"` // classifier output order
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Validate checks the fields discovery relies on.
func (m Manifest) Validate() error {
	switch {
	case m.Name == "":
		return errors.New("manifest has no name")
	case m.Kind != KindClassifier && m.Kind != KindOutput:
		return fmt.Errorf("unknown kind %q", m.Kind)
	case m.Executable == "":
		return errors.New("manifest has no executable")
	case filepath.IsAbs(m.Executable),
		strings.HasPrefix(filepath.Clean(m.Executable), ".."):
		return fmt.Errorf("executable %q must be inside the plugin directory", m.Executable)
	}
	return nil
}

// SupportsAction reports whether action is listed. A manifest without an
// action list accepts any action.
func (m Manifest) SupportsAction(action string) bool {
	return len(m.Actions) == 0 || slices.Contains(m.Actions, action)
}

// Request is sent to an output plugin on stdin.
type Request struct {
	Action string          `json:"action"`
	Label  string          `json:"label"`
	Config json.RawMessage `json:"config,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is read from an output plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// classifyRequest is one line written to a classifier plugin.
type classifyRequest struct {
	Features []float64 `json:"features"`
}

// classifyResponse is one line read back. Exactly one of Label or Scores is
// set, unless Error is.
type classifyResponse struct {
	Label  *int      `json:"label,omitempty"`
	Scores []float64 `json:"scores,omitempty"`
	Error  string    `json:"error,omitempty"`
}
