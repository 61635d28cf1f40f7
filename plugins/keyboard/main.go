// Command keyboard is an output plugin that types committed characters into
// the focused window: System Events on macOS, xdotool on Linux.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

type request struct {
	Action string          `json:"action"`
	Label  string          `json:"label"`
	Params json.RawMessage `json:"params"`
}

type response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type typeParams struct {
	Text string `json:"text"`
}

type keyParams struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // cmd, alt, ctrl, shift
}

// typist drives the platform's input injection.
type typist interface {
	Type(text string) error
	Key(key string, modifiers []string) error
}

func main() {
	var req request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		reply(fmt.Errorf("decode request: %w", err))
		return
	}
	t, err := platformTypist(runtime.GOOS)
	if err != nil {
		reply(err)
		return
	}
	reply(dispatch(t, req))
}

func reply(err error) {
	resp := response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

func platformTypist(goos string) (typist, error) {
	switch goos {
	case "darwin":
		return appleTypist{run: run}, nil
	case "linux":
		return xdoTypist{run: run}, nil
	default:
		return nil, fmt.Errorf("typing is not supported on %s", goos)
	}
}

// dispatch routes one request to t.
func dispatch(t typist, req request) error {
	switch req.Action {
	case "type":
		return handleType(t, req.Params)
	case "keystroke", "shortcut":
		var p keyParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return fmt.Errorf("parse params: %w", err)
		}
		if p.Key == "" {
			return errors.New("key is required")
		}
		return t.Key(p.Key, p.Modifiers)
	default:
		return fmt.Errorf("unknown action: %s", req.Action)
	}
}

// handleType types the committed text verbatim; a lone space is valid.
func handleType(t typist, params json.RawMessage) error {
	var p typeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return fmt.Errorf("parse params: %w", err)
	}
	if p.Text == "" {
		return errors.New("text is required")
	}
	return t.Type(p.Text)
}

type appleTypist struct {
	run func(name string, args ...string) error
}

func (a appleTypist) Type(text string) error {
	return a.run("osascript", "-e", keystrokeScript(text, nil))
}

func (a appleTypist) Key(key string, modifiers []string) error {
	return a.run("osascript", "-e", keystrokeScript(key, modifiers))
}

var appleModifiers = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

// keystrokeScript renders a System Events keystroke. Unknown modifiers are
// dropped.
func keystrokeScript(key string, modifiers []string) string {
	var using []string
	for _, m := range modifiers {
		if am, ok := appleModifiers[strings.ToLower(m)]; ok {
			using = append(using, am)
		}
	}

	key = strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(key)
	script := fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, key)
	if len(using) > 0 {
		script += " using {" + strings.Join(using, ", ") + "}"
	}
	return script
}

type xdoTypist struct {
	run func(name string, args ...string) error
}

func (x xdoTypist) Type(text string) error {
	return x.run("xdotool", "type", "--", text)
}

func (x xdoTypist) Key(key string, modifiers []string) error {
	return x.run("xdotool", "key", xdotoolChord(key, modifiers))
}

var xdoModifiers = map[string]string{
	"command": "super",
	"cmd":     "super",
	"option":  "alt",
	"alt":     "alt",
	"control": "ctrl",
	"ctrl":    "ctrl",
	"shift":   "shift",
}

// xdotoolChord builds a chord such as "ctrl+shift+a".
func xdotoolChord(key string, modifiers []string) string {
	parts := make([]string, 0, len(modifiers)+1)
	for _, m := range modifiers {
		if xm, ok := xdoModifiers[strings.ToLower(m)]; ok {
			parts = append(parts, xm)
		}
	}
	return strings.Join(append(parts, key), "+")
}

func run(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
