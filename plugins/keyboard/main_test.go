package main

import (
	"encoding/json"
	"reflect"
	"testing"
)

type recorder struct {
	calls [][]string
}

func (r *recorder) run(name string, args ...string) error {
	r.calls = append(r.calls, append([]string{name}, args...))
	return nil
}

func TestKeystrokeScript(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		modifiers []string
		want      string
	}{
		{name: "plain key", key: "a", want: `tell application "System Events" to keystroke "a"`},
		{
			name:      "with modifiers",
			key:       "c",
			modifiers: []string{"cmd", "Shift"},
			want:      `tell application "System Events" to keystroke "c" using {command down, shift down}`,
		},
		{name: "unknown modifiers dropped", key: "x", modifiers: []string{"hyper"}, want: `tell application "System Events" to keystroke "x"`},
		{name: "quotes escaped", key: `"`, want: `tell application "System Events" to keystroke "\""`},
		{name: "space", key: " ", want: `tell application "System Events" to keystroke " "`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keystrokeScript(tt.key, tt.modifiers); got != tt.want {
				t.Errorf("keystrokeScript() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestXdotoolChord(t *testing.T) {
	if got := xdotoolChord("a", []string{"ctrl", "alt"}); got != "ctrl+alt+a" {
		t.Errorf("xdotoolChord() = %q, want ctrl+alt+a", got)
	}
	if got := xdotoolChord("space", nil); got != "space" {
		t.Errorf("xdotoolChord() = %q, want space", got)
	}
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name    string
		req     request
		want    []string
		wantErr bool
	}{
		{
			name: "type a letter",
			req:  request{Action: "type", Params: json.RawMessage(`{"text":"A"}`)},
			want: []string{"xdotool", "type", "--", "A"},
		},
		{
			name: "type a space",
			req:  request{Action: "type", Params: json.RawMessage(`{"text":" "}`)},
			want: []string{"xdotool", "type", "--", " "},
		},
		{
			name: "shortcut",
			req:  request{Action: "shortcut", Params: json.RawMessage(`{"key":"z","modifiers":["ctrl"]}`)},
			want: []string{"xdotool", "key", "ctrl+z"},
		},
		{name: "empty text", req: request{Action: "type", Params: json.RawMessage(`{"text":""}`)}, wantErr: true},
		{name: "bad params", req: request{Action: "type", Params: json.RawMessage(`nope`)}, wantErr: true},
		{name: "empty key", req: request{Action: "keystroke", Params: json.RawMessage(`{}`)}, wantErr: true},
		{name: "unknown action", req: request{Action: "launch"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			err := dispatch(xdoTypist{run: rec.run}, tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("dispatch() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if len(rec.calls) != 0 {
					t.Errorf("commands ran on error: %v", rec.calls)
				}
				return
			}
			if len(rec.calls) != 1 || !reflect.DeepEqual(rec.calls[0], tt.want) {
				t.Errorf("calls = %v, want [%v]", rec.calls, tt.want)
			}
		})
	}
}

func TestPlatformTypist(t *testing.T) {
	for _, goos := range []string{"darwin", "linux"} {
		if _, err := platformTypist(goos); err != nil {
			t.Errorf("platformTypist(%s) error = %v", goos, err)
		}
	}
	if _, err := platformTypist("plan9"); err == nil {
		t.Error("platformTypist(plan9) error = nil, want error")
	}
}
