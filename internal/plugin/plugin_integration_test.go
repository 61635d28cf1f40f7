package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestPlugin_Keyboard_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	if runtime.GOOS != "darwin" && runtime.GOOS != "linux" {
		t.Skip("keyboard plugin only works on macOS and Linux")
	}

	pluginDir := findPluginDir("keyboard")
	if pluginDir == "" {
		t.Skip("keyboard plugin not built")
	}

	mgr := NewManager(filepath.Dir(pluginDir))
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	plug, err := mgr.GetKind("keyboard", KindOutput)
	if err != nil {
		t.Fatalf("GetKind() error = %v", err)
	}

	executor := NewExecutor(5 * time.Second)

	tests := []struct {
		name   string
		action string
		params string
	}{
		{"empty text", "type", `{"text": ""}`},
		{"empty key", "keystroke", `{"key": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := executor.Execute(context.Background(), plug, &Request{
				Action: tt.action,
				Params: json.RawMessage(tt.params),
			})
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if resp.Success {
				t.Error("expected failure")
			}
		})
	}

	t.Run("undeclared action", func(t *testing.T) {
		_, err := executor.Execute(context.Background(), plug, &Request{Action: "launch"})
		if !errors.Is(err, ErrUnsupportedAction) {
			t.Errorf("Execute() error = %v, want ErrUnsupportedAction", err)
		}
	})
}

// findPluginDir returns the plugin's source directory if its binary was built
// next to the manifest.
func findPluginDir(name string) string {
	candidates := []string{
		filepath.Join("../../plugins", name),
		filepath.Join("../../../plugins", name),
	}

	for _, dir := range candidates {
		if _, err := os.Stat(filepath.Join(dir, "plugin.json")); err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return dir
		}
	}
	return ""
}
