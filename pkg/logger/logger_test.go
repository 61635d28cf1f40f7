package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLogger_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("InitWithWriter() error = %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("Sync() error = %v", err)
		}
	}()

	Named("gesture").Info(context.Background(), "frame processed",
		String("label", "A"),
		Int("frame", 3),
		Float64("progress", 42.5),
		Error(errors.New("boom")),
	)

	out := buf.String()
	for _, want := range []string{"frame processed", "component=gesture", "label=A", "frame=3", "progress=42.5", "error=boom", "source="} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("InitWithWriter() error = %v", err)
	}
	defer SetLevelString("info")

	ctx := context.Background()
	Get().Debug(ctx, "hidden at info")
	if buf.Len() != 0 {
		t.Fatalf("debug record written at info level: %q", buf.String())
	}

	if err := SetLevelString("DEBUG"); err != nil {
		t.Fatalf("SetLevelString() error = %v", err)
	}
	Get().Debug(ctx, "visible at debug")
	if !strings.Contains(buf.String(), "visible at debug") {
		t.Errorf("debug record missing after SetLevelString(debug): %q", buf.String())
	}
}

func TestSetLevelString(t *testing.T) {
	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"", false},
		{" info ", false},
		{"warning", false},
		{"error", false},
		{"verbose", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := SetLevelString(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("SetLevelString(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
	_ = SetLevelString("info")
}

func TestInitWithWriter_Nil(t *testing.T) {
	if err := InitWithWriter(nil); err == nil {
		t.Error("expected error for nil writer")
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error(context.Background(), "dropped")
	if l.Named("x") == nil {
		t.Error("Nop().Named returned nil")
	}
}
