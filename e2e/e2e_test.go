package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/verovision/internal/app"
	"github.com/ayusman/verovision/internal/capture"
	"github.com/ayusman/verovision/internal/config"
	"github.com/ayusman/verovision/internal/detector"
	"github.com/ayusman/verovision/internal/server"
	"github.com/ayusman/verovision/internal/store"
	"github.com/ayusman/verovision/testdata"
)

func loadHands(t *testing.T) map[string]detector.HandLandmarks {
	t.Helper()
	hands := make(map[string]detector.HandLandmarks)
	for _, label := range testdata.Labels() {
		h, err := testdata.LoadHand(label)
		if err != nil {
			t.Fatalf("LoadHand(%q) error = %v", label, err)
		}
		hands[label] = h
	}
	return hands
}

// spell scripts each label held for 1.6s with a 100ms step, back to back.
func spell(hands map[string]detector.HandLandmarks, word string) []capture.Observation {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	step := 100 * time.Millisecond
	var frames []capture.Observation
	offset := time.Duration(0)
	for _, r := range word {
		h := hands[string(r)]
		frames = capture.Hold(frames, &h, base, offset, offset+1600*time.Millisecond, step)
		offset += 1700 * time.Millisecond
	}
	return frames
}

func TestE2E_SpellOverWebSocket(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	hands := loadHands(t)
	src := capture.NewReplaySource(spell(hands, "LVY"), 5*time.Millisecond)

	settings := config.New()
	settings.PluginDir = filepath.Join(tmpDir, "plugins")
	a, err := app.New(app.Config{Settings: settings, Store: s, Source: src})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	defer a.Close()

	ts := httptest.NewServer(server.New(server.Config{App: a}))
	defer ts.Close()
	client := ts.Client()

	t.Run("RecordSamples", func(t *testing.T) {
		for label, h := range hands {
			body, _ := json.Marshal(map[string]any{
				"label":   label,
				"samples": [][]detector.Point3D{h.Points[:]},
			})
			resp, err := client.Post(ts.URL+"/api/samples", "application/json", bytes.NewReader(body))
			if err != nil {
				t.Fatalf("POST /api/samples error = %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				t.Fatalf("POST /api/samples %s status = %d, want %d", label, resp.StatusCode, http.StatusCreated)
			}
		}
	})

	t.Run("Train", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/classifier/train", "application/json", nil)
		if err != nil {
			t.Fatalf("train error = %v", err)
		}
		defer resp.Body.Close()

		var got struct {
			Labels int `json:"labels"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if got.Labels != len(hands) {
			t.Errorf("labels = %d, want %d", got.Labels, len(hands))
		}
	})

	t.Run("SpellOverEvents", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("Dial() error = %v", err)
		}
		defer conn.Close()

		var first app.Update
		if err := conn.ReadJSON(&first); err != nil {
			t.Fatalf("read snapshot error = %v", err)
		}
		if first.Running {
			t.Fatal("session running before start")
		}

		if err := conn.WriteJSON(map[string]string{"action": "start"}); err != nil {
			t.Fatalf("send start error = %v", err)
		}

		var committed []string
		deadline := time.Now().Add(10 * time.Second)
		for strings.Join(committed, "") != "LVY" {
			conn.SetReadDeadline(deadline)
			var u app.Update
			if err := conn.ReadJSON(&u); err != nil {
				t.Fatalf("read update error = %v (committed so far %v)", err, committed)
			}
			if u.Committed != "" {
				committed = append(committed, u.Committed)
			}
		}
	})

	t.Run("SessionSnapshot", func(t *testing.T) {
		a.Session().Wait()

		resp, err := client.Get(ts.URL + "/api/session")
		if err != nil {
			t.Fatalf("GET /api/session error = %v", err)
		}
		defer resp.Body.Close()

		var u app.Update
		if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if u.Sentence != "LVY" {
			t.Errorf("sentence = %q, want LVY", u.Sentence)
		}
		if u.Running {
			t.Error("session still running after the replay ended")
		}
		if src.Stops() != 1 {
			t.Errorf("source stops = %d, want 1", src.Stops())
		}
	})
}
