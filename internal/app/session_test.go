package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayusman/verovision/internal/capture"
	"github.com/ayusman/verovision/internal/config"
	"github.com/ayusman/verovision/internal/detector"
	"github.com/ayusman/verovision/internal/gesture"
	"github.com/ayusman/verovision/pkg/logger"
)

var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func fistHand() *detector.HandLandmarks {
	h := detector.FistLandmarks()
	return &h
}

func palmHand() *detector.HandLandmarks {
	h := detector.OpenPalmLandmarks()
	return &h
}

func testAlphabet(t *testing.T) *gesture.Alphabet {
	t.Helper()
	a, err := gesture.NewAlphabet(config.DefaultLabels, "Space")
	if err != nil {
		t.Fatalf("NewAlphabet() error = %v", err)
	}
	return a
}

// testClassifier maps a fist to A and an open palm to B.
func testClassifier(t *testing.T, alphabet *gesture.Alphabet) gesture.Classifier {
	t.Helper()
	fist, palm := detector.FistLandmarks(), detector.OpenPalmLandmarks()
	c, err := gesture.NewTrainer(gesture.NewExtractor(detector.NumLandmarks), alphabet).Train([]gesture.Sample{
		{Label: "A", Landmarks: fist.Points[:]},
		{Label: "B", Landmarks: palm.Points[:]},
	})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	return c
}

type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) Notify(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func (r *recorder) commits() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, u := range r.updates {
		if u.Committed != "" {
			out = append(out, u.Committed)
		}
	}
	return out
}

// stepSource hands out observations one at a time from a channel. When stale
// is set, Next returns it instead of an error once ctx is cancelled, like a
// camera whose last frame arrives after stop.
type stepSource struct {
	frames chan capture.Observation
	stale  *capture.Observation
	starts atomic.Int32
	stops  atomic.Int32
}

func newStepSource() *stepSource {
	return &stepSource{frames: make(chan capture.Observation)}
}

func (s *stepSource) Start(ctx context.Context) error {
	s.starts.Add(1)
	return nil
}

func (s *stepSource) Next(ctx context.Context) (capture.Observation, error) {
	select {
	case o := <-s.frames:
		return o, nil
	case <-ctx.Done():
		if s.stale != nil {
			return *s.stale, nil
		}
		return capture.Observation{}, ctx.Err()
	}
}

func (s *stepSource) Stop() error {
	s.stops.Add(1)
	return nil
}

func newTestSession(t *testing.T, src LandmarkSource, c gesture.Classifier, rec *recorder) *Session {
	t.Helper()
	alphabet := testAlphabet(t)
	if c == nil {
		c = testClassifier(t, alphabet)
	}
	s, err := NewSession(SessionConfig{
		Source:     src,
		Classifier: c,
		Alphabet:   alphabet,
		Sink:       rec,
		Logger:     logger.Nop(),
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s
}

func TestNewSession_Validation(t *testing.T) {
	alphabet := testAlphabet(t)
	src := capture.NewReplaySource(nil, 0)

	if _, err := NewSession(SessionConfig{Alphabet: alphabet}); err == nil {
		t.Error("expected error without source")
	}
	if _, err := NewSession(SessionConfig{Source: src}); err == nil {
		t.Error("expected error without alphabet")
	}

	s, err := NewSession(SessionConfig{Source: src, Alphabet: alphabet})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if s.ID() == "" {
		t.Error("session should have an ID")
	}
	snap := s.Snapshot()
	if snap.Label != gesture.Sentinel || snap.Display != "--" || snap.Running {
		t.Errorf("initial snapshot = %+v", snap)
	}
}

func TestSession_HoldCommitsOnce(t *testing.T) {
	frames := capture.Hold(nil, fistHand(), base, 0, ms(2500), ms(100))
	src := capture.NewReplaySource(frames, 0)
	rec := &recorder{}
	s := newTestSession(t, src, nil, rec)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Wait()

	if got := rec.commits(); len(got) != 1 || got[0] != "A" {
		t.Errorf("commits = %v, want [A]", got)
	}
	snap := s.Snapshot()
	if snap.Sentence != "A" {
		t.Errorf("sentence = %q, want A", snap.Sentence)
	}
	if snap.Running {
		t.Error("session should not be running after the source is exhausted")
	}
	if src.Stops() != 1 {
		t.Errorf("source stops = %d, want 1", src.Stops())
	}
}

func TestSession_SwitchAndSpace(t *testing.T) {
	alphabet := testAlphabet(t)
	inner := testClassifier(t, alphabet)
	palmIsSpace := gesture.ClassifierFunc(func(ctx context.Context, f gesture.FeatureVector) (gesture.Result, error) {
		r, err := inner.Classify(ctx, f)
		if err != nil {
			return r, err
		}
		if alphabet.At(r.Winner()) == "B" {
			return gesture.RawLabel(alphabet.Index("Space")), nil
		}
		return r, nil
	})

	var frames []capture.Observation
	frames = capture.Hold(frames, fistHand(), base, 0, ms(800), ms(100))
	frames = capture.Hold(frames, palmHand(), base, ms(900), ms(2500), ms(100))
	frames = capture.Hold(frames, nil, base, ms(2600), ms(2800), ms(100))
	frames = capture.Hold(frames, fistHand(), base, ms(2900), ms(4500), ms(100))

	rec := &recorder{}
	s := newTestSession(t, capture.NewReplaySource(frames, 0), palmIsSpace, rec)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Wait()

	if got := s.Snapshot().Sentence; got != " A" {
		t.Errorf("sentence = %q, want %q", got, " A")
	}
}

func TestSession_StartFailure(t *testing.T) {
	src := capture.NewReplaySource(nil, 0)
	src.SetStartError(capture.ErrCameraNotOpen)
	s := newTestSession(t, src, nil, &recorder{})

	err := s.Start(context.Background())
	if !errors.Is(err, capture.ErrCameraNotOpen) {
		t.Fatalf("Start() error = %v, want ErrCameraNotOpen", err)
	}
	if s.Running() {
		t.Error("session should stay stopped after a failed start")
	}
	if src.Stops() != 0 {
		t.Errorf("source stops = %d, want 0", src.Stops())
	}

	// Stop after a failed start is a no-op.
	s.Stop()

	src.SetStartError(nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() after recovery error = %v", err)
	}
	s.Stop()
}

func TestSession_StopIdempotent(t *testing.T) {
	src := newStepSource()
	s := newTestSession(t, src, nil, &recorder{})

	s.Stop()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if got := src.starts.Load(); got != 1 {
		t.Errorf("source starts = %d, want 1", got)
	}
	if !s.Running() {
		t.Fatal("session should be running")
	}

	s.Stop()
	s.Stop()

	if s.Running() {
		t.Error("session should be stopped")
	}
	if got := src.stops.Load(); got != 1 {
		t.Errorf("source stops = %d, want 1", got)
	}
}

func TestSession_StopPreservesState(t *testing.T) {
	src := newStepSource()
	stale := capture.Observation{Hand: fistHand(), At: base.Add(ms(5000))}
	src.stale = &stale
	rec := &recorder{}
	s := newTestSession(t, src, nil, rec)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for _, o := range capture.Hold(nil, fistHand(), base, 0, ms(1400), ms(100)) {
		src.frames <- o
	}

	s.Stop()
	after := rec.count()

	if got := rec.commits(); len(got) != 0 {
		t.Errorf("commits = %v, want none; the frame read during stop must be dropped", got)
	}

	snap := s.Snapshot()
	if snap.Label != "A" || snap.Progress <= 0 {
		t.Errorf("snapshot after stop = label %q progress %.1f, want tracking A", snap.Label, snap.Progress)
	}
	if snap.Running {
		t.Error("snapshot should report stopped")
	}

	time.Sleep(20 * time.Millisecond)
	if rec.count() != after {
		t.Error("observer notified after Stop returned")
	}
}

func TestSession_RestartDoesNotResumeHold(t *testing.T) {
	src := newStepSource()
	rec := &recorder{}
	s := newTestSession(t, src, nil, rec)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for _, o := range capture.Hold(nil, fistHand(), base, 0, ms(1000), ms(100)) {
		src.frames <- o
	}
	s.Stop()

	restarted := rec.count()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	src.frames <- capture.Observation{Hand: fistHand(), At: base.Add(ms(10000))}
	src.frames <- capture.Observation{Hand: fistHand(), At: base.Add(ms(10100))}
	src.frames <- capture.Observation{Hand: palmHand(), At: base.Add(ms(10200))}
	s.Stop()

	if got := rec.commits(); len(got) != 0 {
		t.Fatalf("commits = %v, want none after a one-frame hold", got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	after := rec.updates[restarted:]
	if len(after) == 0 {
		t.Fatal("no updates after restart")
	}
	if !after[0].Running || after[0].Progress != 0 || after[0].Label == "A" {
		t.Fatalf("first update after restart = %+v, want running with no tracked label", after[0])
	}
	for _, u := range after {
		if u.Label == "A" && u.Progress >= 50 {
			t.Errorf("progress after restart = %.1f at frame %d, want the hold measured from the restart", u.Progress, u.Frame)
		}
	}
}

// drainedSource runs out on its first read.
type drainedSource struct {
	starts atomic.Int32
}

func (d *drainedSource) Start(ctx context.Context) error {
	d.starts.Add(1)
	return nil
}

func (d *drainedSource) Next(ctx context.Context) (capture.Observation, error) {
	return capture.Observation{}, capture.ErrSourceExhausted
}

func (d *drainedSource) Stop() error { return nil }

func TestSession_RestartOrdersUpdates(t *testing.T) {
	src := &drainedSource{}
	rec := &recorder{}
	s := newTestSession(t, src, nil, rec)

	const rounds = 50
	deadline := time.Now().Add(5 * time.Second)
	for round := int32(1); round <= rounds; round++ {
		// Start is a no-op until the previous run has fully shut down.
		for src.starts.Load() < round {
			if time.Now().After(deadline) {
				t.Fatalf("round %d: session never restarted", round)
			}
			if err := s.Start(context.Background()); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
		}
	}
	s.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.updates) != 2*rounds {
		t.Fatalf("got %d updates, want %d", len(rec.updates), 2*rounds)
	}
	for i, u := range rec.updates {
		if want := i%2 == 0; u.Running != want {
			t.Fatalf("update %d Running = %v, want %v; a run's final update was overtaken", i, u.Running, want)
		}
	}
}

func TestSession_ClassifierFailuresAreSentinel(t *testing.T) {
	failing := gesture.ClassifierFunc(func(ctx context.Context, f gesture.FeatureVector) (gesture.Result, error) {
		return gesture.Result{}, errors.New("model crashed")
	})
	slow := gesture.ClassifierFunc(func(ctx context.Context, f gesture.FeatureVector) (gesture.Result, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return gesture.RawLabel(0), nil
		case <-ctx.Done():
			return gesture.Result{}, ctx.Err()
		}
	})

	tests := []struct {
		name       string
		classifier gesture.Classifier
		budget     time.Duration
	}{
		{name: "error", classifier: failing},
		{name: "budget", classifier: slow, budget: 5 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := capture.Hold(nil, fistHand(), base, 0, ms(2000), ms(250))
			src := capture.NewReplaySource(frames, 0)
			rec := &recorder{}
			s, err := NewSession(SessionConfig{
				Source:      src,
				Classifier:  tt.classifier,
				Alphabet:    testAlphabet(t),
				FrameBudget: tt.budget,
				Sink:        rec,
				Logger:      logger.Nop(),
			})
			if err != nil {
				t.Fatalf("NewSession() error = %v", err)
			}

			if err := s.Start(context.Background()); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			s.Wait()

			if got := rec.commits(); len(got) != 0 {
				t.Errorf("commits = %v, want none", got)
			}
			snap := s.Snapshot()
			if snap.Label != gesture.Sentinel || snap.Progress != 0 {
				t.Errorf("snapshot = label %q progress %.1f, want sentinel", snap.Label, snap.Progress)
			}
			if snap.Frame != uint64(len(frames)) {
				t.Errorf("frames processed = %d, want %d", snap.Frame, len(frames))
			}
		})
	}
}

func TestSession_NoClassifier(t *testing.T) {
	frames := capture.Hold(nil, fistHand(), base, 0, ms(2000), ms(100))
	rec := &recorder{}
	s, err := NewSession(SessionConfig{
		Source:   capture.NewReplaySource(frames, 0),
		Alphabet: testAlphabet(t),
		Sink:     rec,
		Logger:   logger.Nop(),
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Wait()
	if got := rec.commits(); len(got) != 0 {
		t.Errorf("commits = %v, want none", got)
	}

	s.SetClassifier(testClassifier(t, s.Alphabet()))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	s.Wait()
	if got := s.Snapshot().Sentence; got != "A" {
		t.Errorf("sentence after loading classifier = %q, want A", got)
	}
}

func TestSession_ClearSentence(t *testing.T) {
	t.Run("stopped", func(t *testing.T) {
		frames := capture.Hold(nil, fistHand(), base, 0, ms(1600), ms(100))
		s := newTestSession(t, capture.NewReplaySource(frames, 0), nil, &recorder{})
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		s.Wait()
		if s.Snapshot().Sentence != "A" {
			t.Fatalf("sentence = %q, want A", s.Snapshot().Sentence)
		}

		s.ClearSentence()
		s.ClearSentence()
		if got := s.Snapshot().Sentence; got != "" {
			t.Errorf("sentence after clear = %q, want empty", got)
		}
	})

	t.Run("running", func(t *testing.T) {
		src := newStepSource()
		s := newTestSession(t, src, nil, &recorder{})
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		defer s.Stop()

		for _, o := range capture.Hold(nil, fistHand(), base, 0, ms(1500), ms(100)) {
			src.frames <- o
		}

		cleared := make(chan struct{})
		go func() {
			s.ClearSentence()
			close(cleared)
		}()

		at := base.Add(ms(1600))
	feed:
		for {
			select {
			case <-cleared:
				break feed
			case src.frames <- capture.Observation{At: at}:
				at = at.Add(ms(100))
			}
		}

		if got := s.Snapshot().Sentence; got != "" {
			t.Errorf("sentence after clear = %q, want empty", got)
		}
		if !s.Running() {
			t.Error("clearing should not stop the session")
		}
	})

	t.Run("never started", func(t *testing.T) {
		s := newTestSession(t, newStepSource(), nil, &recorder{})
		s.ClearSentence()
		if got := s.Snapshot().Sentence; got != "" {
			t.Errorf("sentence = %q, want empty", got)
		}
	})
}

func TestSession_PacedReplay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping paced replay")
	}

	// Real time stamps: the replay is paced at ~50 fps for two seconds.
	now := time.Now()
	frames := capture.Hold(nil, fistHand(), now, 0, ms(2000), ms(20))
	rec := &recorder{}
	s := newTestSession(t, capture.NewReplaySource(frames, 20*time.Millisecond), nil, rec)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Wait()

	if got := strings.Join(rec.commits(), ""); got != "A" {
		t.Errorf("commits = %q, want A", got)
	}
}
