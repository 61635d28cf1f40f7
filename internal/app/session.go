package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"

	"github.com/ayusman/verovision/internal/capture"
	"github.com/ayusman/verovision/internal/detector"
	"github.com/ayusman/verovision/internal/gesture"
	"github.com/ayusman/verovision/pkg/logger"
	"github.com/ayusman/verovision/pkg/metrics"
)

// maxSourceErrors is how many consecutive source failures end the loop.
const maxSourceErrors = 30

var (
	// ErrNoClassifier is the per-frame failure while no classifier is loaded.
	ErrNoClassifier = errors.New("no classifier loaded")
	// ErrFrameBudget is the per-frame failure when classification runs too long.
	ErrFrameBudget = errors.New("classification exceeded frame budget")
	// ErrStoppedDuringStart is returned by Start when Stop won the race.
	ErrStoppedDuringStart = errors.New("session stopped while starting")
)

// LandmarkSource produces one observation per available frame.
type LandmarkSource interface {
	Start(ctx context.Context) error
	Next(ctx context.Context) (capture.Observation, error)
	Stop() error
}

// Update is what observers receive after every processed frame.
type Update struct {
	SessionID string        `json:"session_id"`
	Frame     uint64        `json:"frame"`
	Running   bool          `json:"running"`
	Label     gesture.Label `json:"label"`
	Display   string        `json:"display"`
	Progress  float64       `json:"progress"`
	Committed string        `json:"committed,omitempty"`
	Sentence  string        `json:"sentence"`
	At        time.Time     `json:"at"`
}

// Sink receives updates from the frame loop. Notify must not block.
type Sink interface {
	Notify(Update)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Update)

// Notify calls f.
func (f SinkFunc) Notify(u Update) { f(u) }

// SessionConfig wires a Session.
type SessionConfig struct {
	Source     LandmarkSource
	Classifier gesture.Classifier // may be set later with SetClassifier
	Alphabet   *gesture.Alphabet
	Extractor  *gesture.Extractor
	Sustain    time.Duration
	// FrameBudget bounds one classification. Zero disables the bound.
	FrameBudget time.Duration
	Sink        Sink
	Logger      logger.Logger
}

type sessionState int

const (
	stateStopped sessionState = iota
	stateStarting
	stateRunning
)

// Session is one recognition run: a single goroutine pulls observations from
// the source and pushes each frame through extraction, classification and
// confirmation, in frame order.
//
// The engine and the sentence belong to the loop while it runs. Other
// goroutines read them only through Snapshot and change them only through
// ClearSentence, which hands the request to the loop.
type Session struct {
	id        string
	source    LandmarkSource
	alphabet  *gesture.Alphabet
	extractor *gesture.Extractor
	budget    time.Duration
	sink      Sink
	log       logger.Logger

	engine   *gesture.Engine
	sentence gesture.Sentence
	frames   uint64

	mu         sync.Mutex
	state      sessionState
	cancel     context.CancelFunc
	done       chan struct{}
	clearCh    chan chan struct{}
	classifier gesture.Classifier

	snap atomic.Pointer[Update]
}

// NewSession creates a stopped session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Source == nil {
		return nil, errors.New("session requires a landmark source")
	}
	if cfg.Alphabet == nil {
		return nil, errors.New("session requires an alphabet")
	}
	if cfg.Extractor == nil {
		cfg.Extractor = gesture.NewExtractor(detector.NumLandmarks)
	}
	if cfg.Sink == nil {
		cfg.Sink = SinkFunc(func(Update) {})
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Named("session")
	}

	s := &Session{
		id:         uuid.NewString(),
		source:     cfg.Source,
		alphabet:   cfg.Alphabet,
		extractor:  cfg.Extractor,
		budget:     cfg.FrameBudget,
		sink:       cfg.Sink,
		log:        cfg.Logger,
		engine:     gesture.NewEngine(cfg.Alphabet, cfg.Sustain),
		classifier: cfg.Classifier,
		clearCh:    make(chan chan struct{}),
	}
	s.snap.Store(&Update{
		SessionID: s.id,
		Label:     gesture.Sentinel,
		Display:   cfg.Alphabet.Display(gesture.Sentinel),
	})
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Alphabet returns the label set the session resolves classifier output with.
func (s *Session) Alphabet() *gesture.Alphabet {
	return s.alphabet
}

// SetClassifier swaps the classifier. It takes effect from the next frame.
func (s *Session) SetClassifier(c gesture.Classifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classifier = c
}

func (s *Session) currentClassifier() gesture.Classifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.classifier
}

// Running reports whether the loop is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateRunning
}

// Snapshot returns the state published after the most recent frame.
func (s *Session) Snapshot() Update {
	return *s.snap.Load()
}

// Start acquires the landmark source and starts the loop. Acquisition
// failures are returned and leave the session stopped. Starting a session
// that is already starting or running does nothing.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateStopped {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.state = stateStarting
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	acqCtx, acqCancel := context.WithCancel(ctx)
	unwatch := context.AfterFunc(runCtx, acqCancel)
	err := s.source.Start(acqCtx)
	unwatch()
	acqCancel()

	if err == nil && runCtx.Err() != nil {
		if stopErr := s.source.Stop(); stopErr != nil {
			s.log.Warn(ctx, "release source", logger.Error(stopErr))
		}
		err = ErrStoppedDuringStart
	}
	if err != nil {
		s.mu.Lock()
		s.state = stateStopped
		s.mu.Unlock()
		cancel()
		close(done)
		if errors.Is(err, ErrStoppedDuringStart) {
			return err
		}
		return fmt.Errorf("start landmark source: %w", err)
	}

	// A hold from a previous run does not carry over the gap while stopped.
	s.engine.Reset()

	s.mu.Lock()
	s.state = stateRunning
	s.mu.Unlock()

	metrics.UpdateSessionRunning(true)
	s.log.Info(ctx, "session started", logger.String("session", s.id))
	st := s.engine.State()
	s.publish(st.Label, s.alphabet.Display(st.Label), st.Progress, "", time.Now(), true)

	go s.run(runCtx, done)
	return nil
}

// Stop ends the loop and releases the source before returning. Engine state
// and sentence are left as they were. Stop is safe to call repeatedly, before
// Start and while Start is still acquiring the source.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == stateStopped {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// Wait blocks until the current run ends, or returns at once when stopped.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// ClearSentence empties the sentence. While the loop runs the request is
// handed to it and applied between frames; ClearSentence returns once applied.
func (s *Session) ClearSentence() {
	s.mu.Lock()
	if s.state != stateRunning {
		s.clearLocked()
		s.mu.Unlock()
		return
	}
	clearCh, done := s.clearCh, s.done
	s.mu.Unlock()

	ack := make(chan struct{})
	select {
	case clearCh <- ack:
		<-ack
	case <-done:
		s.mu.Lock()
		s.clearLocked()
		s.mu.Unlock()
	}
}

// clearLocked clears the sentence while the loop is not running.
func (s *Session) clearLocked() {
	s.sentence.Clear()
	u := s.Snapshot()
	u.Sentence = ""
	u.Committed = ""
	s.snap.Store(&u)
	s.sink.Notify(u)
}

func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.release()

	failures := 0
	for {
		s.serviceClear()

		obs, err := s.source.Next(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, capture.ErrSourceExhausted) {
				s.log.Info(ctx, "landmark source exhausted", logger.String("session", s.id))
				return
			}
			failures++
			s.log.Warn(ctx, "read landmarks", logger.Error(xerrors.New(err)), logger.Int("consecutive", failures))
			if failures >= maxSourceErrors {
				s.log.Error(ctx, "landmark source keeps failing, stopping session", logger.Error(err))
				return
			}
			continue
		}
		failures = 0

		if !s.process(ctx, obs) {
			return
		}
	}
}

// serviceClear applies a pending ClearSentence request, if any.
func (s *Session) serviceClear() {
	select {
	case ack := <-s.clearCh:
		s.sentence.Clear()
		u := s.Snapshot()
		u.Sentence = ""
		u.Committed = ""
		s.snap.Store(&u)
		s.sink.Notify(u)
		close(ack)
	default:
	}
}

// process runs one observation through the pipeline. It returns false when
// the session was stopped mid-frame; the frame is then dropped.
func (s *Session) process(ctx context.Context, obs capture.Observation) bool {
	label := gesture.Sentinel

	if obs.HasHand() {
		features := s.extractor.ExtractHand(obs.Hand)

		started := time.Now()
		result, err := s.classify(ctx, features)
		if ctx.Err() != nil {
			return false
		}
		metrics.RecordClassifyLatency(float64(time.Since(started)) / float64(time.Millisecond))

		switch {
		case errors.Is(err, ErrNoClassifier):
			metrics.RecordClassifierFailure("unloaded")
			s.log.Debug(ctx, "frame skipped", logger.Error(err))
		case errors.Is(err, ErrFrameBudget):
			metrics.RecordClassifierFailure("budget")
			s.log.Warn(ctx, "classification skipped", logger.Error(err))
		case err != nil:
			metrics.RecordClassifierFailure("error")
			s.log.Warn(ctx, "classification failed", logger.Error(xerrors.New(err)))
		default:
			label = s.alphabet.At(result.Winner())
		}
	} else {
		metrics.RecordFrameWithoutHand()
	}

	at := obs.At
	if at.IsZero() {
		at = time.Now()
	}

	step := s.engine.Observe(label, at)
	if step.Committed != "" {
		s.sentence.Append(step.Committed)
		metrics.RecordCommit(string(step.Label))
		s.log.Info(ctx, "character committed",
			logger.String("label", string(step.Label)),
			logger.String("sentence", s.sentence.String()))
	}

	s.frames++
	metrics.RecordFrameProcessed()
	metrics.UpdateProgress(step.Progress)

	s.publish(step.Label, step.Display, step.Progress, step.Committed, at, true)
	return true
}

// classify runs the classifier within the frame budget. A late result is
// discarded.
func (s *Session) classify(ctx context.Context, features gesture.FeatureVector) (gesture.Result, error) {
	c := s.currentClassifier()
	if c == nil {
		return gesture.Result{}, ErrNoClassifier
	}
	if s.budget <= 0 {
		return c.Classify(ctx, features)
	}

	cctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	type outcome struct {
		result gesture.Result
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		r, err := c.Classify(cctx, features)
		ch <- outcome{r, err}
	}()

	select {
	case o := <-ch:
		if o.err != nil && cctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return gesture.Result{}, fmt.Errorf("%w (%s)", ErrFrameBudget, s.budget)
		}
		return o.result, o.err
	case <-cctx.Done():
		if ctx.Err() != nil {
			return gesture.Result{}, ctx.Err()
		}
		return gesture.Result{}, fmt.Errorf("%w (%s)", ErrFrameBudget, s.budget)
	}
}

func (s *Session) publish(label gesture.Label, display string, progress float64, committed string, at time.Time, running bool) {
	u := &Update{
		SessionID: s.id,
		Frame:     s.frames,
		Running:   running,
		Label:     label,
		Display:   display,
		Progress:  progress,
		Committed: committed,
		Sentence:  s.sentence.String(),
		At:        at,
	}
	s.snap.Store(u)
	s.sink.Notify(*u)
}

// release runs on the loop goroutine as it exits: the source is stopped
// before Stop returns and the final state is published. The session only
// reads as stopped once the final update is out, so a following Start cannot
// overtake it.
func (s *Session) release() {
	if err := s.source.Stop(); err != nil {
		s.log.Warn(context.Background(), "release source", logger.Error(err))
	}

	u := s.Snapshot()
	u.Running = false
	u.Committed = ""
	s.snap.Store(&u)
	metrics.UpdateSessionRunning(false)
	metrics.UpdateProgress(0)
	s.sink.Notify(u)
	s.log.Info(context.Background(), "session stopped",
		logger.String("session", s.id),
		logger.Int("frames", int(s.frames)))

	s.mu.Lock()
	s.state = stateStopped
	s.cancel()
	s.mu.Unlock()
}
