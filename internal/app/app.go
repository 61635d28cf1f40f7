// Package app wires the recognition session to its camera, classifier,
// storage and output plugins.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mdobak/go-xerrors"

	"github.com/ayusman/verovision/internal/capture"
	"github.com/ayusman/verovision/internal/config"
	"github.com/ayusman/verovision/internal/detector"
	"github.com/ayusman/verovision/internal/gesture"
	"github.com/ayusman/verovision/internal/plugin"
	"github.com/ayusman/verovision/internal/store"
	"github.com/ayusman/verovision/pkg/logger"
)

// PrototypeClassifierName selects the classifier trained from stored samples.
const PrototypeClassifierName = "prototype"

// PluginTimeout bounds one output plugin invocation.
const PluginTimeout = 5 * time.Second

// ErrInvalidSample is returned when a recorded hand cannot be stored.
var ErrInvalidSample = errors.New("invalid sample")

// Config holds the dependencies of an App.
type Config struct {
	Settings *config.Config
	Store    *store.Store
	// Source overrides the camera. Used for replays and tests.
	Source LandmarkSource
	// Detector overrides the MediaPipe detector when Source is nil.
	Detector detector.Detector
}

// App is the main application: it owns the session, the classifier that
// feeds it, and the subscribers that consume its updates.
type App struct {
	settings  *config.Config
	store     *store.Store
	log       logger.Logger
	alphabet  *gesture.Alphabet
	extractor *gesture.Extractor
	camera    *capture.CameraSource
	hub       *Hub
	session   *Session

	pluginMgr  *plugin.Manager
	pluginExec *plugin.Executor

	mu             sync.Mutex
	classifierName string
	closeClassify  func() error
	stopTyper      func()
}

// New creates an App. The session starts stopped and without a classifier;
// call LoadClassifier before Start.
func New(cfg Config) (*App, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.New()
	}
	if settings.LandmarkCount != detector.NumLandmarks {
		return nil, fmt.Errorf("landmark_count %d is not supported by the detector (%d)",
			settings.LandmarkCount, detector.NumLandmarks)
	}

	alphabet, err := gesture.NewAlphabet(settings.Labels, settings.SpaceLabel)
	if err != nil {
		return nil, fmt.Errorf("build alphabet: %w", err)
	}

	a := &App{
		settings:   settings,
		store:      cfg.Store,
		log:        logger.Named("app"),
		alphabet:   alphabet,
		extractor:  gesture.NewExtractor(settings.LandmarkCount),
		hub:        NewHub(0),
		pluginMgr:  plugin.NewManager(settings.PluginDir),
		pluginExec: plugin.NewExecutor(PluginTimeout),
	}

	source := cfg.Source
	if source == nil {
		a.camera = capture.NewCameraSource(
			capture.NewCamera(capture.DeviceConfig{
				ID:     settings.CameraID,
				FPS:    settings.CameraFPS,
				Mirror: settings.Mirror,
			}),
			a.newDetector(cfg.Detector),
			capture.WithPreview(settings.Preview),
		)
		source = a.camera
	}

	a.session, err = NewSession(SessionConfig{
		Source:      source,
		Alphabet:    alphabet,
		Extractor:   a.extractor,
		Sustain:     settings.Sustain(),
		FrameBudget: settings.FrameBudget(),
		Sink:        a.hub,
	})
	if err != nil {
		return nil, err
	}

	return a, nil
}

// newDetector tries MediaPipe first and falls back to the mock detector.
func (a *App) newDetector(override detector.Detector) detector.Detector {
	if override != nil {
		return override
	}

	dc := detector.DefaultConfig()
	if a.settings.MinConfidence > 0 {
		dc.MinConfidence = a.settings.MinConfidence
		dc.MinTrackingConf = a.settings.MinConfidence
	}
	mp, err := detector.NewMediaPipeDetector(dc)
	if err != nil {
		a.log.Warn(context.Background(), "MediaPipe not available, using mock detector", logger.Error(err))
		return detector.NewMockDetector()
	}
	a.log.Info(context.Background(), "using MediaPipe hand detection")
	return mp
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// LoadClassifier installs the configured classifier. The prototype
// classifier is trained from stored samples; with no samples yet the session
// runs without a classifier and every frame is treated as no hand.
func (a *App) LoadClassifier(ctx context.Context) error {
	name := a.settings.Classifier
	if name == "" || name == PrototypeClassifierName {
		_, err := a.Retrain(ctx)
		if errors.Is(err, gesture.ErrNoSamples) {
			a.log.Warn(ctx, "no training samples recorded, classifier not loaded")
			return nil
		}
		return err
	}

	p, err := a.pluginMgr.GetKind(name, plugin.KindClassifier)
	if err != nil {
		return fmt.Errorf("classifier %q: %w", name, err)
	}
	c, err := plugin.NewClassifier(p, a.alphabet.Len())
	if err != nil {
		return fmt.Errorf("classifier %q: %w", name, err)
	}
	a.install(name, c, c.Close)
	return nil
}

// Retrain rebuilds the prototype classifier from every stored sample and
// installs it. It returns the number of labels with a prototype.
func (a *App) Retrain(ctx context.Context) (int, error) {
	if a.store == nil {
		return 0, gesture.ErrNoSamples
	}

	rows, err := a.store.Samples().List()
	if err != nil {
		return 0, fmt.Errorf("load samples: %w", err)
	}

	samples := make([]gesture.Sample, 0, len(rows))
	for _, row := range rows {
		label := gesture.Label(row.Label)
		if !a.alphabet.Contains(label) {
			a.log.Warn(ctx, "skipping sample outside the alphabet", logger.String("label", row.Label))
			continue
		}
		var points []detector.Point3D
		if err := json.Unmarshal(row.Landmarks, &points); err != nil {
			a.log.Warn(ctx, "skipping unreadable sample",
				logger.String("id", row.ID), logger.Error(xerrors.New(err)))
			continue
		}
		if len(points) != a.extractor.LandmarkCount() {
			a.log.Warn(ctx, "skipping sample with wrong landmark count",
				logger.String("id", row.ID), logger.Int("landmarks", len(points)))
			continue
		}
		samples = append(samples, gesture.Sample{Label: label, Landmarks: points})
	}

	c, err := gesture.NewTrainer(a.extractor, a.alphabet).Train(samples)
	if err != nil {
		return 0, err
	}

	a.install(PrototypeClassifierName, c, nil)
	a.log.Info(ctx, "prototype classifier trained",
		logger.Int("samples", len(samples)),
		logger.Int("labels", len(c.Prototypes())))
	return len(c.Prototypes()), nil
}

// install swaps the session classifier and closes the previous one.
func (a *App) install(name string, c gesture.Classifier, closeFn func() error) {
	a.mu.Lock()
	prev := a.closeClassify
	a.classifierName = name
	a.closeClassify = closeFn
	a.mu.Unlock()

	a.session.SetClassifier(c)
	if prev != nil {
		if err := prev(); err != nil {
			a.log.Warn(context.Background(), "close previous classifier", logger.Error(err))
		}
	}
}

// ClassifierName returns the name of the installed classifier, or "" when
// none is loaded.
func (a *App) ClassifierName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.classifierName
}

// AddSamples validates and stores recorded hands for a label.
func (a *App) AddSamples(label string, hands [][]detector.Point3D) ([]string, error) {
	if a.store == nil {
		return nil, errors.New("no sample store configured")
	}
	if !a.alphabet.Contains(gesture.Label(label)) {
		return nil, fmt.Errorf("%w: label %q is not in the alphabet", ErrInvalidSample, label)
	}
	if len(hands) == 0 {
		return nil, fmt.Errorf("%w: at least one sample is required", ErrInvalidSample)
	}

	raw := make([]json.RawMessage, 0, len(hands))
	for i, h := range hands {
		if len(h) != a.extractor.LandmarkCount() {
			return nil, fmt.Errorf("%w: sample %d has %d landmarks, expected %d",
				ErrInvalidSample, i, len(h), a.extractor.LandmarkCount())
		}
		data, err := json.Marshal(h)
		if err != nil {
			return nil, err
		}
		raw = append(raw, data)
	}

	return a.store.Samples().Create(label, raw)
}

// StartTyper forwards every commit to the configured output plugin. It does
// nothing when type_commits is empty.
func (a *App) StartTyper(ctx context.Context) error {
	name := a.settings.TypeCommits
	if name == "" {
		return nil
	}

	p, err := a.pluginMgr.GetKind(name, plugin.KindOutput)
	if err != nil {
		return fmt.Errorf("output plugin %q: %w", name, err)
	}

	updates, unsubscribe := a.hub.SubscribeCommits()
	tctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewCommitTyper(p, a.pluginExec).Run(tctx, updates)
	}()

	a.mu.Lock()
	a.stopTyper = func() {
		cancel()
		unsubscribe()
		<-done
	}
	a.mu.Unlock()

	a.log.Info(ctx, "typing commits", logger.String("plugin", name))
	return nil
}

// Start starts the recognition session.
func (a *App) Start(ctx context.Context) error {
	return a.session.Start(ctx)
}

// Stop stops the recognition session and releases the camera.
func (a *App) Stop() {
	a.session.Stop()
}

// ClearSentence empties the accumulated sentence.
func (a *App) ClearSentence() {
	a.session.ClearSentence()
}

// Snapshot returns the latest session update.
func (a *App) Snapshot() Update {
	return a.session.Snapshot()
}

// Preview returns the most recent JPEG camera frame, or nil.
func (a *App) Preview() []byte {
	if a.camera == nil {
		return nil
	}
	return a.camera.Preview()
}

// Session returns the recognition session.
func (a *App) Session() *Session {
	return a.session
}

// Hub returns the update fan-out.
func (a *App) Hub() *Hub {
	return a.hub
}

// Alphabet returns the configured label set.
func (a *App) Alphabet() *gesture.Alphabet {
	return a.alphabet
}

// Store returns the sample store, which may be nil.
func (a *App) Store() *store.Store {
	return a.store
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Close stops the session and the typer and shuts down the classifier.
func (a *App) Close() error {
	a.session.Stop()

	a.mu.Lock()
	stopTyper, closeClassify := a.stopTyper, a.closeClassify
	a.stopTyper, a.closeClassify = nil, nil
	a.mu.Unlock()

	if stopTyper != nil {
		stopTyper()
	}
	if closeClassify != nil {
		return closeClassify()
	}
	return nil
}
