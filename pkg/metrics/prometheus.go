package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// defaultLatencyBuckets covers classifier calls from sub-millisecond models
// up to the per-frame budget.
var defaultLatencyBuckets = []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500}

// Manager owns the pipeline metrics.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	framesProcessed    prometheus.Counter
	framesWithoutHand  prometheus.Counter
	classifierFailures *prometheus.CounterVec
	classifyLatency    prometheus.Histogram
	commits            *prometheus.CounterVec
	progress           prometheus.Gauge
	sessionRunning     prometheus.Gauge
	subscribersDropped prometheus.Counter
	pluginCalls        *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "verovision",
		subsystem:        "pipeline",
		histogramBuckets: defaultLatencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.framesProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_processed_total",
		Help:      "Total number of frames run through the pipeline",
	})

	m.framesWithoutHand = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_without_hand_total",
		Help:      "Frames where the landmark source reported no hand",
	})

	m.classifierFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "classifier_failures_total",
		Help:      "Frames skipped because the classifier failed or ran over budget",
	}, []string{"reason"})

	m.classifyLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "classify_latency_milliseconds",
		Help:      "Classifier call latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.commits = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commits_total",
		Help:      "Characters committed to the sentence by label",
	}, []string{"label"})

	m.progress = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "confirmation_progress_percent",
		Help:      "Confirmation progress of the currently tracked label",
	})

	m.sessionRunning = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "session_running",
		Help:      "1 while the frame loop is running",
	})

	m.subscribersDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "observer_updates_dropped_total",
		Help:      "Updates dropped because an observer was not keeping up",
	})

	m.pluginCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "plugin_calls_total",
		Help:      "Output plugin invocations by plugin and outcome",
	}, []string{"plugin", "outcome"})
}

// RecordFrameProcessed increments the processed frames counter.
func RecordFrameProcessed() {
	globalManager.framesProcessed.Inc()
}

// RecordFrameWithoutHand increments the no-hand frames counter.
func RecordFrameWithoutHand() {
	globalManager.framesWithoutHand.Inc()
}

// RecordClassifierFailure counts a soft classifier failure ("error" or "budget").
func RecordClassifierFailure(reason string) {
	globalManager.classifierFailures.WithLabelValues(reason).Inc()
}

// RecordClassifyLatency records a classifier call latency in milliseconds.
func RecordClassifyLatency(latencyMs float64) {
	globalManager.classifyLatency.Observe(latencyMs)
}

// RecordCommit counts a committed character for label.
func RecordCommit(label string) {
	globalManager.commits.WithLabelValues(label).Inc()
}

// UpdateProgress sets the current confirmation progress.
func UpdateProgress(percent float64) {
	globalManager.progress.Set(percent)
}

// UpdateSessionRunning flips the session running gauge.
func UpdateSessionRunning(running bool) {
	if running {
		globalManager.sessionRunning.Set(1)
		return
	}
	globalManager.sessionRunning.Set(0)
}

// RecordObserverDrop counts an update dropped for a slow observer.
func RecordObserverDrop() {
	globalManager.subscribersDropped.Inc()
}

// RecordPluginCall counts an output plugin run. Outcome is "ok", "rejected",
// "timeout" or "error".
func RecordPluginCall(plugin, outcome string) {
	globalManager.pluginCalls.WithLabelValues(plugin, outcome).Inc()
}

// GetRegistry returns the registry backing the package-level helpers.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
