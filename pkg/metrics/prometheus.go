// Package metrics provides Prometheus metrics for the rally session services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for rally.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Schedule generation
	roundsGenerated     *prometheus.CounterVec
	generationFallbacks *prometheus.CounterVec
	shuffleAttempts     prometheus.Histogram
	byesAssigned        prometheus.Counter

	// Arrangement
	swaps   *prometheus.CounterVec
	renames prometheus.Counter

	// Score entry
	keystrokes      *prometheus.CounterVec
	autoFills       prometheus.Counter
	matchesComplete prometheus.Counter

	// Sync engine
	pushes          prometheus.Counter
	pushErrors      prometheus.Counter
	polls           prometheus.Counter
	pollErrors      prometheus.Counter
	remoteApplied   prometheus.Counter
	protectedSkips  prometheus.Counter
	sessionsCreated prometheus.Counter
	sessionsJoined  prometheus.Counter
	matchesFinished prometheus.Counter
	connectedCount  prometheus.Gauge
	syncLatency     *prometheus.HistogramVec

	// Outbox
	outboxSize     prometheus.Gauge
	outboxCapacity prometheus.Gauge
	outboxDropped  *prometheus.CounterVec

	// Store server
	activeSessions prometheus.Gauge
	storeUpserts   prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rally",
		subsystem:        "session",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.roundsGenerated = m.counterVec("rounds_generated_total", "Rounds generated by round type", "round_type")
	m.generationFallbacks = m.counterVec("generation_fallbacks_total",
		"Rounds accepted through the bounded-retry fallback (partner repeats possible)", "round_type")
	m.shuffleAttempts = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "shuffle_attempts",
		Help:      "Shuffles needed to accept a pool",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 200},
	})
	m.byesAssigned = m.counter("byes_assigned_total", "Players sitting out a round")

	m.swaps = m.counterVec("swaps_total", "Slot taps by outcome", "outcome")
	m.renames = m.counter("renames_total", "Committed player renames")

	m.keystrokes = m.counterVec("keystrokes_total", "Score field entries by outcome", "outcome")
	m.autoFills = m.counter("auto_fills_total", "Sibling fields predicted and filled with the winning score")
	m.matchesComplete = m.counter("matches_complete_total", "Boards whose every field was entered")

	m.pushes = m.counter("pushes_total", "Score upserts sent to the remote store")
	m.pushErrors = m.counter("push_errors_total", "Score upserts that failed")
	m.polls = m.counter("polls_total", "Poll cycles run")
	m.pollErrors = m.counter("poll_errors_total", "Poll cycles that failed")
	m.remoteApplied = m.counter("remote_fields_applied_total", "Score fields overwritten by collaborator updates")
	m.protectedSkips = m.counter("protected_skips_total", "Collaborator updates skipped due to a local grace window")
	m.sessionsCreated = m.counter("sessions_created_total", "Live sessions created")
	m.sessionsJoined = m.counter("sessions_joined_total", "Live sessions joined")
	m.matchesFinished = m.counter("matches_finished_total", "Sessions observed as finished")
	m.connectedCount = m.gauge("connected_participants", "Participants connected to the current session")
	m.syncLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sync_latency_milliseconds",
		Help:      "Remote store call latency by operation",
		Buckets:   m.histogramBuckets,
	}, []string{"operation"})

	m.outboxSize = m.gauge("outbox_size", "Pending upserts in the outbox")
	m.outboxCapacity = m.gauge("outbox_capacity", "Outbox capacity")
	m.outboxDropped = m.counterVec("outbox_dropped_total", "Upserts the outbox refused", "reason")

	m.activeSessions = m.gauge("store_active_sessions", "Sessions held by the store")
	m.storeUpserts = m.counter("store_upserts_total", "Upserts accepted by the store")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

func on() bool { return globalManager.enabled }

// Schedule generation.

// RecordRoundGenerated counts one generated round of roundType.
func RecordRoundGenerated(roundType string, fallback bool) {
	if !on() {
		return
	}
	globalManager.roundsGenerated.WithLabelValues(roundType).Inc()
	if fallback {
		globalManager.generationFallbacks.WithLabelValues(roundType).Inc()
	}
}

// RecordShuffleAttempts records how many shuffles a pool needed.
func RecordShuffleAttempts(n int) {
	if on() {
		globalManager.shuffleAttempts.Observe(float64(n))
	}
}

// RecordByes adds n sitting-out players.
func RecordByes(n int) {
	if on() && n > 0 {
		globalManager.byesAssigned.Add(float64(n))
	}
}

// Arrangement.

// RecordSwap counts a slot tap by outcome.
func RecordSwap(outcome string) {
	if on() {
		globalManager.swaps.WithLabelValues(outcome).Inc()
	}
}

// RecordRename counts a committed rename.
func RecordRename() {
	if on() {
		globalManager.renames.Inc()
	}
}

// Score entry.

// RecordKeystroke counts a score entry by outcome.
func RecordKeystroke(outcome string) {
	if on() {
		globalManager.keystrokes.WithLabelValues(outcome).Inc()
	}
}

// RecordAutoFill counts a predicted sibling score.
func RecordAutoFill() {
	if on() {
		globalManager.autoFills.Inc()
	}
}

// RecordMatchComplete counts a fully entered board.
func RecordMatchComplete() {
	if on() {
		globalManager.matchesComplete.Inc()
	}
}

// Sync engine.

// RecordPush counts a score upsert attempt.
func RecordPush() {
	if on() {
		globalManager.pushes.Inc()
	}
}

// RecordPushError counts a failed score upsert.
func RecordPushError() {
	if on() {
		globalManager.pushErrors.Inc()
		globalManager.errorsByComponent.WithLabelValues("outbox", "push").Inc()
	}
}

// RecordPoll counts a poll cycle.
func RecordPoll() {
	if on() {
		globalManager.polls.Inc()
	}
}

// RecordPollError counts a failed poll cycle.
func RecordPollError() {
	if on() {
		globalManager.pollErrors.Inc()
		globalManager.errorsByComponent.WithLabelValues("collab", "poll").Inc()
	}
}

// RecordRemoteApplied adds n fields overwritten from collaborators.
func RecordRemoteApplied(n int) {
	if on() && n > 0 {
		globalManager.remoteApplied.Add(float64(n))
	}
}

// RecordProtectedSkip counts a collaborator update held back by the grace window.
func RecordProtectedSkip() {
	if on() {
		globalManager.protectedSkips.Inc()
	}
}

// RecordSessionCreated counts a created session.
func RecordSessionCreated() {
	if on() {
		globalManager.sessionsCreated.Inc()
	}
}

// RecordSessionJoined counts a joined session.
func RecordSessionJoined() {
	if on() {
		globalManager.sessionsJoined.Inc()
	}
}

// RecordMatchFinished counts a session observed as finished.
func RecordMatchFinished() {
	if on() {
		globalManager.matchesFinished.Inc()
	}
}

// UpdateConnectedCount sets the number of connected participants.
func UpdateConnectedCount(n int) {
	if on() {
		globalManager.connectedCount.Set(float64(n))
	}
}

// RecordSyncLatency records a remote call latency in milliseconds.
func RecordSyncLatency(operation string, latencyMs float64) {
	if on() {
		globalManager.syncLatency.WithLabelValues(operation).Observe(latencyMs)
	}
}

// Outbox.

// UpdateOutboxSize sets the number of pending upserts.
func UpdateOutboxSize(n int) {
	if on() {
		globalManager.outboxSize.Set(float64(n))
	}
}

// UpdateOutboxCapacity sets the outbox capacity.
func UpdateOutboxCapacity(n int) {
	if on() {
		globalManager.outboxCapacity.Set(float64(n))
	}
}

// RecordOutboxDropped counts an upsert refused by the outbox.
func RecordOutboxDropped(reason string) {
	if on() {
		globalManager.outboxDropped.WithLabelValues(reason).Inc()
	}
}

// Store server.

// UpdateActiveSessions sets the number of sessions held by the store.
func UpdateActiveSessions(n int) {
	if on() {
		globalManager.activeSessions.Set(float64(n))
	}
}

// RecordStoreUpsert counts an accepted upsert.
func RecordStoreUpsert() {
	if on() {
		globalManager.storeUpserts.Inc()
	}
}

// HTTP.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if on() {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if on() {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if on() {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
