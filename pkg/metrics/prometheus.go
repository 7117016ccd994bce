package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	gateChecks       *prometheus.CounterVec
	sourceUpdates    *prometheus.CounterVec
	fieldResolutions *prometheus.CounterVec
	wakeEvents       *prometheus.CounterVec
	backendStates    *prometheus.CounterVec
	navigations      *prometheus.CounterVec
	historyRows      prometheus.Counter
	errorsTotal      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		gateChecks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsight_gate_checks_total",
				Help: "Health gate check outcomes",
			},
			[]string{"outcome"},
		),
		sourceUpdates: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsight_source_updates_total",
				Help: "Updates received per metrics source",
			},
			[]string{"source"},
		),
		fieldResolutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsight_field_resolutions_total",
				Help: "Merge wins per snapshot field and source",
			},
			[]string{"field", "source"},
		),
		wakeEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsight_wake_events_total",
				Help: "Wake word detections per backend and outcome",
			},
			[]string{"backend", "outcome"},
		),
		backendStates: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsight_voice_backend_transitions_total",
				Help: "Voice backend state transitions",
			},
			[]string{"backend", "state"},
		),
		navigations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsight_navigations_total",
				Help: "Navigation requests per delivery outcome",
			},
			[]string{"outcome"},
		),
		historyRows: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "finsight_history_rows_written_total",
				Help: "Snapshot history rows written",
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsight_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finsight_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordGateCheck records one health gate check outcome.
func (r *Recorder) RecordGateCheck(outcome string) {
	r.gateChecks.WithLabelValues(outcome).Inc()
}

// RecordSourceUpdate records an update arriving from a source.
func (r *Recorder) RecordSourceUpdate(source string) {
	r.sourceUpdates.WithLabelValues(source).Inc()
}

// RecordFieldSource records which source won a field in the merge.
func (r *Recorder) RecordFieldSource(field, source string) {
	r.fieldResolutions.WithLabelValues(field, source).Inc()
}

// RecordWake records a wake word detection outcome.
func (r *Recorder) RecordWake(backend, outcome string) {
	r.wakeEvents.WithLabelValues(backend, outcome).Inc()
}

// RecordBackendState records a voice backend state transition.
func (r *Recorder) RecordBackendState(backend, state string) {
	r.backendStates.WithLabelValues(backend, state).Inc()
}

// RecordNavigation records a navigation delivery outcome.
func (r *Recorder) RecordNavigation(outcome string) {
	r.navigations.WithLabelValues(outcome).Inc()
}

// RecordHistoryWrite records rows written to snapshot history.
func (r *Recorder) RecordHistoryWrite(count int) {
	r.historyRows.Add(float64(count))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
