package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	obserrors "github.com/target/mmk-export/internal/observability/errors"
)

// PrometheusRecorder keeps export metrics in a Prometheus registry.
type PrometheusRecorder struct {
	submits       *prometheus.CounterVec
	submitLatency *prometheus.HistogramVec
	polls         *prometheus.CounterVec
	genericErrors prometheus.Gauge
	backendErrors prometheus.Gauge
	percent       prometheus.Gauge
	terminals     *prometheus.CounterVec
	durations     *prometheus.HistogramVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder registers the export collectors on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	f := promauto.With(reg)
	return &PrometheusRecorder{
		submits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mmk_export_submit_total",
			Help: "Export submission attempts",
		}, []string{"export_type", "multimedia", "result", "error_class"}),
		submitLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mmk_export_submit_duration_seconds",
			Help:    "Latency of export submission requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"multimedia", "result"}),
		polls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mmk_export_poll_total",
			Help: "Status poll responses by outcome",
		}, []string{"outcome"}),
		genericErrors: f.NewGauge(prometheus.GaugeOpts{
			Name: "mmk_export_poll_generic_errors",
			Help: "Consecutive generic poll errors of the active job",
		}),
		backendErrors: f.NewGauge(prometheus.GaugeOpts{
			Name: "mmk_export_poll_backend_errors",
			Help: "Consecutive backend-unavailable polls of the active job",
		}),
		percent: f.NewGauge(prometheus.GaugeOpts{
			Name: "mmk_export_progress_percent",
			Help: "Progress percentage of the active job",
		}),
		terminals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mmk_export_terminal_total",
			Help: "Poll runs by terminal outcome",
		}, []string{"export_type", "multimedia", "outcome"}),
		durations: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mmk_export_duration_seconds",
			Help:    "Time from first poll to terminal outcome",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"multimedia", "outcome"}),
	}
}

// RecordSubmit implements Recorder.
func (r *PrometheusRecorder) RecordSubmit(m SubmitMetric) {
	class := ""
	if m.Err != nil {
		class = obserrors.Classify(m.Err)
	}
	mm := boolTag(m.IsMultimedia)
	r.submits.WithLabelValues(m.ExportType, mm, m.Result, class).Inc()
	if m.Duration > 0 {
		r.submitLatency.WithLabelValues(mm, m.Result).Observe(m.Duration.Seconds())
	}
}

// RecordPoll implements Recorder.
func (r *PrometheusRecorder) RecordPoll(m PollMetric) {
	r.polls.WithLabelValues(m.Outcome).Inc()
	r.genericErrors.Set(float64(m.GenericErrors))
	r.backendErrors.Set(float64(m.BackendErrors))
	r.percent.Set(m.ProgressPercent)
}

// RecordTerminal implements Recorder.
func (r *PrometheusRecorder) RecordTerminal(m TerminalMetric) {
	mm := boolTag(m.IsMultimedia)
	r.terminals.WithLabelValues(m.ExportType, mm, m.Outcome).Inc()
	if m.Elapsed > 0 {
		r.durations.WithLabelValues(mm, m.Outcome).Observe(m.Elapsed.Seconds())
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
