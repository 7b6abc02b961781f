// Package metrics records export submission and polling metrics to StatsD and Prometheus.
package metrics

import (
	"time"

	obserrors "github.com/target/mmk-export/internal/observability/errors"
	"github.com/target/mmk-export/internal/observability/statsd"
)

// Result values for submission metrics.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// SubmitMetric describes one submission attempt.
type SubmitMetric struct {
	ExportType   string
	IsMultimedia bool
	Result       string
	Duration     time.Duration
	Err          error
}

// PollMetric describes one applied poll response.
type PollMetric struct {
	Outcome          string
	GenericErrors    int
	BackendErrors    int
	ProgressPercent  float64
	TransportFailure bool
}

// TerminalMetric describes how a poll run ended.
type TerminalMetric struct {
	ExportType   string
	IsMultimedia bool
	Outcome      string
	Elapsed      time.Duration
	Err          error
}

// Recorder receives export lifecycle observations.
type Recorder interface {
	RecordSubmit(m SubmitMetric)
	RecordPoll(m PollMetric)
	RecordTerminal(m TerminalMetric)
}

// Multi fans observations out to every non-nil recorder.
type Multi []Recorder

// RecordSubmit implements Recorder.
func (m Multi) RecordSubmit(in SubmitMetric) {
	for _, r := range m {
		if r != nil {
			r.RecordSubmit(in)
		}
	}
}

// RecordPoll implements Recorder.
func (m Multi) RecordPoll(in PollMetric) {
	for _, r := range m {
		if r != nil {
			r.RecordPoll(in)
		}
	}
}

// RecordTerminal implements Recorder.
func (m Multi) RecordTerminal(in TerminalMetric) {
	for _, r := range m {
		if r != nil {
			r.RecordTerminal(in)
		}
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordSubmit(SubmitMetric)     {}
func (Nop) RecordPoll(PollMetric)         {}
func (Nop) RecordTerminal(TerminalMetric) {}

// StatsdRecorder emits observations to a statsd.Sink.
type StatsdRecorder struct {
	Sink statsd.Sink
}

var _ Recorder = StatsdRecorder{}

// RecordSubmit emits export.submit and export.submit.duration.
func (r StatsdRecorder) RecordSubmit(m SubmitMetric) {
	if r.Sink == nil {
		return
	}
	tags := map[string]string{
		"export_type": m.ExportType,
		"multimedia":  boolTag(m.IsMultimedia),
		"result":      m.Result,
	}
	if m.Err != nil && m.Result == ResultError {
		tags["error_class"] = obserrors.Classify(m.Err)
	}
	r.Sink.Count("export.submit", 1, tags)
	if m.Duration > 0 {
		r.Sink.Timing("export.submit.duration", m.Duration, CloneTags(tags))
	}
}

// RecordPoll emits export.poll and the consecutive error gauges.
func (r StatsdRecorder) RecordPoll(m PollMetric) {
	if r.Sink == nil {
		return
	}
	tags := map[string]string{
		"outcome":   m.Outcome,
		"transport": boolTag(!m.TransportFailure),
	}
	r.Sink.Count("export.poll", 1, tags)
	r.Sink.Gauge("export.poll.generic_errors", float64(m.GenericErrors), nil)
	r.Sink.Gauge("export.poll.backend_errors", float64(m.BackendErrors), nil)
	r.Sink.Gauge("export.poll.percent", m.ProgressPercent, nil)
}

// RecordTerminal emits export.terminal and export.duration.
func (r StatsdRecorder) RecordTerminal(m TerminalMetric) {
	if r.Sink == nil {
		return
	}
	tags := map[string]string{
		"export_type": m.ExportType,
		"multimedia":  boolTag(m.IsMultimedia),
		"outcome":     m.Outcome,
	}
	if m.Err != nil {
		tags["error_class"] = obserrors.Classify(m.Err)
	}
	r.Sink.Count("export.terminal", 1, tags)
	if m.Elapsed > 0 {
		r.Sink.Timing("export.duration", m.Elapsed, CloneTags(tags))
	}
}

// CloneTags returns a shallow copy of src, or nil when empty.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func boolTag(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
