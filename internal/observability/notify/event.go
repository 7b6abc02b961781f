// Package notify defines export failure notifications and the sinks that deliver them.
package notify

import (
	"context"
	"time"
)

// Severity values recognised by the sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// ExportFailurePayload is what sinks receive when a poll run ends in failure.
type ExportFailurePayload struct {
	DownloadID   string
	ExportType   string
	IsMultimedia bool
	// Outcome is the poller outcome name, e.g. backend_unavailable.
	Outcome    string
	Error      string
	ErrorClass string
	Severity   string
	// LastPercent is the progress reached before the failure.
	LastPercent float64
	OccurredAt  time.Time
	Metadata    map[string]string
}

// Sink delivers export failure notifications.
type Sink interface {
	SendExportFailure(ctx context.Context, payload ExportFailurePayload) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, payload ExportFailurePayload) error

// SendExportFailure implements Sink.
func (f SinkFunc) SendExportFailure(ctx context.Context, payload ExportFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
