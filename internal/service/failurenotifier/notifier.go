// Package failurenotifier fans export failures out to the configured notification sinks.
package failurenotifier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/target/mmk-export/internal/observability/notify"
)

// SinkRegistration pairs a sink with a name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the notifier.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// SkipOutcomes lists outcome names that never notify.
	SkipOutcomes []string
}

// Service dispatches failures to every registered sink concurrently.
type Service struct {
	logger *slog.Logger
	sinks  []SinkRegistration
	skip   map[string]struct{}
}

// NewService drops nil sinks and names unnamed ones.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		if entry.Name == "" {
			entry.Name = "sink"
		}
		sinks = append(sinks, entry)
	}
	skip := make(map[string]struct{}, len(opts.SkipOutcomes))
	for _, o := range opts.SkipOutcomes {
		skip[o] = struct{}{}
	}

	return &Service{
		logger: logger.With("component", "failure_notifier"),
		sinks:  sinks,
		skip:   skip,
	}
}

// NotifyExportFailure blocks until every sink has been attempted. Sink errors are logged.
func (s *Service) NotifyExportFailure(ctx context.Context, payload notify.ExportFailurePayload) {
	if s == nil || len(s.sinks) == 0 {
		return
	}
	if _, ok := s.skip[payload.Outcome]; ok {
		s.logger.DebugContext(ctx, "skipping failure notification",
			"download_id", payload.DownloadID,
			"outcome", payload.Outcome,
		)
		return
	}
	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendExportFailure(ctx, payload); err != nil {
				s.logger.ErrorContext(ctx, "failure notifier delivery error",
					"sink", entry.Name,
					"download_id", payload.DownloadID,
					"outcome", payload.Outcome,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether any sink is registered.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}
