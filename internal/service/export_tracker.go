package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/target/mmk-export/internal/core"
	"github.com/target/mmk-export/internal/domain/export"
	"github.com/target/mmk-export/internal/domain/model"
	apperrors "github.com/target/mmk-export/internal/errors"
	obserrors "github.com/target/mmk-export/internal/observability/errors"
	"github.com/target/mmk-export/internal/observability/metrics"
	"github.com/target/mmk-export/internal/observability/notify"
	"github.com/target/mmk-export/internal/ports"
)

// UpdateSource is the subscription side of the progress poller.
type UpdateSource interface {
	Subscribe() (func(), <-chan export.Update)
}

// FailureNotifier receives terminal failures.
type FailureNotifier interface {
	NotifyExportFailure(ctx context.Context, payload notify.ExportFailurePayload)
}

// TrackerSinks are the optional destinations for poller updates.
type TrackerSinks struct {
	Snapshots ports.SnapshotStore
	History   core.ExportHistoryRepository
	Notifier  FailureNotifier
	Metrics   metrics.Recorder
}

// ExportTrackerOptions groups dependencies for ExportTracker.
type ExportTrackerOptions struct {
	Source UpdateSource // Required
	Sinks  TrackerSinks
	Logger *slog.Logger
}

// ExportTracker fans poller updates out to storage, metrics and notifications.
// Handle is not safe for concurrent use; Run drives it from a single goroutine.
type ExportTracker struct {
	source UpdateSource
	sinks  TrackerSinks
	logger *slog.Logger
	now    func() time.Time

	// active is the job whose run has not ended yet; finished holds jobs already recorded.
	active   *trackedJob
	finished map[string]struct{}
}

type trackedJob struct {
	job       model.ExportJob
	firstSeen time.Time
	snapshot  model.ProgressSnapshot
}

// NewExportTracker panics if the source is nil.
func NewExportTracker(opts ExportTrackerOptions) *ExportTracker {
	if opts.Source == nil {
		panic("Source is required for ExportTracker")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sinks := opts.Sinks
	if sinks.Metrics == nil {
		sinks.Metrics = metrics.Nop{}
	}
	return &ExportTracker{
		source:   opts.Source,
		sinks:    sinks,
		logger:   logger.With("component", "export_tracker"),
		now:      time.Now,
		finished: make(map[string]struct{}),
	}
}

// Run consumes updates until ctx ends or the source closes the subscription.
// The subscription is taken before Run returns its first update, so callers
// should start Run before starting the poller.
func (t *ExportTracker) Run(ctx context.Context) error {
	unsubscribe, updates := t.source.Subscribe()
	defer unsubscribe()
	return t.consume(ctx, updates)
}

func (t *ExportTracker) consume(ctx context.Context, updates <-chan export.Update) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			t.Handle(ctx, u)
		}
	}
}

// Handle applies one update. Exported for callers that drive the tracker themselves.
func (t *ExportTracker) Handle(ctx context.Context, u export.Update) {
	if u.JobID == "" {
		t.abandonActive(ctx)
		return
	}
	if _, done := t.finished[u.JobID]; done {
		return
	}

	first := t.active == nil || t.active.job.JobID != u.JobID
	if first {
		t.abandonActive(ctx)
		t.active = &trackedJob{job: u.Job, firstSeen: t.now()}
	}
	t.active.snapshot = u.Snapshot

	t.saveSnapshot(ctx, u)
	if !first {
		t.sinks.Metrics.RecordPoll(metrics.PollMetric{
			Outcome:         export.OutcomeName(u.Outcome),
			GenericErrors:   u.State.ConsecutiveGenericErrors,
			BackendErrors:   u.State.ConsecutiveBackendUnavailable,
			ProgressPercent: u.Snapshot.Percent,
		})
	}

	if u.Outcome != nil && u.Outcome.Terminal() {
		t.finish(ctx, u)
	}
}

func (t *ExportTracker) finish(ctx context.Context, u export.Update) {
	tracked := t.active
	t.active = nil
	t.finished[u.JobID] = struct{}{}

	outcomeErr := export.Err(u.Outcome)
	name := export.OutcomeName(u.Outcome)
	t.sinks.Metrics.RecordTerminal(metrics.TerminalMetric{
		ExportType:   u.Job.ExportType,
		IsMultimedia: u.Job.IsMultimedia,
		Outcome:      name,
		Elapsed:      t.now().Sub(tracked.firstSeen),
		Err:          outcomeErr,
	})

	req := model.FinishExportRunRequest{DownloadID: u.JobID, Status: model.ExportRunStatusSucceeded}
	if outcomeErr != nil {
		req.Status = model.ExportRunStatusFailed
		req.ErrorCode = string(apperrors.GetCode(outcomeErr))
		req.ErrorMessage = apperrors.UserMessage(outcomeErr)
	} else {
		req.DownloadURL = u.Snapshot.DownloadURL
	}
	t.finishHistory(ctx, req)

	if outcomeErr != nil && t.sinks.Notifier != nil {
		t.sinks.Notifier.NotifyExportFailure(ctx, notify.ExportFailurePayload{
			DownloadID:   u.JobID,
			ExportType:   u.Job.ExportType,
			IsMultimedia: u.Job.IsMultimedia,
			Outcome:      name,
			Error:        apperrors.UserMessage(outcomeErr),
			ErrorClass:   obserrors.Classify(outcomeErr),
			LastPercent:  u.Snapshot.Percent,
			OccurredAt:   t.now(),
		})
	}
}

// abandonActive records a run that went away without a terminal outcome.
func (t *ExportTracker) abandonActive(ctx context.Context) {
	if t.active == nil {
		return
	}
	tracked := t.active
	t.active = nil
	t.finished[tracked.job.JobID] = struct{}{}

	t.logger.InfoContext(ctx, "export polling abandoned", "download_id", tracked.job.JobID)
	t.sinks.Metrics.RecordTerminal(metrics.TerminalMetric{
		ExportType:   tracked.job.ExportType,
		IsMultimedia: tracked.job.IsMultimedia,
		Outcome:      "abandoned",
		Elapsed:      t.now().Sub(tracked.firstSeen),
	})
	t.finishHistory(ctx, model.FinishExportRunRequest{
		DownloadID: tracked.job.JobID,
		Status:     model.ExportRunStatusAbandoned,
	})
	if t.sinks.Snapshots != nil {
		rec := model.SnapshotRecord{
			DownloadID:   tracked.job.JobID,
			ExportType:   tracked.job.ExportType,
			IsMultimedia: tracked.job.IsMultimedia,
			State:        model.PollerState{Status: model.PollerStatusIdle},
			Snapshot:     tracked.snapshot,
			Outcome:      "abandoned",
			UpdatedAt:    t.now(),
		}
		if err := t.sinks.Snapshots.Save(context.WithoutCancel(ctx), rec); err != nil {
			t.logger.WarnContext(ctx, "save snapshot failed", "download_id", rec.DownloadID, "error", err)
		}
	}
}

func (t *ExportTracker) saveSnapshot(ctx context.Context, u export.Update) {
	if t.sinks.Snapshots == nil {
		return
	}
	rec := model.SnapshotRecord{
		DownloadID:   u.JobID,
		ExportType:   u.Job.ExportType,
		IsMultimedia: u.Job.IsMultimedia,
		State:        u.State,
		Snapshot:     u.Snapshot,
		Outcome:      export.OutcomeName(u.Outcome),
		UpdatedAt:    t.now(),
	}
	if err := export.Err(u.Outcome); err != nil {
		rec.Error = apperrors.UserMessage(err)
	}
	if err := t.sinks.Snapshots.Save(ctx, rec); err != nil {
		t.logger.WarnContext(ctx, "save snapshot failed", "download_id", u.JobID, "error", err)
	}
}

func (t *ExportTracker) finishHistory(ctx context.Context, req model.FinishExportRunRequest) {
	if t.sinks.History == nil {
		return
	}
	updated, err := t.sinks.History.Finish(context.WithoutCancel(ctx), req)
	switch {
	case err != nil:
		t.logger.WarnContext(ctx, "record export outcome failed", "download_id", req.DownloadID, "error", err)
	case !updated:
		t.logger.DebugContext(ctx, "export history row missing or already finished", "download_id", req.DownloadID)
	}
}
