// Package service orchestrates export submission, completion emails and progress tracking
// on top of the ports and the progress poller.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/target/mmk-export/internal/core"
	"github.com/target/mmk-export/internal/domain/model"
	apperrors "github.com/target/mmk-export/internal/errors"
	"github.com/target/mmk-export/internal/observability/metrics"
	"github.com/target/mmk-export/internal/ports"
)

// DefaultMaxColumnSize is forwarded when the input leaves MaxColumnSize unset.
const DefaultMaxColumnSize = 2000

var errMissingDownloadID = errors.New("export response carried no download_id")

// LauncherConfig holds the optional launcher settings.
type LauncherConfig struct {
	// MaxColumnSize defaults to DefaultMaxColumnSize.
	MaxColumnSize int
	Logger        *slog.Logger
	Metrics       metrics.Recorder
}

// LauncherOptions groups dependencies for Launcher.
type LauncherOptions struct {
	Submitter ports.ExportSubmitter       // Required
	History   core.ExportHistoryRepository // Optional: records accepted submissions
	Config    LauncherConfig
}

// Launcher submits export requests. It never starts polling.
type Launcher struct {
	submitter     ports.ExportSubmitter
	history       core.ExportHistoryRepository
	maxColumnSize int
	logger        *slog.Logger
	metrics       metrics.Recorder
}

// NewLauncher panics if the submitter is nil.
func NewLauncher(opts LauncherOptions) *Launcher {
	if opts.Submitter == nil {
		panic("Submitter is required for Launcher")
	}
	logger := opts.Config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec := opts.Config.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	maxCols := opts.Config.MaxColumnSize
	if maxCols <= 0 {
		maxCols = DefaultMaxColumnSize
	}
	return &Launcher{
		submitter:     opts.Submitter,
		history:       opts.History,
		maxColumnSize: maxCols,
		logger:        logger.With("component", "export_launcher"),
		metrics:       rec,
	}
}

// Submit starts a size-limited export.
func (l *Launcher) Submit(ctx context.Context, in model.SubmitInput) (model.JobHandle, error) {
	return l.submit(ctx, in, false)
}

// SubmitMultimedia starts a multimedia export. No column limit is sent.
func (l *Launcher) SubmitMultimedia(ctx context.Context, in model.SubmitInput) (model.JobHandle, error) {
	return l.submit(ctx, in, true)
}

func (l *Launcher) submit(ctx context.Context, in model.SubmitInput, multimedia bool) (model.JobHandle, error) {
	if err := in.Validate(); err != nil {
		return model.JobHandle{}, apperrors.Validation(err.Error())
	}

	req := model.SubmitRequest{Exports: in.Exports, FormData: in.FormData}
	if !multimedia {
		req.MaxColumnSize = in.MaxColumnSize
		if req.MaxColumnSize == 0 {
			req.MaxColumnSize = l.maxColumnSize
		}
	}

	exportType := in.ExportType()
	start := time.Now()
	var (
		resp *model.SubmitResponse
		err  error
	)
	if multimedia {
		resp, err = l.submitter.SubmitMultimedia(ctx, req)
	} else {
		resp, err = l.submitter.SubmitExport(ctx, req)
	}
	elapsed := time.Since(start)

	if subErr := submissionError(resp, err); subErr != nil {
		l.logger.WarnContext(ctx, "export submission failed",
			"export_type", exportType,
			"multimedia", multimedia,
			"error", subErr,
		)
		l.metrics.RecordSubmit(metrics.SubmitMetric{
			ExportType:   exportType,
			IsMultimedia: multimedia,
			Result:       metrics.ResultError,
			Duration:     elapsed,
			Err:          subErr,
		})
		return model.JobHandle{}, subErr
	}

	handle := model.JobHandle{
		JobID:        resp.DownloadID,
		ExportType:   model.ExportTypeLabel(exportType),
		IsMultimedia: multimedia,
	}
	l.logger.InfoContext(ctx, "export submitted",
		"download_id", handle.JobID,
		"export_type", exportType,
		"multimedia", multimedia,
		"exports", len(in.Exports),
	)
	l.metrics.RecordSubmit(metrics.SubmitMetric{
		ExportType:   exportType,
		IsMultimedia: multimedia,
		Result:       metrics.ResultSuccess,
		Duration:     elapsed,
	})
	l.recordHistory(ctx, handle, exportType, len(in.Exports))
	return handle, nil
}

// submissionError maps a submit round trip onto the two submission error kinds.
func submissionError(resp *model.SubmitResponse, err error) error {
	switch {
	case err != nil:
		if msg := apperrors.ServerText(err); msg != "" {
			appErr := apperrors.ServerMessage(msg)
			appErr.Cause = err
			return appErr
		}
		return apperrors.Fallback(err)
	case resp == nil:
		return apperrors.Fallback(nil)
	case !resp.Success && resp.Error != "":
		return apperrors.ServerMessage(resp.Error)
	case !resp.Success:
		return apperrors.Fallback(nil)
	case resp.DownloadID == "":
		return apperrors.Fallback(errMissingDownloadID)
	default:
		return nil
	}
}

func (l *Launcher) recordHistory(ctx context.Context, h model.JobHandle, exportType string, count int) {
	if l.history == nil {
		return
	}
	_, err := l.history.Create(ctx, model.CreateExportRunRequest{
		DownloadID:   h.JobID,
		ExportType:   exportType,
		IsMultimedia: h.IsMultimedia,
		ExportCount:  count,
	})
	if err != nil {
		l.logger.WarnContext(ctx, "record export history failed", "download_id", h.JobID, "error", err)
	}
}
