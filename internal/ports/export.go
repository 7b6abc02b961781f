// Package ports defines the interfaces the export services depend on.
// Implementations live in internal/adapters; orchestration in internal/service.
package ports

import (
	"context"

	"github.com/target/mmk-export/internal/domain/export"
	"github.com/target/mmk-export/internal/domain/model"
)

// ExportSubmitter asks the export server to start a job.
type ExportSubmitter interface {
	// SubmitExport posts to the size-limited custom export endpoint.
	SubmitExport(ctx context.Context, req model.SubmitRequest) (*model.SubmitResponse, error)
	// SubmitMultimedia posts to the multimedia endpoint.
	SubmitMultimedia(ctx context.Context, req model.SubmitRequest) (*model.SubmitResponse, error)
}

// StatusQuerier performs one status poll for a download.
type StatusQuerier = export.StatusQuerier

// EmailRequester registers a completion email for a download.
type EmailRequester interface {
	RequestCompletionEmail(ctx context.Context, downloadID string) error
}

// ExportServer is everything the export API client exposes.
type ExportServer interface {
	ExportSubmitter
	StatusQuerier
	EmailRequester
}

// SnapshotStore keeps the latest progress of a download so other processes can read it.
type SnapshotStore interface {
	Save(ctx context.Context, rec model.SnapshotRecord) error
	Get(ctx context.Context, downloadID string) (model.SnapshotRecord, error)
	Delete(ctx context.Context, downloadID string) error
}
