// Package core defines the repository contracts the export services depend on.
package core

import (
	"context"
	"time"

	"github.com/target/mmk-export/internal/domain/model"
)

// ExportHistoryRepository records every submitted export and how it ended.
type ExportHistoryRepository interface {
	Create(ctx context.Context, req model.CreateExportRunRequest) (*model.ExportRun, error)
	Finish(ctx context.Context, req model.FinishExportRunRequest) (bool, error)
	GetByDownloadID(ctx context.Context, downloadID string) (*model.ExportRun, error)
	List(ctx context.Context, opts model.ExportRunListOptions) ([]*model.ExportRun, error)
}

// CacheRepository is the small key/value surface used for deduplication.
type CacheRepository interface {
	// Get returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	// Returns true if the key was set.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Health(ctx context.Context) error
}
