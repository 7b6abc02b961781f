// Package redis provides Redis-based adapters for the export client.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-export/internal/domain/model"
	apperrors "github.com/target/mmk-export/internal/errors"
)

// DefaultSnapshotTTL bounds how long a finished or abandoned download stays readable.
const DefaultSnapshotTTL = 24 * time.Hour

// SnapshotStore keeps the latest SnapshotRecord of each download under a key prefix.
type SnapshotStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// SnapshotStoreOptions configure a SnapshotStore.
type SnapshotStoreOptions struct {
	Prefix string        // defaults to "mmk-export:snapshot:"
	TTL    time.Duration // defaults to DefaultSnapshotTTL
	Now    func() time.Time
}

// NewSnapshotStore creates a Redis-backed snapshot store.
func NewSnapshotStore(client redis.UniversalClient, opts SnapshotStoreOptions) *SnapshotStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "mmk-export:snapshot:"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SnapshotStore{client: client, prefix: prefix, ttl: ttl, now: now}
}

// Save overwrites the record for rec.DownloadID and refreshes its TTL.
func (s *SnapshotStore) Save(ctx context.Context, rec model.SnapshotRecord) error {
	if strings.TrimSpace(rec.DownloadID) == "" {
		return apperrors.ValidationField("download_id", "download id cannot be empty")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+rec.DownloadID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get returns the stored record or a NotFound AppError.
func (s *SnapshotStore) Get(ctx context.Context, downloadID string) (model.SnapshotRecord, error) {
	if downloadID == "" {
		return model.SnapshotRecord{}, apperrors.NotFound("snapshot not found")
	}

	data, err := s.client.Get(ctx, s.prefix+downloadID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.SnapshotRecord{}, apperrors.NotFoundf("no snapshot for download %s", downloadID)
		}
		return model.SnapshotRecord{}, fmt.Errorf("redis get: %w", err)
	}

	var rec model.SnapshotRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.SnapshotRecord{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return rec, nil
}

// Delete removes the record. Deleting a missing record is not an error.
func (s *SnapshotStore) Delete(ctx context.Context, downloadID string) error {
	if downloadID == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+downloadID).Err()
}
