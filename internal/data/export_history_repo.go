package data

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/target/mmk-export/internal/core"
	"github.com/target/mmk-export/internal/domain/model"
	apperrors "github.com/target/mmk-export/internal/errors"
)

const exportRunColumns = `download_id, export_type, is_multimedia, export_count, status,
	error_code, error_message, download_url, submitted_at, finished_at`

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ExportHistoryRepo stores export runs in Postgres.
type ExportHistoryRepo struct {
	DB *sql.DB
	// Now stamps submitted_at and finished_at.
	Now func() time.Time
}

// NewExportHistoryRepo creates a repo using the system clock.
func NewExportHistoryRepo(db *sql.DB) *ExportHistoryRepo {
	return &ExportHistoryRepo{DB: db, Now: time.Now}
}

// Create records a submitted export. Recording the same download twice is a Conflict.
func (r *ExportHistoryRepo) Create(ctx context.Context, req model.CreateExportRunRequest) (*model.ExportRun, error) {
	downloadID := strings.TrimSpace(req.DownloadID)
	if downloadID == "" {
		return nil, apperrors.ValidationField("download_id", "download id is required")
	}
	if req.ExportCount < 0 {
		return nil, apperrors.ValidationField("export_count", "export count must be >= 0")
	}

	var out model.ExportRun
	err := withPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO export_runs (download_id, export_type, is_multimedia, export_count, status, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+exportRunColumns,
			downloadID,
			req.ExportType,
			req.IsMultimedia,
			req.ExportCount,
			model.ExportRunStatusSubmitted,
			r.Now().UTC(),
		)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ExportRun])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// Finish moves a submitted run to its terminal status. It returns false when the
// run is unknown or already finished, so only the first terminal outcome sticks.
func (r *ExportHistoryRepo) Finish(ctx context.Context, req model.FinishExportRunRequest) (bool, error) {
	if strings.TrimSpace(req.DownloadID) == "" {
		return false, apperrors.ValidationField("download_id", "download id is required")
	}
	if !req.Status.Valid() || req.Status == model.ExportRunStatusSubmitted {
		return false, apperrors.ValidationField("status", "status must be terminal")
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE export_runs
		SET status = $2, error_code = $3, error_message = $4, download_url = $5, finished_at = $6
		WHERE download_id = $1 AND status = 'submitted'`,
		req.DownloadID,
		string(req.Status),
		req.ErrorCode,
		req.ErrorMessage,
		req.DownloadURL,
		r.Now().UTC(),
	)
	if err != nil {
		return false, apperrors.MapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.MapDBError(err)
	}
	return n > 0, nil
}

// GetByDownloadID returns a NotFound AppError when no run is recorded.
func (r *ExportHistoryRepo) GetByDownloadID(ctx context.Context, downloadID string) (*model.ExportRun, error) {
	var out model.ExportRun
	err := withPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+exportRunColumns+` FROM export_runs WHERE download_id = $1`, downloadID)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ExportRun])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// List returns runs newest first, optionally filtered by status.
func (r *ExportHistoryRepo) List(ctx context.Context, opts model.ExportRunListOptions) ([]*model.ExportRun, error) {
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, apperrors.ValidationField("status", "unknown status")
	}
	limit := opts.Limit
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	offset := max(opts.Offset, 0)

	var out []*model.ExportRun
	err := withPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+exportRunColumns+`
			FROM export_runs
			WHERE ($1 = '' OR status = $1)
			ORDER BY submitted_at DESC, download_id
			LIMIT $2 OFFSET $3`,
			string(opts.Status), limit, offset,
		)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.ExportRun])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.MapDBError(err)
	}
	return out, nil
}

var _ core.ExportHistoryRepository = (*ExportHistoryRepo)(nil)
