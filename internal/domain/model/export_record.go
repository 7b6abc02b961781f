package model

import "time"

// SnapshotRecord is the persisted view of a download's latest poll.
type SnapshotRecord struct {
	DownloadID   string           `json:"download_id"`
	ExportType   string           `json:"export_type"`
	IsMultimedia bool             `json:"is_multimedia"`
	State        PollerState      `json:"state"`
	Snapshot     ProgressSnapshot `json:"snapshot"`
	Outcome      string           `json:"outcome,omitempty"`
	Error        string           `json:"error,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ExportRunStatus is the lifecycle status recorded in the export history.
type ExportRunStatus string

const (
	// ExportRunStatusSubmitted means the server accepted the request.
	ExportRunStatusSubmitted ExportRunStatus = "submitted"
	// ExportRunStatusSucceeded means the export file became available.
	ExportRunStatusSucceeded ExportRunStatus = "succeeded"
	// ExportRunStatusFailed means polling ended in a terminal failure.
	ExportRunStatusFailed ExportRunStatus = "failed"
	// ExportRunStatusAbandoned means polling was reset before a terminal outcome.
	ExportRunStatusAbandoned ExportRunStatus = "abandoned"
)

// Valid reports whether s is a known status.
func (s ExportRunStatus) Valid() bool {
	switch s {
	case ExportRunStatusSubmitted, ExportRunStatusSucceeded, ExportRunStatusFailed, ExportRunStatusAbandoned:
		return true
	default:
		return false
	}
}

// ExportRun is one row of the export history.
type ExportRun struct {
	DownloadID   string          `json:"download_id"             db:"download_id"`
	ExportType   string          `json:"export_type"             db:"export_type"`
	IsMultimedia bool            `json:"is_multimedia"           db:"is_multimedia"`
	ExportCount  int             `json:"export_count"            db:"export_count"`
	Status       ExportRunStatus `json:"status"                  db:"status"`
	ErrorCode    string          `json:"error_code,omitempty"    db:"error_code"`
	ErrorMessage string          `json:"error_message,omitempty" db:"error_message"`
	DownloadURL  string          `json:"download_url,omitempty"  db:"download_url"`
	SubmittedAt  time.Time       `json:"submitted_at"            db:"submitted_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"   db:"finished_at"`
}

// CreateExportRunRequest records a freshly submitted export.
type CreateExportRunRequest struct {
	DownloadID   string
	ExportType   string
	IsMultimedia bool
	ExportCount  int
}

// FinishExportRunRequest records the terminal state of an export.
type FinishExportRunRequest struct {
	DownloadID   string
	Status       ExportRunStatus
	ErrorCode    string
	ErrorMessage string
	DownloadURL  string
}

// ExportRunListOptions filters the export history listing.
type ExportRunListOptions struct {
	Status ExportRunStatus
	Limit  int
	Offset int
}
