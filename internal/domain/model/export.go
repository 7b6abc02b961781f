// Package model defines the data types shared by the export launcher, the progress poller
// and the adapters that talk to the export server.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ExportJob identifies a running export. It is owned by the poller for the duration of a run.
type ExportJob struct {
	JobID        string `json:"job_id"`
	ExportType   string `json:"export_type"`
	IsMultimedia bool   `json:"is_multimedia"`
}

// JobHandle is returned by the launcher once the server accepted an export request.
type JobHandle struct {
	JobID        string
	ExportType   string
	IsMultimedia bool
}

// Job converts the handle into the job the poller tracks.
func (h JobHandle) Job() ExportJob {
	return ExportJob(h)
}

// PollerStatus is the lifecycle status of a poller.
type PollerStatus string

const (
	// PollerStatusIdle means no job is tracked.
	PollerStatusIdle PollerStatus = "idle"
	// PollerStatusPolling means status queries are being issued on every tick.
	PollerStatusPolling PollerStatus = "polling"
	// PollerStatusSucceeded means the export file is ready for download.
	PollerStatusSucceeded PollerStatus = "succeeded"
	// PollerStatusFailedTransientRetry means polling continues after a tolerated failure.
	PollerStatusFailedTransientRetry PollerStatus = "failed_transient_retry"
	// PollerStatusFailedTerminal means polling stopped on an unrecoverable failure.
	PollerStatusFailedTerminal PollerStatus = "failed_terminal"
)

// Terminal reports whether no further ticks will be applied in this status.
func (s PollerStatus) Terminal() bool {
	return s == PollerStatusSucceeded || s == PollerStatusFailedTerminal
}

// Active reports whether a poll loop is running in this status.
func (s PollerStatus) Active() bool {
	return s == PollerStatusPolling || s == PollerStatusFailedTransientRetry
}

// PollerState is the poller's bookkeeping for the current run.
type PollerState struct {
	Status                        PollerStatus `json:"status"`
	ConsecutiveGenericErrors      int          `json:"consecutive_generic_errors"`
	ConsecutiveBackendUnavailable int          `json:"consecutive_backend_unavailable"`
	LastProgressUnits             float64      `json:"last_progress_units"`
}

// ProgressSnapshot is the progress view produced by one poll response.
// Snapshots are passed by value and never mutated after emission.
type ProgressSnapshot struct {
	CurrentUnits float64 `json:"current_units"`
	Percent      float64 `json:"percent"`
	IsReady      bool    `json:"is_ready"`
	HasFile      bool    `json:"has_file"`
	DownloadURL  string  `json:"download_url,omitempty"`
	DropboxURL   string  `json:"dropbox_url,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// ExportDescriptor identifies one saved export definition included in a request.
type ExportDescriptor struct {
	ExportID   string `json:"export_id"`
	ExportType string `json:"export_type"`
	Name       string `json:"name,omitempty"`
	Domain     string `json:"domain,omitempty"`
	Filename   string `json:"filename,omitempty"`
}

// SubmitInput is everything the launcher needs to start an export.
type SubmitInput struct {
	Exports []ExportDescriptor
	// FormData is the serialized filter form. It is forwarded untouched.
	FormData json.RawMessage
	// MaxColumnSize is enforced by the server; the client only forwards it.
	MaxColumnSize int
}

// Validate checks the input is well-formed enough to send.
func (in *SubmitInput) Validate() error {
	if len(in.Exports) == 0 {
		return errors.New("at least one export is required")
	}
	for i := range in.Exports {
		if strings.TrimSpace(in.Exports[i].ExportID) == "" {
			return errors.New("export id is required")
		}
	}
	if len(in.FormData) > 0 && !json.Valid(in.FormData) {
		return errors.New("form data must be valid JSON")
	}
	if in.MaxColumnSize < 0 {
		return errors.New("max column size must be >= 0")
	}
	return nil
}

// ExportType returns the type of the first export, which labels the whole request.
func (in *SubmitInput) ExportType() string {
	if len(in.Exports) == 0 {
		return ""
	}
	return in.Exports[0].ExportType
}

// ExportTypeLabel capitalizes an export type for display ("form" → "Form").
func ExportTypeLabel(exportType string) string {
	if exportType == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(exportType)
	return string(unicode.ToUpper(r)) + exportType[size:]
}

// SubmitRequest is the body of a prepare-export request.
type SubmitRequest struct {
	Exports       []ExportDescriptor `json:"exports"`
	MaxColumnSize int                `json:"max_column_size,omitempty"`
	FormData      json.RawMessage    `json:"form_data,omitempty"`
}

// SubmitResponse is the server reply to a prepare-export request.
type SubmitResponse struct {
	Success    bool   `json:"success"`
	DownloadID string `json:"download_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// StatusRequest asks for the status of one download.
type StatusRequest struct {
	DownloadID string `json:"download_id"`
}

// EmailRequest registers a completion email for one download.
type EmailRequest struct {
	DownloadID string `json:"download_id"`
}

// StatusResponse is the server reply to a status poll.
type StatusResponse struct {
	IsPollSuccessful bool `json:"is_poll_successful"`
	// IsAlive is explicitly null while the task has not registered with the task backend.
	IsAlive     NullableBool `json:"is_alive,omitzero"`
	HasFile     bool         `json:"has_file"`
	IsReady     bool         `json:"is_ready"`
	Progress    Progress     `json:"progress"`
	DownloadURL string       `json:"download_url,omitempty"`
	DropboxURL  string       `json:"dropbox_url,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// BackendNotAlive reports the "task not registered yet" sentinel.
func (r *StatusResponse) BackendNotAlive() bool {
	return r.IsAlive.Null
}

// Completed reports whether the export file is ready for download.
func (r *StatusResponse) Completed() bool {
	return r.IsReady && r.HasFile
}

// Progress is the task progress block of a status response.
type Progress struct {
	Current OptionalNumber `json:"current,omitzero"`
	Percent OptionalNumber `json:"percent,omitzero"`
	Error   string         `json:"error,omitempty"`
}

// CurrentUnits returns the reported unit count, or -1 when the server sent none.
func (p Progress) CurrentUnits() float64 {
	if !p.Current.Valid {
		return -1
	}
	return p.Current.Value
}

var jsonNull = []byte("null")

// NullableBool distinguishes an absent field, an explicit null and a boolean value.
type NullableBool struct {
	Set   bool
	Null  bool
	Value bool
}

// NullBool returns an explicit JSON null.
func NullBool() NullableBool {
	return NullableBool{Set: true, Null: true}
}

// NewBool returns a present boolean value.
func NewBool(v bool) NullableBool {
	return NullableBool{Set: true, Value: v}
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *NullableBool) UnmarshalJSON(data []byte) error {
	b.Set = true
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		b.Null = true
		b.Value = false
		return nil
	}
	b.Null = false
	return json.Unmarshal(data, &b.Value)
}

// MarshalJSON implements json.Marshaler.
func (b NullableBool) MarshalJSON() ([]byte, error) {
	if !b.Set || b.Null {
		return jsonNull, nil
	}
	return json.Marshal(b.Value)
}

// OptionalNumber holds a numeric field that may be missing or malformed.
// Non-numeric JSON values decode as invalid instead of failing the whole response.
type OptionalNumber struct {
	Value float64
	Valid bool
}

// Number returns a valid OptionalNumber.
func Number(v float64) OptionalNumber {
	return OptionalNumber{Value: v, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *OptionalNumber) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		*n = OptionalNumber{}
		return nil //nolint:nilerr // malformed numbers are treated as absent
	}
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*n = OptionalNumber{}
		return nil
	}
	*n = OptionalNumber{Value: v, Valid: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n OptionalNumber) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return jsonNull, nil
	}
	return json.Marshal(n.Value)
}
