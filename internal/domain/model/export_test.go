package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusResponse_Decode(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantNotLive bool
		wantAlive   NullableBool
		wantCurrent float64
		wantPercent OptionalNumber
	}{
		{
			name:        "explicit null is_alive",
			body:        `{"is_poll_successful":false,"is_alive":null,"progress":{}}`,
			wantNotLive: true,
			wantAlive:   NullableBool{Set: true, Null: true},
			wantCurrent: -1,
		},
		{
			name:        "missing is_alive is not the sentinel",
			body:        `{"is_poll_successful":true,"progress":{"current":3,"percent":12.5}}`,
			wantCurrent: 3,
			wantPercent: Number(12.5),
		},
		{
			name:        "alive true",
			body:        `{"is_poll_successful":true,"is_alive":true,"progress":{"current":0}}`,
			wantAlive:   NewBool(true),
			wantCurrent: 0,
		},
		{
			name:        "non numeric percent is ignored",
			body:        `{"is_poll_successful":true,"is_alive":true,"progress":{"current":7,"percent":"n/a"}}`,
			wantAlive:   NewBool(true),
			wantCurrent: 7,
		},
		{
			name:        "null percent",
			body:        `{"is_poll_successful":true,"progress":{"current":1,"percent":null}}`,
			wantCurrent: 1,
		},
		{
			name:        "fractional current",
			body:        `{"is_poll_successful":true,"progress":{"current":5.5}}`,
			wantCurrent: 5.5,
		},
		{
			name:        "missing progress block",
			body:        `{"is_poll_successful":false,"error":"boom"}`,
			wantCurrent: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp StatusResponse
			require.NoError(t, json.Unmarshal([]byte(tt.body), &resp))
			assert.Equal(t, tt.wantNotLive, resp.BackendNotAlive())
			assert.Equal(t, tt.wantAlive, resp.IsAlive)
			assert.Equal(t, tt.wantCurrent, resp.Progress.CurrentUnits())
			assert.Equal(t, tt.wantPercent, resp.Progress.Percent)
		})
	}
}

func TestStatusResponse_EncodeRoundTripsSentinel(t *testing.T) {
	raw, err := json.Marshal(StatusResponse{IsAlive: NullBool()})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"is_alive":null`)

	raw, err = json.Marshal(StatusResponse{IsPollSuccessful: true})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "is_alive")

	var back StatusResponse
	require.NoError(t, json.Unmarshal([]byte(`{"is_alive":null}`), &back))
	assert.True(t, back.BackendNotAlive())
}

func TestStatusResponse_Completed(t *testing.T) {
	assert.True(t, (&StatusResponse{IsReady: true, HasFile: true}).Completed())
	assert.False(t, (&StatusResponse{IsReady: true}).Completed())
	assert.False(t, (&StatusResponse{HasFile: true}).Completed())
}

func TestSubmitInput_Validate(t *testing.T) {
	valid := SubmitInput{
		Exports:       []ExportDescriptor{{ExportID: "e1", ExportType: "form"}},
		FormData:      json.RawMessage(`{"user_types":["mobile"]}`),
		MaxColumnSize: 2000,
	}
	require.NoError(t, valid.Validate())
	assert.Equal(t, "form", valid.ExportType())

	tests := []struct {
		name string
		in   SubmitInput
	}{
		{"no exports", SubmitInput{}},
		{"blank export id", SubmitInput{Exports: []ExportDescriptor{{ExportID: " "}}}},
		{"bad form json", SubmitInput{Exports: valid.Exports, FormData: json.RawMessage(`{`)}},
		{"negative column size", SubmitInput{Exports: valid.Exports, MaxColumnSize: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.in.Validate())
		})
	}
}

func TestExportTypeLabel(t *testing.T) {
	assert.Equal(t, "Form", ExportTypeLabel("form"))
	assert.Equal(t, "Case", ExportTypeLabel("case"))
	assert.Equal(t, "", ExportTypeLabel(""))
}

func TestPollerStatus(t *testing.T) {
	assert.True(t, PollerStatusSucceeded.Terminal())
	assert.True(t, PollerStatusFailedTerminal.Terminal())
	assert.False(t, PollerStatusPolling.Terminal())
	assert.True(t, PollerStatusFailedTransientRetry.Active())
	assert.False(t, PollerStatusIdle.Active())
}

func TestJobHandle_Job(t *testing.T) {
	h := JobHandle{JobID: "abc", ExportType: "Form", IsMultimedia: true}
	assert.Equal(t, ExportJob{JobID: "abc", ExportType: "Form", IsMultimedia: true}, h.Job())
}
