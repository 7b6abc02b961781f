package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/mmk-export/internal/domain/export"
	"github.com/target/mmk-export/internal/domain/model"
	"github.com/target/mmk-export/internal/mocks"
	"github.com/target/mmk-export/internal/observability/metrics"
	"github.com/target/mmk-export/internal/observability/notify"
	"github.com/target/mmk-export/internal/service/failurenotifier"
)

type recorderSpy struct {
	mu        sync.Mutex
	polls     []metrics.PollMetric
	terminals []metrics.TerminalMetric
}

func (r *recorderSpy) RecordSubmit(metrics.SubmitMetric) {}

func (r *recorderSpy) RecordPoll(m metrics.PollMetric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls = append(r.polls, m)
}

func (r *recorderSpy) RecordTerminal(m metrics.TerminalMetric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminals = append(r.terminals, m)
}

type chanSource struct {
	ch chan export.Update
}

func (s chanSource) Subscribe() (func(), <-chan export.Update) { return func() {}, s.ch }

var trackedJobFixture = model.ExportJob{JobID: "abc", ExportType: "form"}

func polling(units int) export.Update {
	return export.Update{
		JobID:    "abc",
		Job:      trackedJobFixture,
		State:    model.PollerState{Status: model.PollerStatusPolling, LastProgressUnits: float64(units)},
		Snapshot: model.ProgressSnapshot{CurrentUnits: float64(units), Percent: float64(units)},
		Outcome:  export.TransientWaiting{},
	}
}

func newTestTracker(sinks TrackerSinks) *ExportTracker {
	tr := NewExportTracker(ExportTrackerOptions{Source: chanSource{}, Sinks: sinks})
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	tr.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
	return tr
}

func TestNewExportTracker_RequiresSource(t *testing.T) {
	assert.Panics(t, func() { NewExportTracker(ExportTrackerOptions{}) })
}

func TestExportTracker_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	snapshots := mocks.NewMockSnapshotStore(ctrl)
	history := mocks.NewMockExportHistoryRepository(ctrl)
	spy := &recorderSpy{}

	var saved []model.SnapshotRecord
	snapshots.EXPECT().Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec model.SnapshotRecord) error {
			saved = append(saved, rec)
			return nil
		}).Times(3)
	history.EXPECT().Finish(gomock.Any(), model.FinishExportRunRequest{
		DownloadID:  "abc",
		Status:      model.ExportRunStatusSucceeded,
		DownloadURL: "https://files/abc",
	}).Return(true, nil)

	tr := newTestTracker(TrackerSinks{Snapshots: snapshots, History: history, Metrics: spy})
	ctx := context.Background()

	tr.Handle(ctx, polling(0))
	tr.Handle(ctx, polling(5))
	done := export.Update{
		JobID:    "abc",
		Job:      trackedJobFixture,
		State:    model.PollerState{Status: model.PollerStatusSucceeded},
		Snapshot: model.ProgressSnapshot{Percent: 100, IsReady: true, HasFile: true, DownloadURL: "https://files/abc"},
	}
	done.Outcome = export.Succeeded{Snapshot: done.Snapshot}
	tr.Handle(ctx, done)
	// A repeated terminal update is ignored.
	tr.Handle(ctx, done)

	require.Len(t, saved, 3)
	assert.Equal(t, "succeeded", saved[2].Outcome)
	assert.Equal(t, "form", saved[2].ExportType)
	assert.Len(t, spy.polls, 2)
	require.Len(t, spy.terminals, 1)
	assert.Equal(t, "succeeded", spy.terminals[0].Outcome)
	assert.Positive(t, spy.terminals[0].Elapsed)
}

func TestExportTracker_FailureNotifies(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := mocks.NewMockExportHistoryRepository(ctrl)
	history.EXPECT().Finish(gomock.Any(), model.FinishExportRunRequest{
		DownloadID:   "abc",
		Status:       model.ExportRunStatusFailed,
		ErrorCode:    "backend_unavailable",
		ErrorMessage: export.BackendUnavailableMessage,
	}).Return(true, nil)

	var got []notify.ExportFailurePayload
	notifier := failurenotifier.NewService(failurenotifier.Options{Sinks: []failurenotifier.SinkRegistration{{
		Name: "capture",
		Sink: notify.SinkFunc(func(_ context.Context, p notify.ExportFailurePayload) error {
			got = append(got, p)
			return nil
		}),
	}}})

	tr := newTestTracker(TrackerSinks{History: history, Notifier: notifier})
	tr.Handle(context.Background(), polling(0))
	tr.Handle(context.Background(), export.Update{
		JobID:    "abc",
		Job:      trackedJobFixture,
		State:    model.PollerState{Status: model.PollerStatusFailedTerminal, ConsecutiveBackendUnavailable: 11},
		Snapshot: model.ProgressSnapshot{Percent: 12},
		Outcome:  export.BackendUnavailableError{Message: export.BackendUnavailableMessage},
	})

	require.Len(t, got, 1)
	assert.Equal(t, "abc", got[0].DownloadID)
	assert.Equal(t, "backend_unavailable", got[0].Outcome)
	assert.Equal(t, "backend_unavailable", got[0].ErrorClass)
	assert.InDelta(t, 12, got[0].LastPercent, 0)
}

func TestExportTracker_ResetAbandonsActiveJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := mocks.NewMockExportHistoryRepository(ctrl)
	snapshots := mocks.NewMockSnapshotStore(ctrl)
	spy := &recorderSpy{}

	snapshots.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	snapshots.EXPECT().Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec model.SnapshotRecord) error {
			assert.Equal(t, "abandoned", rec.Outcome)
			assert.Equal(t, model.PollerStatusIdle, rec.State.Status)
			return nil
		})
	history.EXPECT().Finish(gomock.Any(), model.FinishExportRunRequest{
		DownloadID: "abc",
		Status:     model.ExportRunStatusAbandoned,
	}).Return(true, nil)

	tr := newTestTracker(TrackerSinks{History: history, Snapshots: snapshots, Metrics: spy})
	tr.Handle(context.Background(), polling(0))
	tr.Handle(context.Background(), export.Update{State: model.PollerState{Status: model.PollerStatusIdle}})
	// A second idle update has nothing to abandon.
	tr.Handle(context.Background(), export.Update{State: model.PollerState{Status: model.PollerStatusIdle}})

	require.Len(t, spy.terminals, 1)
	assert.Equal(t, "abandoned", spy.terminals[0].Outcome)
}

func TestExportTracker_RunStopsWhenSourceCloses(t *testing.T) {
	src := chanSource{ch: make(chan export.Update, 1)}
	tr := NewExportTracker(ExportTrackerOptions{Source: src})

	src.ch <- polling(1)
	close(src.ch)

	require.NoError(t, tr.Run(context.Background()))
	require.NotNil(t, tr.active)
	assert.Equal(t, "abc", tr.active.job.JobID)
}

func TestExportTracker_RunHonoursContext(t *testing.T) {
	tr := NewExportTracker(ExportTrackerOptions{Source: chanSource{ch: make(chan export.Update)}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, tr.Run(ctx), context.Canceled)
}
