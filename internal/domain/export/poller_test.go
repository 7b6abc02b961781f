package export

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-export/internal/domain/model"
	apperrors "github.com/target/mmk-export/internal/errors"
)

const testTimeout = 2 * time.Second

type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

type queryFunc func(call int, downloadID string) (*model.StatusResponse, error)

type fakeQuerier struct {
	mu    sync.Mutex
	calls int
	ids   []string
	fn    queryFunc
}

func (q *fakeQuerier) QueryStatus(_ context.Context, downloadID string) (*model.StatusResponse, error) {
	q.mu.Lock()
	q.calls++
	call := q.calls
	q.ids = append(q.ids, downloadID)
	fn := q.fn
	q.mu.Unlock()
	return fn(call, downloadID)
}

func (q *fakeQuerier) Calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

type harness struct {
	t       *testing.T
	poller  *Poller
	querier *fakeQuerier
	tickers chan *fakeTicker
	updates <-chan Update
}

func newHarness(t *testing.T, fn queryFunc) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		querier: &fakeQuerier{fn: fn},
		tickers: make(chan *fakeTicker, 8),
	}
	h.poller = MustNewPoller(PollerOptions{
		Querier: h.querier,
		NewTicker: func(d time.Duration) Ticker {
			assert.Equal(t, DefaultPollInterval, d)
			ft := &fakeTicker{ch: make(chan time.Time)}
			h.tickers <- ft
			return ft
		},
	})
	unsub, updates := h.poller.Subscribe()
	h.updates = updates
	t.Cleanup(func() {
		unsub()
		h.poller.Close()
	})
	return h
}

func (h *harness) start(jobID string) *fakeTicker {
	h.t.Helper()
	require.NoError(h.t, h.poller.Start(context.Background(), model.ExportJob{JobID: jobID, ExportType: "Form"}))
	u := h.next()
	require.Equal(h.t, jobID, u.JobID)
	require.Equal(h.t, model.PollerStatusPolling, u.State.Status)
	select {
	case ft := <-h.tickers:
		return ft
	case <-time.After(testTimeout):
		h.t.Fatal("poll loop did not create a ticker")
		return nil
	}
}

func (h *harness) fire(ft *fakeTicker) {
	h.t.Helper()
	select {
	case ft.ch <- time.Now():
	case <-time.After(testTimeout):
		h.t.Fatal("poll loop did not accept tick")
	}
}

func (h *harness) tick(ft *fakeTicker) Update {
	h.t.Helper()
	h.fire(ft)
	return h.next()
}

func (h *harness) next() Update {
	h.t.Helper()
	select {
	case u := <-h.updates:
		return u
	case <-time.After(testTimeout):
		h.t.Fatal("no update received")
		return Update{}
	}
}

func progressResp(current int) *model.StatusResponse {
	return &model.StatusResponse{
		IsPollSuccessful: true,
		IsAlive:          model.NewBool(true),
		Progress:         model.Progress{Current: model.Number(float64(current))},
	}
}

func TestNewPollerRequiresQuerier(t *testing.T) {
	p, err := NewPoller(PollerOptions{})
	require.ErrorIs(t, err, ErrQuerierRequired)
	assert.Nil(t, p)
}

func TestPoller_StartRequiresJobID(t *testing.T) {
	h := newHarness(t, func(int, string) (*model.StatusResponse, error) { return progressResp(1), nil })
	require.ErrorIs(t, h.poller.Start(context.Background(), model.ExportJob{JobID: "  "}), ErrJobIDRequired)
	assert.Equal(t, model.PollerStatusIdle, h.poller.State().Status)
}

func TestPoller_ForwardProgressKeepsCountersAtZero(t *testing.T) {
	h := newHarness(t, func(call int, _ string) (*model.StatusResponse, error) {
		resp := progressResp(call * 10)
		resp.Progress.Percent = model.Number(float64(call * 10))
		if call == 5 {
			resp.IsReady = true
			resp.HasFile = true
		}
		return resp, nil
	})
	ft := h.start("abc")

	for i := 1; i <= 4; i++ {
		u := h.tick(ft)
		assert.Equal(t, model.PollerStatusPolling, u.State.Status)
		assert.Zero(t, u.State.ConsecutiveGenericErrors)
		assert.Zero(t, u.State.ConsecutiveBackendUnavailable)
		assert.InDelta(t, float64(i*10), u.State.LastProgressUnits, 0.001)
		assert.IsType(t, TransientWaiting{}, u.Outcome)
	}

	u := h.tick(ft)
	assert.Equal(t, model.PollerStatusSucceeded, u.State.Status)
	assert.IsType(t, Succeeded{}, u.Outcome)
}

func TestPoller_GenericErrorsExhaustAfterFourth(t *testing.T) {
	h := newHarness(t, func(call int, _ string) (*model.StatusResponse, error) {
		if call%2 == 0 {
			return nil, errors.New("connection reset")
		}
		return &model.StatusResponse{IsPollSuccessful: false, Error: "worker busy"}, nil
	})
	ft := h.start("abc")

	for i := 1; i <= 3; i++ {
		u := h.tick(ft)
		assert.Equal(t, model.PollerStatusFailedTransientRetry, u.State.Status)
		assert.Equal(t, i, u.State.ConsecutiveGenericErrors)
		assert.False(t, u.Outcome.Terminal())
	}

	u := h.tick(ft)
	assert.Equal(t, model.PollerStatusFailedTerminal, u.State.Status)
	require.IsType(t, GenericError{}, u.Outcome)
	ge := u.Outcome.(GenericError)
	assert.Equal(t, GenericErrorExhausted, ge.Kind)
	// The fourth failure was a transport error, which carries no server message.
	assert.Equal(t, apperrors.FallbackMessage, ge.Message)
	assert.Equal(t, apperrors.FallbackMessage, apperrors.UserMessage(Err(u.Outcome)))

	require.Eventually(t, ft.stopped.Load, testTimeout, time.Millisecond)
	assert.Equal(t, 4, h.querier.Calls())
}

func TestPoller_GenericErrorKeepsServerMessage(t *testing.T) {
	h := newHarness(t, func(int, string) (*model.StatusResponse, error) {
		return &model.StatusResponse{IsPollSuccessful: false, Error: "export failed"}, nil
	})
	ft := h.start("abc")

	var u Update
	for range 4 {
		u = h.tick(ft)
	}
	assert.Equal(t, GenericError{Message: "export failed", Kind: GenericErrorExhausted}, u.Outcome)
	assert.True(t, apperrors.IsTerminal(Err(u.Outcome)))
}

type serverErr struct{ msg string }

func (e serverErr) Error() string         { return "export server returned 500: " + e.msg }
func (e serverErr) ServerMessage() string { return e.msg }

func TestPoller_HTTPErrorBodyReachesGenericError(t *testing.T) {
	h := newHarness(t, func(int, string) (*model.StatusResponse, error) {
		return nil, serverErr{msg: "Export task crashed"}
	})
	ft := h.start("abc")

	var u Update
	for range 4 {
		u = h.tick(ft)
	}
	assert.Equal(t, GenericError{Message: "Export task crashed", Kind: GenericErrorExhausted}, u.Outcome)
	assert.Equal(t, "Export task crashed", apperrors.UserMessage(Err(u.Outcome)))
}

func TestPoller_FractionalProgressCountsAsForward(t *testing.T) {
	h := newHarness(t, func(call int, _ string) (*model.StatusResponse, error) {
		switch call {
		case 1:
			return progressResp(5), nil
		case 2:
			return &model.StatusResponse{IsPollSuccessful: false, Error: "worker busy"}, nil
		default:
			resp := progressResp(0)
			resp.Progress.Current = model.Number(5.5)
			return resp, nil
		}
	})
	ft := h.start("abc")

	h.tick(ft)
	u := h.tick(ft)
	require.Equal(t, 1, u.State.ConsecutiveGenericErrors)

	u = h.tick(ft)
	assert.Equal(t, model.PollerStatusPolling, u.State.Status)
	assert.Zero(t, u.State.ConsecutiveGenericErrors)
	assert.InDelta(t, 5.5, u.State.LastProgressUnits, 0.001)
	assert.InDelta(t, 5.5, u.Snapshot.CurrentUnits, 0.001)
}

func TestPoller_SuccessfulPollWithErrorCountsAsGeneric(t *testing.T) {
	h := newHarness(t, func(int, string) (*model.StatusResponse, error) {
		resp := progressResp(0)
		resp.Error = "slow"
		return resp, nil
	})
	ft := h.start("abc")

	u := h.tick(ft)
	assert.Equal(t, 1, u.State.ConsecutiveGenericErrors)
	assert.Equal(t, model.PollerStatusFailedTransientRetry, u.State.Status)
}

func TestPoller_BackendUnavailableAfterEleventh(t *testing.T) {
	h := newHarness(t, func(int, string) (*model.StatusResponse, error) {
		return &model.StatusResponse{IsAlive: model.NullBool()}, nil
	})
	ft := h.start("abc")

	for i := 1; i <= 10; i++ {
		u := h.tick(ft)
		assert.Equal(t, model.PollerStatusFailedTransientRetry, u.State.Status)
		assert.Equal(t, i, u.State.ConsecutiveBackendUnavailable)
		assert.Zero(t, u.State.ConsecutiveGenericErrors)
	}

	u := h.tick(ft)
	assert.Equal(t, model.PollerStatusFailedTerminal, u.State.Status)
	assert.Equal(t, BackendUnavailableError{Message: BackendUnavailableMessage}, u.Outcome)
	assert.Equal(t, apperrors.ErrCodeBackendUnavailable, apperrors.GetCode(Err(u.Outcome)))

	require.Eventually(t, ft.stopped.Load, testTimeout, time.Millisecond)
	assert.Equal(t, 11, h.querier.Calls())
}

func TestPoller_ExplicitProgressErrorIsImmediate(t *testing.T) {
	h := newHarness(t, func(int, string) (*model.StatusResponse, error) {
		resp := progressResp(3)
		resp.Progress.Error = "Too many rows"
		return resp, nil
	})
	ft := h.start("abc")

	u := h.tick(ft)
	assert.Equal(t, model.PollerStatusFailedTerminal, u.State.Status)
	assert.Equal(t, GenericError{Message: "Too many rows", Kind: GenericErrorExplicit}, u.Outcome)
	assert.Equal(t, "Too many rows", u.Snapshot.ErrorMessage)
	assert.Equal(t, apperrors.ErrCodeExplicitTerminal, apperrors.GetCode(Err(u.Outcome)))

	outcome, err := h.poller.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, u.Outcome, outcome)
}

func TestPoller_ForwardProgressResetsBothCounters(t *testing.T) {
	h := newHarness(t, func(call int, _ string) (*model.StatusResponse, error) {
		switch call {
		case 1, 2, 3:
			return nil, errors.New("timeout")
		case 4, 5:
			return &model.StatusResponse{IsAlive: model.NullBool()}, nil
		case 6:
			resp := progressResp(1)
			resp.IsAlive = model.NullBool()
			return resp, nil
		default:
			return nil, errors.New("timeout")
		}
	})
	ft := h.start("abc")

	for range 5 {
		h.tick(ft)
	}
	st := h.poller.State()
	assert.Equal(t, 3, st.ConsecutiveGenericErrors)
	assert.Equal(t, 2, st.ConsecutiveBackendUnavailable)

	u := h.tick(ft)
	assert.Equal(t, model.PollerStatusPolling, u.State.Status)
	assert.Zero(t, u.State.ConsecutiveGenericErrors)
	assert.Zero(t, u.State.ConsecutiveBackendUnavailable)

	for range 3 {
		u = h.tick(ft)
	}
	assert.Equal(t, model.PollerStatusFailedTransientRetry, u.State.Status)
	assert.Equal(t, 3, u.State.ConsecutiveGenericErrors)
}

func TestPoller_StalledProgressIsInconclusive(t *testing.T) {
	h := newHarness(t, func(int, string) (*model.StatusResponse, error) {
		return progressResp(0), nil
	})
	ft := h.start("abc")

	for range 20 {
		u := h.tick(ft)
		assert.Equal(t, model.PollerStatusPolling, u.State.Status)
		assert.IsType(t, TransientWaiting{}, u.Outcome)
	}
}

func TestPoller_PercentNeverDecreases(t *testing.T) {
	percents := []float64{10, 40, 30, 35, 250}
	h := newHarness(t, func(call int, _ string) (*model.StatusResponse, error) {
		resp := progressResp(call)
		resp.Progress.Percent = model.Number(percents[call-1])
		return resp, nil
	})
	ft := h.start("abc")

	want := []float64{10, 40, 40, 40, 100}
	for i := range percents {
		u := h.tick(ft)
		assert.InDelta(t, want[i], u.Snapshot.Percent, 0.001, "tick %d", i+1)
	}
}

func TestPoller_NonNumericPercentLeavesPercentUnchanged(t *testing.T) {
	h := newHarness(t, func(call int, _ string) (*model.StatusResponse, error) {
		resp := progressResp(call)
		if call == 1 {
			resp.Progress.Percent = model.Number(25)
		}
		return resp, nil
	})
	ft := h.start("abc")

	h.tick(ft)
	u := h.tick(ft)
	assert.InDelta(t, 25, u.Snapshot.Percent, 0.001)
	assert.InDelta(t, 2, u.Snapshot.CurrentUnits, 0.001)
}

func TestPoller_RoundTrip(t *testing.T) {
	h := newHarness(t, func(call int, id string) (*model.StatusResponse, error) {
		assert.Equal(t, "abc", id)
		switch call {
		case 1:
			return progressResp(0), nil
		case 2, 3:
			resp := progressResp(5)
			resp.Progress.Percent = model.Number(50)
			return resp, nil
		default:
			resp := progressResp(5)
			resp.IsReady = true
			resp.HasFile = true
			resp.DownloadURL = "/downloads/abc"
			resp.DropboxURL = "/dropbox/abc"
			return resp, nil
		}
	})
	ft := h.start("abc")

	for range 3 {
		assert.False(t, h.tick(ft).Outcome.Terminal())
	}
	u := h.tick(ft)

	outcome, err := h.poller.Wait(context.Background())
	require.NoError(t, err)
	require.IsType(t, Succeeded{}, outcome)
	snap := outcome.(Succeeded).Snapshot
	assert.InDelta(t, 100, snap.Percent, 0.001)
	assert.Equal(t, "/downloads/abc", snap.DownloadURL)
	assert.Equal(t, "/dropbox/abc", snap.DropboxURL)
	assert.True(t, snap.IsReady)
	assert.True(t, snap.HasFile)
	assert.Equal(t, snap, u.Snapshot)
	assert.Equal(t, snap, h.poller.Snapshot())
	assert.Equal(t, model.PollerStatusSucceeded, h.poller.State().Status)

	require.Eventually(t, ft.stopped.Load, testTimeout, time.Millisecond)
	assert.Equal(t, 4, h.querier.Calls())
	assert.NoError(t, Err(outcome))
}

func TestPoller_LateResponseAfterResetIsDropped(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	h := newHarness(t, func(_ int, id string) (*model.StatusResponse, error) {
		if id == "old" {
			close(entered)
			<-release
			resp := progressResp(50)
			resp.IsReady = true
			resp.HasFile = true
			resp.DownloadURL = "/downloads/old"
			return resp, nil
		}
		return progressResp(1), nil
	})

	oldTicker := h.start("old")
	h.fire(oldTicker)
	<-entered

	h.poller.Reset()
	idle := h.next()
	assert.Equal(t, model.PollerStatusIdle, idle.State.Status)
	_, hasJob := h.poller.Job()
	assert.False(t, hasJob)

	newTicker := h.start("new")
	close(release)

	require.Eventually(t, oldTicker.stopped.Load, testTimeout, time.Millisecond)
	st := h.poller.State()
	assert.Equal(t, model.PollerStatusPolling, st.Status)
	assert.Zero(t, st.LastProgressUnits)
	assert.Empty(t, h.poller.Snapshot().DownloadURL)
	job, ok := h.poller.Job()
	require.True(t, ok)
	assert.Equal(t, "new", job.JobID)

	u := h.tick(newTicker)
	assert.Equal(t, "new", u.JobID)
	assert.InDelta(t, 1, u.State.LastProgressUnits, 0.001)
}

func TestPoller_RestartCancelsPriorRun(t *testing.T) {
	h := newHarness(t, func(int, string) (*model.StatusResponse, error) { return progressResp(1), nil })
	first := h.start("first")

	h.poller.mu.Lock()
	firstRun := h.poller.current
	h.poller.mu.Unlock()

	h.start("second")
	require.Eventually(t, first.stopped.Load, testTimeout, time.Millisecond)

	_, err := h.poller.waitRun(context.Background(), firstRun)
	assert.ErrorIs(t, err, ErrPollerReset)

	job, ok := h.poller.Job()
	require.True(t, ok)
	assert.Equal(t, "second", job.JobID)
}

func TestPoller_ResetIsIdempotent(t *testing.T) {
	h := newHarness(t, func(int, string) (*model.StatusResponse, error) { return progressResp(1), nil })

	h.poller.Reset()
	h.poller.Cancel()
	assert.Equal(t, model.PollerStatusIdle, h.poller.State().Status)

	ft := h.start("abc")
	h.poller.Reset()
	h.next()
	h.poller.Reset()
	assert.Equal(t, model.PollerState{Status: model.PollerStatusIdle}, h.poller.State())
	require.Eventually(t, ft.stopped.Load, testTimeout, time.Millisecond)

	_, err := h.poller.Wait(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveJob)
}

func TestPoller_ContextCancelAbandonsRun(t *testing.T) {
	h := newHarness(t, func(int, string) (*model.StatusResponse, error) { return progressResp(1), nil })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.poller.Start(ctx, model.ExportJob{JobID: "abc"}))
	h.next()
	ft := <-h.tickers

	cancel()
	require.Eventually(t, ft.stopped.Load, testTimeout, time.Millisecond)
	assert.Equal(t, model.PollerStatusIdle, h.poller.State().Status)
}

func TestPoller_WaitHonoursContext(t *testing.T) {
	h := newHarness(t, func(int, string) (*model.StatusResponse, error) { return progressResp(1), nil })
	h.start("abc")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.poller.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
