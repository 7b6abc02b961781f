// Package export contains the progress poller: a timer-driven state machine that
// follows one server-side export job until its file is ready or the run fails.
package export

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/target/mmk-export/internal/domain/model"
	apperrors "github.com/target/mmk-export/internal/errors"
)

var (
	// ErrQuerierRequired indicates a poller cannot be constructed without a status querier.
	ErrQuerierRequired = errors.New("poller status querier is required")
	// ErrJobIDRequired indicates Start was called with an empty job identifier.
	ErrJobIDRequired = errors.New("job id is required")
	// ErrPollerReset is returned by Wait when the awaited run was reset or abandoned.
	ErrPollerReset = errors.New("poller reset before the export finished")
	// ErrNoActiveJob is returned by Wait when no run has been started.
	ErrNoActiveJob = errors.New("poller has no active job")
)

// StatusQuerier performs one status query for a download.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, downloadID string) (*model.StatusResponse, error)
}

// PollerOptions configure a Poller.
type PollerOptions struct {
	Querier StatusQuerier
	// Policy defaults to DefaultRetryPolicy.
	Policy *RetryPolicy
	// NewTicker defaults to NewRealTicker.
	NewTicker TickerFactory
	Logger    *slog.Logger
}

// Poller tracks at most one export job at a time.
type Poller struct {
	querier   StatusQuerier
	policy    *RetryPolicy
	newTicker TickerFactory
	logger    *slog.Logger
	subs      *subscribers

	mu       sync.Mutex
	seq      uint64
	current  *pollRun
	state    model.PollerState
	snapshot model.ProgressSnapshot
}

// pollRun is one Start..terminal/Reset cycle. Results from a run that is no
// longer current are dropped.
type pollRun struct {
	id      uint64
	job     model.ExportJob
	cancel  context.CancelFunc
	done    chan struct{}
	outcome Outcome
	reset   bool
}

func (r *pollRun) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// NewPoller constructs an idle Poller.
func NewPoller(opts PollerOptions) (*Poller, error) {
	if opts.Querier == nil {
		return nil, ErrQuerierRequired
	}
	policy := opts.Policy
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	newTicker := opts.NewTicker
	if newTicker == nil {
		newTicker = NewRealTicker
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		querier:   opts.Querier,
		policy:    policy,
		newTicker: newTicker,
		logger:    logger.With("component", "export_poller"),
		subs:      newSubscribers(),
		state:     model.PollerState{Status: model.PollerStatusIdle},
	}, nil
}

// MustNewPoller is like NewPoller but panics on error.
func MustNewPoller(opts PollerOptions) *Poller {
	p, err := NewPoller(opts)
	if err != nil {
		panic(err)
	}
	return p
}

// Start begins polling job. Any run already in progress is cancelled first.
// Cancelling ctx abandons the run the same way Reset does.
func (p *Poller) Start(ctx context.Context, job model.ExportJob) error {
	if strings.TrimSpace(job.JobID) == "" {
		return ErrJobIDRequired
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	p.seq++
	loopCtx, cancel := context.WithCancel(ctx)
	run := &pollRun{
		id:     p.seq,
		job:    job,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.current = run
	p.state = model.PollerState{Status: model.PollerStatusPolling}
	p.snapshot = model.ProgressSnapshot{}

	p.logger.InfoContext(ctx, "export polling started",
		"job_id", job.JobID,
		"run", run.id,
		"export_type", job.ExportType,
		"multimedia", job.IsMultimedia,
		"interval", p.policy.Interval())
	p.publishLocked(TransientWaiting{})

	go p.loop(loopCtx, run)
	return nil
}

// Reset stops polling and returns the poller to idle. It is idempotent.
// A query already in flight is not aborted; its result is ignored.
func (p *Poller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil && p.state.Status == model.PollerStatusIdle {
		return
	}
	p.stopLocked()
	p.state = model.PollerState{Status: model.PollerStatusIdle}
	p.snapshot = model.ProgressSnapshot{}
	p.publishLocked(nil)
}

// Cancel is an alias for Reset.
func (p *Poller) Cancel() { p.Reset() }

// Close resets the poller and closes every subscription channel.
func (p *Poller) Close() {
	p.Reset()
	p.subs.closeAll()
}

// Subscribe registers for updates. Each subscriber holds at most one pending
// update; a newer update replaces an unread one.
func (p *Poller) Subscribe() (func(), <-chan Update) {
	return p.subs.subscribe()
}

// Wait blocks until the current run is terminal and returns its outcome.
func (p *Poller) Wait(ctx context.Context) (Outcome, error) {
	p.mu.Lock()
	run := p.current
	p.mu.Unlock()

	if run == nil {
		return nil, ErrNoActiveJob
	}
	return p.waitRun(ctx, run)
}

func (p *Poller) waitRun(ctx context.Context, run *pollRun) (Outcome, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-run.done:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if run.reset {
		return nil, ErrPollerReset
	}
	return run.outcome, nil
}

// State returns a copy of the current state.
func (p *Poller) State() model.PollerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Snapshot returns the latest progress snapshot.
func (p *Poller) Snapshot() model.ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// Job returns the tracked job and whether there is one.
func (p *Poller) Job() (model.ExportJob, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return model.ExportJob{}, false
	}
	return p.current.job, true
}

// stopLocked cancels the current run, if any. Caller holds p.mu.
func (p *Poller) stopLocked() {
	run := p.current
	if run == nil {
		return
	}
	run.cancel()
	if !run.finished() {
		run.reset = true
		close(run.done)
	}
	p.current = nil
}

func (p *Poller) loop(ctx context.Context, run *pollRun) {
	ticker := p.newTicker(p.policy.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.abandon(run)
			return
		case <-ticker.C():
			if p.tick(ctx, run) {
				return
			}
		}
	}
}

// abandon handles cancellation of the Start context.
func (p *Poller) abandon(run *pollRun) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != run {
		return
	}
	p.stopLocked()
	p.state = model.PollerState{Status: model.PollerStatusIdle}
	p.snapshot = model.ProgressSnapshot{}
	p.publishLocked(nil)
}

// tick performs one status query and applies it. It reports whether the loop should stop.
func (p *Poller) tick(ctx context.Context, run *pollRun) bool {
	resp, err := p.querier.QueryStatus(context.WithoutCancel(ctx), run.job.JobID)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != run || run.finished() {
		p.logger.DebugContext(ctx, "dropping status for superseded run", "job_id", run.job.JobID)
		return true
	}
	if err != nil {
		p.logger.WarnContext(ctx, "status query failed", "job_id", run.job.JobID, "error", err)
	}

	outcome := p.applyLocked(resp, err)
	if outcome.Terminal() {
		run.outcome = outcome
		close(run.done)
		p.logOutcome(ctx, run, outcome)
	}
	p.publishLocked(outcome)
	return outcome.Terminal()
}

// applyLocked advances the state machine for one status response. Caller holds p.mu.
func (p *Poller) applyLocked(resp *model.StatusResponse, err error) Outcome {
	if err != nil || resp == nil {
		return p.genericErrorLocked(apperrors.ServerText(err))
	}

	if resp.IsPollSuccessful {
		p.snapshot = p.nextSnapshot(resp)

		if resp.Completed() {
			p.state.Status = model.PollerStatusSucceeded
			return Succeeded{Snapshot: p.snapshot}
		}
		if resp.Progress.Error != "" {
			p.state.Status = model.PollerStatusFailedTerminal
			return GenericError{Message: resp.Progress.Error, Kind: GenericErrorExplicit}
		}
		if current := resp.Progress.CurrentUnits(); current > p.state.LastProgressUnits {
			p.state.LastProgressUnits = current
			p.state.ConsecutiveGenericErrors = 0
			p.state.ConsecutiveBackendUnavailable = 0
			p.state.Status = model.PollerStatusPolling
			return TransientWaiting{}
		}
	}

	if resp.BackendNotAlive() {
		p.state.ConsecutiveBackendUnavailable++
		if p.policy.BackendExceeded(p.state.ConsecutiveBackendUnavailable) {
			p.state.Status = model.PollerStatusFailedTerminal
			msg := resp.Error
			if msg == "" {
				msg = BackendUnavailableMessage
			}
			return BackendUnavailableError{Message: msg}
		}
		p.state.Status = model.PollerStatusFailedTransientRetry
		return TransientWaiting{}
	}

	if !resp.IsPollSuccessful || resp.Error != "" {
		return p.genericErrorLocked(resp.Error)
	}

	return TransientWaiting{}
}

func (p *Poller) genericErrorLocked(message string) Outcome {
	p.state.ConsecutiveGenericErrors++
	if p.policy.GenericExceeded(p.state.ConsecutiveGenericErrors) {
		p.state.Status = model.PollerStatusFailedTerminal
		if message == "" {
			message = apperrors.FallbackMessage
		}
		return GenericError{Message: message, Kind: GenericErrorExhausted}
	}
	p.state.Status = model.PollerStatusFailedTransientRetry
	return TransientWaiting{}
}

// nextSnapshot builds the snapshot for a successful poll. Percent never decreases.
func (p *Poller) nextSnapshot(resp *model.StatusResponse) model.ProgressSnapshot {
	percent := p.snapshot.Percent
	switch {
	case resp.Completed():
		percent = 100
	case resp.Progress.Percent.Valid:
		percent = max(percent, clampPercent(resp.Progress.Percent.Value))
	}

	current := resp.Progress.CurrentUnits()
	if current < 0 {
		current = p.snapshot.CurrentUnits
	}

	return model.ProgressSnapshot{
		CurrentUnits: current,
		Percent:      percent,
		IsReady:      resp.IsReady,
		HasFile:      resp.HasFile,
		DownloadURL:  resp.DownloadURL,
		DropboxURL:   resp.DropboxURL,
		ErrorMessage: resp.Progress.Error,
	}
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// publishLocked emits the current view. A nil outcome means the poller went idle.
func (p *Poller) publishLocked(outcome Outcome) {
	u := Update{
		State:    p.state,
		Snapshot: p.snapshot,
		Outcome:  outcome,
	}
	if p.current != nil {
		u.JobID = p.current.job.JobID
		u.Job = p.current.job
	}
	p.subs.broadcast(u)
}

func (p *Poller) logOutcome(ctx context.Context, run *pollRun, outcome Outcome) {
	attrs := []any{
		"job_id", run.job.JobID,
		"outcome", OutcomeName(outcome),
		"generic_errors", p.state.ConsecutiveGenericErrors,
		"backend_unavailable", p.state.ConsecutiveBackendUnavailable,
	}
	if _, ok := outcome.(Succeeded); ok {
		p.logger.InfoContext(ctx, "export ready", append(attrs, "download_url", p.snapshot.DownloadURL)...)
		return
	}
	p.logger.WarnContext(ctx, "export polling failed", append(attrs, "error", Err(outcome))...)
}
