package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/mmk-export/internal/bootstrap"
	"github.com/target/mmk-export/internal/domain/export"
	"github.com/target/mmk-export/internal/domain/model"
	apperrors "github.com/target/mmk-export/internal/errors"
	"github.com/target/mmk-export/internal/service"
)

type exportOptions struct {
	ExportIDs     stringList
	ExportType    string
	ExportsFile   string
	Form          string
	MaxColumnSize int
	Multimedia    bool
	Email         bool
	NoWait        bool
	Quiet         bool
	Timeout       time.Duration
	Query         string
	MetricsAddr   string
}

// exportResult is printed on stdout when the command ends.
type exportResult struct {
	DownloadID     string  `json:"download_id,omitempty"`
	ExportType     string  `json:"export_type,omitempty"`
	IsMultimedia   bool    `json:"is_multimedia"`
	Status         string  `json:"status"`
	Percent        float64 `json:"percent"`
	DownloadURL    string  `json:"download_url,omitempty"`
	DropboxURL     string  `json:"dropbox_url,omitempty"`
	Error          string  `json:"error,omitempty"`
	ErrorCode      string  `json:"error_code,omitempty"`
	EmailRequested bool    `json:"email_requested"`
	EmailError     string  `json:"email_error,omitempty"`
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

func runExport(cmdCtx *commandContext, args []string) error {
	return runExportCommand(cmdCtx, args, false)
}

func runMultimedia(cmdCtx *commandContext, args []string) error {
	return runExportCommand(cmdCtx, args, true)
}

func runExportCommand(cmdCtx *commandContext, args []string, multimedia bool) error {
	opts, err := parseExportFlags(args, cmdCtx.Config.Observability.Metrics.PrometheusAddr, cmdCtx.Stderr)
	if err != nil {
		return err
	}
	opts.Multimedia = opts.Multimedia || multimedia

	input, err := buildSubmitInput(&opts)
	if err != nil {
		return err
	}
	if err := bootstrap.ValidateConfig(&cmdCtx.Config); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	rt, err := openRuntime(ctx, cmdCtx, runtimeOptions{Services: true, MetricsAddr: opts.MetricsAddr})
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	var progress io.Writer = cmdCtx.Stderr
	if opts.Quiet {
		progress = io.Discard
	}

	result, runErr := executeExport(ctx, rt.services, input, &opts, progress)
	if renderErr := renderJSON(cmdCtx.Stdout, result, opts.Query); renderErr != nil {
		return errors.Join(runErr, renderErr)
	}
	return runErr
}

func parseExportFlags(args []string, metricsAddr string, output io.Writer) (exportOptions, error) {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(output)

	opts := exportOptions{}
	fs.Var(&opts.ExportIDs, "export-id", "Saved export id to include (repeatable or comma separated)")
	fs.StringVar(&opts.ExportType, "export-type", "form", "Export type for -export-id entries (form or case)")
	fs.StringVar(&opts.ExportsFile, "exports-file", "", "JSON file holding an array of export descriptors")
	fs.StringVar(&opts.Form, "form", "", "Filter form data as JSON, or @path to read it from a file")
	fs.IntVar(&opts.MaxColumnSize, "max-column-size", 0, "Column limit sent with custom exports (0 uses EXPORT_MAX_COLUMN_SIZE)")
	fs.BoolVar(&opts.Multimedia, "multimedia", false, "Use the multimedia endpoint")
	fs.BoolVar(&opts.Email, "email", false, "Ask the server to email when the export is ready")
	fs.BoolVar(&opts.NoWait, "no-wait", false, "Return after submission without polling")
	fs.BoolVar(&opts.Quiet, "quiet", false, "Do not print progress to stderr")
	fs.DurationVar(&opts.Timeout, "timeout", defaultExportTimeout, "Maximum duration to wait for the export")
	fs.StringVar(&opts.Query, "query", "", "JMESPath expression applied to the JSON result")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", metricsAddr, "Serve Prometheus metrics on this address while running")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exportOptions{}, err
		}
		return exportOptions{}, usageError{err: err}
	}
	if fs.NArg() > 0 {
		return exportOptions{}, usagef("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if opts.Timeout <= 0 {
		return exportOptions{}, usagef("-timeout must be greater than zero")
	}
	if opts.MaxColumnSize < 0 {
		return exportOptions{}, usagef("-max-column-size must be >= 0")
	}
	if err := compileQuery(opts.Query); err != nil {
		return exportOptions{}, err
	}
	return opts, nil
}

func buildSubmitInput(opts *exportOptions) (model.SubmitInput, error) {
	var in model.SubmitInput

	if opts.ExportsFile != "" {
		raw, err := os.ReadFile(opts.ExportsFile)
		if err != nil {
			return in, fmt.Errorf("read exports file: %w", err)
		}
		if err := json.Unmarshal(raw, &in.Exports); err != nil {
			return in, usagef("exports file must hold a JSON array of exports: %v", err)
		}
	}
	for _, id := range opts.ExportIDs {
		in.Exports = append(in.Exports, model.ExportDescriptor{ExportID: id, ExportType: opts.ExportType})
	}
	if len(in.Exports) == 0 {
		return in, usagef("at least one -export-id or -exports-file entry is required")
	}

	form := strings.TrimSpace(opts.Form)
	if path, ok := strings.CutPrefix(form, "@"); ok {
		raw, err := os.ReadFile(path)
		if err != nil {
			return in, fmt.Errorf("read form file: %w", err)
		}
		form = strings.TrimSpace(string(raw))
	}
	if form != "" {
		if !json.Valid([]byte(form)) {
			return in, usagef("-form must be valid JSON")
		}
		in.FormData = json.RawMessage(form)
	}
	in.MaxColumnSize = opts.MaxColumnSize
	return in, nil
}

// executeExport submits in, then follows the poller and requests the completion
// email concurrently. The result is filled in as far as the run got.
func executeExport(
	ctx context.Context,
	svcs *bootstrap.ServiceContainer,
	in model.SubmitInput,
	opts *exportOptions,
	progress io.Writer,
) (exportResult, error) {
	result := exportResult{
		ExportType:   model.ExportTypeLabel(in.ExportType()),
		IsMultimedia: opts.Multimedia,
		Status:       "not_submitted",
	}

	unsubscribe, updates := svcs.Poller.Subscribe()
	defer unsubscribe()

	var (
		final     export.Update
		emailErr  error
		emailSent bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		handle, err := submit(gctx, svcs.Launcher, in, opts.Multimedia)
		if err != nil {
			return err
		}
		result.DownloadID = handle.JobID
		result.ExportType = handle.ExportType
		result.Status = "submitted"

		if opts.NoWait {
			if opts.Email {
				_, emailErr = svcs.Email.Request(gctx, service.StaticJobSource(handle.JobID))
				emailSent = emailErr == nil || errors.Is(emailErr, service.ErrEmailAlreadyRequested)
			}
			return nil
		}

		if err := svcs.Poller.Start(gctx, handle.Job()); err != nil {
			return fmt.Errorf("start polling: %w", err)
		}
		final, err = follow(context.WithoutCancel(gctx), svcs.Tracker, updates, handle.JobID, progress)
		if err != nil && ctx.Err() != nil {
			return fmt.Errorf("export %s did not finish: %w", handle.JobID, ctx.Err())
		}
		return err
	})

	if opts.Email && !opts.NoWait {
		g.Go(func() error {
			_, err := svcs.Email.Request(gctx, service.PollerJobSource(svcs.Poller))
			if err != nil && gctx.Err() != nil {
				// Submission failed or the run was cancelled; that error wins.
				return nil
			}
			emailErr = err
			emailSent = err == nil || errors.Is(err, service.ErrEmailAlreadyRequested)
			return nil
		})
	}

	err := g.Wait()

	result.EmailRequested = emailSent
	if emailErr != nil && !errors.Is(emailErr, service.ErrEmailAlreadyRequested) {
		result.EmailError = emailErr.Error()
	}

	if err != nil {
		if result.Status == "not_submitted" {
			result.Error = apperrors.UserMessage(err)
			result.ErrorCode = string(apperrors.GetCode(err))
		} else {
			result.Status = "abandoned"
			result.Error = err.Error()
		}
		return result, err
	}
	if final.Outcome == nil {
		return result, nil
	}

	result.Status = export.OutcomeName(final.Outcome)
	result.Percent = final.Snapshot.Percent
	result.DownloadURL = final.Snapshot.DownloadURL
	result.DropboxURL = final.Snapshot.DropboxURL
	if failure := export.Err(final.Outcome); failure != nil {
		result.Error = apperrors.UserMessage(failure)
		result.ErrorCode = string(apperrors.GetCode(failure))
		return result, failure
	}
	return result, nil
}

func submit(ctx context.Context, launcher *service.Launcher, in model.SubmitInput, multimedia bool) (model.JobHandle, error) {
	if multimedia {
		return launcher.SubmitMultimedia(ctx, in)
	}
	return launcher.Submit(ctx, in)
}

// follow feeds poller updates to the tracker until the run for jobID ends.
// The tracker is driven here, on one goroutine, so the terminal update is
// recorded before the poller is closed.
func follow(
	ctx context.Context,
	tracker *service.ExportTracker,
	updates <-chan export.Update,
	jobID string,
	progress io.Writer,
) (export.Update, error) {
	for {
		select {
		case <-ctx.Done():
			return export.Update{}, ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return export.Update{}, export.ErrPollerReset
			}
			tracker.Handle(ctx, u)
			if u.JobID == "" {
				return u, export.ErrPollerReset
			}
			if u.JobID != jobID {
				continue
			}
			renderProgress(progress, u)
			if u.Outcome != nil && u.Outcome.Terminal() {
				return u, nil
			}
		}
	}
}

func renderProgress(w io.Writer, u export.Update) {
	line := fmt.Sprintf("%s  %5.1f%%  units=%g  %s", u.JobID, u.Snapshot.Percent, u.Snapshot.CurrentUnits, u.State.Status)
	if n := u.State.ConsecutiveGenericErrors + u.State.ConsecutiveBackendUnavailable; n > 0 {
		line += fmt.Sprintf("  retries=%d", n)
	}
	_ = writeln(w, line)
}
