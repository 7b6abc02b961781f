package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/target/mmk-export/internal/bootstrap"
	"github.com/target/mmk-export/internal/domain/model"
	apperrors "github.com/target/mmk-export/internal/errors"
	"github.com/target/mmk-export/internal/ports"
)

type statusOptions struct {
	DownloadID string
	Live       bool
	Query      string
	Timeout    time.Duration
}

// statusView is either the stored snapshot or a live status response.
type statusView struct {
	DownloadID string                `json:"download_id"`
	Source     string                `json:"source"`
	Snapshot   *model.SnapshotRecord `json:"snapshot,omitempty"`
	Live       *model.StatusResponse `json:"live,omitempty"`
}

func runStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseStatusFlags(args, cmdCtx.Stderr)
	if err != nil {
		return err
	}
	if err := bootstrap.ValidateConfig(&cmdCtx.Config); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	rt, err := openRuntime(ctx, cmdCtx, runtimeOptions{Services: true})
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	view, err := lookupStatus(ctx, rt.services.Snapshots, rt.services.Client, opts)
	if err != nil {
		return err
	}
	return renderJSON(cmdCtx.Stdout, view, opts.Query)
}

// lookupStatus prefers the stored snapshot and falls back to one live query.
func lookupStatus(ctx context.Context, store ports.SnapshotStore, querier ports.StatusQuerier, opts statusOptions) (statusView, error) {
	view := statusView{DownloadID: opts.DownloadID}

	if store != nil && !opts.Live {
		rec, err := store.Get(ctx, opts.DownloadID)
		switch {
		case err == nil:
			view.Source = "snapshot"
			view.Snapshot = &rec
			return view, nil
		case !apperrors.IsNotFound(err):
			return view, fmt.Errorf("read snapshot: %w", err)
		}
	}

	resp, err := querier.QueryStatus(ctx, opts.DownloadID)
	if err != nil {
		return view, fmt.Errorf("query status: %w", err)
	}
	view.Source = "live"
	view.Live = resp
	return view, nil
}

func parseStatusFlags(args []string, output io.Writer) (statusOptions, error) {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(output)

	opts := statusOptions{}
	fs.StringVar(&opts.DownloadID, "id", "", "Download id to inspect (or pass it as the first argument)")
	fs.BoolVar(&opts.Live, "live", false, "Skip the snapshot store and query the export server")
	fs.StringVar(&opts.Query, "query", "", "JMESPath expression applied to the JSON result")
	fs.DurationVar(&opts.Timeout, "timeout", defaultQueryTimeout, "Maximum duration for the lookup")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return statusOptions{}, err
		}
		return statusOptions{}, usageError{err: err}
	}
	if opts.DownloadID == "" && fs.NArg() > 0 {
		opts.DownloadID = fs.Arg(0)
	}
	opts.DownloadID = strings.TrimSpace(opts.DownloadID)
	if opts.DownloadID == "" {
		return statusOptions{}, usagef("a download id is required")
	}
	if opts.Timeout <= 0 {
		return statusOptions{}, usagef("-timeout must be greater than zero")
	}
	if err := compileQuery(opts.Query); err != nil {
		return statusOptions{}, err
	}
	return opts, nil
}
