package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/target/mmk-export/internal/core"
	"github.com/target/mmk-export/internal/data"
	"github.com/target/mmk-export/internal/domain/model"
)

type historyOptions struct {
	Status  string
	Limit   int
	Offset  int
	JSON    bool
	Query   string
	Timeout time.Duration
}

var errHistoryDisabled = errors.New("export history is disabled; set DB_ENABLED=true")

func runHistory(cmdCtx *commandContext, args []string) error {
	opts, err := parseHistoryFlags(args, cmdCtx.Stderr)
	if err != nil {
		return err
	}
	if !cmdCtx.Config.Postgres.Enabled {
		return errHistoryDisabled
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	rt, err := openRuntime(ctx, cmdCtx, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	return listHistory(ctx, data.NewExportHistoryRepo(rt.infra.DB), opts, cmdCtx.Stdout)
}

func listHistory(ctx context.Context, repo core.ExportHistoryRepository, opts historyOptions, w io.Writer) error {
	runs, err := repo.List(ctx, model.ExportRunListOptions{
		Status: model.ExportRunStatus(opts.Status),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
	if err != nil {
		return fmt.Errorf("list export history: %w", err)
	}

	if opts.JSON || opts.Query != "" {
		if runs == nil {
			runs = []*model.ExportRun{}
		}
		return renderJSON(w, runs, opts.Query)
	}
	return printHistoryTable(w, runs)
}

func printHistoryTable(w io.Writer, runs []*model.ExportRun) error {
	if len(runs) == 0 {
		return writeln(w, "No export runs recorded.")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "DOWNLOAD ID\tTYPE\tMULTIMEDIA\tSTATUS\tSUBMITTED\tFINISHED\tERROR\n"); err != nil {
		return err
	}
	for _, run := range runs {
		finished := "-"
		if run.FinishedAt != nil {
			finished = run.FinishedAt.UTC().Format(time.RFC3339)
		}
		errText := run.ErrorCode
		if run.ErrorMessage != "" {
			errText = fmt.Sprintf("%s: %s", run.ErrorCode, run.ErrorMessage)
		}
		if err := writef(tw, "%s\t%s\t%t\t%s\t%s\t%s\t%s\n",
			run.DownloadID,
			run.ExportType,
			run.IsMultimedia,
			run.Status,
			run.SubmittedAt.UTC().Format(time.RFC3339),
			finished,
			errText,
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func parseHistoryFlags(args []string, output io.Writer) (historyOptions, error) {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(output)

	opts := historyOptions{}
	fs.StringVar(&opts.Status, "status", "", "Only list runs with this status (submitted, succeeded, failed, abandoned)")
	fs.IntVar(&opts.Limit, "limit", 20, "Maximum number of runs to list")
	fs.IntVar(&opts.Offset, "offset", 0, "Number of runs to skip")
	fs.BoolVar(&opts.JSON, "json", false, "Print JSON instead of a table")
	fs.StringVar(&opts.Query, "query", "", "JMESPath expression applied to the JSON result")
	fs.DurationVar(&opts.Timeout, "timeout", defaultQueryTimeout, "Maximum duration for the query")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return historyOptions{}, err
		}
		return historyOptions{}, usageError{err: err}
	}
	if opts.Status != "" && !model.ExportRunStatus(opts.Status).Valid() {
		return historyOptions{}, usagef("unknown -status %q", opts.Status)
	}
	if opts.Limit <= 0 || opts.Offset < 0 {
		return historyOptions{}, usagef("-limit must be > 0 and -offset >= 0")
	}
	if opts.Timeout <= 0 {
		return historyOptions{}, usagef("-timeout must be greater than zero")
	}
	if err := compileQuery(opts.Query); err != nil {
		return historyOptions{}, err
	}
	return opts, nil
}
