package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	apperrors "github.com/target/mmk-export/internal/errors"
)

// Exit codes beyond the usual 0/1.
const (
	exitUsage        = 2
	exitExportFailed = 3
)

// usageError marks bad flags or arguments.
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

func usagef(format string, args ...any) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	var ue usageError
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return 0
	case errors.As(err, &ue):
		return exitUsage
	case apperrors.IsTerminal(err):
		return exitExportFailed
	default:
		return 1
	}
}

// compileQuery rejects malformed JMESPath expressions before any work starts.
func compileQuery(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return usagef("invalid -query expression: %w", err)
	}
	return nil
}

// renderJSON writes v as indented JSON, projected through the JMESPath query when set.
func renderJSON(w io.Writer, v any, query string) error {
	out := v
	if strings.TrimSpace(query) != "" {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
		projected, err := jmespath.Search(query, generic)
		if err != nil {
			return fmt.Errorf("evaluate query: %w", err)
		}
		if s, ok := projected.(string); ok {
			return writeln(w, s)
		}
		out = projected
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
