package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/target/mmk-export/internal/util"
)

const maxWebhookErrorBody = 2 << 10

// Webhook posts JSON bodies with exponential backoff. 4xx responses other than 429 are not retried.
type Webhook struct {
	Name       string
	URL        string
	RetryLimit int
	Client     *http.Client
}

// Post delivers body, retrying up to RetryLimit extra times.
func (w Webhook) Post(ctx context.Context, body []byte) error {
	hc := w.Client
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	schedule := util.Backoff{
		Initial:  200 * time.Millisecond,
		Max:      2 * time.Second,
		MaxTries: uint(max(w.RetryLimit, 0)) + 1,
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, w.post(ctx, hc, body)
	}, schedule.Options()...)
	return err
}

func (w Webhook) post(ctx context.Context, hc *http.Client, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create %s request: %w", w.Name, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", w.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			return fmt.Errorf("drain %s response body: %w", w.Name, err)
		}
		return nil
	}

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxWebhookErrorBody))
	err = fmt.Errorf("%s %s: %s", w.Name, resp.Status, strings.TrimSpace(string(raw)))
	if readErr != nil {
		err = errors.Join(err, fmt.Errorf("read %s error response: %w", w.Name, readErr))
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return backoff.Permanent(err)
	}
	return err
}

// FallbackString returns fallback when value is blank.
func FallbackString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
