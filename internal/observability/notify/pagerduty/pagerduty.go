// Package pagerduty raises PagerDuty Events API v2 incidents for failed exports.
package pagerduty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/target/mmk-export/internal/observability/notify"
)

// APIEndpoint is the Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config captures the PagerDuty sink settings.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// Endpoint overrides APIEndpoint.
	Endpoint string
}

// Client triggers events keyed by download id.
type Client struct {
	routingKey string
	source     string
	component  string
	webhook    notify.Webhook
	now        func() time.Time
}

var _ notify.Sink = (*Client)(nil)

// NewClient requires a routing key.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		routingKey: key,
		source:     notify.FallbackString(strings.TrimSpace(cfg.Source), "mmk-export"),
		component:  notify.FallbackString(strings.TrimSpace(cfg.Component), "export-poller"),
		webhook: notify.Webhook{
			Name:       "pagerduty api",
			URL:        notify.FallbackString(strings.TrimSpace(cfg.Endpoint), APIEndpoint),
			RetryLimit: cfg.RetryLimit,
			Client:     hc,
		},
		now: time.Now,
	}, nil
}

// SendExportFailure submits a trigger event.
func (c *Client) SendExportFailure(ctx context.Context, payload notify.ExportFailurePayload) error {
	body, err := json.Marshal(c.buildEvent(payload))
	if err != nil {
		return fmt.Errorf("encode pagerduty payload: %w", err)
	}
	return c.webhook.Post(ctx, body)
}

func (c *Client) buildEvent(p notify.ExportFailurePayload) map[string]any {
	severity := strings.ToLower(notify.FallbackString(p.Severity, notify.SeverityCritical))
	occurredAt := p.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = c.now()
	}

	custom := map[string]any{
		"download_id":   p.DownloadID,
		"export_type":   p.ExportType,
		"is_multimedia": p.IsMultimedia,
		"outcome":       p.Outcome,
		"error":         p.Error,
		"error_class":   p.ErrorClass,
		"last_percent":  p.LastPercent,
	}
	for k, v := range p.Metadata {
		if _, exists := custom[k]; !exists {
			custom[k] = v
		}
	}

	return map[string]any{
		"routing_key":  c.routingKey,
		"event_action": "trigger",
		"dedup_key":    "export:" + notify.FallbackString(p.DownloadID, "unknown"),
		"payload": map[string]any{
			"summary": fmt.Sprintf("Export %s (%s) failed: %s",
				notify.FallbackString(p.DownloadID, "unknown"),
				notify.FallbackString(p.ExportType, "unknown"),
				notify.FallbackString(p.Outcome, "unknown"),
			),
			"severity":       severity,
			"source":         c.source,
			"component":      c.component,
			"timestamp":      occurredAt.UTC().Format(time.RFC3339),
			"custom_details": custom,
		},
	}
}
