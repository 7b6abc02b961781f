// Package slack delivers export failure notifications to a Slack incoming webhook.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/target/mmk-export/internal/observability/notify"
)

// Config captures the Slack webhook settings.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// ExportURLPrefix turns download ids into links when set.
	ExportURLPrefix string
}

// Client posts formatted messages to Slack.
type Client struct {
	webhook      notify.Webhook
	channel      string
	username     string
	exportPrefix string
	now          func() time.Time
}

var _ notify.Sink = (*Client)(nil)

// NewClient builds a Slack webhook client.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
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
		webhook: notify.Webhook{
			Name:       "slack webhook",
			URL:        webhookURL,
			RetryLimit: cfg.RetryLimit,
			Client:     hc,
		},
		channel:      strings.TrimSpace(cfg.Channel),
		username:     notify.FallbackString(strings.TrimSpace(cfg.Username), "mmk-export"),
		exportPrefix: strings.TrimRight(strings.TrimSpace(cfg.ExportURLPrefix), "/"),
		now:          time.Now,
	}, nil
}

// SendExportFailure posts the failure to Slack.
func (c *Client) SendExportFailure(ctx context.Context, payload notify.ExportFailurePayload) error {
	body, err := json.Marshal(c.formatMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	return c.webhook.Post(ctx, body)
}

func (c *Client) formatMessage(p notify.ExportFailurePayload) map[string]any {
	ts := p.OccurredAt
	if ts.IsZero() {
		ts = c.now()
	}

	var text strings.Builder
	text.WriteString("*Export failure*")
	if id := c.downloadRef(p.DownloadID); id != "" {
		text.WriteString(" ")
		text.WriteString(id)
	}
	if p.ExportType != "" {
		text.WriteString(" (")
		text.WriteString(escape(p.ExportType))
		if p.IsMultimedia {
			text.WriteString(", multimedia")
		}
		text.WriteByte(')')
	}
	text.WriteByte('\n')

	field(&text, "Severity", notify.FallbackString(p.Severity, notify.SeverityCritical))
	field(&text, "Outcome", p.Outcome)
	if p.LastPercent > 0 {
		field(&text, "Progress", strconv.FormatFloat(p.LastPercent, 'f', -1, 64)+"%")
	}
	field(&text, "Error class", p.ErrorClass)
	field(&text, "Error", escape(p.Error))
	if len(p.Metadata) > 0 {
		text.WriteString("• Metadata:\n")
		for _, k := range slices.Sorted(maps.Keys(p.Metadata)) {
			text.WriteString("    • ")
			text.WriteString(k)
			text.WriteString(": ")
			text.WriteString(escape(p.Metadata[k]))
			text.WriteByte('\n')
		}
	}
	text.WriteString("• Timestamp: ")
	text.WriteString(ts.UTC().Format(time.RFC3339))

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

func (c *Client) downloadRef(downloadID string) string {
	id := strings.TrimSpace(downloadID)
	if id == "" {
		return ""
	}
	if c.exportPrefix == "" {
		return "`" + escape(id) + "`"
	}
	return fmt.Sprintf("<%s/%s|%s>", c.exportPrefix, id, escape(id))
}

func field(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	text.WriteString("• ")
	text.WriteString(label)
	text.WriteString(": ")
	text.WriteString(value)
	text.WriteByte('\n')
}

func escape(value string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(value)
}
