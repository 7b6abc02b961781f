// Package exportapi is the HTTP client for the export server's prepare, poll and email endpoints.
package exportapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/target/mmk-export/internal/domain/model"
	"github.com/target/mmk-export/internal/ports"
)

// Endpoint paths relative to the base URL.
const (
	PathPrepareExport     = "prepare_custom_export/"
	PathPrepareMultimedia = "prepare_form_multimedia/"
	PathPollDownload      = "poll_custom_export_download/"
	PathEmailRequest      = "add_export_email_request/"
)

const maxErrorBody = 4 << 10

// HTTPError is returned for non-2xx responses. Message holds the "error" field
// of a JSON body when the server sent one.
type HTTPError struct {
	StatusCode int
	Body       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("export server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("export server returned %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus returns the response status code.
func (e *HTTPError) HTTPStatus() int { return e.StatusCode }

// ServerMessage returns the server-supplied error text, if any.
func (e *HTTPError) ServerMessage() string { return e.Message }

func newHTTPError(status int, body []byte) *HTTPError {
	e := &HTTPError{StatusCode: status, Body: strings.TrimSpace(string(body))}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		e.Message = strings.TrimSpace(payload.Error)
	}
	return e
}

// Config configures a Client.
type Config struct {
	// BaseURL is the export view root, e.g. https://hq.example.org/a/demo/data/export/custom/.
	BaseURL string
	// Timeout applies to each request. Zero leaves requests unbounded.
	Timeout time.Duration
	// RateLimit is requests per second across all endpoints. Zero disables limiting.
	RateLimit float64
	Burst     int
	// TokenSource adds bearer tokens when set.
	TokenSource    oauth2.TokenSource
	CSRFCookieName string
	// SessionCookie is preloaded into the jar when set (name=value).
	SessionCookie string
	UserAgent     string
	// Transport overrides the base round tripper.
	Transport http.RoundTripper
	Logger    *slog.Logger
	// NewRequestID defaults to uuid.NewString.
	NewRequestID func() string
}

// Client talks JSON over HTTP to the export server.
type Client struct {
	base         *url.URL
	hc           *http.Client
	limiter      *rate.Limiter
	csrfCookie   string
	userAgent    string
	logger       *slog.Logger
	newRequestID func() string
}

// NewClient validates cfg and builds a Client with its own cookie jar.
func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("export base url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse export base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("export base url must be http(s): %q", raw)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	jar, err := NewCookieJar()
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if cfg.SessionCookie != "" {
		name, value, ok := strings.Cut(cfg.SessionCookie, "=")
		if !ok || name == "" {
			return nil, errors.New("session cookie must be name=value")
		}
		jar.SetCookies(base, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if cfg.TokenSource != nil {
		transport = &oauth2.Transport{Source: oauth2.ReuseTokenSource(nil, cfg.TokenSource), Base: transport}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newID := cfg.NewRequestID
	if newID == nil {
		newID = uuid.NewString
	}
	csrfCookie := cfg.CSRFCookieName
	if csrfCookie == "" {
		csrfCookie = DefaultCSRFCookieName
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "mmk-export"
	}

	return &Client{
		base:         base,
		hc:           &http.Client{Transport: transport, Jar: jar, Timeout: cfg.Timeout},
		limiter:      limiter,
		csrfCookie:   csrfCookie,
		userAgent:    userAgent,
		logger:       logger.With("component", "exportapi"),
		newRequestID: newID,
	}, nil
}

// SubmitExport posts a size-limited export request.
func (c *Client) SubmitExport(ctx context.Context, req model.SubmitRequest) (*model.SubmitResponse, error) {
	var out model.SubmitResponse
	if err := c.postJSON(ctx, PathPrepareExport, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitMultimedia posts a multimedia export request. The column limit is not sent.
func (c *Client) SubmitMultimedia(ctx context.Context, req model.SubmitRequest) (*model.SubmitResponse, error) {
	req.MaxColumnSize = 0
	var out model.SubmitResponse
	if err := c.postJSON(ctx, PathPrepareMultimedia, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryStatus polls one download.
func (c *Client) QueryStatus(ctx context.Context, downloadID string) (*model.StatusResponse, error) {
	var out model.StatusResponse
	if err := c.postJSON(ctx, PathPollDownload, model.StatusRequest{DownloadID: downloadID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestCompletionEmail registers a completion email. The response body is ignored.
func (c *Client) RequestCompletionEmail(ctx context.Context, downloadID string) error {
	return c.postJSON(ctx, PathEmailRequest, model.EmailRequest{DownloadID: downloadID}, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	requestID := c.newRequestID()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", c.base.String())
	if token := csrfToken(c.hc.Jar, endpoint, c.csrfCookie); token != "" {
		req.Header.Set(csrfHeader, token)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	c.logger.DebugContext(ctx, "export api call",
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newHTTPError(resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

var _ ports.ExportServer = (*Client)(nil)
