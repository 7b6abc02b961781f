package config

import (
	"errors"
	"strings"
	"time"
)

// ExportConfig describes the export server and the poll policy.
type ExportConfig struct {
	// BaseURL is the export view root, e.g. https://hq.example.org/a/demo/data/export/custom/.
	BaseURL string `env:"BASE_URL"`

	PollInterval                time.Duration `env:"POLL_INTERVAL"                 envDefault:"2s"`
	GenericErrorThreshold       int           `env:"GENERIC_ERROR_THRESHOLD"       envDefault:"3"`
	BackendUnavailableThreshold int           `env:"BACKEND_UNAVAILABLE_THRESHOLD" envDefault:"10"`
	MaxColumnSize               int           `env:"MAX_COLUMN_SIZE"               envDefault:"2000"`

	// RequestTimeout bounds each HTTP request. Zero leaves requests unbounded.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"0s"`
	RateLimit      float64       `env:"RATE_LIMIT"      envDefault:"5"`
	RateBurst      int           `env:"RATE_BURST"      envDefault:"2"`

	CSRFCookieName string `env:"CSRF_COOKIE_NAME" envDefault:"csrftoken"`
	// SessionCookie is sent as name=value on every request.
	SessionCookie string `env:"SESSION_COOKIE"`
	UserAgent     string `env:"USER_AGENT" envDefault:"mmk-export"`
}

// Sanitize restores defaults for out-of-range values.
func (c *ExportConfig) Sanitize() {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.GenericErrorThreshold < 0 {
		c.GenericErrorThreshold = 3
	}
	if c.BackendUnavailableThreshold < 0 {
		c.BackendUnavailableThreshold = 10
	}
	if c.MaxColumnSize <= 0 {
		c.MaxColumnSize = 2000
	}
	if c.RequestTimeout < 0 {
		c.RequestTimeout = 0
	}
	if c.RateLimit < 0 {
		c.RateLimit = 0
	}
	if c.RateBurst < 1 {
		c.RateBurst = 1
	}
	if c.CSRFCookieName = strings.TrimSpace(c.CSRFCookieName); c.CSRFCookieName == "" {
		c.CSRFCookieName = "csrftoken"
	}
}

// Validate reports settings the export client cannot run without.
func (c *ExportConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("EXPORT_BASE_URL is required")
	}
	return nil
}
