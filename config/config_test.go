package config

import (
	"log/slog"
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_Defaults(t *testing.T) {
	t.Setenv("EXPORT_BASE_URL", " https://hq.example.org/a/demo/data/export/custom/ ")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Export.BaseURL != "https://hq.example.org/a/demo/data/export/custom/" {
		t.Fatalf("expected base url to be trimmed, got %q", cfg.Export.BaseURL)
	}
	if cfg.Export.PollInterval != 2*time.Second {
		t.Fatalf("expected 2s poll interval, got %v", cfg.Export.PollInterval)
	}
	if cfg.Export.GenericErrorThreshold != 3 || cfg.Export.BackendUnavailableThreshold != 10 {
		t.Fatalf("unexpected thresholds: %d/%d", cfg.Export.GenericErrorThreshold, cfg.Export.BackendUnavailableThreshold)
	}
	if cfg.Export.MaxColumnSize != 2000 {
		t.Fatalf("expected max column size 2000, got %d", cfg.Export.MaxColumnSize)
	}
	if cfg.Export.CSRFCookieName != "csrftoken" {
		t.Fatalf("expected csrftoken cookie, got %q", cfg.Export.CSRFCookieName)
	}
	if cfg.Postgres.Enabled || cfg.Redis.Enabled {
		t.Fatal("expected postgres and redis to be disabled by default")
	}
	if cfg.Redis.SnapshotTTL != 24*time.Hour {
		t.Fatalf("expected 24h snapshot ttl, got %v", cfg.Redis.SnapshotTTL)
	}
	if cfg.Auth.Enabled() {
		t.Fatal("expected auth to be disabled without a client id")
	}
	if err := cfg.Export.Validate(); err != nil {
		t.Fatalf("expected valid export config: %v", err)
	}
}

func TestExportConfig_ValidateRequiresBaseURL(t *testing.T) {
	cfg := ExportConfig{}
	cfg.Sanitize()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without base url")
	}
}

func TestExportConfig_SanitizeRestoresDefaults(t *testing.T) {
	cfg := ExportConfig{
		PollInterval:                -time.Second,
		GenericErrorThreshold:       -1,
		BackendUnavailableThreshold: -5,
		RequestTimeout:              -time.Second,
		RateLimit:                   -1,
		CSRFCookieName:              "  ",
	}
	cfg.Sanitize()

	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("expected poll interval default, got %v", cfg.PollInterval)
	}
	if cfg.GenericErrorThreshold != 3 || cfg.BackendUnavailableThreshold != 10 {
		t.Fatalf("expected threshold defaults, got %d/%d", cfg.GenericErrorThreshold, cfg.BackendUnavailableThreshold)
	}
	if cfg.RequestTimeout != 0 || cfg.RateLimit != 0 || cfg.RateBurst != 1 {
		t.Fatalf("unexpected transport settings: %+v", cfg)
	}
	if cfg.CSRFCookieName != "csrftoken" {
		t.Fatalf("expected csrf cookie default, got %q", cfg.CSRFCookieName)
	}
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("OAUTH_CLIENT_ID", " export-client ")
	t.Setenv("OAUTH_CLIENT_SECRET", "super-secret")
	t.Setenv("OAUTH_DISCOVERY_URL", "https://login.example.com/.well-known/openid-configuration")
	t.Setenv("OAUTH_SCOPES", "exports.read  exports.write")
	t.Setenv("OAUTH_AUDIENCE", "hq")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	expected := AuthConfig{
		ClientID:     "export-client",
		ClientSecret: "super-secret",
		DiscoveryURL: "https://login.example.com/.well-known/openid-configuration",
		Scopes:       []string{"exports.read", "exports.write"},
		Audience:     "hq",
	}
	if !reflect.DeepEqual(cfg.Auth, expected) {
		t.Fatalf("unexpected auth configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Auth)
	}
	if !cfg.Auth.Enabled() {
		t.Fatal("expected auth to be enabled")
	}
}

func TestAppConfig_DevModeFromNodeEnv(t *testing.T) {
	t.Setenv("NODE_ENV", "development")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()
	if !cfg.IsDev {
		t.Fatal("expected dev mode from NODE_ENV")
	}
}

func TestObservabilityLoggingConfig_SlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		" DEBUG ": slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		cfg := ObservabilityLoggingConfig{Level: in}
		cfg.Sanitize()
		if got := cfg.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}
	cfg.Sanitize()
	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}
	cfg.Sanitize()
	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
}

func TestObservabilityNotificationsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityNotificationsConfig{
		Enabled:    true,
		RetryLimit: -1,
		Slack: SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: " ",
		},
		PagerDuty: PagerDutyNotificationConfig{
			Enabled:    true,
			RoutingKey: " ",
		},
	}
	cfg.Sanitize()

	if cfg.Timeout != 5*time.Second {
		t.Fatalf("expected timeout to fall back to default, got %v", cfg.Timeout)
	}
	if cfg.RetryLimit != 0 {
		t.Fatalf("expected retry limit to be clamped to 0, got %d", cfg.RetryLimit)
	}
	if cfg.Slack.Enabled || cfg.PagerDuty.Enabled {
		t.Fatal("expected incomplete sinks to be disabled")
	}
	if cfg.Slack.Username != "mmk-export" {
		t.Fatalf("expected slack username default, got %q", cfg.Slack.Username)
	}
	if cfg.PagerDuty.Source != "mmk-export" || cfg.PagerDuty.Component != "export-poller" {
		t.Fatalf("unexpected pagerduty defaults: %+v", cfg.PagerDuty)
	}

	cfg = ObservabilityNotificationsConfig{
		Enabled: false,
		Slack: SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: "https://hooks.slack.com/services/test",
		},
	}
	cfg.Sanitize()
	if cfg.Slack.Enabled {
		t.Fatal("expected slack to be disabled when top-level notifications disabled")
	}
}

func TestDBConfig_DSNEscapesCredentials(t *testing.T) {
	cfg := DBConfig{Host: "db", Port: 5432, User: "svc", Password: "p@ss/word", Name: "exports", SSLMode: "require"}
	want := "postgres://svc:p%40ss%2Fword@db:5432/exports?sslmode=require"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestDBConfig_SanitizePool(t *testing.T) {
	cfg := DBConfig{MaxOpenConns: 0, MaxIdleConns: 10}
	cfg.Sanitize()
	if cfg.MaxOpenConns != 4 || cfg.MaxIdleConns != 4 {
		t.Errorf("pool = %d/%d, want 4/4", cfg.MaxOpenConns, cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime != 5*time.Minute || cfg.ConnectTimeout != 5*time.Second {
		t.Errorf("durations = %v/%v", cfg.ConnMaxLifetime, cfg.ConnectTimeout)
	}
}
