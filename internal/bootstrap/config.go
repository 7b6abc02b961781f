package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/target/mmk-export/config"
)

// InitLogger initializes the structured logger used before configuration is loaded.
// Logs go to stderr so command output on stdout stays machine readable.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// ConfigureLogger replaces the default logger according to cfg.
// Dev mode uses the text handler at debug level.
func ConfigureLogger(cfg *config.AppConfig) *slog.Logger {
	return configureLogger(os.Stderr, cfg)
}

func configureLogger(w io.Writer, cfg *config.AppConfig) *slog.Logger {
	level := slog.LevelInfo
	isDev := false
	if cfg != nil {
		level = cfg.Observability.Logging.SlogLevel()
		isDev = cfg.IsDev
	}

	var handler slog.Handler
	if isDev {
		if level > slog.LevelDebug {
			level = slog.LevelDebug
		}
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(handler).With("service", "mmk-export")
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateConfig checks the settings every export command needs.
func ValidateConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.Export.Validate(); err != nil {
		return fmt.Errorf("invalid export configuration: %w", err)
	}
	if cfg.Auth.ClientID != "" && cfg.Auth.DiscoveryURL == "" {
		return errors.New("invalid auth configuration: OAUTH_DISCOVERY_URL is required when OAUTH_CLIENT_ID is set")
	}
	return nil
}
