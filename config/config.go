package config

import (
	"os"
	"strings"
)

// AppConfig composes the per-concern configuration loaded from the environment.
//
// Configuration is parsed with github.com/caarlos0/env. See the individual files:
//   - export.go: export server endpoint and poll policy
//   - auth.go: OAuth2 client-credentials settings
//   - database.go: Postgres history and Redis snapshot store
//   - observability.go: logging, metrics and failure notifications
type AppConfig struct {
	// IsDev switches to text logs at debug level. Set DEV=true or NODE_ENV=development.
	IsDev bool `env:"DEV" envDefault:"false"`

	Export ExportConfig `envPrefix:"EXPORT_"`
	Auth   AuthConfig   `envPrefix:"OAUTH_"`

	// Postgres holds the export history. Disabled unless DB_ENABLED=true.
	Postgres DBConfig `envPrefix:"DB_"`
	// Redis holds snapshots and email claims. Disabled unless REDIS_ENABLED=true.
	Redis RedisConfig `envPrefix:"REDIS_"`

	Observability ObservabilityConfig
}

// Sanitize applies guardrails after loading from the environment.
func (c *AppConfig) Sanitize() {
	c.Export.Sanitize()
	c.Auth.Sanitize()
	c.Postgres.Sanitize()
	c.Redis.Sanitize()
	c.Observability.Sanitize()
	c.detectDevMode()
}

// detectDevMode falls back to NODE_ENV when DEV is unset.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
