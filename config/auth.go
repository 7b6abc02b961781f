package config

import "strings"

// AuthConfig holds OAuth2 client-credentials settings. Auth is off unless ClientID is set.
type AuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	// DiscoveryURL is the OIDC issuer (or its /.well-known/openid-configuration URL).
	DiscoveryURL string   `env:"DISCOVERY_URL"`
	Scopes       []string `env:"SCOPES"        envSeparator:" "`
	Audience     string   `env:"AUDIENCE"`
}

// Sanitize trims values and drops empty scopes.
func (c *AuthConfig) Sanitize() {
	c.ClientID = strings.TrimSpace(c.ClientID)
	c.DiscoveryURL = strings.TrimSpace(c.DiscoveryURL)
	c.Audience = strings.TrimSpace(c.Audience)
	scopes := c.Scopes[:0]
	for _, s := range c.Scopes {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	c.Scopes = scopes
}

// Enabled reports whether bearer tokens should be attached.
func (c *AuthConfig) Enabled() bool {
	return c.ClientID != "" && c.DiscoveryURL != ""
}
