package exportapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AuthConfig holds the OAuth2 client-credentials settings. The token endpoint is
// discovered from the issuer's OIDC configuration.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	// DiscoveryURL is the issuer URL, with or without the /.well-known/openid-configuration suffix.
	DiscoveryURL string
	Scopes       []string
	// Audience is sent as an extra token parameter when set.
	Audience   string
	HTTPClient *http.Client // used for discovery and token requests
}

// NewTokenSource discovers the token endpoint and returns a caching client-credentials token source.
func NewTokenSource(ctx context.Context, cfg AuthConfig) (oauth2.TokenSource, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if strings.TrimSpace(cfg.DiscoveryURL) == "" {
		return nil, errors.New("discovery URL is required")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)

	provider, err := gooidc.NewProvider(ctx, issuerFromDiscoveryURL(cfg.DiscoveryURL))
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     provider.Endpoint().TokenURL,
		Scopes:       cfg.Scopes,
		AuthStyle:    provider.Endpoint().AuthStyle,
	}
	if cfg.Audience != "" {
		cc.EndpointParams = map[string][]string{"audience": {cfg.Audience}}
	}
	// ctx is retained for token refreshes.
	return cc.TokenSource(context.WithoutCancel(ctx)), nil
}

func issuerFromDiscoveryURL(raw string) string {
	issuer := strings.TrimSuffix(strings.TrimSpace(raw), "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	return strings.TrimSuffix(issuer, "/")
}
