package exportapi

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultCSRFCookieName is the cookie the export server sets for CSRF protection.
	DefaultCSRFCookieName = "csrftoken"
	csrfHeader            = "X-CSRFToken"
)

// NewCookieJar returns a jar scoped by the public suffix list.
func NewCookieJar() (http.CookieJar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// csrfToken returns the CSRF cookie value the jar holds for u, if any.
func csrfToken(jar http.CookieJar, u *url.URL, cookieName string) string {
	if jar == nil {
		return ""
	}
	for _, c := range jar.Cookies(u) {
		if c.Name == cookieName {
			return c.Value
		}
	}
	return ""
}
