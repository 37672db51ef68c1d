package auth

import (
	"net/http"
	"time"
)

// Cookie names carrying the session tokens.
const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)

// SessionCookiePolicy derives the transport attributes of session cookies
// from the deployment environment. It is computed once at startup.
type SessionCookiePolicy struct {
	secure     bool
	domain     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewSessionCookiePolicy builds the policy. In production cookies are Secure
// and scoped to domain; elsewhere they are host-only and sent over plain HTTP.
func NewSessionCookiePolicy(production bool, domain string, accessTTL, refreshTTL time.Duration) SessionCookiePolicy {
	p := SessionCookiePolicy{
		secure:     production,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
	if production {
		p.domain = domain
	}
	return p
}

// AccessCookie carries an access token for the access token lifetime.
func (p SessionCookiePolicy) AccessCookie(token string) *http.Cookie {
	return p.cookie(AccessCookieName, token, p.accessTTL)
}

// RefreshCookie carries a refresh token for the refresh token lifetime.
func (p SessionCookiePolicy) RefreshCookie(token string) *http.Cookie {
	return p.cookie(RefreshCookieName, token, p.refreshTTL)
}

// ClearAccessCookie expires the access cookie. Attributes match AccessCookie
// so the browser replaces the same cookie.
func (p SessionCookiePolicy) ClearAccessCookie() *http.Cookie {
	return p.clear(AccessCookieName)
}

// ClearRefreshCookie expires the refresh cookie.
func (p SessionCookiePolicy) ClearRefreshCookie() *http.Cookie {
	return p.clear(RefreshCookieName)
}

func (p SessionCookiePolicy) base(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   p.domain,
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (p SessionCookiePolicy) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := p.base(name, value)
	c.MaxAge = int(ttl / time.Second)
	c.Expires = time.Now().Add(ttl)
	return c
}

func (p SessionCookiePolicy) clear(name string) *http.Cookie {
	c := p.base(name, "")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}
