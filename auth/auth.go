// Package auth performs the login handshake against the site's login API
// and the identity-provider redirect chain behind it. Two strategies
// implement the same interface: the strict walker replays the SSO hops
// manually and is the authoritative implementation; the simple variant
// trusts a single 200 and exists as a fallback seam.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/use-agent/slidefetch/config"
	"github.com/use-agent/slidefetch/models"
	"github.com/use-agent/slidefetch/session"
)

// Authenticator establishes an authenticated session. A nil error means
// the session cookies are valid for gated content; any failure mode
// (rejected credentials, broken chain, missing marker) comes back as an
// error wrapping models.ErrLoginFailed, never as a panic.
type Authenticator interface {
	Login(ctx context.Context, creds models.Credentials) error
}

// New selects the strategy from the configured mode. Anything other than
// "simple" gets the strict walker.
func New(s *session.Session, site config.SiteConfig, cfg config.AuthConfig, logger *slog.Logger) Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode == "simple" {
		return &Simple{s: s, site: site, log: logger}
	}
	return &Strict{s: s, site: site, cfg: cfg, log: logger}
}

// postLogin clears the jar, seeds baseline cookies from the site root,
// and submits the credentials to the login API the way the browser's
// AJAX call does. It returns the cookie_redirect URL for the second hop.
func postLogin(ctx context.Context, s *session.Session, site config.SiteConfig, creds models.Credentials, log *slog.Logger) (string, error) {
	s.ClearCookies()

	seed, err := s.Get(ctx, site.BaseURL+"/", nil)
	if err != nil {
		return "", fmt.Errorf("auth: seed cookies: %w", err)
	}
	drain(seed)

	form := url.Values{
		"username":    {creds.Username},
		"password":    {creds.Password},
		"redirect_to": {site.BaseURL + "/"},
	}
	headers := map[string]string{
		"Accept":           "application/json, text/javascript, */*; q=0.01",
		"Origin":           site.BaseURL,
		"Referer":          site.BaseURL + "/",
		"X-Requested-With": "XMLHttpRequest",
	}

	resp, err := s.PostForm(ctx, site.BaseURL+"/api/v1/user/login", form, headers)
	if err != nil {
		return "", fmt.Errorf("auth: login request: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth: login status %d: %w", resp.StatusCode, models.ErrLoginFailed)
	}

	var lr models.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", fmt.Errorf("auth: decode login response: %v: %w", err, models.ErrLoginFailed)
	}
	if !lr.Success {
		log.Error("auth: credentials rejected")
		return "", fmt.Errorf("auth: credentials rejected: %w", models.ErrLoginFailed)
	}
	if lr.Data.CookieRedirect == "" {
		return "", fmt.Errorf("auth: login response missing cookie_redirect: %w", models.ErrLoginFailed)
	}

	log.Debug("auth: login accepted", "cookie_redirect", lr.Data.CookieRedirect)
	return lr.Data.CookieRedirect, nil
}

// drain consumes and closes a response body so the connection can be
// reused by the session's transport.
func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// sleepCtx is a context-aware time.Sleep.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
