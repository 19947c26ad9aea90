package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/use-agent/slidefetch/config"
	"github.com/use-agent/slidefetch/models"
	"github.com/use-agent/slidefetch/session"
)

// Strict is the authoritative login strategy. After the login POST it
// walks the identity-provider redirect chain hop by hop with redirects
// disabled, replaying the jar's cookies and switching the
// Host/Origin/Referer headers as the chain crosses between the IdP and
// the site. The handshake only counts as done once the site root carries
// the logged-in marker.
type Strict struct {
	s    *session.Session
	site config.SiteConfig
	cfg  config.AuthConfig
	log  *slog.Logger
}

// NewStrict builds the strict walker directly, bypassing mode selection.
func NewStrict(s *session.Session, site config.SiteConfig, cfg config.AuthConfig, logger *slog.Logger) *Strict {
	if logger == nil {
		logger = slog.Default()
	}
	return &Strict{s: s, site: site, cfg: cfg, log: logger}
}

// Login implements Authenticator.
func (a *Strict) Login(ctx context.Context, creds models.Credentials) error {
	redirect, err := postLogin(ctx, a.s, a.site, creds, a.log)
	if err != nil {
		return err
	}
	return a.walkChain(ctx, redirect)
}

// walkChain follows the cookie_redirect chain manually. 30x continues the
// loop, 200 hands off to verification, anything else is a hard failure.
func (a *Strict) walkChain(ctx context.Context, start string) error {
	maxHops := a.cfg.MaxRedirects
	if maxHops <= 0 {
		maxHops = 5
	}

	current := start
	for hop := 0; hop < maxHops; hop++ {
		u, err := url.Parse(current)
		if err != nil {
			return fmt.Errorf("auth: bad redirect url %q: %v: %w", current, err, models.ErrLoginFailed)
		}

		a.log.Debug("auth: redirect hop", "hop", hop+1, "url", current)
		resp, err := a.s.GetNoRedirect(ctx, current, a.hopHeaders(u))
		if err != nil {
			return fmt.Errorf("auth: redirect hop %d: %v: %w", hop+1, err, models.ErrLoginFailed)
		}

		switch resp.StatusCode {
		case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther, http.StatusTemporaryRedirect:
			loc := resp.Header.Get("Location")
			drain(resp)
			if loc == "" {
				return fmt.Errorf("auth: redirect with no Location header: %w", models.ErrLoginFailed)
			}
			next, err := u.Parse(loc)
			if err != nil {
				return fmt.Errorf("auth: bad Location %q: %v: %w", loc, err, models.ErrLoginFailed)
			}
			current = next.String()

		case http.StatusOK:
			drain(resp)
			return a.verify(ctx)

		default:
			drain(resp)
			return fmt.Errorf("auth: unexpected status %d on redirect chain: %w", resp.StatusCode, models.ErrLoginFailed)
		}
	}

	return fmt.Errorf("auth: redirect chain exceeded %d hops: %w", maxHops, models.ErrLoginFailed)
}

// hopHeaders builds the navigation header set for one hop, host-switched
// between the identity provider and the target site.
func (a *Strict) hopHeaders(u *url.URL) map[string]string {
	h := map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Cache-Control":             "no-cache, no-store",
		"Pragma":                    "no-cache",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "cross-site",
		"Upgrade-Insecure-Requests": "1",
	}

	if strings.EqualFold(u.Host, a.site.IdPHost) {
		h["Host"] = a.site.IdPHost
		h["Referer"] = a.site.BaseURL + "/"
	} else {
		h["Host"] = u.Host
		h["Origin"] = a.site.BaseURL
		h["Referer"] = "https://" + a.site.IdPHost + "/"
	}
	return h
}

// verify re-fetches the site root after a short settle delay and checks
// for the logged-in marker. Absence is a failure, not an exception.
func (a *Strict) verify(ctx context.Context) error {
	if err := sleepCtx(ctx, a.cfg.SettleDelay); err != nil {
		return fmt.Errorf("auth: %v: %w", err, models.ErrLoginFailed)
	}

	resp, err := a.s.Get(ctx, a.site.BaseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("auth: verification fetch: %v: %w", err, models.ErrLoginFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: verification status %d: %w", resp.StatusCode, models.ErrLoginFailed)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("auth: read verification page: %v: %w", err, models.ErrLoginFailed)
	}

	if !HasLoggedInMarker(body) {
		a.log.Error("auth: logged-in marker not found on site root")
		return fmt.Errorf("auth: session not verified: %w", models.ErrLoginFailed)
	}

	a.log.Info("auth: login verified")
	return nil
}
