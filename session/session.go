// Package session provides the persistent HTTP client shared by every
// component of a crawl run: one cookie jar, browser-like defaults, and a
// request-rate throttle. All state is owned by a single run; nothing here
// is safe for concurrent use and nothing needs to be.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/use-agent/slidefetch/config"
)

// ChromeUA is sent on every request. The site serves different markup to
// non-browser agents, so the fingerprint has to be consistent end to end.
const ChromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0"

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1 only. Computed once at init time and reused for every
// connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		// Fallback: if spec generation fails, plain TLS is used.
		return
	}
	// Replace h2 with http/1.1 only in the ALPN extension so the server
	// never negotiates HTTP/2 (which Go's http.Transport cannot handle
	// over a utls connection).
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// Session is one authenticated browsing session: a cookie jar mutated by
// every request, plus two views of the same underlying client — one that
// follows redirects and one that surfaces them to the caller (the SSO
// walker needs the raw 30x responses).
type Session struct {
	client  *http.Client
	bare    *http.Client
	jar     http.CookieJar
	limiter *rate.Limiter
	log     *slog.Logger
}

// New builds a Session from the site configuration. The logger is
// injected; pass nil to use slog.Default().
func New(cfg config.SiteConfig, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("session: cookie jar: %w", err)
	}

	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr)
		},
		ForceAttemptHTTP2: false,
	}

	s := &Session{
		client: &http.Client{
			Jar:       jar,
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		bare: &http.Client{
			Jar:       jar,
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		jar:     jar,
		limiter: rate.NewLimiter(rate.Every(cfg.Throttle), 1),
		log:     logger,
	}
	return s, nil
}

// ClearCookies drops all session state, returning the jar to its
// pre-login condition.
func (s *Session) ClearCookies() {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		// cookiejar.New only fails on a broken PublicSuffixList; keep
		// the old jar rather than crash mid-run.
		s.log.Warn("session: could not reset cookie jar", "error", err)
		return
	}
	s.jar = jar
	s.client.Jar = jar
	s.bare.Jar = jar
}

// Get issues a throttled GET, following redirects. Extra headers override
// the browser defaults. The caller owns the response body.
func (s *Session) Get(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	return s.do(ctx, s.client, http.MethodGet, rawURL, nil, "", headers)
}

// GetNoRedirect issues a throttled GET with redirect-following disabled,
// so 30x responses are returned as-is with their Location header intact.
func (s *Session) GetNoRedirect(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	return s.do(ctx, s.bare, http.MethodGet, rawURL, nil, "", headers)
}

// PostForm issues a throttled form-encoded POST, following redirects.
func (s *Session) PostForm(ctx context.Context, rawURL string, form url.Values, headers map[string]string) (*http.Response, error) {
	body := form.Encode()
	return s.do(ctx, s.client, http.MethodPost, rawURL, strings.NewReader(body), "application/x-www-form-urlencoded; charset=UTF-8", headers)
}

func (s *Session) do(ctx context.Context, client *http.Client, method, rawURL string, body *strings.Reader, contentType string, headers map[string]string) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("session: throttle: %w", err)
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, rawURL, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, rawURL, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("session: build request: %w", err)
	}

	req.Header.Set("User-Agent", ChromeUA)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		if strings.EqualFold(k, "Host") {
			// Host is a request field, not a plain header, in net/http.
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}

	s.log.Debug("session: request", "method", method, "url", rawURL)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session: %s %s: %w", method, rawURL, err)
	}
	s.log.Debug("session: response", "url", rawURL, "status", resp.StatusCode)
	return resp, nil
}

// dialTLSChrome establishes a TLS connection with a Chrome ClientHello.
// Plain-HTTP URLs (as used by test servers) never reach this path.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}
