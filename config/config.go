package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Site     SiteConfig
	Auth     AuthConfig
	Search   SearchConfig
	Download DownloadConfig
	Log      LogConfig
}

// SiteConfig pins the target site. The URL shapes are hard-assumed by the
// scraping strategies, so these defaults rarely change outside of tests.
type SiteConfig struct {
	// BaseURL is the site root, e.g. "https://www.tctmd.com".
	BaseURL string

	// IdPHost is the identity-provider host the login redirect chain
	// crosses into, e.g. "tctmd.okta.com".
	IdPHost string

	// RequestTimeout is the per-request deadline.
	RequestTimeout time.Duration // default: 30s

	// Throttle is the minimum spacing between requests.
	Throttle time.Duration // default: 1s
}

// AuthConfig controls the login handshake.
type AuthConfig struct {
	// Username and Password come from the environment only.
	Username string
	Password string

	// Mode selects the redirect-handling strategy: "strict" walks the
	// identity-provider chain hop by hop; "simple" trusts a single 200.
	Mode string // "strict" or "simple"; default: "strict"

	// MaxRedirects bounds the strict walker's hop count.
	MaxRedirects int // default: 5

	// SettleDelay is the wait before the post-handshake verification
	// fetch, giving the session time to establish.
	SettleDelay time.Duration // default: 2s
}

// SearchConfig controls presentation enumeration.
type SearchConfig struct {
	// Mode selects the listing strategy: "html" scrapes the search page,
	// "api" queries the JSON search endpoint.
	Mode string // "html" or "api"; default: "html"

	// PageSize is the fixed results-per-page the site expects.
	PageSize int // default: 12

	// MaxPages caps pagination; 0 means until an empty page.
	MaxPages int
}

// DownloadConfig controls asset retrieval.
type DownloadConfig struct {
	// OutputDir receives the downloaded PDFs, created if absent.
	OutputDir string // default: "downloads"

	// LedgerPath is the line-oriented record of completed URLs.
	LedgerPath string // default: "downloaded_pdfs.txt"

	// Retries is the attempt bound per URL.
	Retries int // default: 3

	// Backoff is the base retry delay; attempt n waits Backoff << n.
	Backoff time.Duration // default: 1s

	// TestMode stops the run after TestLimit successful downloads.
	TestMode bool

	// TestLimit is the bounded-mode download cap.
	TestLimit int // default: 2

	// Progress toggles the terminal progress bar.
	Progress bool // default: true
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"

	// File, when set, receives the log stream instead of stderr.
	File string // default: "slidefetch.log"
}

// ErrMissingCredentials is returned by Load when the username or
// password environment variable is unset.
var ErrMissingCredentials = errors.New("config: SLIDEFETCH_USERNAME and SLIDEFETCH_PASSWORD must be set")

// Load reads configuration from environment variables with sane defaults.
// Credentials are required; everything else falls back.
func Load() (*Config, error) {
	cfg := &Config{
		Site: SiteConfig{
			BaseURL:        envOr("SLIDEFETCH_BASE_URL", "https://www.tctmd.com"),
			IdPHost:        envOr("SLIDEFETCH_IDP_HOST", "tctmd.okta.com"),
			RequestTimeout: envDurationOr("SLIDEFETCH_REQUEST_TIMEOUT", 30*time.Second),
			Throttle:       envDurationOr("SLIDEFETCH_THROTTLE", time.Second),
		},
		Auth: AuthConfig{
			Username:     os.Getenv("SLIDEFETCH_USERNAME"),
			Password:     os.Getenv("SLIDEFETCH_PASSWORD"),
			Mode:         envOr("SLIDEFETCH_AUTH_MODE", "strict"),
			MaxRedirects: envIntOr("SLIDEFETCH_MAX_REDIRECTS", 5),
			SettleDelay:  envDurationOr("SLIDEFETCH_SETTLE_DELAY", 2*time.Second),
		},
		Search: SearchConfig{
			Mode:     envOr("SLIDEFETCH_SEARCH_MODE", "html"),
			PageSize: envIntOr("SLIDEFETCH_PAGE_SIZE", 12),
			MaxPages: envIntOr("SLIDEFETCH_MAX_PAGES", 0),
		},
		Download: DownloadConfig{
			OutputDir:  envOr("SLIDEFETCH_OUTPUT_DIR", "downloads"),
			LedgerPath: envOr("SLIDEFETCH_LEDGER", "downloaded_pdfs.txt"),
			Retries:    envIntOr("SLIDEFETCH_RETRIES", 3),
			Backoff:    envDurationOr("SLIDEFETCH_BACKOFF", time.Second),
			TestMode:   envBoolOr("SLIDEFETCH_TEST_MODE", false),
			TestLimit:  envIntOr("SLIDEFETCH_TEST_LIMIT", 2),
			Progress:   envBoolOr("SLIDEFETCH_PROGRESS", true),
		},
		Log: LogConfig{
			Level:  envOr("SLIDEFETCH_LOG_LEVEL", "info"),
			Format: envOr("SLIDEFETCH_LOG_FORMAT", "text"),
			File:   envOr("SLIDEFETCH_LOG_FILE", "slidefetch.log"),
		},
	}

	if cfg.Auth.Username == "" || cfg.Auth.Password == "" {
		return nil, ErrMissingCredentials
	}

	cfg.Site.BaseURL = strings.TrimRight(cfg.Site.BaseURL, "/")
	return cfg, nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
