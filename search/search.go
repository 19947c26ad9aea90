// Package search enumerates slide presentation detail pages from the
// site's search surface. Two interchangeable strategies exist: scraping
// the HTML search page and querying the JSON search API. Both return an
// empty page to signal the end of pagination; the caller never treats
// that as an error.
package search

import (
	"context"
	"log/slog"

	"github.com/use-agent/slidefetch/config"
	"github.com/use-agent/slidefetch/session"
)

// Locator lists presentation detail-page URLs for one search page.
// An empty slice means "no more pages" (or "page unavailable", which is
// handled the same way). Errors are reserved for request-building and
// context failures; a bad or missing page body is an empty result.
type Locator interface {
	ListPresentations(ctx context.Context, page int) ([]string, error)
}

// New selects the listing strategy from the configured mode. Anything
// other than "api" gets the HTML scraper.
func New(s *session.Session, site config.SiteConfig, cfg config.SearchConfig, logger *slog.Logger) Locator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode == "api" {
		return &APILocator{s: s, site: site, cfg: cfg, log: logger}
	}
	return &HTMLLocator{s: s, site: site, cfg: cfg, log: logger}
}
